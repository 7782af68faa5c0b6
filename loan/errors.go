package loan

import "errors"

var (
	ErrUnknownLoan       = errors.New("unknown loan")
	ErrTooManyLoans      = errors.New("too many concurrent loans")
	ErrCreditExceeded    = errors.New("credit line exceeded")
	ErrInvalidDuration   = errors.New("invalid loan duration")
	ErrInvalidAmount     = errors.New("invalid loan amount")
	ErrInsufficientCash  = errors.New("insufficient cash for repayment")
	ErrCreditScoreTooLow = errors.New("credit score too low")
)

package inventory

import "errors"

var (
	ErrInsufficientCash   = errors.New("insufficient cash")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoShortPosition    = errors.New("no short position")
)

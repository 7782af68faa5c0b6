package order

import "errors"

var (
	ErrUnknownOrder = errors.New("unknown order")
	ErrInvalidOrder = errors.New("invalid order")
	ErrSymbolBusy   = errors.New("symbol already traded this cycle")
)

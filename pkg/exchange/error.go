package exchange

import "errors"

var (
	ErrDuplicateInstrument = errors.New("duplicate instrument")
	ErrUnknownInstrument   = errors.New("unknown instrument")
)

package orderbook

import "errors"

// ErrInvalidOrder is returned, wrapped with the reason, for every order the
// book refuses to admit. A rejected order never mutates the book.
var ErrInvalidOrder = errors.New("invalid order")

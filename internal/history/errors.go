package history

import "errors"

var (
	ErrOutOfOrder = errors.New("snapshot out of order")
)

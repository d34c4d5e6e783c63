package curves

import "errors"

var (
	ErrInvalidCurve           = errors.New("invalid curve")
	ErrPointLimitExceeded     = errors.New("point limit exceeded")
	ErrBoundaryPointProtected = errors.New("boundary point protected")
)

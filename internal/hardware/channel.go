package hardware

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnknownDevice  = errors.New("unknown device")
	ErrUnknownChannel = errors.New("unknown channel")
)

// Channel is the write capability of a controllable device
type Channel interface {
	// SetDuty sets the duty of the given channel in percent (0-100)
	SetDuty(ctx context.Context, deviceId string, channel string, percent int) error
}

// Error is a failed hardware write. It is transient: the write may succeed when retried.
type Error struct {
	DeviceId string
	Channel  string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("unable to set duty of %s/%s: %v", e.DeviceId, e.Channel, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

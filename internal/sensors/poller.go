package sensors

import (
	"context"
	"errors"
	"time"

	"github.com/markusressel/cool2go/internal/devices"
)

var (
	ErrNoReading            = errors.New("no reading available")
	ErrBackfillNotSupported = errors.New("backfill not supported")
)

// TempPoller reads the current status of a device
type TempPoller interface {
	Poll(ctx context.Context, deviceId string) (devices.StatusSnapshot, error)
}

// SnapshotReader gives read access to recorded device status
type SnapshotReader interface {
	Latest(deviceId string) (devices.StatusSnapshot, bool)
	Window(deviceId string, since time.Time) []devices.StatusSnapshot
}

package sensors

import (
	"context"
	"fmt"
	"time"

	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/history"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Registry holds the poller of every monitored device.
// It backfills history gaps for pollers that can recover past readings.
type Registry struct {
	pollers cmap.ConcurrentMap[string, TempPoller]
}

func NewRegistry() *Registry {
	return &Registry{
		pollers: cmap.New[TempPoller](),
	}
}

func (r *Registry) Register(deviceId string, poller TempPoller) {
	r.pollers.Set(deviceId, poller)
}

func (r *Registry) Get(deviceId string) (TempPoller, bool) {
	return r.pollers.Get(deviceId)
}

func (r *Registry) Count() int {
	return r.pollers.Count()
}

func (r *Registry) Backfill(ctx context.Context, deviceId string, since time.Time) ([]devices.StatusSnapshot, error) {
	poller, ok := r.pollers.Get(deviceId)
	if !ok {
		return nil, fmt.Errorf("device %s: %w", deviceId, ErrBackfillNotSupported)
	}
	backfiller, ok := poller.(history.Backfiller)
	if !ok {
		return nil, fmt.Errorf("device %s: %w", deviceId, ErrBackfillNotSupported)
	}
	return backfiller.Backfill(ctx, deviceId, since)
}

package hardware

import (
	"context"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Router dispatches duty writes to the Channel registered for a device
type Router struct {
	channels cmap.ConcurrentMap[string, Channel]
}

func NewRouter() *Router {
	return &Router{
		channels: cmap.New[Channel](),
	}
}

func (r *Router) Register(deviceId string, channel Channel) {
	r.channels.Set(deviceId, channel)
}

func (r *Router) Has(deviceId string) bool {
	return r.channels.Has(deviceId)
}

func (r *Router) SetDuty(ctx context.Context, deviceId string, channel string, percent int) error {
	target, ok := r.channels.Get(deviceId)
	if !ok {
		return &Error{DeviceId: deviceId, Channel: channel, Err: ErrUnknownDevice}
	}
	return target.SetDuty(ctx, deviceId, channel, percent)
}

package devices

import (
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Registry holds all devices known to a running instance.
type Registry struct {
	devices cmap.ConcurrentMap[string, *Device]
}

func NewRegistry() *Registry {
	return &Registry{
		devices: cmap.New[*Device](),
	}
}

func (r *Registry) Register(device *Device) {
	r.devices.Set(device.Id(), device)
}

func (r *Registry) Get(id string) (*Device, bool) {
	return r.devices.Get(id)
}

func (r *Registry) Ids() []string {
	ids := r.devices.Keys()
	sort.Strings(ids)
	return ids
}

func (r *Registry) All() []*Device {
	var result []*Device
	for _, id := range r.Ids() {
		device, ok := r.devices.Get(id)
		if ok {
			result = append(result, device)
		}
	}
	return result
}

func (r *Registry) Count() int {
	return r.devices.Count()
}

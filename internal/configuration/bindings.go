package configuration

import (
	"strings"

	"github.com/markusressel/cool2go/internal/curves"
)

type BindingConfig struct {
	Device  string `json:"device"`
	Channel string `json:"channel"`
	Mode    string `json:"mode"`

	// Duty of a fixed binding
	Duty int `json:"duty,omitempty"`

	// Source references the temperature of a curve binding as "deviceId/sensor"
	Source string         `json:"source,omitempty"`
	Points []curves.Point `json:"points,omitempty"`
}

// ParseSourceRef splits a "deviceId/sensor" reference.
// Sensor names may contain slashes, device ids never do.
func ParseSourceRef(ref string) (deviceId string, sensor string, ok bool) {
	deviceId, sensor, ok = strings.Cut(strings.TrimSpace(ref), "/")
	if !ok || len(deviceId) <= 0 || len(sensor) <= 0 {
		return "", "", false
	}
	return deviceId, sensor, true
}

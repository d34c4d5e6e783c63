package devices

import (
	"fmt"
	"sort"
	"strings"
)

type Kind string

const (
	KindCPU              Kind = "cpu"
	KindGPU              Kind = "gpu"
	KindHardwareMonitor  Kind = "hwmon"
	KindVendorController Kind = "vendor"
	KindComposite        Kind = "composite"
)

var Kinds = []Kind{KindCPU, KindGPU, KindHardwareMonitor, KindVendorController, KindComposite}

// ParseKind resolves the configuration representation of a device kind.
func ParseKind(value string) (Kind, bool) {
	for _, kind := range Kinds {
		if strings.EqualFold(string(kind), value) {
			return kind, true
		}
	}
	return "", false
}

// Volatile reports whether readings of this kind fluctuate quickly between polls
// and should therefore be smoothed before use.
func (k Kind) Volatile() bool {
	return k == KindCPU || k == KindGPU
}

const (
	MinDutyValue = 0
	MaxDutyValue = 100

	DefaultTempMin = 20
	DefaultTempMax = 100

	DefaultProfileMinLength = 2
	DefaultProfileMaxLength = 17
)

// Channel is a controllable output of a device, e.g. a fan or pump header.
type Channel struct {
	Name         string `json:"name"`
	MinDuty      int    `json:"minDuty"`
	MaxDuty      int    `json:"maxDuty"`
	FixedEnabled bool   `json:"fixedEnabled"`
	CurveEnabled bool   `json:"curveEnabled"`
}

// Device is created once at discovery and only read afterwards.
type Device struct {
	Kind  Kind   `json:"kind"`
	Index int    `json:"index"`
	Name  string `json:"name"`

	// TempMin and TempMax span the temperature range of the sensors of this device
	TempMin int `json:"tempMin"`
	TempMax int `json:"tempMax"`

	ProfileMinLength int `json:"profileMinLength"`
	ProfileMaxLength int `json:"profileMaxLength"`

	Channels map[string]Channel `json:"channels"`
}

func NewDevice(kind Kind, index int, name string) *Device {
	return &Device{
		Kind:             kind,
		Index:            index,
		Name:             name,
		TempMin:          DefaultTempMin,
		TempMax:          DefaultTempMax,
		ProfileMinLength: DefaultProfileMinLength,
		ProfileMaxLength: DefaultProfileMaxLength,
		Channels:         map[string]Channel{},
	}
}

// Id returns the unique identifier of this device, e.g. "cpu1"
func (d *Device) Id() string {
	return fmt.Sprintf("%s%d", d.Kind, d.Index)
}

func (d *Device) AddChannel(channel Channel) {
	d.Channels[channel.Name] = channel
}

func (d *Device) GetChannel(name string) (Channel, bool) {
	channel, ok := d.Channels[name]
	return channel, ok
}

// ChannelNames returns the names of all channels in a stable order
func (d *Device) ChannelNames() []string {
	names := make([]string, 0, len(d.Channels))
	for name := range d.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TempSource references a temperature sensor of a device.
type TempSource struct {
	DeviceId   string `json:"deviceId"`
	SensorName string `json:"sensorName"`
	// Volatile sources are smoothed before use
	Volatile bool `json:"volatile"`
	// CriticalTemp is the temperature at which bound channels must run at their max duty
	CriticalTemp int `json:"criticalTemp"`
}

func NewTempSource(device *Device, sensorName string) TempSource {
	return TempSource{
		DeviceId:     device.Id(),
		SensorName:   sensorName,
		Volatile:     device.Kind.Volatile(),
		CriticalTemp: device.TempMax,
	}
}

func (s TempSource) String() string {
	return s.DeviceId + "/" + s.SensorName
}

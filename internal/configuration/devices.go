package configuration

type DeviceConfig struct {
	Kind  string `json:"kind"`
	Index int    `json:"index"`
	Name  string `json:"name"`

	// optional, defaults apply when zero
	TempMin          int `json:"tempMin,omitempty"`
	TempMax          int `json:"tempMax,omitempty"`
	ProfileMinLength int `json:"profileMinLength,omitempty"`
	ProfileMaxLength int `json:"profileMaxLength,omitempty"`

	Channels []ChannelConfig `json:"channels,omitempty"`

	HwMon     *HwMonDeviceConfig     `json:"hwMon,omitempty"`
	Cpu       *CpuDeviceConfig       `json:"cpu,omitempty"`
	Cmd       *CmdDeviceConfig       `json:"cmd,omitempty"`
	Composite *CompositeDeviceConfig `json:"composite,omitempty"`
}

type ChannelConfig struct {
	Name    string `json:"name"`
	MinDuty int    `json:"minDuty"`
	// MaxDuty defaults to 100 when zero
	MaxDuty int `json:"maxDuty"`

	Fixed DefaultTrueBool `json:"fixed"`
	Curve DefaultTrueBool `json:"curve"`
}

type HwMonDeviceConfig struct {
	// Platform is the identifier of the chip as printed by the detect command
	Platform string `json:"platform"`
}

type CpuDeviceConfig struct {
	// SensorPrefixes select the temperature sensors of the cpu, defaults to the common cpu drivers
	SensorPrefixes []string `json:"sensorPrefixes,omitempty"`
}

type CmdDeviceConfig struct {
	Poll    *PollCmdConfig    `json:"poll,omitempty"`
	SetDuty *SetDutyCmdConfig `json:"setDuty,omitempty"`
}

// PollCmdConfig runs an executable that prints a single temperature (°C)
type PollCmdConfig struct {
	Exec   string   `json:"exec"`
	Args   []string `json:"args"`
	Sensor string   `json:"sensor"`
}

// SetDutyCmdConfig runs an executable for every duty write, "%s" in the arguments
// is replaced by the channel name and "%d" by the duty
type SetDutyCmdConfig struct {
	Exec string   `json:"exec"`
	Args []string `json:"args"`
}

const (
	CompositeFunctionMinimum = "min"
	CompositeFunctionMaximum = "max"
	CompositeFunctionAverage = "avg"
)

type CompositeDeviceConfig struct {
	Function string `json:"function"`
	// Sensor is the name of the aggregated temperature, defaults to the function name
	Sensor string `json:"sensor,omitempty"`
	// Sources reference temperatures of other devices as "deviceId/sensor"
	Sources []string `json:"sources"`
}

package sensors

import (
	"context"
	"fmt"
	"time"

	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/hardware"
	"github.com/markusressel/cool2go/internal/util"
)

// HwmonPoller reads the sysfs attributes of a hwmon device
type HwmonPoller struct {
	// TempInputs maps sensor names to temp*_input paths (millidegrees)
	TempInputs map[string]string
	// FanInputs maps channel names to fan*_input paths (rpm)
	FanInputs map[string]string
	// PwmOutputs maps channel names to pwm* paths (0-255)
	PwmOutputs map[string]string

	now func() time.Time
}

func NewHwmonPoller(tempInputs, fanInputs, pwmOutputs map[string]string) *HwmonPoller {
	return &HwmonPoller{
		TempInputs: tempInputs,
		FanInputs:  fanInputs,
		PwmOutputs: pwmOutputs,
		now:        time.Now,
	}
}

func (p *HwmonPoller) Poll(ctx context.Context, deviceId string) (devices.StatusSnapshot, error) {
	snapshot := devices.StatusSnapshot{Timestamp: p.now()}

	for _, name := range util.SortedKeys(p.TempInputs) {
		value, err := util.ReadIntFromFile(p.TempInputs[name])
		if err != nil {
			return devices.StatusSnapshot{}, fmt.Errorf("device %s: unable to read sensor %s: %w", deviceId, name, err)
		}
		snapshot.Temps = append(snapshot.Temps, devices.TempStatus{Name: name, Temp: float64(value) / 1000})
	}

	for _, name := range channelNames(p.FanInputs, p.PwmOutputs) {
		status := devices.ChannelStatus{Name: name}
		if input, ok := p.FanInputs[name]; ok {
			if rpm, err := util.ReadIntFromFile(input); err == nil {
				status.Rpm = &rpm
			}
		}
		if output, ok := p.PwmOutputs[name]; ok {
			if pwm, err := util.ReadIntFromFile(output); err == nil {
				duty := float64(pwm) * 100 / hardware.MaxPwmValue
				status.Duty = &duty
			}
		}
		snapshot.Channels = append(snapshot.Channels, status)
	}

	return snapshot, nil
}

func channelNames(maps ...map[string]string) []string {
	merged := map[string]string{}
	for _, m := range maps {
		for key, value := range m {
			merged[key] = value
		}
	}
	return util.SortedKeys(merged)
}

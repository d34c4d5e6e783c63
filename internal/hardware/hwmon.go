package hardware

import (
	"context"
	"fmt"
	"math"

	"github.com/markusressel/cool2go/internal/ui"
	"github.com/markusressel/cool2go/internal/util"
)

const (
	MinPwmValue = 0
	MaxPwmValue = 255

	// PwmEnableManual is the pwmX_enable value for manual pwm control
	// 0 - no control (results in max speed)
	// 1 - manual pwm control
	// 2+ - automatic (driver or motherboard) control
	PwmEnableManual = 1
)

// HwmonChannel writes duties to the sysfs pwm outputs of a hwmon device.
type HwmonChannel struct {
	// PwmOutputs maps channel names to pwm output paths, e.g. "fan1" -> /sys/class/hwmon/hwmon2/pwm1
	PwmOutputs map[string]string
}

func NewHwmonChannel(pwmOutputs map[string]string) *HwmonChannel {
	return &HwmonChannel{PwmOutputs: pwmOutputs}
}

// DutyToPwm maps a duty in percent to the 0-255 pwm range
func DutyToPwm(percent int) int {
	percent = util.Clamp(percent, 0, 100)
	return int(math.Round(float64(percent) * MaxPwmValue / 100))
}

func (h *HwmonChannel) SetDuty(ctx context.Context, deviceId string, channel string, percent int) error {
	output, ok := h.PwmOutputs[channel]
	if !ok {
		return &Error{DeviceId: deviceId, Channel: channel, Err: ErrUnknownChannel}
	}
	if err := ctx.Err(); err != nil {
		return &Error{DeviceId: deviceId, Channel: channel, Err: err}
	}

	if err := h.ensureManualControl(output); err != nil {
		return &Error{DeviceId: deviceId, Channel: channel, Err: err}
	}

	pwm := DutyToPwm(percent)
	ui.Debug("Setting %s/%s (%s) to %d%% (pwm %d)", deviceId, channel, output, percent, pwm)
	if err := util.WriteIntToFile(pwm, output); err != nil {
		return &Error{DeviceId: deviceId, Channel: channel, Err: err}
	}
	return nil
}

// ensureManualControl writes pwmX_enable = 1, unless it is already set
func (h *HwmonChannel) ensureManualControl(output string) error {
	enablePath := output + "_enable"
	current, err := util.ReadIntFromFile(enablePath)
	if err == nil && current == PwmEnableManual {
		return nil
	}

	if err := util.WriteIntToFile(PwmEnableManual, enablePath); err != nil {
		return err
	}
	current, err = util.ReadIntFromFile(enablePath)
	if err != nil || current != PwmEnableManual {
		return fmt.Errorf("pwm mode of %s stuck at %d", output, current)
	}
	return nil
}

package configuration

import (
	"fmt"
	"strings"

	"github.com/looplab/tarjan"
	"github.com/markusressel/cool2go/internal/controller"
	"github.com/markusressel/cool2go/internal/curves"
	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/ui"
	"github.com/markusressel/cool2go/internal/util"
	"golang.org/x/exp/slices"
)

func Validate(configPath string) error {
	return validateConfig(&CurrentConfig, configPath)
}

func validateConfig(config *Configuration, path string) error {
	err := validateDevices(config)
	if err != nil {
		return err
	}
	err = validateComposites(config)
	if err != nil {
		return err
	}
	err = validateBindings(config)
	if err != nil {
		return err
	}

	if containsCmdDevices(config) {
		if _, err := util.CheckFilePermissionsForExecution(path); err != nil {
			return fmt.Errorf("config file '%s' has invalid permissions: %s", path, err)
		}
	}

	return nil
}

func containsCmdDevices(config *Configuration) bool {
	for _, deviceConfig := range config.Devices {
		if deviceConfig.Cmd != nil {
			return true
		}
	}
	return false
}

// DeviceId returns the id the configured device is registered under
func (c DeviceConfig) DeviceId() string {
	return fmt.Sprintf("%s%d", strings.ToLower(c.Kind), c.Index)
}

func validateDevices(config *Configuration) error {
	var ids []string
	for _, deviceConfig := range config.Devices {
		kind, ok := devices.ParseKind(deviceConfig.Kind)
		if !ok {
			supported := make([]string, 0, len(devices.Kinds))
			for _, k := range devices.Kinds {
				supported = append(supported, string(k))
			}
			return fmt.Errorf("device %s: unsupported kind '%s', use one of: %s", deviceConfig.Name, deviceConfig.Kind, strings.Join(supported, " | "))
		}
		if deviceConfig.Index <= 0 {
			return fmt.Errorf("device %s: invalid index, must be >= 1", deviceConfig.DeviceId())
		}

		deviceId := deviceConfig.DeviceId()
		if slices.Contains(ids, deviceId) {
			return fmt.Errorf("duplicate device id detected: %s", deviceId)
		}
		ids = append(ids, deviceId)

		subConfigs := 0
		if deviceConfig.HwMon != nil {
			subConfigs++
		}
		if deviceConfig.Cpu != nil {
			subConfigs++
		}
		if deviceConfig.Cmd != nil {
			subConfigs++
		}
		if deviceConfig.Composite != nil {
			subConfigs++
		}
		if subConfigs > 1 {
			return fmt.Errorf("device %s: only one device type can be used per device definition block", deviceId)
		}

		switch kind {
		case devices.KindHardwareMonitor:
			if deviceConfig.HwMon == nil || len(deviceConfig.HwMon.Platform) <= 0 {
				return fmt.Errorf("device %s: missing hwmon platform", deviceId)
			}
		case devices.KindCPU:
			// the cpu sub-configuration is optional, defaults apply
			if deviceConfig.HwMon != nil || deviceConfig.Cmd != nil || deviceConfig.Composite != nil {
				return fmt.Errorf("device %s: a cpu device only supports the cpu sub-configuration", deviceId)
			}
		case devices.KindGPU, devices.KindVendorController:
			if deviceConfig.Cmd == nil {
				return fmt.Errorf("device %s: sub-configuration for device is missing, use: cmd", deviceId)
			}
			if err := validateCmd(deviceId, deviceConfig.Cmd); err != nil {
				return err
			}
		case devices.KindComposite:
			if deviceConfig.Composite == nil {
				return fmt.Errorf("device %s: sub-configuration for device is missing, use: composite", deviceId)
			}
			if len(deviceConfig.Channels) > 0 {
				return fmt.Errorf("device %s: a composite device has no channels", deviceId)
			}
		}

		if deviceConfig.TempMin != 0 || deviceConfig.TempMax != 0 {
			if deviceConfig.TempMax <= deviceConfig.TempMin {
				return fmt.Errorf("device %s: tempMax must be greater than tempMin", deviceId)
			}
		}
		if deviceConfig.ProfileMinLength != 0 && deviceConfig.ProfileMinLength < curves.MinPointCount {
			return fmt.Errorf("device %s: profileMinLength must be >= %d", deviceId, curves.MinPointCount)
		}
		if deviceConfig.ProfileMaxLength != 0 && deviceConfig.ProfileMaxLength < max(deviceConfig.ProfileMinLength, curves.MinPointCount) {
			return fmt.Errorf("device %s: profileMaxLength must be >= profileMinLength", deviceId)
		}

		if err := validateChannels(deviceId, deviceConfig.Channels); err != nil {
			return err
		}
	}

	return nil
}

func validateCmd(deviceId string, cmdConfig *CmdDeviceConfig) error {
	if cmdConfig.Poll == nil && cmdConfig.SetDuty == nil {
		return fmt.Errorf("device %s: cmd needs at least one of: poll | setDuty", deviceId)
	}
	if cmdConfig.Poll != nil {
		if len(cmdConfig.Poll.Exec) <= 0 {
			return fmt.Errorf("device %s: poll executable is missing", deviceId)
		}
		if len(cmdConfig.Poll.Sensor) <= 0 {
			return fmt.Errorf("device %s: poll sensor name is missing", deviceId)
		}
	}
	if cmdConfig.SetDuty != nil && len(cmdConfig.SetDuty.Exec) <= 0 {
		return fmt.Errorf("device %s: setDuty executable is missing", deviceId)
	}
	return nil
}

func validateChannels(deviceId string, channels []ChannelConfig) error {
	var names []string
	for _, channelConfig := range channels {
		if len(channelConfig.Name) <= 0 {
			return fmt.Errorf("device %s: channel name is missing", deviceId)
		}
		if slices.Contains(names, channelConfig.Name) {
			return fmt.Errorf("device %s: duplicate channel name detected: %s", deviceId, channelConfig.Name)
		}
		names = append(names, channelConfig.Name)

		channel := channelConfig.ToChannel()
		if channel.MinDuty < devices.MinDutyValue || channel.MaxDuty > devices.MaxDutyValue || channel.MinDuty > channel.MaxDuty {
			return fmt.Errorf("device %s: channel %s: duty range %d..%d is invalid, must be within %d..%d",
				deviceId, channel.Name, channel.MinDuty, channel.MaxDuty, devices.MinDutyValue, devices.MaxDutyValue)
		}
	}
	return nil
}

// ToChannel converts the configuration into a channel of the data model
func (c ChannelConfig) ToChannel() devices.Channel {
	maxDuty := c.MaxDuty
	if maxDuty == 0 {
		maxDuty = devices.MaxDutyValue
	}
	return devices.Channel{
		Name:         c.Name,
		MinDuty:      c.MinDuty,
		MaxDuty:      maxDuty,
		FixedEnabled: c.Fixed.Get(),
		CurveEnabled: c.Curve.Get(),
	}
}

func findDeviceConfig(deviceId string, config *Configuration) (DeviceConfig, bool) {
	for _, deviceConfig := range config.Devices {
		if deviceConfig.DeviceId() == deviceId {
			return deviceConfig, true
		}
	}
	return DeviceConfig{}, false
}

func validateComposites(config *Configuration) error {
	graph := make(map[interface{}][]interface{})

	for _, deviceConfig := range config.Devices {
		if deviceConfig.Composite == nil {
			continue
		}
		deviceId := deviceConfig.DeviceId()
		composite := deviceConfig.Composite

		supportedFunctions := []string{CompositeFunctionMinimum, CompositeFunctionMaximum, CompositeFunctionAverage}
		if !slices.Contains(supportedFunctions, composite.Function) {
			return fmt.Errorf("device %s: unsupported function '%s', use one of: %s", deviceId, composite.Function, strings.Join(supportedFunctions, " | "))
		}
		if len(composite.Sources) <= 0 {
			return fmt.Errorf("device %s: composite needs at least one source", deviceId)
		}

		var connections []interface{}
		for _, ref := range composite.Sources {
			sourceDeviceId, _, ok := ParseSourceRef(ref)
			if !ok {
				return fmt.Errorf("device %s: invalid source '%s', must have the format deviceId/sensor", deviceId, ref)
			}
			if sourceDeviceId == deviceId {
				return fmt.Errorf("device %s: a composite cannot reference itself", deviceId)
			}
			if _, ok := findDeviceConfig(sourceDeviceId, config); !ok {
				return fmt.Errorf("device %s: no device definition with id '%s' found", deviceId, sourceDeviceId)
			}
			connections = append(connections, sourceDeviceId)
		}
		graph[deviceId] = connections

		if !isDeviceInUse(deviceId, config) {
			ui.Warning("Unused composite device configuration: %s", deviceId)
		}
	}

	return validateNoLoops(graph)
}

func validateNoLoops(graph map[interface{}][]interface{}) error {
	output := tarjan.Connections(graph)
	for _, items := range output {
		if len(items) > 1 {
			return fmt.Errorf("you have created a composite dependency cycle: %v", items)
		}
	}
	return nil
}

func isDeviceInUse(deviceId string, config *Configuration) bool {
	for _, bindingConfig := range config.Bindings {
		sourceDeviceId, _, _ := ParseSourceRef(bindingConfig.Source)
		if sourceDeviceId == deviceId {
			return true
		}
	}
	for _, deviceConfig := range config.Devices {
		if deviceConfig.Composite == nil {
			continue
		}
		for _, ref := range deviceConfig.Composite.Sources {
			sourceDeviceId, _, _ := ParseSourceRef(ref)
			if sourceDeviceId == deviceId {
				return true
			}
		}
	}
	return false
}

func validateBindings(config *Configuration) error {
	var keys []string
	for _, bindingConfig := range config.Bindings {
		key := controller.BindingKey(bindingConfig.Device, bindingConfig.Channel)
		if slices.Contains(keys, key) {
			return fmt.Errorf("duplicate binding detected: %s", key)
		}
		keys = append(keys, key)

		deviceConfig, ok := findDeviceConfig(bindingConfig.Device, config)
		if !ok {
			return fmt.Errorf("binding %s: no device definition with id '%s' found", key, bindingConfig.Device)
		}

		mode, ok := controller.ParseMode(bindingConfig.Mode)
		if !ok {
			return fmt.Errorf("binding %s: unsupported mode '%s', use one of: none | default | fixed | curve", key, bindingConfig.Mode)
		}

		channelConfig, ok := findChannel(deviceConfig, bindingConfig.Channel)
		channel := channelConfig.ToChannel()
		if !ok {
			if deviceConfig.HwMon == nil {
				return fmt.Errorf("binding %s: device %s has no channel '%s'", key, bindingConfig.Device, bindingConfig.Channel)
			}
			// channels of hwmon devices are discovered at runtime
			ui.Warning("Binding %s: channel is not configured, assuming a discovered hwmon channel", key)
			channel = ChannelConfig{Name: bindingConfig.Channel}.ToChannel()
		}

		switch mode {
		case controller.ModeFixed:
			if !channel.FixedEnabled {
				return fmt.Errorf("binding %s: channel does not support fixed duties", key)
			}
			if bindingConfig.Duty < channel.MinDuty || bindingConfig.Duty > channel.MaxDuty {
				return fmt.Errorf("binding %s: duty %d is out of range %d..%d", key, bindingConfig.Duty, channel.MinDuty, channel.MaxDuty)
			}
		case controller.ModeCurve:
			if !channel.CurveEnabled {
				return fmt.Errorf("binding %s: channel does not support curves", key)
			}
			sourceDeviceId, _, ok := ParseSourceRef(bindingConfig.Source)
			if !ok {
				return fmt.Errorf("binding %s: invalid source '%s', must have the format deviceId/sensor", key, bindingConfig.Source)
			}
			if _, ok := findDeviceConfig(sourceDeviceId, config); !ok {
				return fmt.Errorf("binding %s: no device definition with id '%s' found", key, sourceDeviceId)
			}
			curve := curves.NewProfileCurve(bindingConfig.Points...)
			if err := curve.ValidateFor(channel); err != nil {
				return fmt.Errorf("binding %s: %w", key, err)
			}
		}
	}
	return nil
}

func findChannel(deviceConfig DeviceConfig, name string) (ChannelConfig, bool) {
	for _, channelConfig := range deviceConfig.Channels {
		if channelConfig.Name == name {
			return channelConfig, true
		}
	}
	return ChannelConfig{}, false
}

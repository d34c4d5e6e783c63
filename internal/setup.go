package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/markusressel/cool2go/internal/configuration"
	"github.com/markusressel/cool2go/internal/controller"
	"github.com/markusressel/cool2go/internal/curves"
	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/hardware"
	"github.com/markusressel/cool2go/internal/history"
	"github.com/markusressel/cool2go/internal/hwmon"
	"github.com/markusressel/cool2go/internal/persistence"
	"github.com/markusressel/cool2go/internal/sensors"
	"github.com/markusressel/cool2go/internal/ui"
	"github.com/markusressel/cool2go/internal/util"
	"golang.org/x/exp/slices"
)

// Objects are the runtime instances created from the configuration
type Objects struct {
	Devices *devices.Registry
	Pollers *sensors.Registry
	Router  *hardware.Router
	History *history.Store
}

// InitializeObjects creates all configured devices together with their pollers and
// hardware channels. Hwmon devices are matched against the given chips.
func InitializeObjects(config configuration.Configuration, chips []*hwmon.Chip) (*Objects, error) {
	objects := &Objects{
		Devices: devices.NewRegistry(),
		Pollers: sensors.NewRegistry(),
		Router:  hardware.NewRouter(),
	}
	objects.History = history.NewStore(history.Options{
		MaxLength:    config.History.MaxLength,
		GapTolerance: config.History.GapTolerance,
	}, objects.Pollers)

	var composites []configuration.DeviceConfig
	for _, deviceConfig := range config.Devices {
		kind, ok := devices.ParseKind(deviceConfig.Kind)
		if !ok {
			return nil, fmt.Errorf("device %s: unsupported kind '%s'", deviceConfig.DeviceId(), deviceConfig.Kind)
		}

		var device *devices.Device
		switch kind {
		case devices.KindHardwareMonitor:
			if deviceConfig.HwMon == nil {
				return nil, fmt.Errorf("device %s: missing hwmon platform", deviceConfig.DeviceId())
			}
			chip, ok := hwmon.FindChip(chips, deviceConfig.HwMon.Platform)
			if !ok {
				return nil, fmt.Errorf("couldn't find hwmon device with platform '%s' for device %s, run 'cool2go detect' and correct any mistake", deviceConfig.HwMon.Platform, deviceConfig.DeviceId())
			}
			device = chip.Device(deviceConfig.Index)
			objects.Pollers.Register(device.Id(), chip.Poller())
			objects.Router.Register(device.Id(), chip.Channel())
		case devices.KindCPU:
			device = devices.NewDevice(kind, deviceConfig.Index, "CPU")
			var prefixes []string
			if deviceConfig.Cpu != nil {
				prefixes = deviceConfig.Cpu.SensorPrefixes
			}
			objects.Pollers.Register(device.Id(), sensors.NewCpuPoller(prefixes))
		case devices.KindGPU, devices.KindVendorController:
			device = devices.NewDevice(kind, deviceConfig.Index, string(kind))
			if deviceConfig.Cmd != nil {
				if poll := deviceConfig.Cmd.Poll; poll != nil {
					objects.Pollers.Register(device.Id(), sensors.NewCmdPoller(poll.Exec, poll.Args, poll.Sensor))
				}
				if setDuty := deviceConfig.Cmd.SetDuty; setDuty != nil {
					objects.Router.Register(device.Id(), hardware.NewCmdChannel(setDuty.Exec, setDuty.Args))
				}
			}
		case devices.KindComposite:
			device = devices.NewDevice(kind, deviceConfig.Index, "Composite")
			composites = append(composites, deviceConfig)
		}

		if err := applyDeviceConfig(device, deviceConfig); err != nil {
			return nil, err
		}
		if _, exists := objects.Devices.Get(device.Id()); exists {
			return nil, fmt.Errorf("duplicate device id detected: %s", device.Id())
		}
		objects.Devices.Register(device)
	}

	// composites reference other devices, including other composites
	for _, deviceConfig := range composites {
		poller, err := newCompositePoller(objects, deviceConfig)
		if err != nil {
			return nil, err
		}
		objects.Pollers.Register(deviceConfig.DeviceId(), poller)
	}

	return objects, nil
}

func applyDeviceConfig(device *devices.Device, deviceConfig configuration.DeviceConfig) error {
	if len(deviceConfig.Name) > 0 {
		device.Name = deviceConfig.Name
	}
	if deviceConfig.TempMin != 0 || deviceConfig.TempMax != 0 {
		device.TempMin = deviceConfig.TempMin
		device.TempMax = deviceConfig.TempMax
	}
	if deviceConfig.ProfileMinLength > 0 {
		device.ProfileMinLength = deviceConfig.ProfileMinLength
	}
	if deviceConfig.ProfileMaxLength > 0 {
		device.ProfileMaxLength = deviceConfig.ProfileMaxLength
	}

	for _, channelConfig := range deviceConfig.Channels {
		if device.Kind == devices.KindHardwareMonitor {
			// hwmon channels must exist on the chip, the configuration only restricts them
			if _, ok := device.GetChannel(channelConfig.Name); !ok {
				return fmt.Errorf("device %s: channel %s has no pwm output, available: %s",
					device.Id(), channelConfig.Name, strings.Join(device.ChannelNames(), ", "))
			}
		}
		device.AddChannel(channelConfig.ToChannel())
	}
	return nil
}

func newCompositePoller(objects *Objects, deviceConfig configuration.DeviceConfig) (*sensors.CompositePoller, error) {
	composite := deviceConfig.Composite
	if composite == nil {
		return nil, fmt.Errorf("device %s: sub-configuration for device is missing, use: composite", deviceConfig.DeviceId())
	}

	function := sensors.AggregateFunction(composite.Function)
	if !slices.Contains(sensors.AggregateFunctions, function) {
		return nil, fmt.Errorf("device %s: unsupported function '%s'", deviceConfig.DeviceId(), composite.Function)
	}

	var sources []devices.TempSource
	for _, ref := range composite.Sources {
		source, err := resolveSource(objects.Devices, ref)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", deviceConfig.DeviceId(), err)
		}
		sources = append(sources, source)
	}

	sensorName := composite.Sensor
	if len(sensorName) <= 0 {
		sensorName = composite.Function
	}
	return sensors.NewCompositePoller(objects.History, sources, function, sensorName), nil
}

func resolveSource(registry *devices.Registry, ref string) (devices.TempSource, error) {
	deviceId, sensorName, ok := configuration.ParseSourceRef(ref)
	if !ok {
		return devices.TempSource{}, fmt.Errorf("invalid source '%s', must have the format deviceId/sensor", ref)
	}
	device, ok := registry.Get(deviceId)
	if !ok {
		return devices.TempSource{}, fmt.Errorf("no device with id '%s' found", deviceId)
	}
	return devices.NewTempSource(device, sensorName), nil
}

// Monitors creates a status monitor for every device that can be polled
func (o *Objects) Monitors(pollingRate time.Duration) []*sensors.Monitor {
	var monitors []*sensors.Monitor
	for _, deviceId := range o.Devices.Ids() {
		poller, ok := o.Pollers.Get(deviceId)
		if !ok {
			continue
		}
		monitors = append(monitors, sensors.NewMonitor(deviceId, poller, o.History, pollingRate))
	}
	return monitors
}

// SettingFromConfig converts a configured binding into its persisted representation
func SettingFromConfig(bindingConfig configuration.BindingConfig) persistence.BindingSetting {
	setting := persistence.BindingSetting{
		Mode:      strings.ToLower(bindingConfig.Mode),
		FixedDuty: bindingConfig.Duty,
		Points:    bindingConfig.Points,
	}
	if deviceId, sensorName, ok := configuration.ParseSourceRef(bindingConfig.Source); ok {
		setting.Source = &persistence.SourceSetting{DeviceId: deviceId, SensorName: sensorName}
	}
	return setting
}

// MergeBindingSettings combines configured and persisted bindings, keyed by channel.
// Persisted settings replace the configured setting of the same channel.
func MergeBindingSettings(configured []configuration.BindingConfig, persisted map[string]persistence.BindingSetting) map[string]persistence.BindingSetting {
	result := map[string]persistence.BindingSetting{}
	for _, bindingConfig := range configured {
		key := persistence.BindingKey(bindingConfig.Device, bindingConfig.Channel)
		result[key] = SettingFromConfig(bindingConfig)
	}
	for key, setting := range persisted {
		if _, exists := result[key]; exists {
			ui.Info("Using persisted setting for %s", key)
		}
		result[key] = setting
	}
	return result
}

// BindingFromSetting creates the scheduler binding for a channel
func BindingFromSetting(registry *devices.Registry, deviceId string, channel string, setting persistence.BindingSetting) (controller.Binding, error) {
	mode, ok := controller.ParseMode(setting.Mode)
	if !ok {
		return controller.Binding{}, fmt.Errorf("binding %s: unsupported mode '%s'", persistence.BindingKey(deviceId, channel), setting.Mode)
	}

	binding := controller.Binding{
		DeviceId:  deviceId,
		Channel:   channel,
		Mode:      mode,
		FixedDuty: setting.FixedDuty,
	}
	if mode == controller.ModeCurve {
		binding.Curve = curves.NewProfileCurve(setting.Points...)
		if setting.Source != nil {
			sourceDevice, ok := registry.Get(setting.Source.DeviceId)
			if !ok {
				return controller.Binding{}, fmt.Errorf("binding %s: %w: %s", binding.Key(), controller.ErrUnknownDevice, setting.Source.DeviceId)
			}
			source := devices.NewTempSource(sourceDevice, setting.Source.SensorName)
			binding.Source = &source
		}
	}
	return binding, nil
}

// ApplyBindings sets all given bindings on the scheduler. Invalid bindings are
// reported and skipped so that the remaining channels stay under control.
func ApplyBindings(scheduler *controller.Scheduler, registry *devices.Registry, settings map[string]persistence.BindingSetting) int {
	applied := 0
	for _, key := range util.SortedKeys(settings) {
		deviceId, channel, ok := persistence.SplitBindingKey(key)
		if !ok {
			ui.Warning("Ignoring binding with invalid key: %s", key)
			continue
		}
		binding, err := BindingFromSetting(registry, deviceId, channel, settings[key])
		if err == nil {
			err = scheduler.SetBinding(binding)
		}
		if err != nil {
			ui.Error("Unable to set binding %s: %v", key, err)
			continue
		}
		applied++
	}
	return applied
}

// SchedulerConfig extracts the scheduler settings from the configuration
func SchedulerConfig(config configuration.Configuration) controller.Config {
	schedulerConfig := controller.DefaultConfig()
	schedulerConfig.Interval = config.TickInterval
	schedulerConfig.Threshold = config.Hysteresis.Threshold
	schedulerConfig.ForceApplyTicks = config.Hysteresis.ForceApplyTicks
	schedulerConfig.SmoothingWindow = config.Smoothing.Window
	schedulerConfig.ExponentialSmoothing = config.Smoothing.Exponential
	schedulerConfig.WriteTimeout = config.WriteTimeout
	schedulerConfig.QueueSize = config.WriteQueueSize
	schedulerConfig.ResumeDelay = config.ResumeDelay
	schedulerConfig.NotifyAfterFailures = config.NotifyAfterFailures
	return schedulerConfig
}

package curve

import (
	"fmt"

	"github.com/markusressel/cool2go/internal"
	"github.com/markusressel/cool2go/internal/configuration"
	"github.com/markusressel/cool2go/internal/controller"
	"github.com/markusressel/cool2go/internal/curves"
	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/hwmon"
	"github.com/markusressel/cool2go/internal/persistence"
	"github.com/markusressel/cool2go/internal/ui"
	"github.com/spf13/cobra"
)

var (
	bindingKey string
	sourceRef  string
)

var Command = &cobra.Command{
	Use:              "curve",
	Short:            "Curve related commands",
	Long:             `Inspect and edit the temperature profiles of device channels. Edits are persisted and used on the next start of the daemon.`,
	TraverseChildren: true,
}

func init() {
	Command.PersistentFlags().StringVarP(
		&bindingKey,
		"binding", "b",
		"",
		"Channel as deviceId/channel, e.g. hwmon1/fan2",
	)
	Command.PersistentFlags().StringVarP(
		&sourceRef,
		"source", "s",
		"",
		"Temperature source as deviceId/sensor, overrides the source of the current binding",
	)
}

// session holds everything loaded from the configuration and the database
type session struct {
	objects     *internal.Objects
	persistence persistence.Persistence
	settings    map[string]persistence.BindingSetting
}

func openSession() (*session, error) {
	configuration.ReadConfigFile()
	config := configuration.CurrentConfig

	objects, err := internal.InitializeObjects(config, hwmon.GetChips())
	if err != nil {
		return nil, err
	}

	p := persistence.NewPersistence(config.DbPath)
	if err := p.Init(); err != nil {
		return nil, err
	}
	persisted, err := p.LoadBindings()
	if err != nil {
		return nil, err
	}

	return &session{
		objects:     objects,
		persistence: p,
		settings:    internal.MergeBindingSettings(config.Bindings, persisted),
	}, nil
}

// target is the curve of a single channel, together with the editor enforcing its limits
type target struct {
	deviceId string
	channel  devices.Channel
	setting  persistence.BindingSetting
	editor   *curves.Editor
}

func (s *session) target(key string, sourceOverride string) (*target, error) {
	deviceId, channelName, ok := persistence.SplitBindingKey(key)
	if !ok {
		return nil, fmt.Errorf("invalid binding '%s', must have the format deviceId/channel", key)
	}

	device, ok := s.objects.Devices.Get(deviceId)
	if !ok {
		return nil, fmt.Errorf("no device with id found: %s, options: %s", deviceId, s.objects.Devices.Ids())
	}
	channel, ok := device.GetChannel(channelName)
	if !ok {
		return nil, fmt.Errorf("device %s has no channel %s, options: %s", deviceId, channelName, device.ChannelNames())
	}
	if !channel.CurveEnabled {
		return nil, fmt.Errorf("channel %s of device %s does not support curves", channelName, deviceId)
	}

	setting := s.settings[key]
	previous := setting.Source
	if len(sourceOverride) > 0 {
		sourceDeviceId, sensorName, ok := configuration.ParseSourceRef(sourceOverride)
		if !ok {
			return nil, fmt.Errorf("invalid source '%s', must have the format deviceId/sensor", sourceOverride)
		}
		setting.Source = &persistence.SourceSetting{DeviceId: sourceDeviceId, SensorName: sensorName}
	}
	if setting.Source == nil {
		return nil, fmt.Errorf("binding %s has no temperature source, use --source to set one", key)
	}

	sourceDevice, ok := s.objects.Devices.Get(setting.Source.DeviceId)
	if !ok {
		return nil, fmt.Errorf("no source device with id found: %s, options: %s", setting.Source.DeviceId, s.objects.Devices.Ids())
	}
	if previous != nil && previous.DeviceId != setting.Source.DeviceId {
		setting.Points = rescale(setting.Points, sourceDevice.TempMax)
	}

	return &target{
		deviceId: deviceId,
		channel:  channel,
		setting:  setting,
		editor:   curves.NewEditor(curves.LimitsFor(sourceDevice, channel)),
	}, nil
}

func (t *target) key() string {
	return persistence.BindingKey(t.deviceId, t.channel.Name)
}

// curve returns the current curve of the target with its first point on the source minimum
func (t *target) curve() (curves.ProfileCurve, error) {
	curve := curves.NewProfileCurve(t.setting.Points...)
	anchored, err := t.editor.Anchor(curve)
	if err != nil {
		return curve, fmt.Errorf("curve of %s cannot be edited, use 'reset' to start over: %w", t.key(), err)
	}
	return anchored, nil
}

// save persists the curve, switching the channel to curve mode
func (s *session) save(t *target, curve curves.ProfileCurve) error {
	if err := curve.ValidateFor(t.channel); err != nil {
		return err
	}
	setting := t.setting
	setting.Mode = controller.ModeCurve.String()
	setting.Points = curve.Points
	if err := s.persistence.SaveBinding(t.deviceId, t.channel.Name, setting); err != nil {
		return fmt.Errorf("unable to save curve of %s: %w", t.key(), err)
	}
	t.setting = setting
	s.settings[t.key()] = setting
	return nil
}

// rescale adapts the points of a curve authored against another temperature source
// to the temperature range of the new one
func rescale(points []curves.Point, tempMax int) []curves.Point {
	curve := curves.NewProfileCurve(points...)
	if curve.Len() <= 0 {
		return points
	}
	normalized, err := curve.Normalize(tempMax, curve.Last().Duty)
	if err != nil {
		ui.Warning("Unable to rescale curve to the new source: %v", err)
		return points
	}
	return normalized.Points
}

func requireBinding() error {
	if len(bindingKey) <= 0 {
		return fmt.Errorf("no binding given, use --binding deviceId/channel")
	}
	return nil
}

package controller

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/markusressel/cool2go/internal/curves"
	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/history"
	"github.com/markusressel/cool2go/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedWrite struct {
	DeviceId string
	Channel  string
	Percent  int
}

type mockChannel struct {
	mu      sync.Mutex
	writes  []recordedWrite
	err     error
	block   chan struct{}
	started chan struct{}
}

func (m *mockChannel) SetDuty(ctx context.Context, deviceId string, channel string, percent int) error {
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.writes = append(m.writes, recordedWrite{deviceId, channel, percent})
	return nil
}

func (m *mockChannel) setError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockChannel) Writes() []recordedWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]recordedWrite, len(m.writes))
	copy(result, m.writes)
	return result
}

func (m *mockChannel) Duties() []int {
	var result []int
	for _, write := range m.Writes() {
		result = append(result, write.Percent)
	}
	return result
}

type statusRecorder struct {
	store *history.Store
	ticks int
}

func (r *statusRecorder) record(t *testing.T, deviceId string, sensorName string, temp float64) {
	r.ticks++
	require.NoError(t, r.store.Append(deviceId, devices.StatusSnapshot{
		Timestamp: time.Date(2024, 3, 1, 12, 0, r.ticks, 0, time.UTC),
		Temps:     []devices.TempStatus{{Name: sensorName, Temp: temp}},
	}))
}

type fixture struct {
	registry  *devices.Registry
	recorder  *statusRecorder
	channel   *mockChannel
	scheduler *Scheduler
	liquid    devices.TempSource
	cpu       devices.TempSource
}

func createFixture(t *testing.T, config Config) *fixture {
	registry := devices.NewRegistry()

	vendor := devices.NewDevice(devices.KindVendorController, 1, "Kraken X63")
	vendor.AddChannel(devices.Channel{Name: "pump", MinDuty: 20, MaxDuty: 100, FixedEnabled: true, CurveEnabled: true})
	vendor.AddChannel(devices.Channel{Name: "fan", MinDuty: 0, MaxDuty: 100, FixedEnabled: true, CurveEnabled: true})
	vendor.AddChannel(devices.Channel{Name: "led", MinDuty: 0, MaxDuty: 100})
	registry.Register(vendor)

	cpu := devices.NewDevice(devices.KindCPU, 1, "AMD Ryzen 9")
	cpu.TempMax = 90
	registry.Register(cpu)

	hwmon := devices.NewDevice(devices.KindHardwareMonitor, 2, "nct6798")
	hwmon.AddChannel(devices.Channel{Name: "fan1", MinDuty: 0, MaxDuty: 100, FixedEnabled: true, CurveEnabled: true})
	registry.Register(hwmon)

	store := history.NewStore(history.Options{}, nil)
	channel := &mockChannel{}
	scheduler := NewScheduler(config, registry, store, channel)
	// never send desktop notifications from tests
	scheduler.notifier = &recordingNotifier{}

	return &fixture{
		registry:  registry,
		recorder:  &statusRecorder{store: store},
		channel:   channel,
		scheduler: scheduler,
		liquid:    devices.NewTempSource(vendor, "liquid"),
		cpu:       devices.NewTempSource(cpu, "Tctl"),
	}
}

func identityCurve() curves.ProfileCurve {
	return curves.NewProfileCurve(curves.Point{Temp: 0, Duty: 0}, curves.Point{Temp: 100, Duty: 100})
}

func TestScheduler_Tick_Fixed(t *testing.T) {
	// GIVEN
	f := createFixture(t, DefaultConfig())
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeFixed, FixedDuty: 60}))

	// WHEN
	f.scheduler.Tick(context.Background())
	f.scheduler.Tick(context.Background())

	// THEN
	assert.Equal(t, []recordedWrite{{"vendor1", "fan", 60}}, f.channel.Writes())
	binding, ok := f.scheduler.Binding("vendor1", "fan")
	require.True(t, ok)
	duty, ok := binding.LastAppliedDuty()
	assert.True(t, ok)
	assert.Equal(t, 60, duty)
	assert.Equal(t, 1, binding.TicksSinceApplied())
	assert.Equal(t, StateUnchanged, binding.State())
}

func TestScheduler_Tick_FixedClampedToChannel(t *testing.T) {
	// GIVEN
	f := createFixture(t, DefaultConfig())
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "pump", Mode: ModeFixed, FixedDuty: 5}))

	// WHEN
	f.scheduler.Tick(context.Background())

	// THEN
	assert.Equal(t, []int{20}, f.channel.Duties())
}

func TestScheduler_Tick_Default(t *testing.T) {
	// GIVEN
	f := createFixture(t, DefaultConfig())
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "pump", Mode: ModeDefault}))

	// WHEN
	f.scheduler.Tick(context.Background())

	// THEN
	assert.Equal(t, []int{20}, f.channel.Duties())
}

// curve [(20,20),(40,50),(60,100)] at 50° yields 75, after moving the middle
// point to (45,80) the same temperature yields 86
func TestScheduler_EndToEnd(t *testing.T) {
	// GIVEN
	f := createFixture(t, DefaultConfig())
	curve := curves.NewProfileCurve(
		curves.Point{Temp: 20, Duty: 20},
		curves.Point{Temp: 40, Duty: 50},
		curves.Point{Temp: 60, Duty: 100},
	)
	source := f.liquid
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeCurve, Curve: curve, Source: &source}))
	f.recorder.record(t, "vendor1", "liquid", 50)

	// WHEN
	f.scheduler.Tick(context.Background())

	// THEN
	assert.Equal(t, []recordedWrite{{"vendor1", "fan", 75}}, f.channel.Writes())

	// WHEN
	vendor, _ := f.registry.Get("vendor1")
	fan, _ := vendor.GetChannel("fan")
	editor := curves.NewEditor(curves.LimitsFor(vendor, fan))
	moved, err := editor.MovePoint(curve, 1, 45, 80)
	require.NoError(t, err)
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeCurve, Curve: moved, Source: &source}))
	f.scheduler.Tick(context.Background())

	// THEN
	assert.Equal(t, []int{75, 86}, f.channel.Duties())
}

func TestScheduler_Tick_HysteresisForcesAfterFourTicks(t *testing.T) {
	// GIVEN
	f := createFixture(t, DefaultConfig())
	source := f.liquid
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeCurve, Curve: identityCurve(), Source: &source}))
	f.recorder.record(t, "vendor1", "liquid", 50)
	f.scheduler.Tick(context.Background())
	require.Equal(t, []int{50}, f.channel.Duties())

	// WHEN
	f.recorder.record(t, "vendor1", "liquid", 51)
	for i := 0; i < 4; i++ {
		f.scheduler.Tick(context.Background())
	}

	// THEN
	assert.Equal(t, []int{50}, f.channel.Duties())
	binding, _ := f.scheduler.Binding("vendor1", "fan")
	assert.Equal(t, 4, binding.TicksSinceApplied())

	// WHEN
	f.scheduler.Tick(context.Background())

	// THEN
	assert.Equal(t, []int{50, 51}, f.channel.Duties())
	binding, _ = f.scheduler.Binding("vendor1", "fan")
	assert.Equal(t, 0, binding.TicksSinceApplied())
}

func TestScheduler_Tick_AboveThresholdWritesImmediately(t *testing.T) {
	// GIVEN
	f := createFixture(t, DefaultConfig())
	source := f.liquid
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeCurve, Curve: identityCurve(), Source: &source}))
	f.recorder.record(t, "vendor1", "liquid", 50)
	f.scheduler.Tick(context.Background())

	// WHEN
	f.recorder.record(t, "vendor1", "liquid", 52)
	f.scheduler.Tick(context.Background())
	f.recorder.record(t, "vendor1", "liquid", 53)
	f.scheduler.Tick(context.Background())
	f.recorder.record(t, "vendor1", "liquid", 47)
	f.scheduler.Tick(context.Background())

	// THEN
	assert.Equal(t, []int{50, 53, 47}, f.channel.Duties())
}

func TestScheduler_Tick_HysteresisProperties(t *testing.T) {
	// GIVEN
	config := DefaultConfig()
	f := createFixture(t, config)
	source := f.liquid
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeCurve, Curve: identityCurve(), Source: &source}))
	random := rand.New(rand.NewSource(7))

	temp := 50
	var last *int
	ticksWithoutWrite := 0
	for i := 0; i < 500; i++ {
		temp = util.Clamp(temp+random.Intn(7)-3, 0, 100)
		f.recorder.record(t, "vendor1", "liquid", float64(temp))
		before := len(f.channel.Writes())

		// WHEN
		f.scheduler.Tick(context.Background())

		// THEN
		wrote := len(f.channel.Writes()) > before
		switch {
		case last == nil:
			assert.True(t, wrote, "first evaluation must write")
		case util.Abs(temp-*last) > config.Threshold:
			assert.True(t, wrote, "tick %d: difference %d must be written", i, temp-*last)
		case ticksWithoutWrite >= config.ForceApplyTicks && temp != *last:
			assert.True(t, wrote, "tick %d: forced apply expected", i)
		default:
			assert.False(t, wrote, "tick %d: unexpected write of %d (last %d)", i, temp, *last)
		}

		if wrote {
			applied := temp
			last = &applied
			ticksWithoutWrite = 0
		} else {
			ticksWithoutWrite++
		}
	}
}

func TestScheduler_Tick_SmoothsVolatileSources(t *testing.T) {
	// GIVEN
	config := DefaultConfig()
	config.SmoothingWindow = 3
	config.ExponentialSmoothing = false
	f := createFixture(t, config)
	source := f.cpu
	// keep the identity curve intact, a critical temp below 100° would steepen it
	source.CriticalTemp = 100
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "hwmon2", Channel: "fan1", Mode: ModeCurve, Curve: identityCurve(), Source: &source}))
	for _, temp := range []float64{10, 70, 72, 74} {
		f.recorder.record(t, "cpu1", "Tctl", temp)
	}

	// WHEN
	f.scheduler.Tick(context.Background())

	// THEN
	assert.Equal(t, []recordedWrite{{"hwmon2", "fan1", 72}}, f.channel.Writes())
}

func TestScheduler_Tick_SmoothedTempFollowsSanitizedCurve(t *testing.T) {
	// GIVEN
	config := DefaultConfig()
	config.SmoothingWindow = 3
	config.ExponentialSmoothing = false
	f := createFixture(t, config)
	source := f.cpu
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "hwmon2", Channel: "fan1", Mode: ModeCurve, Curve: identityCurve(), Source: &source}))
	for _, temp := range []float64{10, 70, 72, 74} {
		f.recorder.record(t, "cpu1", "Tctl", temp)
	}

	// WHEN
	f.scheduler.Tick(context.Background())

	// THEN
	// the cpu reaches max duty at its critical temp of 90°, so 72° maps to 80%
	assert.Equal(t, []recordedWrite{{"hwmon2", "fan1", 80}}, f.channel.Writes())
}

func TestScheduler_Tick_NoReading(t *testing.T) {
	// GIVEN
	f := createFixture(t, DefaultConfig())
	source := f.liquid
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeCurve, Curve: identityCurve(), Source: &source}))

	// WHEN
	f.scheduler.Tick(context.Background())

	// THEN
	assert.Empty(t, f.channel.Writes())
	binding, _ := f.scheduler.Binding("vendor1", "fan")
	assert.Equal(t, StateUnchanged, binding.State())
	_, applied := binding.LastAppliedDuty()
	assert.False(t, applied)
}

func TestScheduler_Tick_FailedWriteIsRetried(t *testing.T) {
	// GIVEN
	f := createFixture(t, DefaultConfig())
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeFixed, FixedDuty: 40}))
	f.channel.setError(errors.New("usb timeout"))

	// WHEN
	f.scheduler.Tick(context.Background())

	// THEN
	binding, _ := f.scheduler.Binding("vendor1", "fan")
	_, applied := binding.LastAppliedDuty()
	assert.False(t, applied)
	assert.Equal(t, StateIdle, binding.State())

	// WHEN
	f.channel.setError(nil)
	f.scheduler.Tick(context.Background())

	// THEN
	assert.Equal(t, []int{40}, f.channel.Duties())
	stats := f.scheduler.Statistics()
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].Failures)
	assert.Equal(t, 1, stats[0].Writes)
}

func TestScheduler_Tick_MultipleDevices(t *testing.T) {
	// GIVEN
	f := createFixture(t, DefaultConfig())
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "pump", Mode: ModeFixed, FixedDuty: 70}))
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeFixed, FixedDuty: 30}))
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "hwmon2", Channel: "fan1", Mode: ModeFixed, FixedDuty: 50}))

	// WHEN
	f.scheduler.Tick(context.Background())

	// THEN
	assert.ElementsMatch(t, []recordedWrite{
		{"vendor1", "pump", 70},
		{"vendor1", "fan", 30},
		{"hwmon2", "fan1", 50},
	}, f.channel.Writes())

	var vendorWrites []recordedWrite
	for _, write := range f.channel.Writes() {
		if write.DeviceId == "vendor1" {
			vendorWrites = append(vendorWrites, write)
		}
	}
	assert.Equal(t, []recordedWrite{{"vendor1", "fan", 30}, {"vendor1", "pump", 70}}, vendorWrites, "writes of a device are issued in key order")
}

func TestScheduler_ReapplyAll(t *testing.T) {
	// GIVEN
	f := createFixture(t, DefaultConfig())
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeFixed, FixedDuty: 40}))
	f.scheduler.Tick(context.Background())
	f.scheduler.Tick(context.Background())
	f.scheduler.Tick(context.Background())

	// WHEN
	f.scheduler.ReapplyAll(context.Background())

	// THEN
	assert.Equal(t, []int{40, 40}, f.channel.Duties())
	binding, _ := f.scheduler.Binding("vendor1", "fan")
	assert.Equal(t, 0, binding.TicksSinceApplied())
}

func TestScheduler_SuspendResume(t *testing.T) {
	// GIVEN
	config := DefaultConfig()
	config.ResumeDelay = 10 * time.Millisecond
	f := createFixture(t, config)
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeFixed, FixedDuty: 40}))
	f.scheduler.Tick(context.Background())

	// WHEN
	f.scheduler.Suspend()
	f.scheduler.Tick(context.Background())

	// THEN
	assert.True(t, f.scheduler.IsSuspended())
	assert.Equal(t, []int{40}, f.channel.Duties())

	// WHEN
	f.scheduler.Resume()

	// THEN
	assert.Eventually(t, func() bool {
		return len(f.channel.Writes()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.False(t, f.scheduler.IsSuspended())
	f.scheduler.Close()
}

func TestScheduler_SuspendCancelsPendingResume(t *testing.T) {
	// GIVEN
	config := DefaultConfig()
	config.ResumeDelay = 20 * time.Millisecond
	f := createFixture(t, config)
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeFixed, FixedDuty: 40}))

	// WHEN
	f.scheduler.Suspend()
	f.scheduler.Resume()
	f.scheduler.Suspend()
	time.Sleep(60 * time.Millisecond)

	// THEN
	assert.True(t, f.scheduler.IsSuspended())
	assert.Empty(t, f.channel.Writes())
}

func TestScheduler_SetBinding_Errors(t *testing.T) {
	f := createFixture(t, DefaultConfig())
	liquid := f.liquid
	unknown := devices.TempSource{DeviceId: "gpu1", SensorName: "edge"}
	invalid := curves.NewProfileCurve(curves.Point{Temp: 20, Duty: 20})
	belowMin := curves.NewProfileCurve(curves.Point{Temp: 20, Duty: 10}, curves.Point{Temp: 60, Duty: 100})

	tests := []struct {
		name     string
		binding  Binding
		expected error
	}{
		{"unknown device", Binding{DeviceId: "gpu1", Channel: "fan1", Mode: ModeFixed}, ErrUnknownDevice},
		{"unknown channel", Binding{DeviceId: "vendor1", Channel: "fan9", Mode: ModeFixed}, ErrUnknownChannel},
		{"fixed not supported", Binding{DeviceId: "vendor1", Channel: "led", Mode: ModeFixed}, ErrModeNotSupported},
		{"curve not supported", Binding{DeviceId: "vendor1", Channel: "led", Mode: ModeCurve, Curve: identityCurve(), Source: &liquid}, ErrModeNotSupported},
		{"invalid fixed duty", Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeFixed, FixedDuty: 120}, ErrInvalidDuty},
		{"missing source", Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeCurve, Curve: identityCurve()}, ErrMissingSource},
		{"unknown source", Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeCurve, Curve: identityCurve(), Source: &unknown}, ErrUnknownDevice},
		{"invalid curve", Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeCurve, Curve: invalid, Source: &liquid}, curves.ErrInvalidCurve},
		{"below channel min", Binding{DeviceId: "vendor1", Channel: "pump", Mode: ModeCurve, Curve: belowMin, Source: &liquid}, curves.ErrInvalidCurve},
		{"unknown mode", Binding{DeviceId: "vendor1", Channel: "fan", Mode: Mode(42)}, ErrModeNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.scheduler.SetBinding(tt.binding)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
	assert.Empty(t, f.scheduler.Bindings())
}

func TestScheduler_SetBinding_SanitizesCurve(t *testing.T) {
	// GIVEN
	f := createFixture(t, DefaultConfig())
	source := f.cpu
	curve := curves.NewProfileCurve(curves.Point{Temp: 30, Duty: 30}, curves.Point{Temp: 60, Duty: 60})

	// WHEN
	err := f.scheduler.SetBinding(Binding{DeviceId: "hwmon2", Channel: "fan1", Mode: ModeCurve, Curve: curve, Source: &source})

	// THEN
	require.NoError(t, err)
	binding, ok := f.scheduler.Binding("hwmon2", "fan1")
	require.True(t, ok)
	assert.Equal(t, []curves.Point{{Temp: 30, Duty: 30}, {Temp: 60, Duty: 60}, {Temp: 90, Duty: 100}}, binding.Curve.Points)
	assert.Equal(t, 90, binding.Source.CriticalTemp)
	assert.Equal(t, 2, curve.Len(), "input must not be modified")
}

func TestScheduler_SetBinding_Replaces(t *testing.T) {
	// GIVEN
	f := createFixture(t, DefaultConfig())
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeFixed, FixedDuty: 40}))
	f.scheduler.Tick(context.Background())

	// WHEN
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeFixed, FixedDuty: 41}))
	f.scheduler.Tick(context.Background())

	// THEN
	assert.Equal(t, []int{40, 41}, f.channel.Duties())
	assert.Len(t, f.scheduler.Bindings(), 1)
}

func TestScheduler_ClearBinding(t *testing.T) {
	// GIVEN
	f := createFixture(t, DefaultConfig())
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeFixed, FixedDuty: 40}))

	// WHEN
	removed := f.scheduler.ClearBinding("vendor1", "fan")
	f.scheduler.Tick(context.Background())

	// THEN
	assert.True(t, removed)
	assert.False(t, f.scheduler.ClearBinding("vendor1", "fan"))
	assert.Empty(t, f.channel.Writes())
	_, ok := f.scheduler.Binding("vendor1", "fan")
	assert.False(t, ok)
}

func TestScheduler_Statistics(t *testing.T) {
	// GIVEN
	config := DefaultConfig()
	config.StatisticsWindow = 1
	f := createFixture(t, config)
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeFixed, FixedDuty: 40}))
	f.scheduler.Tick(context.Background())
	f.scheduler.Tick(context.Background())

	// WHEN
	stats := f.scheduler.Statistics()

	// THEN
	require.Len(t, stats, 1)
	assert.Equal(t, "vendor1", stats[0].DeviceId)
	assert.Equal(t, ModeFixed, stats[0].Mode)
	require.NotNil(t, stats[0].TargetDuty)
	assert.Equal(t, 40, *stats[0].TargetDuty)
	require.NotNil(t, stats[0].AppliedDuty)
	assert.Equal(t, 40.0, stats[0].AvgAppliedDuty)
	assert.Equal(t, 1, stats[0].Writes)
	assert.Equal(t, 1, stats[0].Skipped)
}

type panickingStatus struct{}

func (panickingStatus) Latest(deviceId string) (devices.StatusSnapshot, bool) {
	panic("sensor backend gone")
}

func (panickingStatus) Temps(deviceId string, sensorName string, n int) []float64 {
	panic("sensor backend gone")
}

func TestScheduler_SafeTick_RecoversPanic(t *testing.T) {
	// GIVEN
	f := createFixture(t, DefaultConfig())
	scheduler := NewScheduler(DefaultConfig(), f.registry, panickingStatus{}, f.channel)
	source := f.liquid
	require.NoError(t, scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeCurve, Curve: identityCurve(), Source: &source}))

	// WHEN / THEN
	assert.NotPanics(t, func() {
		scheduler.safeTick(context.Background())
	})
	assert.NotPanics(t, func() {
		scheduler.safeTick(context.Background())
	}, "locks must be released after a panic")
}

func TestScheduler_Run(t *testing.T) {
	// GIVEN
	config := DefaultConfig()
	config.Interval = 5 * time.Millisecond
	f := createFixture(t, config)
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeFixed, FixedDuty: 40}))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- f.scheduler.Run(ctx)
	}()

	// WHEN
	assert.Eventually(t, func() bool {
		return len(f.channel.Writes()) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	// THEN
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	_, err := f.scheduler.queue.Submit("vendor1", "fan", 50)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestParseMode(t *testing.T) {
	mode, ok := ParseMode("Curve")
	assert.True(t, ok)
	assert.Equal(t, ModeCurve, mode)
	assert.Equal(t, "fixed", ModeFixed.String())

	_, ok = ParseMode("lighting")
	assert.False(t, ok)
}

type notification struct {
	key       string
	failures  int
	recovered bool
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []notification
}

func (n *recordingNotifier) WritesFailing(key string, failures int, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification{key: key, failures: failures})
}

func (n *recordingNotifier) WritesRecovered(key string, failures int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification{key: key, failures: failures, recovered: true})
}

func (n *recordingNotifier) Notifications() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	result := make([]notification, len(n.notifications))
	copy(result, n.notifications)
	return result
}

func TestScheduler_Tick_NotifiesRepeatedWriteFailures(t *testing.T) {
	// GIVEN
	config := DefaultConfig()
	config.NotifyAfterFailures = 3
	f := createFixture(t, config)
	notifier := &recordingNotifier{}
	f.scheduler.notifier = notifier
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeFixed, FixedDuty: 40}))
	f.channel.setError(errors.New("usb timeout"))

	// WHEN
	for i := 0; i < 2; i++ {
		f.scheduler.Tick(context.Background())
	}

	// THEN
	assert.Empty(t, notifier.Notifications())

	// WHEN
	for i := 0; i < 3; i++ {
		f.scheduler.Tick(context.Background())
	}

	// THEN
	assert.Equal(t, []notification{{key: "vendor1/fan", failures: 3}}, notifier.Notifications())

	// WHEN
	f.channel.setError(nil)
	f.scheduler.Tick(context.Background())

	// THEN
	assert.Equal(t, []int{40}, f.channel.Duties())
	assert.Equal(t, []notification{
		{key: "vendor1/fan", failures: 3},
		{key: "vendor1/fan", failures: 5, recovered: true},
	}, notifier.Notifications())
}

func TestScheduler_Tick_NoNotificationBelowLimit(t *testing.T) {
	// GIVEN
	config := DefaultConfig()
	config.NotifyAfterFailures = 3
	f := createFixture(t, config)
	notifier := &recordingNotifier{}
	f.scheduler.notifier = notifier
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeFixed, FixedDuty: 40}))
	f.channel.setError(errors.New("usb timeout"))
	f.scheduler.Tick(context.Background())
	f.scheduler.Tick(context.Background())

	// WHEN
	f.channel.setError(nil)
	f.scheduler.Tick(context.Background())

	// THEN
	assert.Equal(t, []int{40}, f.channel.Duties())
	assert.Empty(t, notifier.Notifications())
}

func TestScheduler_Tick_NotificationsDisabled(t *testing.T) {
	// GIVEN
	config := DefaultConfig()
	config.NotifyAfterFailures = 0
	f := createFixture(t, config)
	notifier := &recordingNotifier{}
	f.scheduler.notifier = notifier
	require.NoError(t, f.scheduler.SetBinding(Binding{DeviceId: "vendor1", Channel: "fan", Mode: ModeFixed, FixedDuty: 40}))
	f.channel.setError(errors.New("usb timeout"))

	// WHEN
	for i := 0; i < 10; i++ {
		f.scheduler.Tick(context.Background())
	}

	// THEN
	assert.Empty(t, notifier.Notifications())
}

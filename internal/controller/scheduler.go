package controller

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/hardware"
	"github.com/markusressel/cool2go/internal/smoothing"
	"github.com/markusressel/cool2go/internal/ui"
	"github.com/markusressel/cool2go/internal/util"
)

var (
	ErrUnknownDevice    = errors.New("unknown device")
	ErrUnknownChannel   = errors.New("unknown channel")
	ErrModeNotSupported = errors.New("mode not supported")
	ErrMissingSource    = errors.New("missing temperature source")
	ErrInvalidDuty      = errors.New("invalid duty")
)

// StatusReader provides the recorded status of devices
type StatusReader interface {
	Latest(deviceId string) (devices.StatusSnapshot, bool)
	Temps(deviceId string, sensorName string, n int) []float64
}

// Scheduler periodically evaluates all bindings and writes changed duties to the hardware
type Scheduler struct {
	config   Config
	registry *devices.Registry
	status   StatusReader
	queue    *WriteQueue
	notifier Notifier

	// serializes evaluations
	tickMu sync.Mutex

	mu               sync.Mutex
	bindings         map[string]*Binding
	suspended        bool
	resumeTimer      *time.Timer
	resumeGeneration int
	runCtx           context.Context
}

type plannedWrite struct {
	binding *Binding
	duty    int
}

func NewScheduler(config Config, registry *devices.Registry, status StatusReader, channel hardware.Channel) *Scheduler {
	config = config.normalized()
	return &Scheduler{
		config:   config,
		registry: registry,
		status:   status,
		queue:    NewWriteQueue(channel, config.QueueSize, config.WriteTimeout),
		notifier: desktopNotifier{},
		bindings: map[string]*Binding{},
	}
}

func (s *Scheduler) Config() Config {
	return s.config
}

// SetBinding validates the given binding and replaces any existing binding of the same channel.
// Curves are sanitized against the critical temperature of their source.
func (s *Scheduler) SetBinding(binding Binding) error {
	device, ok := s.registry.Get(binding.DeviceId)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, binding.DeviceId)
	}
	channel, ok := device.GetChannel(binding.Channel)
	if !ok {
		return fmt.Errorf("%w: %s of device %s", ErrUnknownChannel, binding.Channel, binding.DeviceId)
	}

	b := &Binding{
		DeviceId:      binding.DeviceId,
		Channel:       binding.Channel,
		Mode:          binding.Mode,
		appliedDuties: util.CreateRollingWindow(s.config.StatisticsWindow),
	}

	switch binding.Mode {
	case ModeFixed:
		if !channel.FixedEnabled {
			return fmt.Errorf("%w: %s does not support fixed duties", ErrModeNotSupported, b.Key())
		}
		if binding.FixedDuty < devices.MinDutyValue || binding.FixedDuty > devices.MaxDutyValue {
			return fmt.Errorf("%w: %d%% for %s", ErrInvalidDuty, binding.FixedDuty, b.Key())
		}
		b.FixedDuty = util.Clamp(binding.FixedDuty, channel.MinDuty, channel.MaxDuty)
	case ModeCurve:
		if !channel.CurveEnabled {
			return fmt.Errorf("%w: %s does not support curves", ErrModeNotSupported, b.Key())
		}
		if binding.Source == nil {
			return fmt.Errorf("%w: curve of %s", ErrMissingSource, b.Key())
		}
		sourceDevice, ok := s.registry.Get(binding.Source.DeviceId)
		if !ok {
			return fmt.Errorf("%w: temperature source %s of %s", ErrUnknownDevice, binding.Source, b.Key())
		}
		if err := binding.Curve.Validate(); err != nil {
			return fmt.Errorf("curve of %s: %w", b.Key(), err)
		}

		source := *binding.Source
		if source.CriticalTemp <= 0 {
			source.CriticalTemp = sourceDevice.TempMax
		}
		sanitized := binding.Curve.Sanitize(source.CriticalTemp, channel.MaxDuty)
		if err := sanitized.ValidateFor(channel); err != nil {
			return fmt.Errorf("curve of %s: %w", b.Key(), err)
		}
		b.Curve = sanitized
		b.Source = &source
	case ModeDefault, ModeNone:
	default:
		return fmt.Errorf("%w: %v", ErrModeNotSupported, binding.Mode)
	}

	s.mu.Lock()
	s.bindings[b.Key()] = b
	s.mu.Unlock()

	ui.Debug("Binding %s set to %s", b.Key(), b.Mode)
	return nil
}

// ClearBinding removes the binding of the given channel
func (s *Scheduler) ClearBinding(deviceId string, channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := BindingKey(deviceId, channel)
	if _, ok := s.bindings[key]; !ok {
		return false
	}
	delete(s.bindings, key)
	return true
}

// Binding returns a copy of the binding of the given channel
func (s *Scheduler) Binding(deviceId string, channel string) (Binding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bindings[BindingKey(deviceId, channel)]
	if !ok {
		return Binding{}, false
	}
	return b.public(), true
}

// Bindings returns copies of all bindings, sorted by key
func (s *Scheduler) Bindings() []Binding {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Binding, 0, len(s.bindings))
	for _, key := range util.SortedKeys(s.bindings) {
		result = append(result, s.bindings[key].public())
	}
	return result
}

// Tick evaluates every binding once and waits for all resulting writes
func (s *Scheduler) Tick(ctx context.Context) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if s.IsSuspended() {
		return
	}
	s.apply(ctx, s.plan(false))
}

// ReapplyAll writes the current target of every binding, ignoring hysteresis,
// and resets all hysteresis counters afterwards.
func (s *Scheduler) ReapplyAll(ctx context.Context) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.apply(ctx, s.plan(true))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bindings {
		b.ticksSinceApplied = 0
	}
}

// plan computes the target of every binding and returns the required writes per device
func (s *Scheduler) plan(force bool) map[string][]plannedWrite {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := map[string][]plannedWrite{}
	for _, key := range util.SortedKeys(s.bindings) {
		b := s.bindings[key]
		b.state = StateEvaluating

		target, ok := s.target(b)
		if !ok {
			b.state = StateUnchanged
			b.skipped++
			continue
		}
		b.lastTargetDuty = &target

		if !force && !b.needsWrite(target, s.config.Threshold, s.config.ForceApplyTicks) {
			b.state = StateUnchanged
			b.ticksSinceApplied++
			b.skipped++
			continue
		}

		b.state = StateApplying
		result[b.DeviceId] = append(result[b.DeviceId], plannedWrite{binding: b, duty: target})
	}
	return result
}

// apply executes the planned writes, sequentially per device and in parallel across devices
func (s *Scheduler) apply(ctx context.Context, planned map[string][]plannedWrite) {
	var wg sync.WaitGroup
	for deviceId, writes := range planned {
		wg.Add(1)
		go func(deviceId string, writes []plannedWrite) {
			defer wg.Done()
			for _, write := range writes {
				err := s.queue.Write(ctx, deviceId, write.binding.Channel, write.duty)
				s.completed(write, err)
			}
		}(deviceId, writes)
	}
	wg.Wait()
}

func (s *Scheduler) completed(write plannedWrite, err error) {
	s.mu.Lock()
	b := write.binding
	key := b.Key()
	b.state = StateIdle
	failures := b.consecutiveFailures
	if err != nil {
		b.failures++
		b.consecutiveFailures++
		failures = b.consecutiveFailures
	} else {
		b.applied(write.duty)
		b.consecutiveFailures = 0
	}
	s.mu.Unlock()

	// notifications may block on external commands, so they are sent without holding the lock
	limit := s.config.NotifyAfterFailures
	if err != nil {
		ui.Warning("Error applying %d%% to %s: %v", write.duty, key, err)
		if limit > 0 && failures == limit {
			s.notifier.WritesFailing(key, failures, err)
		}
		return
	}
	ui.Debug("Applied %d%% to %s", write.duty, key)
	if limit > 0 && failures >= limit {
		s.notifier.WritesRecovered(key, failures)
	}
}

// target returns the duty a binding should be set to, false if it cannot be determined right now.
// Must be called with s.mu held.
func (s *Scheduler) target(b *Binding) (int, bool) {
	switch b.Mode {
	case ModeFixed:
		return b.FixedDuty, true
	case ModeCurve:
		temp, ok := s.temperature(*b.Source)
		if !ok {
			ui.Debug("No temperature of %s available for %s", b.Source, b.Key())
			return 0, false
		}
		duty, err := b.Curve.Interpolate(temp)
		if err != nil {
			ui.Warning("Unable to evaluate curve of %s: %v", b.Key(), err)
			return 0, false
		}
		return duty, true
	default:
		device, ok := s.registry.Get(b.DeviceId)
		if !ok {
			return devices.MinDutyValue, true
		}
		channel, _ := device.GetChannel(b.Channel)
		return channel.MinDuty, true
	}
}

// temperature resolves the current temperature of a source, smoothing volatile sources
func (s *Scheduler) temperature(source devices.TempSource) (float64, bool) {
	snapshot, ok := s.status.Latest(source.DeviceId)
	if !ok {
		return 0, false
	}
	raw, ok := snapshot.Temp(source.SensorName)
	if !ok {
		return 0, false
	}
	if !source.Volatile {
		return raw, true
	}

	samples := s.status.Temps(source.DeviceId, source.SensorName, s.config.SmoothingWindow)
	smoothed, err := smoothing.MovingAverage(samples, s.config.SmoothingWindow, s.config.ExponentialSmoothing)
	if err != nil {
		return raw, true
	}
	return smoothed, true
}

func (s *Scheduler) IsSuspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}

// Suspend stops the evaluation of bindings until Resume is called
func (s *Scheduler) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.suspended = true
	s.resumeGeneration++
	if s.resumeTimer != nil {
		s.resumeTimer.Stop()
		s.resumeTimer = nil
	}
	ui.Info("Duty scheduler suspended")
}

// Resume continues the evaluation after ResumeDelay, starting with a ReapplyAll
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resumeTimer != nil {
		s.resumeTimer.Stop()
	}
	s.resumeGeneration++
	generation := s.resumeGeneration
	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	ui.Info("Resuming duty scheduler in %s", s.config.ResumeDelay)
	s.resumeTimer = time.AfterFunc(s.config.ResumeDelay, func() {
		s.mu.Lock()
		if generation != s.resumeGeneration {
			s.mu.Unlock()
			return
		}
		s.suspended = false
		s.resumeTimer = nil
		s.mu.Unlock()

		s.ReapplyAll(ctx)
	})
}

// Run evaluates all bindings every Interval until the context is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	count := len(s.bindings)
	s.mu.Unlock()

	ui.Info("Starting duty scheduler with %d bindings", count)
	defer s.Close()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ui.Info("Stopping duty scheduler")
			return nil
		case <-ticker.C:
			s.safeTick(ctx)
		}
	}
}

func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			ui.Error("Recovered from panic in duty scheduler: %v\n%s", r, debug.Stack())
		}
	}()
	s.Tick(ctx)
}

// Close cancels all pending writes. In-flight writes complete.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.resumeGeneration++
	if s.resumeTimer != nil {
		s.resumeTimer.Stop()
		s.resumeTimer = nil
	}
	s.mu.Unlock()

	s.queue.Close()
}

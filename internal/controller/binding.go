package controller

import (
	"fmt"
	"strings"

	"github.com/asecurityteam/rolling"
	"github.com/markusressel/cool2go/internal/curves"
	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/util"
)

type Mode int

const (
	ModeNone Mode = iota
	ModeDefault
	ModeFixed
	ModeCurve
)

var modeNames = map[Mode]string{
	ModeNone:    "none",
	ModeDefault: "default",
	ModeFixed:   "fixed",
	ModeCurve:   "curve",
}

func (m Mode) String() string {
	name, ok := modeNames[m]
	if !ok {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return name
}

func ParseMode(value string) (Mode, bool) {
	for mode, name := range modeNames {
		if strings.EqualFold(name, value) {
			return mode, true
		}
	}
	return ModeNone, false
}

type State int

const (
	StateIdle State = iota
	StateEvaluating
	StateUnchanged
	StateApplying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEvaluating:
		return "evaluating"
	case StateUnchanged:
		return "unchanged"
	case StateApplying:
		return "applying"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Binding assigns a duty source to a single channel of a device
type Binding struct {
	DeviceId  string
	Channel   string
	Mode      Mode
	FixedDuty int
	Curve     curves.ProfileCurve
	// Source is the temperature source of a curve binding
	Source *devices.TempSource

	lastAppliedDuty   *int
	lastTargetDuty    *int
	ticksSinceApplied int
	state             State

	writes   int
	failures int
	skipped  int
	// consecutiveFailures is reset by every successful write
	consecutiveFailures int

	appliedDuties *rolling.PointPolicy
}

func BindingKey(deviceId string, channel string) string {
	return deviceId + "/" + channel
}

func (b *Binding) Key() string {
	return BindingKey(b.DeviceId, b.Channel)
}

func (b *Binding) LastAppliedDuty() (int, bool) {
	if b.lastAppliedDuty == nil {
		return 0, false
	}
	return *b.lastAppliedDuty, true
}

func (b *Binding) TicksSinceApplied() int {
	return b.ticksSinceApplied
}

func (b *Binding) State() State {
	return b.state
}

// needsWrite applies the hysteresis rules to the given target duty
func (b *Binding) needsWrite(target int, threshold int, forceApplyTicks int) bool {
	if b.lastAppliedDuty == nil {
		return true
	}
	if b.ticksSinceApplied >= forceApplyTicks {
		threshold = 0
	}
	return util.Abs(target-*b.lastAppliedDuty) > threshold
}

func (b *Binding) applied(duty int) {
	b.lastAppliedDuty = &duty
	b.ticksSinceApplied = 0
	b.writes++
	if b.appliedDuties != nil {
		b.appliedDuties.Append(float64(duty))
	}
}

// public returns a copy without the internal runtime state
func (b *Binding) public() Binding {
	result := Binding{
		DeviceId:  b.DeviceId,
		Channel:   b.Channel,
		Mode:      b.Mode,
		FixedDuty: b.FixedDuty,
		Curve:     b.Curve.Clone(),
		state:     b.state,

		ticksSinceApplied: b.ticksSinceApplied,
	}
	if b.Source != nil {
		source := *b.Source
		result.Source = &source
	}
	if b.lastAppliedDuty != nil {
		duty := *b.lastAppliedDuty
		result.lastAppliedDuty = &duty
	}
	return result
}

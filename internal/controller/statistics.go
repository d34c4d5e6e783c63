package controller

import "github.com/markusressel/cool2go/internal/util"

// BindingStatistics is a point-in-time view of the runtime state of a binding
type BindingStatistics struct {
	DeviceId string
	Channel  string
	Mode     Mode
	State    State

	// TargetDuty is nil until a target could be computed
	TargetDuty *int
	// AppliedDuty is nil until the first successful write
	AppliedDuty *int
	// AvgAppliedDuty is the average of the most recent applied duties
	AvgAppliedDuty float64

	TicksSinceApplied int
	Writes            int
	Failures          int
	Skipped           int
}

func (s *Scheduler) Statistics() []BindingStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]BindingStatistics, 0, len(s.bindings))
	for _, key := range util.SortedKeys(s.bindings) {
		b := s.bindings[key]
		stats := BindingStatistics{
			DeviceId:          b.DeviceId,
			Channel:           b.Channel,
			Mode:              b.Mode,
			State:             b.state,
			TicksSinceApplied: b.ticksSinceApplied,
			Writes:            b.writes,
			Failures:          b.failures,
			Skipped:           b.skipped,
		}
		if b.lastTargetDuty != nil {
			target := *b.lastTargetDuty
			stats.TargetDuty = &target
		}
		if b.lastAppliedDuty != nil {
			applied := *b.lastAppliedDuty
			stats.AppliedDuty = &applied
			stats.AvgAppliedDuty = util.GetWindowAvg(b.appliedDuties)
		}
		result = append(result, stats)
	}
	return result
}

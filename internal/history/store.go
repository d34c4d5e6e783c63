package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/ui"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/qdm12/reprint"
)

const (
	// DefaultMaxLength keeps about 31 minutes of history at a 1s polling rate
	DefaultMaxLength    = 1860
	DefaultGapTolerance = 2 * time.Second
)

type Options struct {
	MaxLength    int
	GapTolerance time.Duration
}

// Gap is a time range without any readings that could not be backfilled.
type Gap struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Backfiller fetches the readings of a device recorded after the given point in time.
type Backfiller interface {
	Backfill(ctx context.Context, deviceId string, since time.Time) ([]devices.StatusSnapshot, error)
}

type ReconcilePolicy int

const (
	// ReconcileTrim drops the oldest entries of longer series
	ReconcileTrim ReconcilePolicy = iota
	// ReconcilePad carries the last entry of shorter series forward before trimming
	ReconcilePad
)

// series is never modified after it has been stored, writers replace it as a whole
type series struct {
	snapshots []devices.StatusSnapshot
	gaps      []Gap
}

func (s *series) last() (devices.StatusSnapshot, bool) {
	if s == nil || len(s.snapshots) == 0 {
		return devices.StatusSnapshot{}, false
	}
	return s.snapshots[len(s.snapshots)-1], true
}

// Store keeps a bounded, strictly ordered status history per device.
type Store struct {
	options    Options
	backfiller Backfiller

	series cmap.ConcurrentMap[string, *series]
	locks  cmap.ConcurrentMap[string, *sync.Mutex]
}

// NewStore creates a new history store. backfiller may be nil.
func NewStore(options Options, backfiller Backfiller) *Store {
	if options.MaxLength <= 0 {
		options.MaxLength = DefaultMaxLength
	}
	if options.GapTolerance <= 0 {
		options.GapTolerance = DefaultGapTolerance
	}
	return &Store{
		options:    options,
		backfiller: backfiller,
		series:     cmap.New[*series](),
		locks:      cmap.New[*sync.Mutex](),
	}
}

func (s *Store) Options() Options {
	return s.options
}

func (s *Store) lock(deviceId string) func() {
	s.locks.SetIfAbsent(deviceId, &sync.Mutex{})
	mutex, _ := s.locks.Get(deviceId)
	mutex.Lock()
	return mutex.Unlock
}

func (s *Store) get(deviceId string) *series {
	current, ok := s.series.Get(deviceId)
	if !ok {
		return &series{}
	}
	return current
}

// Append adds a single snapshot to the history of the given device.
// The timestamp must be strictly after the last stored one.
func (s *Store) Append(deviceId string, snapshot devices.StatusSnapshot) error {
	unlock := s.lock(deviceId)
	defer unlock()

	current := s.get(deviceId)
	if last, ok := current.last(); ok && !snapshot.Timestamp.After(last.Timestamp) {
		ui.Warning("Dropping out-of-order status of %s: %s is not after %s", deviceId, snapshot.Timestamp.Format(time.RFC3339Nano), last.Timestamp.Format(time.RFC3339Nano))
		return fmt.Errorf("%w: device %s at %s", ErrOutOfOrder, deviceId, snapshot.Timestamp.Format(time.RFC3339Nano))
	}

	s.store(deviceId, current, []devices.StatusSnapshot{snapshot}, current.gaps)
	return nil
}

// IngestBatch merges a batch of snapshots into the history of the given device.
// Entries at or before the last stored timestamp are dropped. If the batch starts
// more than GapTolerance after the stored history, missing entries are requested from
// the Backfiller, and a Gap is recorded for every hole that could not be recovered.
func (s *Store) IngestBatch(ctx context.Context, deviceId string, snapshots []devices.StatusSnapshot) error {
	unlock := s.lock(deviceId)
	defer unlock()

	current := s.get(deviceId)
	last, hasLast := current.last()

	batch := sortedAfter(snapshots, last.Timestamp, hasLast)
	if len(batch) == 0 {
		return nil
	}

	if hasLast && s.backfiller != nil && batch[0].Timestamp.Sub(last.Timestamp) > s.options.GapTolerance {
		backfilled, err := s.backfiller.Backfill(ctx, deviceId, last.Timestamp)
		if err != nil {
			ui.Warning("Unable to backfill status history of %s since %s: %v", deviceId, last.Timestamp.Format(time.RFC3339), err)
		} else {
			merged := make([]devices.StatusSnapshot, 0, len(backfilled)+len(batch))
			merged = append(merged, backfilled...)
			merged = append(merged, batch...)
			batch = sortedAfter(merged, last.Timestamp, true)
		}
	}

	gaps := current.gaps
	if found := s.findGaps(last, hasLast, batch); len(found) > 0 {
		for _, gap := range found {
			ui.Debug("Recording history gap of %s for %s", gap.To.Sub(gap.From), deviceId)
		}
		gaps = append(append([]Gap{}, gaps...), found...)
	}

	s.store(deviceId, current, batch, gaps)
	return nil
}

// findGaps returns every step between consecutive entries that exceeds GapTolerance,
// starting at the last stored entry (if any)
func (s *Store) findGaps(last devices.StatusSnapshot, hasLast bool, batch []devices.StatusSnapshot) []Gap {
	var result []Gap
	previous := last.Timestamp
	hasPrevious := hasLast
	for _, snapshot := range batch {
		if hasPrevious && snapshot.Timestamp.Sub(previous) > s.options.GapTolerance {
			result = append(result, Gap{From: previous, To: snapshot.Timestamp})
		}
		previous = snapshot.Timestamp
		hasPrevious = true
	}
	return result
}

// sortedAfter returns a sorted copy of snapshots, without duplicate timestamps
// and without entries at or before after (if hasAfter is set)
func sortedAfter(snapshots []devices.StatusSnapshot, after time.Time, hasAfter bool) []devices.StatusSnapshot {
	sorted := make([]devices.StatusSnapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	result := make([]devices.StatusSnapshot, 0, len(sorted))
	for _, snapshot := range sorted {
		if hasAfter && !snapshot.Timestamp.After(after) {
			continue
		}
		if len(result) > 0 && snapshot.Timestamp.Equal(result[len(result)-1].Timestamp) {
			continue
		}
		result = append(result, snapshot)
	}
	return result
}

// store replaces the series of the device with current + added, trimmed to MaxLength.
// Must be called with the device lock held.
func (s *Store) store(deviceId string, current *series, added []devices.StatusSnapshot, gaps []Gap) {
	combined := make([]devices.StatusSnapshot, 0, len(current.snapshots)+len(added))
	combined = append(combined, current.snapshots...)
	combined = append(combined, added...)
	if overflow := len(combined) - s.options.MaxLength; overflow > 0 {
		combined = combined[overflow:]
	}

	s.series.Set(deviceId, &series{
		snapshots: combined,
		gaps:      retainedGaps(gaps, combined),
	})
}

// retainedGaps drops gaps that ended before the oldest retained snapshot
func retainedGaps(gaps []Gap, snapshots []devices.StatusSnapshot) []Gap {
	if len(gaps) == 0 || len(snapshots) == 0 {
		return gaps
	}
	oldest := snapshots[0].Timestamp
	var result []Gap
	for _, gap := range gaps {
		if gap.To.Before(oldest) {
			continue
		}
		result = append(result, gap)
	}
	return result
}

// ReconcileLengths brings the series of the given devices to a common length and
// returns it. Devices without any history are ignored.
func (s *Store) ReconcileLengths(deviceIds []string, policy ReconcilePolicy) int {
	ids := make([]string, len(deviceIds))
	copy(ids, deviceIds)
	sort.Strings(ids)

	var locked []string
	for _, id := range ids {
		if len(locked) > 0 && locked[len(locked)-1] == id {
			continue
		}
		unlock := s.lock(id)
		defer unlock()
		locked = append(locked, id)
	}

	all := map[string][]devices.StatusSnapshot{}
	var longest []devices.StatusSnapshot
	for _, id := range locked {
		current := s.get(id)
		if len(current.snapshots) == 0 {
			continue
		}
		all[id] = current.snapshots
		if len(current.snapshots) > len(longest) {
			longest = current.snapshots
		}
	}
	if len(all) == 0 {
		return 0
	}

	if policy == ReconcilePad {
		for id, snapshots := range all {
			all[id] = padded(snapshots, longest)
		}
	}

	common := -1
	for _, snapshots := range all {
		if common < 0 || len(snapshots) < common {
			common = len(snapshots)
		}
	}
	common = min(common, s.options.MaxLength)

	for id, snapshots := range all {
		current := s.get(id)
		trimmed := snapshots[len(snapshots)-common:]
		s.series.Set(id, &series{
			snapshots: trimmed,
			gaps:      retainedGaps(current.gaps, trimmed),
		})
	}
	return common
}

// padded carries the last snapshot forward to every later timestamp of reference
func padded(snapshots []devices.StatusSnapshot, reference []devices.StatusSnapshot) []devices.StatusSnapshot {
	if len(snapshots) >= len(reference) {
		return snapshots
	}
	last := snapshots[len(snapshots)-1]
	result := make([]devices.StatusSnapshot, len(snapshots), len(reference))
	copy(result, snapshots)
	for _, snapshot := range reference {
		if len(result) >= len(reference) {
			break
		}
		if snapshot.Timestamp.After(last.Timestamp) {
			result = append(result, last.CarriedForward(snapshot.Timestamp))
		}
	}
	return result
}

// Window returns a deep copy of all entries recorded at or after since
func (s *Store) Window(deviceId string, since time.Time) []devices.StatusSnapshot {
	current := s.get(deviceId)
	index := sort.Search(len(current.snapshots), func(i int) bool {
		return !current.snapshots[i].Timestamp.Before(since)
	})
	window := current.snapshots[index:]
	if len(window) == 0 {
		return []devices.StatusSnapshot{}
	}
	return reprint.This(window).([]devices.StatusSnapshot)
}

func (s *Store) Latest(deviceId string) (devices.StatusSnapshot, bool) {
	return s.get(deviceId).last()
}

func (s *Store) Len(deviceId string) int {
	return len(s.get(deviceId).snapshots)
}

// Temps returns up to n of the most recent values of the given sensor, oldest first.
// n < 1 returns all available values.
func (s *Store) Temps(deviceId string, sensorName string, n int) []float64 {
	snapshots := s.get(deviceId).snapshots
	if n > 0 && n < len(snapshots) {
		snapshots = snapshots[len(snapshots)-n:]
	}
	result := make([]float64, 0, len(snapshots))
	for _, snapshot := range snapshots {
		if temp, ok := snapshot.Temp(sensorName); ok {
			result = append(result, temp)
		}
	}
	return result
}

func (s *Store) Gaps(deviceId string) []Gap {
	gaps := s.get(deviceId).gaps
	result := make([]Gap, len(gaps))
	copy(result, gaps)
	return result
}

// DeviceIds returns the ids of all devices with history, sorted
func (s *Store) DeviceIds() []string {
	ids := s.series.Keys()
	sort.Strings(ids)
	return ids
}

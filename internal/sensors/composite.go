package sensors

import (
	"context"
	"fmt"
	"time"

	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/util"
)

type AggregateFunction string

const (
	AggregateMinimum AggregateFunction = "min"
	AggregateMaximum AggregateFunction = "max"
	AggregateAverage AggregateFunction = "avg"
)

var AggregateFunctions = []AggregateFunction{AggregateMinimum, AggregateMaximum, AggregateAverage}

func (f AggregateFunction) Apply(values []float64) float64 {
	switch f {
	case AggregateMinimum:
		return util.Min(values)
	case AggregateMaximum:
		return util.Max(values)
	default:
		return util.Avg(values)
	}
}

// CompositePoller aggregates the latest readings of other temperature sources
// into a single temperature.
type CompositePoller struct {
	Sources    []devices.TempSource
	Function   AggregateFunction
	SensorName string

	reader SnapshotReader
	now    func() time.Time
}

func NewCompositePoller(reader SnapshotReader, sources []devices.TempSource, function AggregateFunction, sensorName string) *CompositePoller {
	return &CompositePoller{
		Sources:    sources,
		Function:   function,
		SensorName: sensorName,
		reader:     reader,
		now:        time.Now,
	}
}

func (p *CompositePoller) Poll(ctx context.Context, deviceId string) (devices.StatusSnapshot, error) {
	var values []float64
	for _, source := range p.Sources {
		snapshot, ok := p.reader.Latest(source.DeviceId)
		if !ok {
			continue
		}
		if temp, ok := snapshot.Temp(source.SensorName); ok {
			values = append(values, temp)
		}
	}
	if len(values) <= 0 {
		return devices.StatusSnapshot{}, fmt.Errorf("device %s: %w from any of %d sources", deviceId, ErrNoReading, len(p.Sources))
	}

	return p.snapshot(p.now(), values), nil
}

// Backfill recomputes the composite readings from the recorded history of its sources.
// The timestamps of the first source with history since the given time are used.
func (p *CompositePoller) Backfill(ctx context.Context, deviceId string, since time.Time) ([]devices.StatusSnapshot, error) {
	windows := make([][]devices.StatusSnapshot, len(p.Sources))
	reference := -1
	for i, source := range p.Sources {
		windows[i] = p.reader.Window(source.DeviceId, since)
		if reference < 0 && len(windows[i]) > 0 {
			reference = i
		}
	}
	if reference < 0 {
		return nil, fmt.Errorf("device %s: %w since %s", deviceId, ErrNoReading, since.Format(time.RFC3339))
	}

	var result []devices.StatusSnapshot
	for _, entry := range windows[reference] {
		if !entry.Timestamp.After(since) {
			continue
		}
		var values []float64
		for i, source := range p.Sources {
			if temp, ok := valueAt(windows[i], source.SensorName, entry.Timestamp); ok {
				values = append(values, temp)
			}
		}
		if len(values) > 0 {
			result = append(result, p.snapshot(entry.Timestamp, values))
		}
	}
	return result, nil
}

func (p *CompositePoller) snapshot(timestamp time.Time, values []float64) devices.StatusSnapshot {
	return devices.StatusSnapshot{
		Timestamp: timestamp,
		Temps:     []devices.TempStatus{{Name: p.SensorName, Temp: p.Function.Apply(values)}},
	}
}

// valueAt returns the latest reading of the sensor at or before the given time
func valueAt(window []devices.StatusSnapshot, sensorName string, timestamp time.Time) (float64, bool) {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i].Timestamp.After(timestamp) {
			continue
		}
		return window[i].Temp(sensorName)
	}
	return 0, false
}

package curves

import (
	"fmt"
	"sort"

	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/util"
	"golang.org/x/exp/slices"
)

// DefaultPointCount is the number of points of a freshly reset curve
const DefaultPointCount = 5

// Limits constrain the edits of a curve bound to a specific channel and temperature source.
type Limits struct {
	MinDuty   int
	MaxDuty   int
	TempMin   int
	TempMax   int
	MinPoints int
	MaxPoints int
}

// LimitsFor derives the edit limits for a channel of a device whose temperature range
// is given by the source device.
func LimitsFor(source *devices.Device, channel devices.Channel) Limits {
	return Limits{
		MinDuty:   channel.MinDuty,
		MaxDuty:   channel.MaxDuty,
		TempMin:   source.TempMin,
		TempMax:   source.TempMax,
		MinPoints: source.ProfileMinLength,
		MaxPoints: source.ProfileMaxLength,
	}
}

func (l Limits) normalized() Limits {
	l.MinPoints = max(l.MinPoints, MinPointCount)
	if l.MaxPoints <= 0 {
		l.MaxPoints = devices.DefaultProfileMaxLength
	}
	l.MaxPoints = max(l.MaxPoints, l.MinPoints)
	return l
}

// Editor keeps a ProfileCurve valid while its points are added, moved or removed.
// Every operation either returns a valid, modified copy or leaves the input untouched.
type Editor struct {
	limits Limits
}

func NewEditor(limits Limits) *Editor {
	return &Editor{limits: limits.normalized()}
}

func (e *Editor) Limits() Limits {
	return e.limits
}

// validate checks the input of an edit. The first point of a curve sits at the source minimum.
func (e *Editor) validate(curve ProfileCurve) error {
	if err := curve.Validate(); err != nil {
		return err
	}
	if curve.First().Temp != e.limits.TempMin {
		return fmt.Errorf("%w: first point must be at the source minimum of %d°, got %d°", ErrInvalidCurve, e.limits.TempMin, curve.First().Temp)
	}
	return nil
}

// Anchor moves the first point of a curve onto the source minimum, e.g. for curves
// loaded from the configuration or rescaled to another source.
func (e *Editor) Anchor(curve ProfileCurve) (ProfileCurve, error) {
	if err := curve.Validate(); err != nil {
		return curve, err
	}
	if curve.First().Temp == e.limits.TempMin {
		return curve, nil
	}
	result := curve.Clone()
	result.Points[0].Temp = e.limits.TempMin
	if err := result.Validate(); err != nil {
		return curve, fmt.Errorf("cannot move the first point to %d°: %w", e.limits.TempMin, err)
	}
	return result, nil
}

// AddPoint inserts a new point, clamping its duty between its neighbours
func (e *Editor) AddPoint(curve ProfileCurve, temp int, duty int) (ProfileCurve, error) {
	if err := e.validate(curve); err != nil {
		return curve, err
	}
	if curve.Len() >= e.limits.MaxPoints {
		return curve, fmt.Errorf("%w: curve already has the maximum of %d points", ErrPointLimitExceeded, e.limits.MaxPoints)
	}

	points := curve.Points
	index := sort.Search(len(points), func(i int) bool {
		return points[i].Temp > temp
	})
	if index == 0 || index == len(points) {
		return curve, fmt.Errorf("%w: temperature %d is outside of [%d..%d]", ErrInvalidCurve, temp, curve.First().Temp, curve.Last().Temp)
	}
	predecessor := points[index-1]
	successor := points[index]
	if predecessor.Temp == temp {
		return curve, fmt.Errorf("%w: a point at %d° already exists", ErrInvalidCurve, temp)
	}

	duty = util.Clamp(duty, predecessor.Duty, successor.Duty)
	result := ProfileCurve{Points: slices.Insert(slices.Clone(points), index, Point{Temp: temp, Duty: duty})}
	return result, nil
}

// MovePoint moves the point at index, pushing neighbours along so that temperatures
// stay strictly increasing and duties stay non-decreasing.
// The temperature of the first point never changes.
func (e *Editor) MovePoint(curve ProfileCurve, index int, newTemp int, newDuty int) (ProfileCurve, error) {
	if err := e.validate(curve); err != nil {
		return curve, err
	}
	if index < 0 || index >= curve.Len() {
		return curve, fmt.Errorf("%w: point index %d out of range", ErrInvalidCurve, index)
	}

	points := slices.Clone(curve.Points)

	duty := util.Clamp(newDuty, e.limits.MinDuty, e.limits.MaxDuty)
	points[index].Duty = duty
	for i := index + 1; i < len(points); i++ {
		if points[i].Duty < duty {
			points[i].Duty = duty
		}
	}
	for i := 0; i < index; i++ {
		if points[i].Duty > duty {
			points[i].Duty = duty
		}
	}

	if index > 0 {
		moveTemp(points, index, newTemp, e.limits.TempMax)
	}

	result := ProfileCurve{Points: points}
	if err := result.Validate(); err != nil {
		return curve, err
	}
	return result, nil
}

// moveTemp keeps one degree of spacing per index offset to the neighbouring points
func moveTemp(points []Point, index int, newTemp int, tempMax int) {
	lastIndex := len(points) - 1
	upper := max(tempMax, points[lastIndex].Temp)
	minForIndex := points[0].Temp + index
	maxForIndex := upper - (lastIndex - index)

	temp := util.Clamp(newTemp, minForIndex, maxForIndex)
	points[index].Temp = temp

	for i := index + 1; i <= lastIndex; i++ {
		limit := temp + (i - index)
		if points[i].Temp <= limit {
			points[i].Temp = limit
		}
	}
	for i := index - 1; i > 0; i-- {
		limit := temp - (index - i)
		if points[i].Temp >= limit {
			points[i].Temp = limit
		}
	}
}

// RemovePoint removes an inner point of the curve
func (e *Editor) RemovePoint(curve ProfileCurve, index int) (ProfileCurve, error) {
	if err := e.validate(curve); err != nil {
		return curve, err
	}
	if index < 0 || index >= curve.Len() {
		return curve, fmt.Errorf("%w: point index %d out of range", ErrInvalidCurve, index)
	}
	if index == 0 || index == curve.Len()-1 {
		return curve, fmt.Errorf("%w: the first and last point cannot be removed", ErrBoundaryPointProtected)
	}
	if curve.Len()-1 < e.limits.MinPoints {
		return curve, fmt.Errorf("%w: curve needs at least %d points", ErrBoundaryPointProtected, e.limits.MinPoints)
	}

	result := ProfileCurve{Points: slices.Delete(slices.Clone(curve.Points), index, index+1)}
	return result, nil
}

// Reset regenerates the default curve for the editor limits
func (e *Editor) Reset() (ProfileCurve, error) {
	l := e.limits
	return Reset(l.MinPoints, l.MaxPoints, l.TempMin, l.TempMax, l.MinDuty, l.MaxDuty)
}

// Reset creates an evenly spaced default curve spanning [tempMin..tempMax] x [dutyMin..dutyMax]
func Reset(minPoints, maxPoints, tempMin, tempMax, dutyMin, dutyMax int) (ProfileCurve, error) {
	minPoints = max(minPoints, MinPointCount)
	maxPoints = max(maxPoints, minPoints)
	count := util.Clamp(DefaultPointCount, minPoints, maxPoints)

	if tempMax-tempMin < count-1 {
		return ProfileCurve{}, fmt.Errorf("%w: temperature range [%d..%d] is too narrow for %d points", ErrInvalidCurve, tempMin, tempMax, count)
	}
	if dutyMax < dutyMin {
		return ProfileCurve{}, fmt.Errorf("%w: duty range [%d..%d] is empty", ErrInvalidCurve, dutyMin, dutyMax)
	}

	temps := util.LinSpace(tempMin, tempMax, count)
	duties := util.LinSpace(dutyMin, dutyMax, count)
	points := make([]Point, count)
	for i := range points {
		points[i] = Point{Temp: temps[i], Duty: duties[i]}
	}

	result := ProfileCurve{Points: points}
	return result, result.Validate()
}

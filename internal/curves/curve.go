package curves

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/util"
	"golang.org/x/exp/slices"
)

const MinPointCount = 2

// Point maps a temperature (°C) to a duty (%)
type Point struct {
	Temp int `json:"temp" mapstructure:"temp"`
	Duty int `json:"duty" mapstructure:"duty"`
}

func (p Point) String() string {
	return fmt.Sprintf("%d:%d", p.Temp, p.Duty)
}

// ParsePoint parses the "temp:duty" notation
func ParsePoint(text string) (Point, error) {
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("%w: point '%s' must have the format temp:duty", ErrInvalidCurve, text)
	}
	temp, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Point{}, fmt.Errorf("%w: invalid temperature in point '%s'", ErrInvalidCurve, text)
	}
	duty, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Point{}, fmt.Errorf("%w: invalid duty in point '%s'", ErrInvalidCurve, text)
	}
	return Point{Temp: temp, Duty: duty}, nil
}

// ProfileCurve is a piecewise-linear temperature -> duty mapping.
// Instances are treated as values: all operations return a new curve.
type ProfileCurve struct {
	Points []Point `json:"points"`
}

func NewProfileCurve(points ...Point) ProfileCurve {
	return ProfileCurve{Points: slices.Clone(points)}
}

func (c ProfileCurve) Clone() ProfileCurve {
	return ProfileCurve{Points: slices.Clone(c.Points)}
}

func (c ProfileCurve) Len() int {
	return len(c.Points)
}

func (c ProfileCurve) First() Point {
	return c.Points[0]
}

func (c ProfileCurve) Last() Point {
	return c.Points[len(c.Points)-1]
}

func (c ProfileCurve) String() string {
	parts := make([]string, len(c.Points))
	for i, p := range c.Points {
		parts[i] = p.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Validate checks the structural invariants of the curve
func (c ProfileCurve) Validate() error {
	if len(c.Points) < MinPointCount {
		return fmt.Errorf("%w: at least %d points required, got %d", ErrInvalidCurve, MinPointCount, len(c.Points))
	}
	for i, p := range c.Points {
		if p.Duty < devices.MinDutyValue || p.Duty > devices.MaxDutyValue {
			return fmt.Errorf("%w: duty %d of point %d is outside of [%d..%d]", ErrInvalidCurve, p.Duty, i, devices.MinDutyValue, devices.MaxDutyValue)
		}
		if i == 0 {
			continue
		}
		previous := c.Points[i-1]
		if p.Temp <= previous.Temp {
			return fmt.Errorf("%w: temperatures must be strictly increasing (point %d: %d <= %d)", ErrInvalidCurve, i, p.Temp, previous.Temp)
		}
		if p.Duty < previous.Duty {
			return fmt.Errorf("%w: duties must not decrease (point %d: %d < %d)", ErrInvalidCurve, i, p.Duty, previous.Duty)
		}
	}
	return nil
}

// ValidateFor additionally checks the curve against the duty range of a channel
func (c ProfileCurve) ValidateFor(channel devices.Channel) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.First().Duty < channel.MinDuty {
		return fmt.Errorf("%w: first duty %d is below the min duty %d of channel %s", ErrInvalidCurve, c.First().Duty, channel.MinDuty, channel.Name)
	}
	if c.Last().Duty > channel.MaxDuty {
		return fmt.Errorf("%w: last duty %d is above the max duty %d of channel %s", ErrInvalidCurve, c.Last().Duty, channel.MaxDuty, channel.Name)
	}
	return nil
}

// Interpolate returns the duty for the given temperature.
// Temperatures outside of the curve are clamped to its first/last point.
func (c ProfileCurve) Interpolate(temp float64) (int, error) {
	if len(c.Points) < MinPointCount {
		return 0, fmt.Errorf("%w: cannot interpolate with %d points", ErrInvalidCurve, len(c.Points))
	}

	first := c.First()
	if temp <= float64(first.Temp) {
		return first.Duty, nil
	}
	last := c.Last()
	if temp >= float64(last.Temp) {
		return last.Duty, nil
	}

	for i := 0; i < len(c.Points)-1; i++ {
		current := c.Points[i]
		next := c.Points[i+1]
		if temp >= float64(next.Temp) {
			continue
		}
		// multiply before dividing, integral results must not lose precision
		duty := float64(current.Duty) + float64(next.Duty-current.Duty)*(temp-float64(current.Temp))/float64(next.Temp-current.Temp)
		return int(duty), nil
	}

	return last.Duty, nil
}

// Normalize rescales the curve proportionally so that its last point lands on
// targetMaxTemp and targetMaxDuty. A curve whose last duty is 0 keeps its duty axis.
func (c ProfileCurve) Normalize(targetMaxTemp int, targetMaxDuty int) (ProfileCurve, error) {
	if err := c.Validate(); err != nil {
		return c, err
	}
	last := c.Last()
	if last.Temp <= 0 {
		return c, fmt.Errorf("%w: cannot normalize a curve ending at %d°", ErrInvalidCurve, last.Temp)
	}

	tempFactor := float64(targetMaxTemp) / float64(last.Temp)
	dutyFactor := 1.0
	if last.Duty > 0 {
		dutyFactor = float64(targetMaxDuty) / float64(last.Duty)
	}

	result := ProfileCurve{Points: make([]Point, len(c.Points))}
	for i, p := range c.Points {
		result.Points[i] = Point{
			Temp: int(math.Round(float64(p.Temp) * tempFactor)),
			Duty: util.Clamp(int(math.Round(float64(p.Duty)*dutyFactor)), devices.MinDutyValue, devices.MaxDutyValue),
		}
	}

	if err := result.Validate(); err != nil {
		return c, fmt.Errorf("normalizing to %d° collapses points: %w", targetMaxTemp, err)
	}
	return result, nil
}

// Sanitize caps all duties at maxDuty and makes sure the curve reaches maxDuty
// no later than criticalTemp. Points at or beyond criticalTemp are dropped.
func (c ProfileCurve) Sanitize(criticalTemp int, maxDuty int) ProfileCurve {
	if len(c.Points) == 0 || criticalTemp <= c.First().Temp {
		return c.Clone()
	}

	var points []Point
	for _, p := range c.Points {
		if p.Temp >= criticalTemp {
			break
		}
		duty := min(p.Duty, maxDuty)
		points = append(points, Point{Temp: p.Temp, Duty: duty})
		if duty >= maxDuty {
			break
		}
	}

	if points[len(points)-1].Duty < maxDuty || len(points) < MinPointCount {
		points = append(points, Point{Temp: criticalTemp, Duty: maxDuty})
	}
	return ProfileCurve{Points: points}
}

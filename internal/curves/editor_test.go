package curves

import (
	"math/rand"
	"testing"

	"github.com/markusressel/cool2go/internal/devices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createDefaultLimits() Limits {
	return Limits{
		MinDuty:   0,
		MaxDuty:   100,
		TempMin:   20,
		TempMax:   100,
		MinPoints: 2,
		MaxPoints: 17,
	}
}

func createFivePointCurve() ProfileCurve {
	return NewProfileCurve(
		Point{Temp: 20, Duty: 20},
		Point{Temp: 30, Duty: 30},
		Point{Temp: 40, Duty: 40},
		Point{Temp: 50, Duty: 50},
		Point{Temp: 60, Duty: 60},
	)
}

func TestLimitsFor(t *testing.T) {
	// GIVEN
	source := devices.NewDevice(devices.KindCPU, 1, "k10temp")
	source.TempMax = 90
	channel := devices.Channel{Name: "fan1", MinDuty: 25, MaxDuty: 95}

	// WHEN
	limits := LimitsFor(source, channel)

	// THEN
	assert.Equal(t, Limits{
		MinDuty:   25,
		MaxDuty:   95,
		TempMin:   devices.DefaultTempMin,
		TempMax:   90,
		MinPoints: devices.DefaultProfileMinLength,
		MaxPoints: devices.DefaultProfileMaxLength,
	}, limits)
}

func TestNewEditor_NormalizesLimits(t *testing.T) {
	// GIVEN
	limits := Limits{MinDuty: 0, MaxDuty: 100, TempMin: 20, TempMax: 100}

	// WHEN
	editor := NewEditor(limits)

	// THEN
	assert.Equal(t, MinPointCount, editor.Limits().MinPoints)
	assert.Equal(t, devices.DefaultProfileMaxLength, editor.Limits().MaxPoints)
}

func TestEditor_AddPoint(t *testing.T) {
	// GIVEN
	editor := NewEditor(createDefaultLimits())
	curve := createDefaultCurve()

	// WHEN
	result, err := editor.AddPoint(curve, 30, 90)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, []Point{{20, 20}, {30, 50}, {40, 50}, {60, 100}}, result.Points)
	assert.Equal(t, 3, curve.Len(), "input must not be modified")
}

func TestEditor_AddPoint_ClampsDutyUpwards(t *testing.T) {
	// GIVEN
	editor := NewEditor(createDefaultLimits())
	curve := createDefaultCurve()

	// WHEN
	result, err := editor.AddPoint(curve, 50, 10)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, Point{Temp: 50, Duty: 50}, result.Points[2])
}

func TestEditor_AddPoint_Rejected(t *testing.T) {
	editor := NewEditor(createDefaultLimits())
	curve := createDefaultCurve()

	for _, temp := range []int{10, 20, 40, 60, 70} {
		result, err := editor.AddPoint(curve, temp, 50)
		assert.ErrorIs(t, err, ErrInvalidCurve, "temp %d", temp)
		assert.Equal(t, curve, result)
	}
}

func TestEditor_AddPoint_LimitExceeded(t *testing.T) {
	// GIVEN
	limits := createDefaultLimits()
	limits.MaxPoints = 3
	editor := NewEditor(limits)
	curve := createDefaultCurve()

	// WHEN
	result, err := editor.AddPoint(curve, 30, 30)

	// THEN
	assert.ErrorIs(t, err, ErrPointLimitExceeded)
	assert.Equal(t, curve, result)
}

func TestEditor_MovePoint(t *testing.T) {
	// GIVEN
	editor := NewEditor(createDefaultLimits())
	curve := createDefaultCurve()

	// WHEN
	result, err := editor.MovePoint(curve, 1, 45, 80)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, []Point{{20, 20}, {45, 80}, {60, 100}}, result.Points)

	before, _ := curve.Interpolate(50)
	after, _ := result.Interpolate(50)
	assert.Equal(t, 75, before)
	assert.Equal(t, 86, after)
}

func TestEditor_MovePoint_PushesFollowingPoints(t *testing.T) {
	// GIVEN
	editor := NewEditor(createDefaultLimits())
	curve := createFivePointCurve()

	// WHEN
	result, err := editor.MovePoint(curve, 1, 55, 30)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, []Point{{20, 20}, {55, 30}, {56, 40}, {57, 50}, {60, 60}}, result.Points)
}

func TestEditor_MovePoint_PushesCollidingLastPoint(t *testing.T) {
	// GIVEN
	editor := NewEditor(createDefaultLimits())
	curve := createFivePointCurve()

	// WHEN
	result, err := editor.MovePoint(curve, 1, 59, 30)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, []Point{{20, 20}, {59, 30}, {60, 40}, {61, 50}, {62, 60}}, result.Points)
	assert.Equal(t, 60, curve.Last().Temp, "input must not be modified")
}

func TestEditor_MovePoint_PushesPreviousPoints(t *testing.T) {
	// GIVEN
	editor := NewEditor(createDefaultLimits())
	curve := createFivePointCurve()

	// WHEN
	result, err := editor.MovePoint(curve, 3, 10, 50)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, []Point{{20, 20}, {21, 30}, {22, 40}, {23, 50}, {60, 60}}, result.Points)
}

func TestEditor_MovePoint_StopsAtTempMax(t *testing.T) {
	// GIVEN
	editor := NewEditor(createDefaultLimits())
	curve := createFivePointCurve()

	// WHEN
	result, err := editor.MovePoint(curve, 2, 150, 40)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, []Point{{20, 20}, {30, 30}, {98, 40}, {99, 50}, {100, 60}}, result.Points)
}

func TestEditor_MovePoint_PropagatesDuty(t *testing.T) {
	// GIVEN
	editor := NewEditor(createDefaultLimits())
	curve := createFivePointCurve()

	// WHEN
	raised, err := editor.MovePoint(curve, 0, 99, 45)
	require.NoError(t, err)
	lowered, err := editor.MovePoint(curve, 4, 60, 25)
	require.NoError(t, err)

	// THEN
	assert.Equal(t, []Point{{20, 45}, {30, 45}, {40, 45}, {50, 50}, {60, 60}}, raised.Points)
	assert.Equal(t, []Point{{20, 20}, {30, 25}, {40, 25}, {50, 25}, {60, 25}}, lowered.Points)
}

func TestEditor_MovePoint_ClampsDutyToChannel(t *testing.T) {
	// GIVEN
	limits := createDefaultLimits()
	limits.MinDuty = 30
	limits.MaxDuty = 80
	editor := NewEditor(limits)
	curve := createFivePointCurve()

	// WHEN
	result, err := editor.MovePoint(curve, 4, 60, 100)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, 80, result.Last().Duty)

	result, err = editor.MovePoint(curve, 2, 40, 0)
	assert.NoError(t, err)
	assert.Equal(t, 30, result.Points[2].Duty)
}

func TestEditor_MovePoint_IndexOutOfRange(t *testing.T) {
	editor := NewEditor(createDefaultLimits())
	curve := createDefaultCurve()

	_, err := editor.MovePoint(curve, 3, 40, 40)
	assert.ErrorIs(t, err, ErrInvalidCurve)
	_, err = editor.MovePoint(curve, -1, 40, 40)
	assert.ErrorIs(t, err, ErrInvalidCurve)
}

func TestEditor_RemovePoint(t *testing.T) {
	// GIVEN
	editor := NewEditor(createDefaultLimits())
	curve := createDefaultCurve()

	// WHEN
	result, err := editor.RemovePoint(curve, 1)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, []Point{{20, 20}, {60, 100}}, result.Points)
	assert.Equal(t, 3, curve.Len())
}

func TestEditor_RemovePoint_BoundaryProtected(t *testing.T) {
	editor := NewEditor(createDefaultLimits())
	curve := createDefaultCurve()

	for _, index := range []int{0, curve.Len() - 1} {
		result, err := editor.RemovePoint(curve, index)
		assert.ErrorIs(t, err, ErrBoundaryPointProtected)
		assert.Equal(t, curve, result)
	}
}

func TestEditor_RemovePoint_MinPoints(t *testing.T) {
	// GIVEN
	limits := createDefaultLimits()
	limits.MinPoints = 3
	editor := NewEditor(limits)

	// WHEN
	_, err := editor.RemovePoint(createDefaultCurve(), 1)

	// THEN
	assert.ErrorIs(t, err, ErrBoundaryPointProtected)
}

func TestEditor_RejectsCurveNotStartingAtSourceMinimum(t *testing.T) {
	// GIVEN
	editor := NewEditor(createDefaultLimits())
	curve := NewProfileCurve(Point{Temp: 30, Duty: 20}, Point{Temp: 50, Duty: 50}, Point{Temp: 70, Duty: 100})

	// WHEN
	_, addErr := editor.AddPoint(curve, 40, 30)
	moved, moveErr := editor.MovePoint(curve, 1, 55, 60)
	_, removeErr := editor.RemovePoint(curve, 1)

	// THEN
	assert.ErrorIs(t, addErr, ErrInvalidCurve)
	assert.ErrorIs(t, moveErr, ErrInvalidCurve)
	assert.ErrorIs(t, removeErr, ErrInvalidCurve)
	assert.Equal(t, curve, moved)
}

func TestEditor_Anchor(t *testing.T) {
	// GIVEN
	editor := NewEditor(createDefaultLimits())
	curve := NewProfileCurve(Point{Temp: 30, Duty: 20}, Point{Temp: 50, Duty: 50})

	// WHEN
	result, err := editor.Anchor(curve)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, []Point{{20, 20}, {50, 50}}, result.Points)
	assert.Equal(t, 30, curve.First().Temp, "input must not be modified")
}

func TestEditor_Anchor_AlreadyAnchored(t *testing.T) {
	// GIVEN
	editor := NewEditor(createDefaultLimits())
	curve := createFivePointCurve()

	// WHEN
	result, err := editor.Anchor(curve)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, curve, result)
}

func TestEditor_Anchor_CollidesWithSecondPoint(t *testing.T) {
	// GIVEN
	editor := NewEditor(createDefaultLimits())
	curve := NewProfileCurve(Point{Temp: 10, Duty: 20}, Point{Temp: 15, Duty: 30}, Point{Temp: 50, Duty: 50})

	// WHEN
	result, err := editor.Anchor(curve)

	// THEN
	assert.ErrorIs(t, err, ErrInvalidCurve)
	assert.Equal(t, curve, result)
}

func TestEditor_Reset(t *testing.T) {
	// GIVEN
	editor := NewEditor(createDefaultLimits())

	// WHEN
	result, err := editor.Reset()

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, []Point{{20, 0}, {40, 25}, {60, 50}, {80, 75}, {100, 100}}, result.Points)
}

func TestReset_RespectsMaxPoints(t *testing.T) {
	// WHEN
	result, err := Reset(2, 3, 20, 100, 0, 100)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, []Point{{20, 0}, {60, 50}, {100, 100}}, result.Points)
}

func TestReset_RespectsMinPoints(t *testing.T) {
	// WHEN
	result, err := Reset(7, 17, 20, 80, 30, 90)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, 7, result.Len())
	assert.Equal(t, Point{Temp: 20, Duty: 30}, result.First())
	assert.Equal(t, Point{Temp: 80, Duty: 90}, result.Last())
}

func TestReset_RangeTooNarrow(t *testing.T) {
	_, err := Reset(2, 17, 20, 22, 0, 100)
	assert.ErrorIs(t, err, ErrInvalidCurve)

	_, err = Reset(2, 17, 20, 100, 80, 20)
	assert.ErrorIs(t, err, ErrInvalidCurve)
}

// random edit sequences must never produce an invalid curve
func TestEditor_RandomEditsKeepCurveValid(t *testing.T) {
	// GIVEN
	random := rand.New(rand.NewSource(42))
	limits := createDefaultLimits()
	editor := NewEditor(limits)
	curve, err := editor.Reset()
	require.NoError(t, err)
	firstTemp := curve.First().Temp

	for i := 0; i < 2000; i++ {
		// WHEN
		var next ProfileCurve
		switch random.Intn(3) {
		case 0:
			index := random.Intn(curve.Len())
			next, err = editor.MovePoint(curve, index, random.Intn(140)-20, random.Intn(140)-20)
			require.NoError(t, err)
		case 1:
			next, err = editor.AddPoint(curve, random.Intn(120), random.Intn(101))
		default:
			next, err = editor.RemovePoint(curve, random.Intn(curve.Len()))
		}

		// THEN
		if err != nil {
			assert.Equal(t, curve, next, "failed edits must return the input")
			continue
		}
		require.NoError(t, next.Validate(), "step %d produced %s", i, next)
		assert.Equal(t, firstTemp, next.First().Temp)
		assert.LessOrEqual(t, next.Last().Temp, limits.TempMax)
		assert.LessOrEqual(t, next.Len(), limits.MaxPoints)
		assert.GreaterOrEqual(t, next.Len(), limits.MinPoints)
		curve = next
	}
}

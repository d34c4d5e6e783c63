package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinMax(t *testing.T) {
	// GIVEN
	values := []float64{42.5, 30, 55.25, 31}

	// WHEN
	minimum := Min(values)
	maximum := Max(values)

	// THEN
	assert.Equal(t, 30.0, minimum)
	assert.Equal(t, 55.25, maximum)
}

func TestMinMax_Empty(t *testing.T) {
	// GIVEN
	var values []float64

	// WHEN
	minimum := Min(values)
	maximum := Max(values)

	// THEN
	assert.Equal(t, 0.0, minimum)
	assert.Equal(t, 0.0, maximum)
}

func TestSortedKeys(t *testing.T) {
	// GIVEN
	input := map[string]int{
		"pump": 1,
		"fan2": 2,
		"fan1": 3,
	}

	// WHEN
	result := SortedKeys(input)

	// THEN
	assert.Equal(t, []string{"fan1", "fan2", "pump"}, result)
}

package util

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Avg calculates the average of all values in the given array
func Avg(values []float64) float64 {
	sum := 0.0
	for i := 0; i < len(values); i++ {
		sum += values[i]
	}
	return sum / (float64(len(values)))
}

// Clamp limits value to [lower..upper]
func Clamp[T constraints.Ordered](value, lower, upper T) T {
	if value < lower {
		return lower
	}
	if value > upper {
		return upper
	}
	return value
}

// Abs returns the absolute value of an integer
func Abs(value int) int {
	if value < 0 {
		return -value
	}
	return value
}

// LinSpace returns count evenly spaced values over [start..stop], rounded to the nearest integer.
func LinSpace(start, stop, count int) []int {
	if count <= 0 {
		return []int{}
	}
	if count == 1 {
		return []int{start}
	}
	result := make([]int, count)
	step := float64(stop-start) / float64(count-1)
	for i := 0; i < count; i++ {
		result[i] = int(math.Round(float64(start) + step*float64(i)))
	}
	result[count-1] = stop
	return result
}

package utils

import (
	"golang.org/x/exp/constraints"
)

const MaxJobPoolSize = 1_000

// Clamp limits v to [lo, hi]
func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// OrDefault returns fallback when v is not positive
func OrDefault[T constraints.Integer | constraints.Float](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}

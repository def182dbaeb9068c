package math

import "golang.org/x/exp/constraints"

// Number covers the scalar types the engine does arithmetic on.
type Number interface {
	constraints.Integer | constraints.Float
}

// Clamp limits v to [lo, hi].
func Clamp[T Number](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lerp linearly interpolates between a and b.
func Lerp[T constraints.Float](a, b, t T) T {
	return a + (b-a)*t
}

// AlignUp rounds n up to the next multiple of align (a power of two).
func AlignUp[T constraints.Integer](n, align T) T {
	return (n + align - 1) &^ (align - 1)
}

// DivCeil returns ceil(n / d) for positive integers.
func DivCeil[T constraints.Integer](n, d T) T {
	return (n + d - 1) / d
}

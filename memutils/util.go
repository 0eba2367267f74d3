package memutils

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// CheckPow2 returns a wrapped PowerOfTwoError if number is zero or not a power of two
func CheckPow2[T constraints.Integer](number T, name string) error {
	if number <= 0 || number&(number-1) != 0 {
		return errors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to the next multiple of alignment. Alignment does not need to be
// a power of two; an alignment of 0 is treated as 1.
func AlignUp[T constraints.Integer](value T, alignment T) T {
	if alignment <= 1 {
		return value
	}

	remainder := value % alignment
	if remainder == 0 {
		return value
	}
	return value + alignment - remainder
}

// AlignDown rounds value down to the previous multiple of alignment
func AlignDown[T constraints.Integer](value T, alignment T) T {
	if alignment <= 1 {
		return value
	}

	return value - value%alignment
}

// IsAligned reports whether value is a multiple of alignment
func IsAligned[T constraints.Integer](value T, alignment T) bool {
	if alignment <= 1 {
		return true
	}
	return value%alignment == 0
}

package kirsch

import (
	"fmt"
	"math"
)

// DefaultThreshold is the reference derivative threshold.
const DefaultThreshold = 383

// Params is the immutable per-run configuration of the classifier.
type Params struct {
	Threshold int32
	Scale     int
	Palette   Palette
	Border    BorderPolicy
}

// DefaultParams returns the reference parameters: threshold 383, scale 1,
// the sim palette and the skip border policy.
func DefaultParams() Params {
	return Params{
		Threshold: DefaultThreshold,
		Scale:     1,
		Palette:   Sim,
		Border:    BorderSkip,
	}
}

// Validate rejects parameters the classifier cannot run with.
func (p Params) Validate() error {
	if p.Scale <= 0 {
		return fmt.Errorf("%w: scale must be positive, got %d", ErrInvalidParameter, p.Scale)
	}
	if p.Palette.Len() != 1 && p.Palette.Len() != Directions {
		return fmt.Errorf("%w: palette %q has %d entries", ErrInvalidParameter, p.Palette.Name(), p.Palette.Len())
	}
	if p.Border != BorderSkip && p.Border != BorderSymmetric {
		return fmt.Errorf("%w: %s", ErrInvalidParameter, p.Border)
	}
	return nil
}

// ThresholdFromInt narrows a user supplied threshold to int32.
func ThresholdFromInt(v int64) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: threshold %d out of range", ErrInvalidParameter, v)
	}
	return int32(v), nil
}

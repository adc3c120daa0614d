package kgain

import (
	"fmt"
	"math"
)

// Domain bounds applied after every transition.
const (
	MinDifficulty = 1.0
	MaxDifficulty = 10.0
	MinStability  = 0.01
	MaxStability  = 36500.0
)

// MemoryState is an item's current memory model. It is a value type: every
// transition produces a new MemoryState. A stability of exactly zero marks
// an item that has never been seen.
type MemoryState struct {
	Difficulty float64 `json:"difficulty" yaml:"difficulty"`
	Stability  float64 `json:"stability" yaml:"stability"`
}

// Unseen returns the sentinel state for an item with no review history.
func Unseen() MemoryState {
	return MemoryState{Difficulty: MinDifficulty}
}

// IsUnseen reports whether s is the never-seen sentinel.
func (s MemoryState) IsUnseen() bool {
	return s.Stability == 0
}

// String returns "D=… S=…".
func (s MemoryState) String() string {
	return fmt.Sprintf("D=%.4f S=%.4f", s.Difficulty, s.Stability)
}

// Validate reports whether s can be fed to the engine. Seen items need a
// positive difficulty and stability; both must be finite.
func (s MemoryState) Validate() error {
	if !isFinite(s.Difficulty) || !isFinite(s.Stability) {
		return fmt.Errorf("%w: %s is not finite", ErrInvalidState, s)
	}
	if s.Stability < 0 {
		return fmt.Errorf("%w: negative stability %f", ErrInvalidState, s.Stability)
	}
	if !s.IsUnseen() && s.Difficulty <= 0 {
		return fmt.Errorf("%w: non-positive difficulty %f", ErrInvalidState, s.Difficulty)
	}
	return nil
}

// clamped returns s with both fields clamped to their domain ranges.
func (s MemoryState) clamped() MemoryState {
	return MemoryState{Difficulty: clampD(s.Difficulty), Stability: clampS(s.Stability)}
}

// clampS clamps stability to [0.01, 36500].
func clampS(s float64) float64 {
	return math.Min(math.Max(s, MinStability), MaxStability)
}

// clampD clamps difficulty to [1, 10].
func clampD(d float64) float64 {
	return math.Min(math.Max(d, MinDifficulty), MaxDifficulty)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validateElapsed(days float64) error {
	if !isFinite(days) || days < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidElapsed, days)
	}
	return nil
}

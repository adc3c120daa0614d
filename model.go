package kgain

import (
	"fmt"

	"github.com/sky-flux/kgain/memo"
)

// Model is a memory model of one version bound to its parameter vector.
// The implementations are V4, V5 and V6. V5 delegates to the V6 formulas
// with a padded vector; V4 keeps its own difficulty rules and has no
// same-day branch. Models are immutable and safe for concurrent use.
type Model interface {
	// Version reports the generation implied by the parameter vector length.
	Version() Version
	// Weights returns a copy of the parameter vector as supplied.
	Weights() []float64
	// Decay returns the negative forgetting-curve exponent.
	Decay() float64
	// Factor returns 0.9^(1/Decay) - 1.
	Factor() float64
	// Retrievability returns R after elapsedDays at the given stability.
	Retrievability(elapsedDays, stability float64) float64
	// IntervalFromRetention returns the elapsed days at which R falls to retention.
	IntervalFromRetention(state MemoryState, retention float64) float64
	// Simulate returns the forget and recall outcomes of reviewing state now.
	Simulate(state MemoryState, elapsedDays float64) Outcome
	// SimulateWithRetention is Simulate with R fixed to retention ∈ [0, 1].
	SimulateWithRetention(state MemoryState, elapsedDays, retention float64) Outcome
	// FirstExposure returns the state after the first review of an unseen
	// item rated r.
	FirstExposure(r Rating) MemoryState

	key() modelKey
}

// modelKey identifies a model in memo tables. Versions that reduce to the
// same padded vector and rules behave identically and share a key.
type modelKey struct {
	legacy bool
	w      [LenV6]float64
}

// Compile-time interface checks.
var (
	_ Model = (*fsrs6)(nil)
	_ Model = (*fsrs5)(nil)
	_ Model = (*fsrs4)(nil)
)

// NewModel builds the model whose version matches len(w). The vector is
// copied. Only the length and finiteness are checked; use ValidateBounds to
// enforce the trained ranges.
func NewModel(w []float64) (Model, error) {
	v, err := VersionOf(len(w))
	if err != nil {
		return nil, err
	}
	if err := checkFinite(w); err != nil {
		return nil, err
	}
	if v == V6 && w[20] <= 0 {
		return nil, fmt.Errorf("%w: w[20] = %f, decay must be negative", ErrInvalidParameters, w[20])
	}
	inner := &fsrs6{algo: newAlgo(pad(w))}

	switch v {
	case V4:
		m := &fsrs4{inner: &fsrs6{algo: newLegacyAlgo(pad(w))}}
		copy(m.w[:], w)
		return m, nil
	case V5:
		m := &fsrs5{inner: inner}
		copy(m.w[:], w)
		return m, nil
	default:
		return inner, nil
	}
}

// DefaultModel returns the V6 model with DefaultParameters.
func DefaultModel() Model {
	return &fsrs6{algo: newAlgo(DefaultParameters)}
}

// Fingerprint returns a stable 64-bit hash of a model's version and
// parameters, suitable for log fields and grouping.
func Fingerprint(m Model) uint64 {
	w := m.Weights()
	vs := make([]float64, 0, len(w)+1)
	vs = append(vs, float64(m.Version()))
	vs = append(vs, w...)
	return memo.HashFloats(vs...)
}

// fsrs6 evaluates the 21-parameter formulas directly.
type fsrs6 struct {
	algo algo
}

func (m *fsrs6) Version() Version { return V6 }

func (m *fsrs6) Weights() []float64 {
	w := m.algo.w
	return w[:]
}

func (m *fsrs6) Decay() float64  { return m.algo.decay }
func (m *fsrs6) Factor() float64 { return m.algo.factor }

func (m *fsrs6) Retrievability(elapsedDays, stability float64) float64 {
	return m.algo.retrievability(elapsedDays, stability)
}

func (m *fsrs6) IntervalFromRetention(state MemoryState, retention float64) float64 {
	return m.algo.intervalFromRetention(state.Stability, retention)
}

func (m *fsrs6) Simulate(state MemoryState, elapsedDays float64) Outcome {
	return m.algo.simulate(state, elapsedDays, 0, false)
}

func (m *fsrs6) SimulateWithRetention(state MemoryState, elapsedDays, retention float64) Outcome {
	return m.algo.simulate(state, elapsedDays, retention, true)
}

func (m *fsrs6) FirstExposure(r Rating) MemoryState { return m.algo.firstExposure(r) }

func (m *fsrs6) key() modelKey { return modelKey{legacy: m.algo.legacy, w: m.algo.w} }

// fsrs5 adapts a 19-parameter vector: fixed decay, no trainable w[19..20].
type fsrs5 struct {
	w     [LenV5]float64
	inner *fsrs6
}

func (m *fsrs5) Version() Version { return V5 }

func (m *fsrs5) Weights() []float64 {
	w := m.w
	return w[:]
}

func (m *fsrs5) Decay() float64  { return m.inner.Decay() }
func (m *fsrs5) Factor() float64 { return m.inner.Factor() }

func (m *fsrs5) Retrievability(elapsedDays, stability float64) float64 {
	return m.inner.Retrievability(elapsedDays, stability)
}

func (m *fsrs5) IntervalFromRetention(state MemoryState, retention float64) float64 {
	return m.inner.IntervalFromRetention(state, retention)
}

func (m *fsrs5) Simulate(state MemoryState, elapsedDays float64) Outcome {
	return m.inner.Simulate(state, elapsedDays)
}

func (m *fsrs5) SimulateWithRetention(state MemoryState, elapsedDays, retention float64) Outcome {
	return m.inner.SimulateWithRetention(state, elapsedDays, retention)
}

func (m *fsrs5) FirstExposure(r Rating) MemoryState { return m.inner.FirstExposure(r) }

func (m *fsrs5) key() modelKey { return m.inner.key() }

// fsrs4 adapts a 17-parameter vector: fixed decay, undamped difficulty that
// reverts to w[4], and no same-day branch, so a review within a day uses the
// long-term stability formulas.
type fsrs4 struct {
	w     [LenV4]float64
	inner *fsrs6
}

func (m *fsrs4) Version() Version { return V4 }

func (m *fsrs4) Weights() []float64 {
	w := m.w
	return w[:]
}

func (m *fsrs4) Decay() float64  { return m.inner.Decay() }
func (m *fsrs4) Factor() float64 { return m.inner.Factor() }

func (m *fsrs4) Retrievability(elapsedDays, stability float64) float64 {
	return m.inner.Retrievability(elapsedDays, stability)
}

func (m *fsrs4) IntervalFromRetention(state MemoryState, retention float64) float64 {
	return m.inner.IntervalFromRetention(state, retention)
}

func (m *fsrs4) Simulate(state MemoryState, elapsedDays float64) Outcome {
	return m.inner.Simulate(state, elapsedDays)
}

func (m *fsrs4) SimulateWithRetention(state MemoryState, elapsedDays, retention float64) Outcome {
	return m.inner.SimulateWithRetention(state, elapsedDays, retention)
}

func (m *fsrs4) FirstExposure(r Rating) MemoryState { return m.inner.FirstExposure(r) }

func (m *fsrs4) key() modelKey { return m.inner.key() }

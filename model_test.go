package kgain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	gridDifficulty = []float64{1, 5, 10}
	gridStability  = []float64{0.01, 0.1, 1, 10, 100, 1000, 36500}
	gridElapsed    = []float64{0, 1, 30, 365}
)

func TestNewModelVersions(t *testing.T) {
	tests := []struct {
		w    []float64
		want Version
	}{
		{ReferenceParametersV4[:], V4},
		{DefaultParameters[:LenV5], V5},
		{DefaultParameters[:], V6},
	}
	for _, tt := range tests {
		m, err := NewModel(tt.w)
		require.NoError(t, err)
		assert.Equal(t, tt.want, m.Version())
		assert.Equal(t, tt.w, m.Weights())
	}
}

func TestNewModelRejects(t *testing.T) {
	_, err := NewModel(DefaultParameters[:20])
	assert.ErrorIs(t, err, ErrInvalidParameters)

	w := DefaultParameters
	w[7] = math.NaN()
	_, err = NewModel(w[:])
	assert.ErrorIs(t, err, ErrInvalidParameters)

	w = DefaultParameters
	w[20] = 0
	_, err = NewModel(w[:])
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestNewModelCopiesWeights(t *testing.T) {
	w := DefaultParameters
	m, err := NewModel(w[:])
	require.NoError(t, err)
	w[0] = 99
	assert.Equal(t, DefaultParameters[0], m.Weights()[0])

	got := m.Weights()
	got[1] = 99
	assert.Equal(t, DefaultParameters[1], m.Weights()[1])
}

func TestModelDecayAndFactor(t *testing.T) {
	v4, err := NewModel(ReferenceParametersV4[:])
	require.NoError(t, err)
	assert.Equal(t, FixedDecay, v4.Decay())
	assert.InDelta(t, 19.0/81.0, v4.Factor(), 1e-12)

	v6 := DefaultModel()
	assert.Equal(t, -DefaultParameters[20], v6.Decay())
	assert.InDelta(t, 0.9, v6.Retrievability(7, 7), 1e-12)
	assert.InDelta(t, 7.0, v6.IntervalFromRetention(MemoryState{Difficulty: 5, Stability: 7}, 0.9), 1e-9)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint(DefaultModel())
	b, err := NewModel(DefaultParameters[:])
	require.NoError(t, err)
	assert.Equal(t, a, Fingerprint(b))

	// A V5 model and its padded V6 twin behave the same but are distinct models.
	v5, err := NewModel(DefaultParameters[:LenV5])
	require.NoError(t, err)
	p := pad(DefaultParameters[:LenV5])
	twin, err := NewModel(p[:])
	require.NoError(t, err)
	assert.NotEqual(t, Fingerprint(v5), Fingerprint(twin))
	assert.Equal(t, v5.key(), twin.key())
}

func assertRelEqual(t *testing.T, want, got float64, msgAndArgs ...any) {
	t.Helper()
	if want == got {
		return
	}
	assert.InEpsilon(t, want, got, 1e-9, msgAndArgs...)
}

func TestKnowledgeEquivalentAcrossVersions(t *testing.T) {
	// With all-zero weights the three generations share one forgetting
	// curve and, from one day on, the same transitions.
	var w6 [LenV6]float64
	w6[20] = -FixedDecay
	vectors := [][]float64{make([]float64, LenV4), make([]float64, LenV5), w6[:]}

	models := make([]Model, len(vectors))
	ests := make([]*Estimator, len(vectors))
	for i, w := range vectors {
		m, err := NewModel(w)
		require.NoError(t, err)
		models[i] = m
		// Separate estimators so that nothing is served from a shared memo.
		ests[i] = newTestEstimator(t, EstimatorConfig{MaxDepth: 2})
	}
	ref, refEst := models[2], ests[2]
	require.Equal(t, V6, ref.Version())

	for i, m := range models[:2] {
		assert.Equal(t, ref.Decay(), m.Decay())
		assert.Equal(t, ref.Factor(), m.Factor())

		for _, d := range gridDifficulty {
			for _, s := range gridStability {
				for _, e := range gridElapsed {
					state := MemoryState{Difficulty: d, Stability: s}
					name := []any{"%s %s t=%v", m.Version(), state, e}

					k1, err := ests[i].CurrentKnowledge(m, state, e)
					require.NoError(t, err)
					k2, err := refEst.CurrentKnowledge(ref, state, e)
					require.NoError(t, err)
					assertRelEqual(t, k2, k1, name...)

					if e < 1 {
						continue
					}
					g1, err := ests[i].ExpKnowledgeGain(m, state, e)
					require.NoError(t, err)
					g2, err := refEst.ExpKnowledgeGain(ref, state, e)
					require.NoError(t, err)
					assertRelEqual(t, g2, g1, name...)
				}
			}
		}
	}
}

func TestReferenceV4DiffersFromPaddedTwin(t *testing.T) {
	v4, err := NewModel(ReferenceParametersV4[:])
	require.NoError(t, err)
	p := pad(ReferenceParametersV4[:])
	twin, err := NewModel(p[:])
	require.NoError(t, err)
	assert.NotEqual(t, v4.key(), twin.key())

	state := MemoryState{Difficulty: 5, Stability: 10}
	a, b := v4.Simulate(state, 30), twin.Simulate(state, 30)
	assert.InDelta(t, 9.33853708, a.Forget.State.Difficulty, 1e-9)
	assert.NotEqual(t, b.Forget.State.Difficulty, a.Forget.State.Difficulty)

	a, b = v4.Simulate(state, 0.5), twin.Simulate(state, 0.5)
	assert.InDelta(t, 0.4644427015514146, a.Forget.State.Stability, 1e-9)
	assert.InDelta(t, 13.370753903956341, a.Recall.State.Stability, 1e-8)
	assert.NotEqual(t, b.Recall.State.Stability, a.Recall.State.Stability)
}

func TestV5MatchesPaddedV6(t *testing.T) {
	v5, err := NewModel(DefaultParameters[:LenV5])
	require.NoError(t, err)
	p := pad(DefaultParameters[:LenV5])
	twin, err := NewModel(p[:])
	require.NoError(t, err)

	for _, d := range gridDifficulty {
		for _, s := range gridStability {
			for _, e := range []float64{0, 0.5, 1, 30} {
				state := MemoryState{Difficulty: d, Stability: s}
				assert.Equal(t, twin.Simulate(state, e), v5.Simulate(state, e), "%s t=%v", state, e)
			}
		}
	}
	for r := Again; r <= Easy; r++ {
		assert.Equal(t, twin.FirstExposure(r), v5.FirstExposure(r))
	}
}

func TestModelFirstExposure(t *testing.T) {
	v4, err := NewModel(ReferenceParametersV4[:])
	require.NoError(t, err)
	assert.Equal(t, MemoryState{Difficulty: 6.6634, Stability: 17.8704}, v4.FirstExposure(Good))
	assert.Equal(t, MemoryState{Difficulty: 1, Stability: 8.2956}, DefaultModel().FirstExposure(Easy))
}

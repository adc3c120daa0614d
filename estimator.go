package kgain

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math"

	"github.com/sky-flux/kgain/memo"
	"github.com/sky-flux/kgain/special"
)

// Mode selects which estimate Score returns.
type Mode int

const (
	ModeSingleStep Mode = iota + 1 // ExpKnowledgeGain.
	ModeLookahead                  // ExpKnowledgeGainFuture.
	ModeDeferred                   // ExpDeferredGainFuture.
)

var modeNames = [...]string{ModeSingleStep: "single-step", ModeLookahead: "lookahead", ModeDeferred: "deferred"}

// Compile-time interface checks.
var (
	_ fmt.Stringer             = Mode(0)
	_ encoding.TextMarshaler   = Mode(0)
	_ encoding.TextUnmarshaler = (*Mode)(nil)
	_ json.Marshaler           = (*Estimator)(nil)
	_ json.Unmarshaler         = (*Estimator)(nil)
)

func (m Mode) isValid() bool {
	return m >= ModeSingleStep && m <= ModeDeferred
}

// String returns the mode name. For invalid values it returns "Mode(n)".
func (m Mode) String() string {
	if m.isValid() {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.isValid() {
		return nil, fmt.Errorf("%w: mode %d", ErrInvalidConfig, int(m))
	}
	return []byte(modeNames[m]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	for v := ModeSingleStep; v <= ModeDeferred; v++ {
		if modeNames[v] == string(text) {
			*m = v
			return nil
		}
	}
	return fmt.Errorf("%w: mode %q", ErrInvalidConfig, text)
}

// Estimator defaults.
const (
	DefaultMaxDepth  = 10
	DefaultCacheSize = 20000

	// NoLookahead as MaxDepth disables the future search: the lookahead
	// estimates then equal their single-step counterparts.
	NoLookahead = -1
)

// IntegralKey identifies one knowledge integral evaluation in a shared cache.
type IntegralKey struct {
	Stability    float64
	Decay        float64
	Begin        float64
	End          float64
	DiscountRate float64
	Tolerance    float64
}

// Hash returns a 64-bit digest of k for cost-bounded caches.
func (k IntegralKey) Hash() uint64 {
	return memo.HashFloats(k.Stability, k.Decay, k.Begin, k.End, k.DiscountRate, k.Tolerance)
}

// NewIntegralCache creates a process-wide knowledge integral cache that can
// be shared by many estimators through EstimatorConfig.IntegralCache.
func NewIntegralCache(cfg memo.SharedConfig, m *memo.Metrics) (*memo.Shared[IntegralKey, float64], error) {
	return memo.NewShared[IntegralKey, float64]("integral", cfg, IntegralKey.Hash, m)
}

// EstimatorConfig configures an Estimator.
// Zero values produce sensible defaults; see field comments.
type EstimatorConfig struct {
	DiscountRate      float64 `json:"discount_rate"`       // zero → 0.99
	Tolerance         float64 `json:"tolerance"`           // zero → 1e-14
	Mode              Mode    `json:"mode"`                // zero → ModeLookahead
	SimulateCacheSize int     `json:"simulate_cache_size"` // zero → 20000
	GainCacheSize     int     `json:"gain_cache_size"`     // zero → 20000

	// MaxDepth bounds the lookahead chains. Zero selects DefaultMaxDepth;
	// NoLookahead turns the search off.
	MaxDepth int `json:"max_depth"`

	// FirstRatings weights the ratings of the first review of an unseen
	// item. Zero → UniformRatingProbs; other values are normalized to sum 1.
	FirstRatings RatingProbs `json:"first_ratings"`

	// IntegralCache, when set, memoizes knowledge integrals across estimators.
	IntegralCache *memo.Shared[IntegralKey, float64] `json:"-"`
	// Metrics, when set, counts memo traffic of the per-estimator tables.
	Metrics *memo.Metrics `json:"-"`
}

// Query is one item to score.
type Query struct {
	State       MemoryState `json:"state" yaml:"state"`
	ElapsedDays float64     `json:"elapsed_days" yaml:"elapsed_days"`
	// Horizon is the number of days until an already fixed next review.
	// Only ModeDeferred reads it.
	Horizon float64 `json:"horizon" yaml:"horizon"`
}

// Estimator computes expected knowledge gains. Simulations and gains are
// memoized in bounded tables owned by the Estimator, so one Estimator per
// ranking pass keeps memory bounded. It is safe for concurrent use.
type Estimator struct {
	cfg          EstimatorConfig
	discountRate float64
	maxDepth     int
	tol          float64
	mode         Mode
	firstRatings RatingProbs

	sims      *memo.LRU[simulateKey, Outcome]
	gains     *memo.LRU[gainKey, float64]
	integrals *memo.Shared[IntegralKey, float64]
}

// NewEstimator creates an Estimator from the given config.
// Zero-value fields are filled with defaults; invalid values return an error.
func NewEstimator(cfg EstimatorConfig) (*Estimator, error) {
	// DiscountRate: zero → 0.99.
	if cfg.DiscountRate == 0 {
		cfg.DiscountRate = DefaultDiscountRate
	}
	if !(cfg.DiscountRate > 0 && cfg.DiscountRate < 1) {
		return nil, fmt.Errorf("%w: discount rate %f out of range (0, 1)", ErrInvalidConfig, cfg.DiscountRate)
	}

	// MaxDepth: zero → 10, NoLookahead → 0.
	depth := cfg.MaxDepth
	switch {
	case depth == 0:
		depth = DefaultMaxDepth
		cfg.MaxDepth = depth
	case depth == NoLookahead:
		depth = 0
	case depth < 0:
		return nil, fmt.Errorf("%w: max depth %d must be positive", ErrInvalidConfig, depth)
	}

	// Tolerance: zero → 1e-14.
	if cfg.Tolerance == 0 {
		cfg.Tolerance = special.DefaultTolerance
	}
	if !(cfg.Tolerance > 0 && cfg.Tolerance < 1) {
		return nil, fmt.Errorf("%w: tolerance %g out of range (0, 1)", ErrInvalidConfig, cfg.Tolerance)
	}

	// Mode: zero → lookahead.
	if cfg.Mode == 0 {
		cfg.Mode = ModeLookahead
	}
	if !cfg.Mode.isValid() {
		return nil, fmt.Errorf("%w: mode %d", ErrInvalidConfig, int(cfg.Mode))
	}

	firstRatings, err := cfg.FirstRatings.normalized()
	if err != nil {
		return nil, err
	}
	cfg.FirstRatings = firstRatings

	if cfg.SimulateCacheSize == 0 {
		cfg.SimulateCacheSize = DefaultCacheSize
	}
	if cfg.GainCacheSize == 0 {
		cfg.GainCacheSize = DefaultCacheSize
	}
	sims, err := memo.NewLRU[simulateKey, Outcome]("simulate", cfg.SimulateCacheSize, cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	gains, err := memo.NewLRU[gainKey, float64]("gain", cfg.GainCacheSize, cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &Estimator{
		cfg:          cfg,
		discountRate: cfg.DiscountRate,
		maxDepth:     depth,
		tol:          cfg.Tolerance,
		mode:         cfg.Mode,
		firstRatings: firstRatings,
		sims:         sims,
		gains:        gains,
		integrals:    cfg.IntegralCache,
	}, nil
}

// Config returns the resolved configuration.
func (e *Estimator) Config() EstimatorConfig {
	return e.cfg
}

// Mode returns the estimate Score computes.
func (e *Estimator) Mode() Mode {
	return e.mode
}

// CacheSizes returns the number of memoized simulations and gains.
func (e *Estimator) CacheSizes() (simulations, gains int) {
	return e.sims.Len(), e.gains.Len()
}

// estimatorJSON is the serialized form of an Estimator.
type estimatorJSON struct {
	DiscountRate      float64     `json:"discount_rate"`
	MaxDepth          int         `json:"max_depth"`
	Tolerance         float64     `json:"tolerance"`
	Mode              Mode        `json:"mode"`
	SimulateCacheSize int         `json:"simulate_cache_size"`
	GainCacheSize     int         `json:"gain_cache_size"`
	FirstRatings      RatingProbs `json:"first_ratings"`
}

// MarshalJSON implements json.Marshaler.
func (e *Estimator) MarshalJSON() ([]byte, error) {
	return json.Marshal(estimatorJSON{
		DiscountRate:      e.cfg.DiscountRate,
		MaxDepth:          e.cfg.MaxDepth,
		Tolerance:         e.cfg.Tolerance,
		Mode:              e.cfg.Mode,
		SimulateCacheSize: e.cfg.SimulateCacheSize,
		GainCacheSize:     e.cfg.GainCacheSize,
		FirstRatings:      e.cfg.FirstRatings,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
// It rebuilds empty memo tables; the shared integral cache and metrics are
// not serialized and must be attached through NewEstimator.
func (e *Estimator) UnmarshalJSON(data []byte) error {
	var j estimatorJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	rebuilt, err := NewEstimator(EstimatorConfig{
		DiscountRate:      j.DiscountRate,
		MaxDepth:          j.MaxDepth,
		Tolerance:         j.Tolerance,
		Mode:              j.Mode,
		SimulateCacheSize: j.SimulateCacheSize,
		GainCacheSize:     j.GainCacheSize,
		FirstRatings:      j.FirstRatings,
	})
	if err != nil {
		return err
	}
	*e = *rebuilt
	return nil
}

type simulateKey struct {
	model   modelKey
	state   MemoryState
	elapsed float64
}

type gainKind uint8

const (
	kindStep gainKind = iota
	kindFuture
	kindDeferred
	kindDeferredFuture
)

type gainKey struct {
	model   modelKey
	state   MemoryState
	elapsed float64
	horizon float64
	kind    gainKind
}

// Simulate returns the memoized forget and recall outcomes of reviewing
// state after elapsedDays.
func (e *Estimator) Simulate(m Model, state MemoryState, elapsedDays float64) (Outcome, error) {
	if err := validateQuery(state, elapsedDays, 0); err != nil {
		return Outcome{}, err
	}
	return e.simulate(m, state, elapsedDays), nil
}

// CurrentKnowledge returns the discounted knowledge an item keeps from
// elapsedDays onwards if it is left unreviewed.
func (e *Estimator) CurrentKnowledge(m Model, state MemoryState, elapsedDays float64) (float64, error) {
	if err := validateQuery(state, elapsedDays, 0); err != nil {
		return 0, err
	}
	return e.knowledge(m, state.Stability, From(elapsedDays))
}

// ExpKnowledgeGain returns the expected knowledge after reviewing now minus
// the knowledge kept without review. For an unseen item there is no
// baseline and the result is the expected knowledge of the first exposure,
// weighted over all four ratings by FirstRatings. The result may be negative.
func (e *Estimator) ExpKnowledgeGain(m Model, state MemoryState, elapsedDays float64) (float64, error) {
	if err := validateQuery(state, elapsedDays, 0); err != nil {
		return 0, err
	}
	return e.gain(m, state, elapsedDays)
}

// ExpKnowledgeGainFuture refines ExpKnowledgeGain with a greedy search over
// chains of simulated future reviews, up to the configured depth.
func (e *Estimator) ExpKnowledgeGainFuture(m Model, state MemoryState, elapsedDays float64) (float64, error) {
	if err := validateQuery(state, elapsedDays, 0); err != nil {
		return 0, err
	}
	key := gainKey{model: m.key(), state: state, elapsed: elapsedDays, kind: kindFuture}
	return memo.Memoize[gainKey, float64](e.gains, key, func() (float64, error) {
		return e.lookahead(m, state, elapsedDays, math.Inf(1), func(s MemoryState) (float64, error) {
			return e.gain(m, s, elapsedDays)
		})
	})
}

// ExpDeferredGain is ExpKnowledgeGain for an item whose next review is
// already fixed horizon days ahead: knowledge is the retrievability on the
// day after that review instead of a discounted integral.
func (e *Estimator) ExpDeferredGain(m Model, state MemoryState, elapsedDays, horizon float64) (float64, error) {
	if err := validateQuery(state, elapsedDays, horizon); err != nil {
		return 0, err
	}
	return e.deferredGain(m, state, elapsedDays, horizon)
}

// ExpDeferredGainFuture is the lookahead over ExpDeferredGain. A chain is
// not extended past the fixed review.
func (e *Estimator) ExpDeferredGainFuture(m Model, state MemoryState, elapsedDays, horizon float64) (float64, error) {
	if err := validateQuery(state, elapsedDays, horizon); err != nil {
		return 0, err
	}
	key := gainKey{model: m.key(), state: state, elapsed: elapsedDays, horizon: horizon, kind: kindDeferredFuture}
	return memo.Memoize[gainKey, float64](e.gains, key, func() (float64, error) {
		return e.lookahead(m, state, elapsedDays, horizon, func(s MemoryState) (float64, error) {
			return e.deferredGain(m, s, elapsedDays, horizon)
		})
	})
}

// Score returns the estimate selected by the configured Mode.
func (e *Estimator) Score(m Model, q Query) (float64, error) {
	switch e.mode {
	case ModeSingleStep:
		return e.ExpKnowledgeGain(m, q.State, q.ElapsedDays)
	case ModeDeferred:
		return e.ExpDeferredGainFuture(m, q.State, q.ElapsedDays, q.Horizon)
	default:
		return e.ExpKnowledgeGainFuture(m, q.State, q.ElapsedDays)
	}
}

func (e *Estimator) simulate(m Model, state MemoryState, elapsedDays float64) Outcome {
	key := simulateKey{model: m.key(), state: state, elapsed: elapsedDays}
	if out, ok := e.sims.Get(key); ok {
		return out
	}
	out := m.Simulate(state, elapsedDays)
	e.sims.Add(key, out)
	return out
}

// FirstExposure returns the four weighted outcomes of the first review of an
// unseen item, Again through Easy.
func (e *Estimator) FirstExposure(m Model) [4]Branch {
	var out [4]Branch
	for r := Again; r <= Easy; r++ {
		out[r-1] = Branch{Rating: r, Probability: e.firstRatings.Of(r), State: m.FirstExposure(r)}
	}
	return out
}

// branches returns the outcomes a review of state can lead to: the four
// first-exposure outcomes for an unseen item, forget and recall otherwise.
func (e *Estimator) branches(m Model, state MemoryState, elapsedDays float64) []Branch {
	if state.IsUnseen() {
		first := e.FirstExposure(m)
		return first[:]
	}
	out := e.simulate(m, state, elapsedDays).Branches()
	return out[:]
}

func (e *Estimator) knowledge(m Model, stability float64, w Window) (float64, error) {
	compute := func() (float64, error) {
		return KnowledgeIntegralTol(stability, m.Decay(), m.Factor(), w, e.discountRate, e.tol)
	}
	if e.integrals == nil {
		return compute()
	}
	key := IntegralKey{
		Stability:    stability,
		Decay:        m.Decay(),
		Begin:        w.Begin,
		End:          w.End,
		DiscountRate: e.discountRate,
		Tolerance:    e.tol,
	}
	return memo.Memoize[IntegralKey, float64](e.integrals, key, compute)
}

func (e *Estimator) gain(m Model, state MemoryState, elapsedDays float64) (float64, error) {
	key := gainKey{model: m.key(), state: state, elapsed: elapsedDays, kind: kindStep}
	return memo.Memoize[gainKey, float64](e.gains, key, func() (float64, error) {
		var reviewed float64
		for _, b := range e.branches(m, state, elapsedDays) {
			k, err := e.knowledge(m, b.State.Stability, From(0))
			if err != nil {
				return 0, err
			}
			reviewed += b.Probability * k
		}
		if state.IsUnseen() {
			return reviewed, nil
		}
		current, err := e.knowledge(m, state.Stability, From(elapsedDays))
		if err != nil {
			return 0, err
		}
		return reviewed - current, nil
	})
}

// deferredKnowledge is the retrievability on the day after the fixed review.
func deferredKnowledge(m Model, stability, elapsedDays, horizon float64) float64 {
	return m.Retrievability(elapsedDays+horizon+1, stability)
}

func (e *Estimator) deferredGain(m Model, state MemoryState, elapsedDays, horizon float64) (float64, error) {
	key := gainKey{model: m.key(), state: state, elapsed: elapsedDays, horizon: horizon, kind: kindDeferred}
	return memo.Memoize[gainKey, float64](e.gains, key, func() (float64, error) {
		var reviewed float64
		for _, b := range e.branches(m, state, elapsedDays) {
			reviewed += b.Probability * deferredKnowledge(m, b.State.Stability, 0, horizon)
		}
		return reviewed - deferredKnowledge(m, state.Stability, elapsedDays, horizon), nil
	})
}

func validateQuery(state MemoryState, elapsedDays, horizon float64) error {
	if err := state.Validate(); err != nil {
		return err
	}
	if err := validateElapsed(elapsedDays); err != nil {
		return err
	}
	if !isFinite(horizon) || horizon < 0 {
		return fmt.Errorf("%w: horizon %v", ErrInvalidElapsed, horizon)
	}
	return nil
}

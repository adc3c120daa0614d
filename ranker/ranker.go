// Package ranker scores a batch of candidate items in one ranking pass and
// orders them by expected knowledge gain.
//
// Each pass gets a fresh kgain.Estimator, so the per-pass memo tables are
// released when the pass ends. Items are scored in parallel; items sharing a
// parameter vector share one model.
package ranker

import (
	"cmp"
	"context"
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sky-flux/kgain"
)

// Item is one candidate for review.
type Item struct {
	ID string `json:"id" yaml:"id"`
	// Parameters is the item's model vector (17, 19 or 21 weights).
	// Empty selects kgain.DefaultParameters.
	Parameters  []float64         `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	State       kgain.MemoryState `json:"state" yaml:"state"`
	ElapsedDays float64           `json:"elapsed_days" yaml:"elapsed_days"`
	Horizon     float64           `json:"horizon,omitempty" yaml:"horizon,omitempty"`
}

// Scored is an item with its score.
type Scored struct {
	Item
	Score float64 `json:"score" yaml:"score"`
}

// Result is the outcome of one ranking pass.
type Result struct {
	PassID   uuid.UUID     `json:"pass_id"`
	Mode     kgain.Mode    `json:"mode"`
	Items    []Scored      `json:"items"` // highest score first, ties by ID
	Duration time.Duration `json:"duration"`
}

// Top returns at most n of the best items.
func (r Result) Top(n int) []Scored {
	if n < 0 || n >= len(r.Items) {
		return r.Items
	}
	return r.Items[:n]
}

// Config configures a Ranker.
// Zero values produce sensible defaults; see field comments.
type Config struct {
	Estimator kgain.EstimatorConfig `json:"estimator"`
	Workers   int                   `json:"workers"` // zero → GOMAXPROCS
}

// Ranker runs ranking passes. It is safe for concurrent use; concurrent
// passes do not share per-pass memo tables.
type Ranker struct {
	cfg     Config
	workers int
	logger  *zap.Logger
}

// New creates a Ranker. The estimator config is validated once here; logger
// may be nil.
func New(cfg Config, logger *zap.Logger) (*Ranker, error) {
	if _, err := kgain.NewEstimator(cfg.Estimator); err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 0 {
		return nil, fmt.Errorf("%w: workers %d must be positive", kgain.ErrInvalidConfig, workers)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{cfg: cfg, workers: workers, logger: logger}, nil
}

type modelID struct {
	n int
	w [kgain.LenV6]float64
}

func idOf(w []float64) modelID {
	id := modelID{n: len(w)}
	copy(id.w[:], w)
	return id
}

// Rank scores items and returns them best first. The first invalid item
// fails the whole pass; the error names the item.
func (r *Ranker) Rank(ctx context.Context, items []Item) (Result, error) {
	start := time.Now()
	pass := uuid.New()
	logger := r.logger.With(zap.String("pass_id", pass.String()))

	est, err := kgain.NewEstimator(r.cfg.Estimator)
	if err != nil {
		return Result{}, err
	}

	models, err := buildModels(items)
	if err != nil {
		return Result{}, err
	}

	scored := make([]Scored, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range items {
		if gctx.Err() != nil {
			break
		}
		i := i // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			it := items[i]
			m := models[idOf(it.Parameters)]
			score, err := est.Score(m, kgain.Query{
				State:       it.State,
				ElapsedDays: it.ElapsedDays,
				Horizon:     it.Horizon,
			})
			if err != nil {
				return fmt.Errorf("ranker: item %q: %w", it.ID, err)
			}
			scored[i] = Scored{Item: it, Score: score}
			logger.Debug("scored item",
				zap.String("id", it.ID),
				zap.Uint64("model", kgain.Fingerprint(m)),
				zap.Stringer("state", it.State),
				zap.Float64("elapsed_days", it.ElapsedDays),
				zap.Float64("score", score))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("ranking pass failed", zap.Error(err))
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	slices.SortFunc(scored, func(a, b Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	sims, gains := est.CacheSizes()
	res := Result{PassID: pass, Mode: est.Mode(), Items: scored, Duration: time.Since(start)}
	logger.Info("ranking pass complete",
		zap.Int("items", len(items)),
		zap.Int("models", len(models)),
		zap.Stringer("mode", res.Mode),
		zap.Int("memo_simulations", sims),
		zap.Int("memo_gains", gains),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// buildModels creates one model per distinct parameter vector.
func buildModels(items []Item) (map[modelID]kgain.Model, error) {
	models := make(map[modelID]kgain.Model)
	for _, it := range items {
		id := idOf(it.Parameters)
		if _, ok := models[id]; ok {
			continue
		}
		if len(it.Parameters) == 0 {
			models[id] = kgain.DefaultModel()
			continue
		}
		m, err := kgain.NewModel(it.Parameters)
		if err != nil {
			return nil, fmt.Errorf("ranker: item %q: %w", it.ID, err)
		}
		models[id] = m
	}
	return models, nil
}

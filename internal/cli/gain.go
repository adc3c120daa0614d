package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sky-flux/kgain"
)

// itemFlags are the flags shared by the single-item commands.
type itemFlags struct {
	params     []float64
	difficulty float64
	stability  float64
	elapsed    float64
	horizon    float64
	unseen     bool
}

func (f *itemFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64SliceVar(&f.params, "params", nil, "model weights (17, 19 or 21); default from config")
	fs.Float64VarP(&f.difficulty, "difficulty", "d", 5, "current difficulty")
	fs.Float64VarP(&f.stability, "stability", "s", 10, "current stability in days")
	fs.Float64VarP(&f.elapsed, "elapsed", "t", 0, "days since the last review")
	fs.Float64Var(&f.horizon, "horizon", 0, "days until an already fixed next review")
	fs.BoolVar(&f.unseen, "unseen", false, "score the item as never seen")
}

func (f *itemFlags) state() kgain.MemoryState {
	if f.unseen {
		return kgain.Unseen()
	}
	return kgain.MemoryState{Difficulty: f.difficulty, Stability: f.stability}
}

func (a *app) model(params []float64) (kgain.Model, error) {
	if len(params) > 0 {
		return kgain.NewModel(params)
	}
	return a.cfg.Model()
}

func (a *app) estimator() (*kgain.Estimator, error) {
	ec, err := a.cfg.EstimatorConfig()
	if err != nil {
		return nil, err
	}
	return kgain.NewEstimator(ec)
}

type gainReport struct {
	Model              kgain.Version     `json:"model"`
	Mode               kgain.Mode        `json:"mode"`
	State              kgain.MemoryState `json:"state"`
	ElapsedDays        float64           `json:"elapsed_days"`
	Horizon            float64           `json:"horizon"`
	Retrievability     float64           `json:"retrievability"`
	Knowledge          float64           `json:"knowledge"`
	Gain               float64           `json:"gain"`
	FutureGain         float64           `json:"future_gain"`
	DeferredGain       float64           `json:"deferred_gain"`
	DeferredFutureGain float64           `json:"deferred_future_gain"`
	Score              float64           `json:"score"`
}

func newGainCmd(a *app) *cobra.Command {
	var f itemFlags
	cmd := &cobra.Command{
		Use:   "gain",
		Short: "Expected knowledge gain of reviewing one item now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(f.params)
			if err != nil {
				return err
			}
			est, err := a.estimator()
			if err != nil {
				return err
			}
			st := f.state()
			rep := gainReport{
				Model:       m.Version(),
				Mode:        est.Mode(),
				State:       st,
				ElapsedDays: f.elapsed,
				Horizon:     f.horizon,
			}
			if !st.IsUnseen() {
				rep.Retrievability = m.Retrievability(f.elapsed, st.Stability)
			}
			steps := []struct {
				dst *float64
				fn  func() (float64, error)
			}{
				{&rep.Knowledge, func() (float64, error) { return est.CurrentKnowledge(m, st, f.elapsed) }},
				{&rep.Gain, func() (float64, error) { return est.ExpKnowledgeGain(m, st, f.elapsed) }},
				{&rep.FutureGain, func() (float64, error) { return est.ExpKnowledgeGainFuture(m, st, f.elapsed) }},
				{&rep.DeferredGain, func() (float64, error) { return est.ExpDeferredGain(m, st, f.elapsed, f.horizon) }},
				{&rep.DeferredFutureGain, func() (float64, error) { return est.ExpDeferredGainFuture(m, st, f.elapsed, f.horizon) }},
				{&rep.Score, func() (float64, error) {
					return est.Score(m, kgain.Query{State: st, ElapsedDays: f.elapsed, Horizon: f.horizon})
				}},
			}
			for _, s := range steps {
				v, err := s.fn()
				if err != nil {
					return err
				}
				*s.dst = v
			}
			a.logger.Debug("gain computed",
				zap.Stringer("state", st),
				zap.Float64("elapsed_days", f.elapsed),
				zap.Float64("score", rep.Score))
			return writeJSON(cmd.OutOrStdout(), rep)
		},
	}
	f.register(cmd)
	return cmd
}

type simulateReport struct {
	Model       kgain.Version     `json:"model"`
	State       kgain.MemoryState `json:"state"`
	ElapsedDays float64           `json:"elapsed_days"`
	Retention   float64           `json:"retention,omitempty"`
	Interval    float64           `json:"interval,omitempty"`
	Outcome     kgain.Outcome     `json:"outcome"`
	// FirstExposure is set for an unseen item.
	FirstExposure []kgain.Branch `json:"first_exposure,omitempty"`
}

func newSimulateCmd(a *app) *cobra.Command {
	var (
		f         itemFlags
		retention float64
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Forget and recall branches of reviewing one item",
		Long:  "simulate prints both branches of a review. With --retention the branch probabilities come from the target retention instead of the current retrievability, and the interval that reaches it is reported.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(f.params)
			if err != nil {
				return err
			}
			st := f.state()
			rep := simulateReport{Model: m.Version(), State: st, ElapsedDays: f.elapsed}
			if cmd.Flags().Changed("retention") {
				if retention <= 0 || retention >= 1 {
					return fmt.Errorf("%w: retention %v must be in (0, 1)", kgain.ErrInvalidConfig, retention)
				}
				if err := st.Validate(); err != nil {
					return err
				}
				rep.Retention = retention
				rep.Interval = m.IntervalFromRetention(st, retention)
				rep.Outcome = m.SimulateWithRetention(st, f.elapsed, retention)
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			est, err := a.estimator()
			if err != nil {
				return err
			}
			if rep.Outcome, err = est.Simulate(m, st, f.elapsed); err != nil {
				return err
			}
			if st.IsUnseen() {
				first := est.FirstExposure(m)
				rep.FirstExposure = first[:]
			}
			return writeJSON(cmd.OutOrStdout(), rep)
		},
	}
	f.register(cmd)
	cmd.Flags().Float64Var(&retention, "retention", 0, "target retention in (0, 1)")
	return cmd
}

type integralReport struct {
	Stability    float64  `json:"stability"`
	Decay        float64  `json:"decay"`
	Factor       float64  `json:"factor"`
	Begin        float64  `json:"begin"`
	End          *float64 `json:"end,omitempty"` // nil when unbounded
	DiscountRate float64  `json:"discount_rate"`
	Knowledge    float64  `json:"knowledge"`
}

func newIntegralCmd(a *app) *cobra.Command {
	var (
		params     []float64
		stability  float64
		begin, end float64
	)
	cmd := &cobra.Command{
		Use:   "integral",
		Short: "Discounted knowledge integral of one stability over a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(params)
			if err != nil {
				return err
			}
			w := kgain.From(begin)
			if cmd.Flags().Changed("end") {
				w.End = end
			}
			rate := a.cfg.Engine.DiscountRate
			k, err := kgain.KnowledgeIntegralTol(stability, m.Decay(), m.Factor(), w, rate, a.cfg.Engine.Tolerance)
			if err != nil {
				return err
			}
			rep := integralReport{
				Stability:    stability,
				Decay:        m.Decay(),
				Factor:       m.Factor(),
				Begin:        w.Begin,
				DiscountRate: rate,
				Knowledge:    k,
			}
			if !w.Open() {
				rep.End = &w.End
			}
			return writeJSON(cmd.OutOrStdout(), rep)
		},
	}
	fs := cmd.Flags()
	fs.Float64SliceVar(&params, "params", nil, "model weights (17, 19 or 21); default from config")
	fs.Float64VarP(&stability, "stability", "s", 10, "stability in days")
	fs.Float64Var(&begin, "begin", 0, "window start in days")
	fs.Float64Var(&end, "end", 0, "window end in days; unbounded when omitted")
	return cmd
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sky-flux/kgain"
	"github.com/sky-flux/kgain/memo"
	"github.com/sky-flux/kgain/ranker"
)

type rankOptions struct {
	input   string
	top     int
	workers int
	metrics bool
}

func newRankCmd(a *app) *cobra.Command {
	var o rankOptions
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank a batch of items by expected knowledge gain",
		Long:  "rank reads a YAML or JSON list of items (id, state, elapsed_days, optional parameters and horizon) and prints them best first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRank(cmd, o)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&o.input, "input", "i", "-", "items file, - for stdin")
	fs.IntVarP(&o.top, "top", "n", -1, "print at most n items; negative prints all")
	fs.IntVar(&o.workers, "workers", 0, "parallel scorers; overrides the config when set")
	fs.BoolVar(&o.metrics, "metrics", false, "write memo metrics in Prometheus text format to stderr")
	return cmd
}

func (a *app) runRank(cmd *cobra.Command, o rankOptions) error {
	items, err := readItems(cmd.InOrStdin(), o.input)
	if err != nil {
		return err
	}
	for i := range items {
		if len(items[i].Parameters) == 0 {
			items[i].Parameters = a.cfg.Engine.Parameters
		}
	}

	ec, err := a.cfg.EstimatorConfig()
	if err != nil {
		return err
	}
	metrics := memo.NewMetrics(a.cfg.Ranker.MetricsNamespace)
	ec.Metrics = metrics
	if a.cfg.IntegralCache.Enabled {
		cache, err := kgain.NewIntegralCache(a.cfg.IntegralCache.SharedConfig(), metrics)
		if err != nil {
			return err
		}
		defer cache.Close()
		ec.IntegralCache = cache
	}

	workers := a.cfg.Ranker.Workers
	if cmd.Flags().Changed("workers") {
		workers = o.workers
	}
	r, err := ranker.New(ranker.Config{Estimator: ec, Workers: workers}, a.logger)
	if err != nil {
		return err
	}
	res, err := r.Rank(cmd.Context(), items)
	if err != nil {
		return err
	}

	for _, table := range []string{"simulate", "gain", "integral"} {
		hits, misses := metrics.Snapshot(table)
		a.logger.Debug("memo table",
			zap.String("table", table),
			zap.Float64("hits", hits),
			zap.Float64("misses", misses))
	}
	if o.metrics {
		if err := writeMetrics(cmd.ErrOrStderr(), metrics); err != nil {
			return err
		}
	}

	res.Items = res.Top(o.top)
	return writeJSON(cmd.OutOrStdout(), res)
}

// readItems decodes a list of items. YAML is a superset of JSON, so one
// decoder serves both.
func readItems(stdin io.Reader, path string) ([]ranker.Item, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("cli: open items: %w", err)
		}
		defer f.Close()
		r = f
	}
	var items []ranker.Item
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&items); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("cli: decode items: %w", err)
	}
	return items, nil
}

func writeMetrics(w io.Writer, m *memo.Metrics) error {
	families, err := m.Registry().Gather()
	if err != nil {
		return fmt.Errorf("cli: gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("cli: encode metrics: %w", err)
		}
	}
	return nil
}

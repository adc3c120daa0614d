package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sky-flux/kgain"
	"github.com/sky-flux/kgain/internal/config"
	"github.com/sky-flux/kgain/ranker"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "kgain dev (commit: unknown, built: unknown)\n", out)
}

func TestGain(t *testing.T) {
	out, _, err := run(t, "", "gain", "-d", "5", "-s", "10", "-t", "10")
	require.NoError(t, err)

	var rep gainReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, kgain.V6, rep.Model)
	assert.Equal(t, kgain.ModeLookahead, rep.Mode)
	assert.InDelta(t, 0.9, rep.Retrievability, 1e-9)
	assert.InDelta(t, 0.091835219939, rep.Gain, 1e-9)
	assert.InDelta(t, 0.092533443754, rep.FutureGain, 1e-9)
	assert.InDelta(t, 0.09461372871875962, rep.DeferredGain, 1e-9)
	assert.InDelta(t, 0.10131204281595028, rep.DeferredFutureGain, 1e-9)
	assert.Equal(t, rep.FutureGain, rep.Score)
	assert.Greater(t, rep.Knowledge, 0.0)
}

func TestGainUnseen(t *testing.T) {
	out, _, err := run(t, "", "gain", "--unseen")
	require.NoError(t, err)

	var rep gainReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.True(t, rep.State.IsUnseen())
	assert.Zero(t, rep.Knowledge)
	assert.InDelta(t, 0.5841564503532064, rep.Gain, 1e-9)

	path := writeFile(t, "kgain.yaml", "engine:\n  first_ratings: [0, 0, 1, 0]\n")
	out, _, err = run(t, "", "gain", "--unseen", "--config", path)
	require.NoError(t, err)
	rep = gainReport{}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.InDelta(t, 0.6134292570956573, rep.Gain, 1e-9)
}

func TestSimulateUnseen(t *testing.T) {
	out, _, err := run(t, "", "simulate", "--unseen")
	require.NoError(t, err)

	var rep simulateReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Len(t, rep.FirstExposure, 4)
	for i, b := range rep.FirstExposure {
		assert.Equal(t, kgain.Rating(i+1), b.Rating)
		assert.Equal(t, 0.25, b.Probability)
	}
	assert.Equal(t, 2.3065, rep.FirstExposure[2].State.Stability)

	out, _, err = run(t, "", "simulate", "-t", "10")
	require.NoError(t, err)
	rep = simulateReport{}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Empty(t, rep.FirstExposure)
}

func TestGainParamsV4SameDay(t *testing.T) {
	params := make([]string, len(kgain.ReferenceParametersV4))
	for i, w := range kgain.ReferenceParametersV4 {
		params[i] = strconv.FormatFloat(w, 'g', -1, 64)
	}
	out, _, err := run(t, "", "gain", "--params", strings.Join(params, ","), "-d", "5", "-s", "10", "-t", "0.5")
	require.NoError(t, err)

	var rep gainReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.InDelta(t, 0.04438877348245229, rep.Gain, 1e-9)
}

func TestGainUsesConfig(t *testing.T) {
	path := writeFile(t, "kgain.yaml", "engine:\n  mode: single-step\n")
	out, _, err := run(t, "", "gain", "--config", path, "-t", "10")
	require.NoError(t, err)

	var rep gainReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, kgain.ModeSingleStep, rep.Mode)
	assert.Equal(t, rep.Gain, rep.Score)
}

func TestGainParams(t *testing.T) {
	params := make([]string, len(kgain.ReferenceParametersV4))
	for i, w := range kgain.ReferenceParametersV4 {
		params[i] = strconv.FormatFloat(w, 'g', -1, 64)
	}
	out, _, err := run(t, "", "gain", "--params", strings.Join(params, ","), "-d", "1", "-s", "1", "-t", "10")
	require.NoError(t, err)

	var rep gainReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, kgain.V4, rep.Model)
	assert.InDelta(t, 0.317056430374, rep.Gain, 1e-9)
}

func TestGainErrors(t *testing.T) {
	_, _, err := run(t, "", "gain", "--stability=-1")
	assert.ErrorIs(t, err, kgain.ErrInvalidState)

	_, _, err = run(t, "", "gain", "--elapsed=-1")
	assert.ErrorIs(t, err, kgain.ErrInvalidElapsed)

	_, _, err = run(t, "", "gain", "--params", "1,2,3")
	assert.ErrorIs(t, err, kgain.ErrInvalidParameters)

	_, _, err = run(t, "", "gain", "extra")
	assert.Error(t, err)
}

func TestSimulate(t *testing.T) {
	out, _, err := run(t, "", "simulate", "-t", "10")
	require.NoError(t, err)

	var rep simulateReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.InDelta(t, 0.1, rep.Outcome.Forget.Probability, 1e-9)
	assert.InDelta(t, 8.341762369296838, rep.Outcome.Forget.State.Difficulty, 1e-9)
	assert.InDelta(t, 1.3919869729546932, rep.Outcome.Forget.State.Stability, 1e-9)
	assert.InDelta(t, 0.9, rep.Outcome.Recall.Probability, 1e-9)
	assert.InDelta(t, 32.02672948198673, rep.Outcome.Recall.State.Stability, 1e-9)
	assert.Zero(t, rep.Retention)
}

func TestSimulateRetention(t *testing.T) {
	out, _, err := run(t, "", "simulate", "-t", "10", "--retention", "0.8")
	require.NoError(t, err)

	var rep simulateReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 0.8, rep.Retention)
	assert.InDelta(t, 33.159597862309816, rep.Interval, 1e-9)
	assert.InDelta(t, 0.2, rep.Outcome.Forget.Probability, 1e-9)
	assert.InDelta(t, 0.8, rep.Outcome.Recall.Probability, 1e-9)

	_, _, err = run(t, "", "simulate", "--retention", "1")
	assert.ErrorIs(t, err, kgain.ErrInvalidConfig)
}

func TestIntegral(t *testing.T) {
	m := kgain.DefaultModel()

	out, _, err := run(t, "", "integral", "-s", "10", "--begin", "30", "--end", "365")
	require.NoError(t, err)
	var rep integralReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	want, err := kgain.KnowledgeIntegralTol(10, m.Decay(), m.Factor(), kgain.Window{Begin: 30, End: 365}, kgain.DefaultDiscountRate, 1e-14)
	require.NoError(t, err)
	assert.Equal(t, want, rep.Knowledge)
	require.NotNil(t, rep.End)
	assert.Equal(t, 365.0, *rep.End)

	out, _, err = run(t, "", "integral", "-s", "10")
	require.NoError(t, err)
	rep = integralReport{}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Nil(t, rep.End)
	want, err = kgain.KnowledgeIntegralTol(10, m.Decay(), m.Factor(), kgain.From(0), kgain.DefaultDiscountRate, 1e-14)
	require.NoError(t, err)
	assert.Equal(t, want, rep.Knowledge)

	_, _, err = run(t, "", "integral", "--begin", "10", "--end", "5")
	assert.ErrorIs(t, err, kgain.ErrInvalidWindow)
}

const itemsYAML = `
- id: due
  state: {difficulty: 5, stability: 10}
  elapsed_days: 10
- id: fresh
  state: {difficulty: 5, stability: 10}
  elapsed_days: 1
- id: new
  state: {difficulty: 1, stability: 0}
`

func TestRank(t *testing.T) {
	path := writeFile(t, "items.yaml", itemsYAML)
	out, _, err := run(t, "", "rank", "--input", path)
	require.NoError(t, err)

	var res ranker.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Items, 3)
	assert.Equal(t, kgain.ModeLookahead, res.Mode)
	for i := 1; i < len(res.Items); i++ {
		assert.GreaterOrEqual(t, res.Items[i-1].Score, res.Items[i].Score)
	}
	for _, s := range res.Items {
		if s.ID == "due" {
			assert.InDelta(t, 0.092533443754, s.Score, 1e-9)
		}
	}
}

func TestRankStdinJSONTop(t *testing.T) {
	in := `[{"id":"a","state":{"difficulty":5,"stability":10},"elapsed_days":10},
	        {"id":"b","state":{"difficulty":5,"stability":10},"elapsed_days":40}]`
	out, _, err := run(t, in, "rank", "-n", "1", "--workers", "1")
	require.NoError(t, err)

	var res ranker.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Items, 1)
}

func TestRankMetrics(t *testing.T) {
	path := writeFile(t, "items.yaml", itemsYAML)
	_, errOut, err := run(t, "", "rank", "-i", path, "--metrics")
	require.NoError(t, err)
	assert.Contains(t, errOut, "kgain_memo_misses_total")
	assert.Contains(t, errOut, `table="simulate"`)
}

func TestRankErrors(t *testing.T) {
	_, _, err := run(t, "", "rank", "-i", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = run(t, "- id: x\n  bogus: 1\n", "rank")
	assert.ErrorContains(t, err, "decode items")

	_, _, err = run(t, "- id: bad\n  state: {difficulty: 5, stability: -1}\n", "rank")
	assert.ErrorIs(t, err, kgain.ErrInvalidState)
	assert.ErrorContains(t, err, `"bad"`)
}

func TestRankEmpty(t *testing.T) {
	out, _, err := run(t, "", "rank")
	require.NoError(t, err)
	var res ranker.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Empty(t, res.Items)
}

func TestBadConfig(t *testing.T) {
	path := writeFile(t, "kgain.yaml", "engine:\n  discount_rate: 2\n")
	_, _, err := run(t, "", "gain", "--config", path)
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, _, err = run(t, "", "gain", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewLogger(t *testing.T) {
	for _, lc := range []config.LogConfig{{Level: "debug"}, {Level: "warn", Development: true}} {
		logger, err := newLogger(lc)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
	_, err := newLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
	assert.Error(t, writeJSON(io.Discard, func() {}))
}

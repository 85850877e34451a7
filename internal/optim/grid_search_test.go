package optim

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/experiment"
)

func builder(t *testing.T, fail func(map[string]float64) bool) func(map[string]float64) (*experiment.Experiment, error) {
	return func(params map[string]float64) (*experiment.Experiment, error) {
		if fail != nil && fail(params) {
			return nil, errors.New("rejected")
		}
		cfg := config.GetPreset("nve", "liquid")
		cfg.System.N = 27
		cfg.System.Workers = 1
		cfg.Run.Steps = 10
		cfg.Run.Period = 5
		for k, v := range params {
			if err := ApplyParam(cfg, k, v); err != nil {
				t.Fatal(err)
			}
		}
		return experiment.Build(cfg, nil, nil)
	}
}

func TestGridSearchVisitsEveryPoint(t *testing.T) {
	g := NewGridSearch([]string{"dt", "density"}, [][]float64{{0.001, 0.002}, {0.7, 0.8, 0.9}})
	res, err := g.Search(context.Background(), builder(t, nil), "total_energy")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trials) != 6 {
		t.Errorf("expected 6 trials, got %d", len(res.Trials))
	}
	for _, tr := range res.Trials {
		if tr.Err != nil {
			t.Errorf("trial %v failed: %v", tr.Params, tr.Err)
		}
		if tr.Value < res.BestValue {
			t.Errorf("trial %v beats the reported best %f", tr.Params, res.BestValue)
		}
	}
}

func TestGridSearchSkipsFailedPoints(t *testing.T) {
	g := NewGridSearch([]string{"dt"}, [][]float64{{0.001, 0.002}})
	res, err := g.Search(context.Background(), builder(t, func(p map[string]float64) bool { return p["dt"] == 0.001 }), "temperature")
	if err != nil {
		t.Fatal(err)
	}
	if res.Best["dt"] != 0.002 {
		t.Errorf("expected the only completed point to win, got %v", res.Best)
	}
	if res.Trials[0].Err == nil {
		t.Error("expected the failed trial to keep its error")
	}
}

func TestGridSearchErrors(t *testing.T) {
	g := NewGridSearch([]string{"dt"}, [][]float64{{0.001}})
	if _, err := g.Search(context.Background(), builder(t, func(map[string]float64) bool { return true }), "temperature"); err == nil {
		t.Error("expected error when nothing completes")
	}

	res, err := g.Search(context.Background(), builder(t, nil), "nonexistent")
	if err == nil || !errors.Is(res.Trials[0].Err, dynamo.ErrConfiguration) {
		t.Errorf("expected unrecorded metric to fail the trial, got %v / %v", err, res.Trials)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Search(ctx, builder(t, nil), "temperature"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	if _, err := NewGridSearch([]string{"dt", "T"}, [][]float64{{1}}).Search(context.Background(), builder(t, nil), "temperature"); err == nil {
		t.Error("expected error for mismatched ranges")
	}
}

func TestParseGrid(t *testing.T) {
	name, vals, err := ParseGrid("dt=0.001, 0.002,0.004")
	if err != nil {
		t.Fatal(err)
	}
	if name != "dt" || len(vals) != 3 || vals[2] != 0.004 {
		t.Errorf("unexpected grid %s=%v", name, vals)
	}

	for _, bad := range []string{"dt", "=1,2", "dt=", "dt=1,x"} {
		if _, _, err := ParseGrid(bad); !errors.Is(err, dynamo.ErrConfiguration) {
			t.Errorf("ParseGrid(%q): expected configuration error, got %v", bad, err)
		}
	}
}

func TestApplyParam(t *testing.T) {
	cfg := config.GetPreset("bdnvt", "split")
	if err := ApplyParam(cfg, "T", 2.5); err != nil {
		t.Fatal(err)
	}
	for _, m := range cfg.Methods {
		if m.T == nil || m.T.Eval(0) != 2.5 {
			t.Errorf("%s: expected T=2.5", m.Kind)
		}
	}

	npt := config.GetPreset("npt", "expand")
	if err := ApplyParam(npt, "tau", 0.7); err != nil {
		t.Fatal(err)
	}
	if npt.Mode.Tau != 0.7 {
		t.Errorf("expected mode tau 0.7, got %f", npt.Mode.Tau)
	}

	if err := ApplyParam(cfg, "gamma", 1); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

// Package automation runs several scripts in one go: a scenario file of
// sequential steps, or an ensemble of one script over many seeds.
package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine/cpu"
	"github.com/san-kum/mdsim/internal/experiment"
	"github.com/san-kum/mdsim/internal/metrics"
	"github.com/san-kum/mdsim/internal/storage"
)

// Scenario defines a scripted simulation sequence.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep names a script (a file relative to the scenario, or a
// group/name preset) and optional overrides.
type ScenarioStep struct {
	Script string  `yaml:"script,omitempty"`
	Preset string  `yaml:"preset,omitempty"`
	Steps  uint64  `yaml:"steps,omitempty"`
	Dt     float64 `yaml:"dt,omitempty"`
	Seed   int64   `yaml:"seed,omitempty"`
	SaveAs string  `yaml:"save_as,omitempty"`

	dir string
}

type Outcome struct {
	Step   int
	Name   string
	RunID  string
	Result *experiment.Result
}

// LoadScenario loads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%w: scenario %s has no steps", dynamo.ErrConfiguration, path)
	}
	for i := range scenario.Steps {
		scenario.Steps[i].dir = filepath.Dir(path)
	}
	return &scenario, nil
}

func (s ScenarioStep) config() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case s.Script != "" && s.Preset != "":
		return nil, fmt.Errorf("%w: step names both a script and a preset", dynamo.ErrConfiguration)
	case s.Script != "":
		path := s.Script
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.dir, path)
		}
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	case s.Preset != "":
		group, name, _ := strings.Cut(s.Preset, "/")
		if cfg = config.GetPreset(group, name); cfg == nil {
			return nil, fmt.Errorf("%w: unknown preset %q", dynamo.ErrConfiguration, s.Preset)
		}
	default:
		return nil, fmt.Errorf("%w: step needs a script or a preset", dynamo.ErrConfiguration)
	}

	if s.Steps > 0 {
		cfg.Run.Steps = s.Steps
	}
	if s.Dt > 0 {
		cfg.Mode.Dt = s.Dt
	}
	if s.Seed != 0 {
		cfg.System.Seed = s.Seed
	}
	if s.SaveAs != "" {
		cfg.Name = s.SaveAs
	}
	return cfg, cfg.Validate()
}

// RunScenario executes all steps in order, saving each to store when it
// is non-nil. It stops at the first failing step.
func RunScenario(ctx context.Context, scenario *Scenario, reg *experiment.Registry, store storage.Store, logger kitlog.Logger) ([]Outcome, error) {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	outcomes := make([]Outcome, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg, err := step.config()
		if err != nil {
			return outcomes, fmt.Errorf("step %d: %w", i+1, err)
		}
		level.Info(logger).Log("op", "scenario", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps), "name", cfg.Name)

		exp, err := experiment.Build(cfg, reg, logger)
		if err != nil {
			return outcomes, fmt.Errorf("step %d setup: %w", i+1, err)
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return outcomes, fmt.Errorf("step %d run: %w", i+1, err)
		}

		out := Outcome{Step: i + 1, Name: cfg.Name, Result: result}
		if store != nil {
			meta, thermo := exp.Record(result)
			if out.RunID, err = store.Save(ctx, meta, thermo); err != nil {
				return outcomes, fmt.Errorf("step %d save: %w", i+1, err)
			}
		}
		outcomes = append(outcomes, out)
	}

	return outcomes, nil
}

// EnsembleConfig runs one script over consecutive seeds.
type EnsembleConfig struct {
	Base     *config.Config
	Trials   int
	BaseSeed int64
	Metric   string
}

type Trial struct {
	Seed   int64
	Value  float64
	Stable bool
	Err    error
}

type EnsembleResult struct {
	Trials   []Trial
	Stable   int
	Unstable int
	Mean     float64
	StdDev   float64
}

// RunEnsemble runs cfg.Trials copies of the base script, seeding the i-th
// with BaseSeed+i. A trial that diverges counts as unstable; any other
// failure aborts the ensemble.
func RunEnsemble(ctx context.Context, cfg EnsembleConfig, reg *experiment.Registry, logger kitlog.Logger) (*EnsembleResult, error) {
	if cfg.Trials <= 0 {
		return nil, fmt.Errorf("%w: ensemble needs at least one trial", dynamo.ErrConfiguration)
	}
	if cfg.Metric == "" {
		cfg.Metric = "temperature"
	}
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}

	res := &EnsembleResult{Trials: make([]Trial, 0, cfg.Trials)}
	var values []float64

	for i := 0; i < cfg.Trials; i++ {
		script, err := cfg.Base.Clone()
		if err != nil {
			return nil, err
		}
		script.System.Seed = cfg.BaseSeed + int64(i)
		if len(script.Run.Metrics) == 0 {
			script.Run.Metrics = metrics.Default()
		}
		if !slices.Contains(script.Run.Metrics, cfg.Metric) {
			script.Run.Metrics = append(script.Run.Metrics, cfg.Metric)
		}

		trial := Trial{Seed: script.System.Seed}
		exp, err := experiment.Build(script, reg, logger)
		if err != nil {
			return nil, err
		}
		result, err := exp.Run(ctx)
		switch {
		case errors.Is(err, cpu.ErrUnstable):
			trial.Err = err
			res.Unstable++
		case err != nil:
			return nil, fmt.Errorf("seed %d: %w", trial.Seed, err)
		default:
			v, ok := result.Metrics[cfg.Metric]
			if !ok {
				return nil, fmt.Errorf("%w: metric %q was not recorded", dynamo.ErrConfiguration, cfg.Metric)
			}
			trial.Value, trial.Stable = v, true
			values = append(values, v)
			res.Stable++
		}
		res.Trials = append(res.Trials, trial)
		level.Debug(logger).Log("op", "ensemble", "seed", trial.Seed, "stable", trial.Stable)
	}

	switch len(values) {
	case 0:
	case 1:
		res.Mean = values[0]
	default:
		res.Mean, res.StdDev = stat.MeanStdDev(values, nil)
	}
	return res, nil
}

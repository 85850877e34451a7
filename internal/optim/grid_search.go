// Package optim sweeps script parameters over a grid and picks the
// setting that minimizes a recorded metric.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/experiment"
	"github.com/san-kum/mdsim/internal/variant"
)

type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type Result struct {
	Best      map[string]float64
	BestValue float64
	Trials    []Trial
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Search runs one experiment per grid point. Failed points are kept in
// Result.Trials with their error; Search itself fails only when the
// context ends or no point succeeded.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (*Result, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, fmt.Errorf("%d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}

	res := &Result{BestValue: math.Inf(1)}
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), buildExperiment, metricName, res); err != nil {
		return res, err
	}
	if res.Best == nil {
		return res, errors.New("no grid point completed")
	}
	return res, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	metricName string,
	res *Result,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		trial := Trial{Params: current, Value: math.NaN()}
		trial.Err = func() error {
			exp, err := buildExperiment(current)
			if err != nil {
				return err
			}
			result, err := exp.Run(ctx)
			if err != nil {
				return err
			}
			val, ok := result.Metrics[metricName]
			if !ok {
				return fmt.Errorf("%w: metric %q was not recorded", dynamo.ErrConfiguration, metricName)
			}
			trial.Value = val
			return nil
		}()
		if errors.Is(trial.Err, context.Canceled) || errors.Is(trial.Err, context.DeadlineExceeded) {
			return trial.Err
		}
		res.Trials = append(res.Trials, trial)

		if trial.Err == nil && trial.Value < res.BestValue {
			res.BestValue = trial.Value
			res.Best = current
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, buildExperiment, metricName, res); err != nil {
			return err
		}
	}
	return nil
}

// ParseGrid reads "name=v1,v2,..." into a parameter name and its values.
func ParseGrid(s string) (string, []float64, error) {
	name, list, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || list == "" {
		return "", nil, fmt.Errorf("%w: grid %q must look like name=v1,v2", dynamo.ErrConfiguration, s)
	}
	var vals []float64
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, fmt.Errorf("%w: grid %q: %v", dynamo.ErrConfiguration, s, err)
		}
		vals = append(vals, v)
	}
	return name, vals, nil
}

// Params lists what ApplyParam understands.
var Params = []string{"density", "dt", "limit", "T", "tau"}

// ApplyParam sets one sweepable value on cfg. T, tau and limit apply to
// every method; T and tau also apply to an npt mode.
func ApplyParam(cfg *config.Config, name string, v float64) error {
	switch name {
	case "dt":
		cfg.Mode.Dt = v
	case "density":
		cfg.System.Density = v
	case "T":
		t := variant.Constant(v)
		for i := range cfg.Methods {
			cfg.Methods[i].T = &t
		}
		if cfg.Mode.T != nil {
			cfg.Mode.T = &t
		}
	case "tau":
		for i := range cfg.Methods {
			cfg.Methods[i].Tau = v
		}
		if cfg.Mode.Kind == "npt" {
			cfg.Mode.Tau = v
		}
	case "limit":
		for i := range cfg.Methods {
			cfg.Methods[i].Limit = v
		}
	default:
		return fmt.Errorf("%w: cannot sweep %q (have %s)", dynamo.ErrConfiguration, name, strings.Join(Params, ", "))
	}
	return nil
}

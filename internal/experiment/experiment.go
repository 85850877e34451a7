package experiment

import (
	"context"
	"fmt"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/engine/cpu"
	"github.com/san-kum/mdsim/internal/integrate"
	"github.com/san-kum/mdsim/internal/metrics"
	"github.com/san-kum/mdsim/internal/sim"
	"github.com/san-kum/mdsim/internal/storage"
)

// Experiment is a script built against the CPU engine: a system, the
// simulation context holding its forces and methods, and a recorder
// sampling the run.
type Experiment struct {
	cfg      *config.Config
	system   *cpu.System
	sim      *sim.Context
	mode     sim.Integrator
	methods  []integrate.Method
	forces   []sim.Force
	recorder *metrics.Recorder
}

type Result struct {
	Name    string
	Steps   []uint64
	Times   []float64
	Series  map[string][]float64
	Metrics map[string]float64
	Elapsed time.Duration
}

// Build validates cfg and creates everything it names. Nothing is attached
// to the engine until Run.
func Build(cfg *config.Config, reg *Registry, logger kitlog.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = NewRegistry()
	}
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}

	sc := cfg.System
	system, err := cpu.New(cpu.Options{
		N:           sc.N,
		Types:       sc.Types,
		Density:     sc.Density,
		Temperature: sc.Temperature,
		Mass:        sc.Mass,
		Diameter:    sc.Diameter,
		Seed:        sc.Seed,
		Workers:     sc.Workers,
		Validate:    true,
	})
	if err != nil {
		return nil, err
	}

	e := &Experiment{cfg: cfg, system: system, sim: sim.New(system, logger)}

	for i, fc := range cfg.Forces {
		newForce, err := reg.GetForce(fc.Kind)
		if err != nil {
			return nil, fmt.Errorf("forces[%d]: %w", i, err)
		}
		f, err := newForce(e.sim, fc)
		if err != nil {
			return nil, fmt.Errorf("forces[%d]: %w", i, err)
		}
		e.forces = append(e.forces, f)
	}

	newMode, err := reg.GetMode(cfg.Mode.Kind)
	if err != nil {
		return nil, fmt.Errorf("mode: %w", err)
	}
	if e.mode, err = newMode(e.sim, cfg.Mode); err != nil {
		return nil, fmt.Errorf("mode: %w", err)
	}

	for i, mc := range cfg.Methods {
		newMethod, err := reg.GetMethod(mc.Kind)
		if err != nil {
			return nil, fmt.Errorf("methods[%d]: %w", i, err)
		}
		g, err := ResolveGroup(e.sim, mc.Group)
		if err != nil {
			return nil, fmt.Errorf("methods[%d]: %w", i, err)
		}
		m, err := newMethod(e.sim, g, mc)
		if err != nil {
			return nil, fmt.Errorf("methods[%d]: %w", i, err)
		}
		e.methods = append(e.methods, m)
	}

	names := cfg.Run.Metrics
	if len(names) == 0 {
		names = metrics.Default()
	}
	if e.recorder, err = metrics.NewRecorderByName(names...); err != nil {
		return nil, err
	}
	period := cfg.Run.Period
	if period == 0 {
		period = config.DefaultPeriod
	}
	system.AddAnalyzer(e.recorder, period)

	level.Debug(logger).Log("op", "build", "name", cfg.Name, "forces", len(e.forces), "methods", len(e.methods))
	return e, nil
}

func (e *Experiment) Config() *config.Config      { return e.cfg }
func (e *Experiment) System() *cpu.System         { return e.system }
func (e *Experiment) Context() *sim.Context       { return e.sim }
func (e *Experiment) Mode() sim.Integrator        { return e.mode }
func (e *Experiment) Methods() []integrate.Method { return e.methods }
func (e *Experiment) Forces() []sim.Force         { return e.forces }
func (e *Experiment) Recorder() *metrics.Recorder { return e.recorder }
func (e *Experiment) ModeName() string            { return nameOf(e.mode) }

func nameOf(i sim.Integrator) string {
	if n, ok := i.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", i)
}

// Run advances the script's configured step count.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	return e.RunSteps(ctx, e.cfg.Run.Steps)
}

// RunSteps refreshes the active mode and advances steps. Samples from
// earlier calls are kept, so Result covers the whole history.
func (e *Experiment) RunSteps(ctx context.Context, steps uint64) (*Result, error) {
	start := time.Now()
	err := e.sim.Run(ctx, steps)
	return e.result(time.Since(start)), err
}

func (e *Experiment) result(elapsed time.Duration) *Result {
	series := make(map[string][]float64)
	for _, n := range e.recorder.Names() {
		series[n] = append([]float64(nil), e.recorder.Series(n)...)
	}
	return &Result{
		Name:    e.cfg.Name,
		Steps:   append([]uint64(nil), e.recorder.Steps()...),
		Times:   append([]float64(nil), e.recorder.Times()...),
		Series:  series,
		Metrics: e.recorder.Values(),
		Elapsed: elapsed,
	}
}

// Record converts a result into what a store persists.
func (e *Experiment) Record(res *Result) (storage.RunMetadata, *storage.Thermo) {
	methods := make([]string, len(e.methods))
	for i, m := range e.methods {
		methods[i] = fmt.Sprintf("%s(%s)", m.Kind(), m.Group().Name())
	}
	var last uint64
	if n := len(res.Steps); n > 0 {
		last = res.Steps[n-1]
	}
	meta := storage.RunMetadata{
		Name:    res.Name,
		Mode:    e.ModeName(),
		Methods: methods,
		Seed:    e.cfg.System.Seed,
		N:       e.cfg.System.N,
		Dt:      e.cfg.Mode.Dt,
		Steps:   last,
		Elapsed: res.Elapsed,
		Metrics: res.Metrics,
	}
	thermo := &storage.Thermo{
		Steps:  res.Steps,
		Times:  res.Times,
		Names:  e.recorder.Names(),
		Values: res.Series,
	}
	return meta, thermo
}

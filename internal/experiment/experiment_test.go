package experiment

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine/enginetest"
	"github.com/san-kum/mdsim/internal/integrate"
	"github.com/san-kum/mdsim/internal/sim"
	"github.com/san-kum/mdsim/internal/storage"
)

func smallPreset(t *testing.T, group, name string) *config.Config {
	t.Helper()
	cfg := config.GetPreset(group, name)
	if cfg == nil {
		t.Fatalf("missing preset %s/%s", group, name)
	}
	cfg.System.N = 64
	cfg.System.Workers = 2
	cfg.Run.Steps = 20
	cfg.Run.Period = 5
	return cfg
}

func TestBuildAndRunPresets(t *testing.T) {
	for _, group := range config.ListGroups() {
		for _, name := range config.ListPresets(group) {
			t.Run(group+"/"+name, func(t *testing.T) {
				cfg := smallPreset(t, group, name)
				exp, err := Build(cfg, nil, nil)
				if err != nil {
					t.Fatalf("build: %v", err)
				}
				if len(exp.Methods()) != len(cfg.Methods) {
					t.Errorf("expected %d methods, got %d", len(cfg.Methods), len(exp.Methods()))
				}

				res, err := exp.Run(context.Background())
				if err != nil {
					t.Fatalf("run: %v", err)
				}
				if len(res.Steps) != 4 || res.Steps[3] != 20 {
					t.Errorf("expected samples at 5..20, got %v", res.Steps)
				}
				for n, s := range res.Series {
					for _, v := range s {
						if math.IsNaN(v) || math.IsInf(v, 0) {
							t.Fatalf("%s diverged: %v", n, s)
						}
					}
				}
			})
		}
	}
}

func TestBuildUnknownKinds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"mode", func(c *config.Config) { c.Mode.Kind = "langevin" }},
		{"method", func(c *config.Config) { c.Methods[0].Kind = "langevin" }},
		{"force", func(c *config.Config) { c.Forces[0].Kind = "yukawa" }},
		{"group type", func(c *config.Config) { c.Methods[0].Group = "type:Z" }},
		{"group range", func(c *config.Config) { c.Methods[0].Group = "range:0-1000" }},
		{"coefficient", func(c *config.Config) { c.Forces[0].Coeffs[0].Sigma = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallPreset(t, "nve", "liquid")
			tt.mutate(cfg)
			if _, err := Build(cfg, NewRegistry(), nil); !errors.Is(err, dynamo.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestRunRequiresMethodsUnderStandard(t *testing.T) {
	cfg := smallPreset(t, "nve", "liquid")
	cfg.Methods = nil

	exp, err := Build(cfg, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := exp.Run(context.Background()); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
	if exp.System().Timestep() != 0 {
		t.Error("system advanced despite failed refresh")
	}
}

func TestRunRejectsMethodsUnderNPT(t *testing.T) {
	cfg := smallPreset(t, "npt", "expand")
	cfg.Methods = []config.MethodConfig{{Kind: "nve", Group: "all"}}

	exp, err := Build(cfg, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := exp.Run(context.Background()); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}

	if err := exp.Methods()[0].Disable(); err != nil {
		t.Fatal(err)
	}
	if _, err := exp.Run(context.Background()); err != nil {
		t.Errorf("expected run to succeed with the method disabled, got %v", err)
	}
}

func TestRunStepsAccumulates(t *testing.T) {
	exp, err := Build(smallPreset(t, "nvt", "liquid"), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := exp.RunSteps(context.Background(), 10); err != nil {
		t.Fatal(err)
	}
	res, err := exp.RunSteps(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Steps) != 4 {
		t.Errorf("expected 4 samples over both runs, got %v", res.Steps)
	}
	if exp.System().Timestep() != 20 {
		t.Errorf("expected timestep 20, got %d", exp.System().Timestep())
	}
}

func TestRecordSaves(t *testing.T) {
	exp, err := Build(smallPreset(t, "bdnvt", "split"), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	meta, thermo := exp.Record(res)
	if meta.Mode != "standard" || meta.Steps != 20 {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if len(meta.Methods) != 2 || meta.Methods[0] != "nve(type A)" {
		t.Errorf("unexpected methods: %v", meta.Methods)
	}

	store := storage.NewMemoryStore()
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}
	id, err := store.Save(ctx, meta, thermo)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.LoadThermo(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 4 {
		t.Errorf("expected 4 stored samples, got %d", got.Len())
	}
}

func TestResolveGroup(t *testing.T) {
	exp, err := Build(smallPreset(t, "bdnvt", "mixture"), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	g, err := ResolveGroup(exp.Context(), "range:4-9")
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 6 || g.Name() != "range 4-9" {
		t.Errorf("unexpected group %s with %d members", g.Name(), g.Len())
	}

	g, err = ResolveGroup(exp.Context(), "type:B")
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 32 {
		t.Errorf("expected 32 B particles, got %d", g.Len())
	}

	if _, err := ResolveGroup(nil, "all"); !errors.Is(err, dynamo.ErrInitialization) {
		t.Errorf("expected initialization error, got %v", err)
	}
}

func TestRegistryLists(t *testing.T) {
	reg := NewRegistry()
	want := map[string][]string{
		"modes":   {"fire", "npt", "standard"},
		"methods": {"bdnvt", "nve", "nvt"},
		"forces":  {"constant", "lj"},
	}
	got := map[string][]string{
		"modes":   reg.ListModes(),
		"methods": reg.ListMethods(),
		"forces":  reg.ListForces(),
	}
	for k, w := range want {
		if len(got[k]) != len(w) {
			t.Errorf("%s: expected %v, got %v", k, w, got[k])
			continue
		}
		for i := range w {
			if got[k][i] != w[i] {
				t.Errorf("%s: expected %v, got %v", k, w, got[k])
			}
		}
	}
}

func TestNPTModeDefaults(t *testing.T) {
	ctx := sim.New(enginetest.New(8), nil)
	newMode, err := NewRegistry().GetMode("npt")
	if err != nil {
		t.Fatal(err)
	}
	m, err := newMode(ctx, config.ModeConfig{Kind: "npt", Dt: 0.005})
	if err != nil {
		t.Fatal(err)
	}

	d := m.Driver().(*enginetest.Driver)
	if d.TauP != config.DefaultTauP || d.Tau != config.DefaultTau {
		t.Errorf("expected tau %g and tau_p %g, got %g and %g", config.DefaultTau, config.DefaultTauP, d.Tau, d.TauP)
	}
	if p := d.P.Eval(0); p != config.DefaultPressure {
		t.Errorf("expected pressure %g, got %g", config.DefaultPressure, p)
	}
	if temp := d.T.Eval(0); temp != config.DefaultTemperature {
		t.Errorf("expected temperature %g, got %g", config.DefaultTemperature, temp)
	}
}

func TestFIREModeOverrides(t *testing.T) {
	ctx := sim.New(enginetest.New(8, "A", "B"), nil)
	newMode, err := NewRegistry().GetMode("fire")
	if err != nil {
		t.Fatal(err)
	}
	m, err := newMode(ctx, config.ModeConfig{Kind: "fire", Dt: 0.01, Group: "type:B", Ftol: 0.05, MinSteps: 3})
	if err != nil {
		t.Fatal(err)
	}

	fire, ok := m.(*integrate.FIRE)
	if !ok {
		t.Fatalf("expected a FIRE mode, got %T", m)
	}
	if fire.Group().Name() != "type B" {
		t.Errorf("unexpected group %s", fire.Group().Name())
	}
	p := fire.Driver().(*enginetest.FIREDriver).Params
	want := integrate.DefaultFIREConfig(nil, 0.01)
	if p.Ftol != 0.05 || p.MinSteps != 3 {
		t.Errorf("overrides not applied: %+v", p)
	}
	if p.Fdec != want.Fdec || p.Finc != want.Finc || p.Nmin != want.Nmin || p.Etol != want.Etol {
		t.Errorf("defaults not kept: %+v", p)
	}

	if _, err := newMode(ctx, config.ModeConfig{Kind: "fire", Dt: 0.01, Group: "type:C"}); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected configuration error for unknown group, got %v", err)
	}
}

func TestFIREPresetRelaxes(t *testing.T) {
	cfg := smallPreset(t, "fire", "minimize")
	cfg.System.Temperature = 0
	cfg.Run.Steps = 200
	cfg.Run.Period = 50

	exp, err := Build(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if exp.ModeName() != "fire" || len(exp.Methods()) != 0 {
		t.Fatalf("unexpected build: mode %s, %d methods", exp.ModeName(), len(exp.Methods()))
	}
	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	pe := res.Series["potential_energy"]
	if len(pe) != 4 {
		t.Fatalf("expected 4 samples, got %v", pe)
	}
	if pe[3] > pe[0]+1e-9 {
		t.Errorf("potential energy rose from %f to %f", pe[0], pe[3])
	}

	if _, err := integrate.NewNVE(exp.Context(), exp.System().GroupAll(), integrate.Limit{}); err != nil {
		t.Fatal(err)
	}
	if _, err := exp.Run(context.Background()); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected configuration error with a method under fire, got %v", err)
	}
}

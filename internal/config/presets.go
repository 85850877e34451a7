package config

import (
	"sort"

	"github.com/san-kum/mdsim/internal/variant"
)

func vp(v variant.Variant) *variant.Variant { return &v }

func ljAA() []ForceConfig {
	return []ForceConfig{{
		Kind:   "lj",
		RCut:   DefaultRCut,
		Coeffs: []PairCoeff{{A: "A", B: "A", Epsilon: 1.0, Sigma: 1.0}},
	}}
}

func ljAB() []ForceConfig {
	return []ForceConfig{{
		Kind: "lj",
		RCut: DefaultRCut,
		Coeffs: []PairCoeff{
			{A: "A", B: "A", Epsilon: 1.0, Sigma: 1.0},
			{A: "A", B: "B", Epsilon: 1.5, Sigma: 0.8},
			{A: "B", B: "B", Epsilon: 0.5, Sigma: 0.88},
		},
	}}
}

func system(n int, density, temp float64, types ...string) SystemConfig {
	if len(types) == 0 {
		types = []string{"A"}
	}
	return SystemConfig{N: n, Types: types, Density: density, Temperature: temp, Mass: 1, Diameter: 1, Seed: 1}
}

// Presets are ready-made scripts, grouped by ensemble.
var Presets = map[string]map[string]func() *Config{
	"nve": {
		"liquid": func() *Config {
			return &Config{
				Name: "nve/liquid", System: system(216, 0.8, 1.0), Forces: ljAA(),
				Mode:    ModeConfig{Kind: "standard", Dt: 0.005},
				Methods: []MethodConfig{{Kind: "nve", Group: "all"}},
				Run:     RunConfig{Steps: 2000, Period: 10},
			}
		},
		"relax": func() *Config {
			return &Config{
				Name: "nve/relax", System: system(216, 1.1, 0.5), Forces: ljAA(),
				Mode:    ModeConfig{Kind: "standard", Dt: 0.002},
				Methods: []MethodConfig{{Kind: "nve", Group: "all", Limit: 0.01}},
				Run:     RunConfig{Steps: 500, Period: 5},
			}
		},
	},
	"nvt": {
		"liquid": func() *Config {
			return &Config{
				Name: "nvt/liquid", System: system(216, 0.8, 1.0), Forces: ljAA(),
				Mode:    ModeConfig{Kind: "standard", Dt: 0.005},
				Methods: []MethodConfig{{Kind: "nvt", Group: "all", T: vp(variant.Constant(1.2)), Tau: DefaultTau}},
				Run:     RunConfig{Steps: 4000, Period: 20},
			}
		},
		"quench": func() *Config {
			ramp := variant.MustLinear(variant.Point{Step: 0, Value: 2.0}, variant.Point{Step: 5000, Value: 0.5})
			return &Config{
				Name: "nvt/quench", System: system(216, 0.8, 2.0), Forces: ljAA(),
				Mode:    ModeConfig{Kind: "standard", Dt: 0.005},
				Methods: []MethodConfig{{Kind: "nvt", Group: "all", T: vp(ramp), Tau: DefaultTau}},
				Run:     RunConfig{Steps: 5000, Period: 25},
			}
		},
	},
	"bdnvt": {
		"mixture": func() *Config {
			return &Config{
				Name: "bdnvt/mixture", System: system(250, 1.2, 1.0, "A", "B"), Forces: ljAB(),
				Mode: ModeConfig{Kind: "standard", Dt: 0.003},
				Methods: []MethodConfig{{
					Kind: "bdnvt", Group: "all", T: vp(variant.Constant(1.0)), Seed: 7,
					Gamma: map[string]float64{"A": 1.0, "B": 2.0},
				}},
				Run: RunConfig{Steps: 3000, Period: 15},
			}
		},
		"split": func() *Config {
			return &Config{
				Name: "bdnvt/split", System: system(250, 1.2, 1.0, "A", "B"), Forces: ljAB(),
				Mode: ModeConfig{Kind: "standard", Dt: 0.003},
				Methods: []MethodConfig{
					{Kind: "nve", Group: "type:A"},
					{Kind: "bdnvt", Group: "type:B", T: vp(variant.Constant(1.5)), Seed: 3},
				},
				Run: RunConfig{Steps: 3000, Period: 15},
			}
		},
	},
	"fire": {
		"minimize": func() *Config {
			return &Config{
				Name: "fire/minimize", System: system(216, 0.9, 1.0), Forces: ljAA(),
				Mode: ModeConfig{Kind: "fire", Dt: 0.005, Group: "all", Ftol: 1e-2, Etol: 1e-6},
				Run:  RunConfig{Steps: 2000, Period: 10},
			}
		},
	},
	"npt": {
		"expand": func() *Config {
			return &Config{
				Name: "npt/expand", System: system(216, 0.9, 1.5), Forces: ljAA(),
				Mode: ModeConfig{
					Kind: "npt", Dt: 0.004,
					T: vp(variant.Constant(1.5)), Tau: DefaultTau,
					P: vp(variant.Constant(0.5)), TauP: 1.0,
				},
				Run: RunConfig{Steps: 3000, Period: 20},
			}
		},
	},
}

// GetPreset returns a fresh copy of a preset, or nil.
func GetPreset(group, name string) *Config {
	byName, ok := Presets[group]
	if !ok {
		return nil
	}
	build, ok := byName[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets(group string) []string {
	byName, ok := Presets[group]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListGroups() []string {
	groups := make([]string, 0, len(Presets))
	for g := range Presets {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

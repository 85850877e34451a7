package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/variant"
)

const (
	DefaultN           = 216
	DefaultDensity     = 0.8
	DefaultTemperature = 1.0
	DefaultDt          = 0.005
	DefaultSteps       = 2000
	DefaultPeriod      = 10
	DefaultRCut        = 2.5
	DefaultTau         = 0.5
	DefaultTauP        = 1.0
	DefaultPressure    = 1.0
)

// Config is a simulation script: the system to build, the forces, one
// integrator mode and the integration methods under it.
type Config struct {
	Name    string         `yaml:"name"`
	System  SystemConfig   `yaml:"system"`
	Forces  []ForceConfig  `yaml:"forces"`
	Mode    ModeConfig     `yaml:"mode"`
	Methods []MethodConfig `yaml:"methods"`
	Run     RunConfig      `yaml:"run"`
}

type SystemConfig struct {
	N           int      `yaml:"n"`
	Types       []string `yaml:"types"`
	Density     float64  `yaml:"density"`
	Temperature float64  `yaml:"temperature"`
	Mass        float64  `yaml:"mass"`
	Diameter    float64  `yaml:"diameter"`
	Seed        int64    `yaml:"seed"`
	Workers     int      `yaml:"workers"`
}

type PairCoeff struct {
	A       string  `yaml:"a"`
	B       string  `yaml:"b"`
	Epsilon float64 `yaml:"epsilon"`
	Sigma   float64 `yaml:"sigma"`
	RCut    float64 `yaml:"r_cut,omitempty"`
}

type ForceConfig struct {
	Kind   string      `yaml:"kind"`
	RCut   float64     `yaml:"r_cut,omitempty"`
	Coeffs []PairCoeff `yaml:"coeffs,omitempty"`
	Group  string      `yaml:"group,omitempty"`
	F      []float64   `yaml:"f,omitempty"`
}

// ModeConfig selects the integrator mode. T, Tau, P and TauP apply to npt;
// Group and the remaining fields to fire, where zero keeps the default.
type ModeConfig struct {
	Kind string           `yaml:"kind"`
	Dt   float64          `yaml:"dt"`
	T    *variant.Variant `yaml:"T,omitempty"`
	Tau  float64          `yaml:"tau,omitempty"`
	P    *variant.Variant `yaml:"P,omitempty"`
	TauP float64          `yaml:"tau_p,omitempty"`

	Group      string  `yaml:"group,omitempty"`
	Nmin       uint    `yaml:"nmin,omitempty"`
	Finc       float64 `yaml:"finc,omitempty"`
	Fdec       float64 `yaml:"fdec,omitempty"`
	AlphaStart float64 `yaml:"alpha_start,omitempty"`
	Falpha     float64 `yaml:"falpha,omitempty"`
	Ftol       float64 `yaml:"ftol,omitempty"`
	Etol       float64 `yaml:"etol,omitempty"`
	MinSteps   uint64  `yaml:"min_steps,omitempty"`
}

type MethodConfig struct {
	Kind      string             `yaml:"kind"`
	Group     string             `yaml:"group"`
	T         *variant.Variant   `yaml:"T,omitempty"`
	Tau       float64            `yaml:"tau,omitempty"`
	Limit     float64            `yaml:"limit,omitempty"`
	Seed      int64              `yaml:"seed,omitempty"`
	GammaDiam bool               `yaml:"gamma_diam,omitempty"`
	Gamma     map[string]float64 `yaml:"gamma,omitempty"`
}

type RunConfig struct {
	Steps   uint64   `yaml:"steps"`
	Period  uint64   `yaml:"period"`
	Metrics []string `yaml:"metrics,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Name: "lj-nve",
		System: SystemConfig{
			N:           DefaultN,
			Types:       []string{"A"},
			Density:     DefaultDensity,
			Temperature: DefaultTemperature,
			Mass:        1.0,
			Diameter:    1.0,
			Seed:        1,
		},
		Forces: []ForceConfig{{
			Kind:   "lj",
			RCut:   DefaultRCut,
			Coeffs: []PairCoeff{{A: "A", B: "A", Epsilon: 1.0, Sigma: 1.0}},
		}},
		Mode:    ModeConfig{Kind: "standard", Dt: DefaultDt},
		Methods: []MethodConfig{{Kind: "nve", Group: "all"}},
		Run:     RunConfig{Steps: DefaultSteps, Period: DefaultPeriod},
	}
}

// Parse reads a script over the defaults. Sections present in data replace
// the default sections wholesale.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone deep-copies c through its YAML form.
func (c *Config) Clone() (*Config, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	out := DefaultConfig()
	if err := yaml.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks what can be checked without an engine. Group selectors,
// coefficients and mode/method compatibility are checked when the script is
// built.
func (c *Config) Validate() error {
	if c.System.N <= 0 {
		return fmt.Errorf("%w: system.n must be positive", dynamo.ErrConfiguration)
	}
	if c.System.Density <= 0 {
		return fmt.Errorf("%w: system.density must be positive", dynamo.ErrConfiguration)
	}
	if c.Mode.Kind == "" {
		return fmt.Errorf("%w: mode.kind is required", dynamo.ErrConfiguration)
	}
	if c.Mode.Dt <= 0 {
		return fmt.Errorf("%w: mode.dt must be positive", dynamo.ErrConfiguration)
	}
	for i, f := range c.Forces {
		if f.Kind == "" {
			return fmt.Errorf("%w: forces[%d].kind is required", dynamo.ErrConfiguration, i)
		}
		if len(f.F) != 0 && len(f.F) != 3 {
			return fmt.Errorf("%w: forces[%d].f needs 3 components", dynamo.ErrConfiguration, i)
		}
	}
	for i, m := range c.Methods {
		if m.Kind == "" {
			return fmt.Errorf("%w: methods[%d].kind is required", dynamo.ErrConfiguration, i)
		}
		if m.Limit < 0 {
			return fmt.Errorf("%w: methods[%d].limit must not be negative", dynamo.ErrConfiguration, i)
		}
	}
	return nil
}

// Selector is a parsed group selector: "all", "type:NAME" or
// "range:FIRST-LAST" (inclusive particle indices).
type Selector struct {
	Kind  string
	Type  string
	First int
	Last  int
}

func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "all":
		return Selector{Kind: "all"}, nil
	case strings.HasPrefix(s, "type:"):
		name := strings.TrimSpace(strings.TrimPrefix(s, "type:"))
		if name == "" {
			return Selector{}, fmt.Errorf("%w: empty type in group %q", dynamo.ErrConfiguration, s)
		}
		return Selector{Kind: "type", Type: name}, nil
	case strings.HasPrefix(s, "range:"):
		var first, last int
		if _, err := fmt.Sscanf(strings.TrimPrefix(s, "range:"), "%d-%d", &first, &last); err != nil {
			return Selector{}, fmt.Errorf("%w: bad range in group %q", dynamo.ErrConfiguration, s)
		}
		if first < 0 || last < first {
			return Selector{}, fmt.Errorf("%w: empty range in group %q", dynamo.ErrConfiguration, s)
		}
		return Selector{Kind: "range", First: first, Last: last}, nil
	default:
		return Selector{}, fmt.Errorf("%w: unknown group selector %q", dynamo.ErrConfiguration, s)
	}
}

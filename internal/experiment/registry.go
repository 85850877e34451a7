package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/force"
	"github.com/san-kum/mdsim/internal/integrate"
	"github.com/san-kum/mdsim/internal/sim"
	"github.com/san-kum/mdsim/internal/variant"
)

type (
	ModeFactory   func(ctx *sim.Context, c config.ModeConfig) (sim.Integrator, error)
	MethodFactory func(ctx *sim.Context, g *dynamo.Group, c config.MethodConfig) (integrate.Method, error)
	ForceFactory  func(ctx *sim.Context, c config.ForceConfig) (sim.Force, error)
)

type Registry struct {
	modes   map[string]ModeFactory
	methods map[string]MethodFactory
	forces  map[string]ForceFactory
}

func orDefault(v *variant.Variant, def float64) variant.Variant {
	if v == nil {
		return variant.Constant(def)
	}
	return *v
}

func orTau(tau float64) float64 {
	if tau == 0 {
		return config.DefaultTau
	}
	return tau
}

func limitOf(c config.MethodConfig) integrate.Limit {
	if c.Limit > 0 {
		return integrate.Cap(c.Limit)
	}
	return integrate.Limit{}
}

func NewRegistry() *Registry {
	r := &Registry{
		modes:   make(map[string]ModeFactory),
		methods: make(map[string]MethodFactory),
		forces:  make(map[string]ForceFactory),
	}

	r.modes["standard"] = func(ctx *sim.Context, c config.ModeConfig) (sim.Integrator, error) {
		m, err := integrate.NewStandard(ctx, c.Dt)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	r.modes["npt"] = func(ctx *sim.Context, c config.ModeConfig) (sim.Integrator, error) {
		tauP := c.TauP
		if tauP == 0 {
			tauP = config.DefaultTauP
		}
		m, err := integrate.NewNPT(ctx, integrate.NPTConfig{
			DT:   c.Dt,
			T:    orDefault(c.T, config.DefaultTemperature),
			Tau:  orTau(c.Tau),
			P:    orDefault(c.P, config.DefaultPressure),
			TauP: tauP,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	r.modes["fire"] = func(ctx *sim.Context, c config.ModeConfig) (sim.Integrator, error) {
		g, err := ResolveGroup(ctx, c.Group)
		if err != nil {
			return nil, err
		}
		fc := integrate.DefaultFIREConfig(g, c.Dt)
		if c.Nmin > 0 {
			fc.Nmin = c.Nmin
		}
		if c.MinSteps > 0 {
			fc.MinSteps = c.MinSteps
		}
		for _, o := range []struct {
			dst *float64
			v   float64
		}{
			{&fc.Finc, c.Finc}, {&fc.Fdec, c.Fdec}, {&fc.AlphaStart, c.AlphaStart},
			{&fc.Falpha, c.Falpha}, {&fc.Ftol, c.Ftol}, {&fc.Etol, c.Etol},
		} {
			if o.v != 0 {
				*o.dst = o.v
			}
		}
		m, err := integrate.NewFIRE(ctx, fc)
		if err != nil {
			return nil, err
		}
		return m, nil
	}

	r.methods["nve"] = func(ctx *sim.Context, g *dynamo.Group, c config.MethodConfig) (integrate.Method, error) {
		m, err := integrate.NewNVE(ctx, g, limitOf(c))
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	r.methods["nvt"] = func(ctx *sim.Context, g *dynamo.Group, c config.MethodConfig) (integrate.Method, error) {
		m, err := integrate.NewNVT(ctx, g, orDefault(c.T, config.DefaultTemperature), orTau(c.Tau))
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	r.methods["bdnvt"] = func(ctx *sim.Context, g *dynamo.Group, c config.MethodConfig) (integrate.Method, error) {
		m, err := integrate.NewBDNVT(ctx, g, orDefault(c.T, config.DefaultTemperature), integrate.BDNVTOptions{
			Seed:      c.Seed,
			GammaDiam: c.GammaDiam,
			Limit:     limitOf(c),
		})
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(c.Gamma))
		for name := range c.Gamma {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := m.SetGamma(name, c.Gamma[name]); err != nil {
				return nil, err
			}
		}
		return m, nil
	}

	r.forces["lj"] = func(ctx *sim.Context, c config.ForceConfig) (sim.Force, error) {
		rc := c.RCut
		if rc == 0 {
			rc = config.DefaultRCut
		}
		lj, err := force.NewLJ(ctx, rc)
		if err != nil {
			return nil, err
		}
		for _, pc := range c.Coeffs {
			if err := lj.SetCoeff(pc.A, pc.B, force.LJCoeff{Epsilon: pc.Epsilon, Sigma: pc.Sigma, RCut: pc.RCut}); err != nil {
				return nil, err
			}
		}
		return lj, nil
	}
	r.forces["constant"] = func(ctx *sim.Context, c config.ForceConfig) (sim.Force, error) {
		g, err := ResolveGroup(ctx, c.Group)
		if err != nil {
			return nil, err
		}
		var f dynamo.Vec3
		copy(f[:], c.F)
		c2, err := force.NewConstant(ctx, g, f)
		if err != nil {
			return nil, err
		}
		return c2, nil
	}

	return r
}

func (r *Registry) GetMode(name string) (ModeFactory, error) {
	fn, ok := r.modes[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown integrator mode: %s", dynamo.ErrConfiguration, name)
	}
	return fn, nil
}

func (r *Registry) GetMethod(name string) (MethodFactory, error) {
	fn, ok := r.methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown integration method: %s", dynamo.ErrConfiguration, name)
	}
	return fn, nil
}

func (r *Registry) GetForce(name string) (ForceFactory, error) {
	fn, ok := r.forces[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown force: %s", dynamo.ErrConfiguration, name)
	}
	return fn, nil
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListModes() []string   { return sortedKeys(r.modes) }
func (r *Registry) ListMethods() []string { return sortedKeys(r.methods) }
func (r *Registry) ListForces() []string  { return sortedKeys(r.forces) }

// ResolveGroup turns a selector string into a group from the context's
// system.
func ResolveGroup(ctx *sim.Context, selector string) (*dynamo.Group, error) {
	if !ctx.Initialized() {
		return nil, fmt.Errorf("%w: groups need a system", dynamo.ErrInitialization)
	}
	sel, err := config.ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	sys := ctx.System()

	switch sel.Kind {
	case "type":
		return sys.GroupType(sel.Type)
	case "range":
		if sel.Last >= sys.NumParticles() {
			return nil, fmt.Errorf("%w: group %q runs past particle %d",
				dynamo.ErrConfiguration, selector, sys.NumParticles()-1)
		}
		name := fmt.Sprintf("range %d-%d", sel.First, sel.Last)
		return sys.GroupFilter(name, func(i int) bool { return i >= sel.First && i <= sel.Last }), nil
	default:
		return sys.GroupAll(), nil
	}
}

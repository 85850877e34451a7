package integrate

import (
	"fmt"

	"github.com/go-kit/kit/log/level"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine"
	"github.com/san-kum/mdsim/internal/sim"
)

// FIREConfig configures a FIRE minimizer at construction. DT is the
// largest step the search may take.
type FIREConfig struct {
	DT         float64
	Group      *dynamo.Group
	Nmin       uint
	Finc       float64
	Fdec       float64
	AlphaStart float64
	Falpha     float64
	Ftol       float64
	Etol       float64
	MinSteps   uint64
}

// DefaultFIREConfig fills in the usual FIRE constants for g.
func DefaultFIREConfig(g *dynamo.Group, dt float64) FIREConfig {
	return FIREConfig{
		DT:         dt,
		Group:      g,
		Nmin:       5,
		Finc:       1.1,
		Fdec:       0.5,
		AlphaStart: 0.1,
		Falpha:     0.99,
		Ftol:       1e-1,
		Etol:       1e-5,
		MinSteps:   10,
	}
}

// FIREParams changes a FIRE minimizer. Nil fields are left alone.
type FIREParams struct {
	DT         *float64
	Nmin       *uint
	Finc       *float64
	Fdec       *float64
	AlphaStart *float64
	Falpha     *float64
	Ftol       *float64
	Etol       *float64
	MinSteps   *uint64
}

// FIRE relaxes one group to the nearest potential energy minimum. Like NPT
// it moves the particles itself and refuses integration methods.
type FIRE struct {
	mode
	fire  engine.FIREDriver
	group *dynamo.Group
}

func checkGrowth(finc float64) error {
	if finc <= 1 {
		return fmt.Errorf("%w: finc must be greater than 1, got %g", dynamo.ErrConfiguration, finc)
	}
	return nil
}

func checkFraction(name string, v float64) error {
	if v <= 0 || v >= 1 {
		return fmt.Errorf("%w: %s must be in (0, 1), got %g", dynamo.ErrConfiguration, name, v)
	}
	return nil
}

func (c FIREConfig) validate() error {
	if err := checkDT(c.DT); err != nil {
		return err
	}
	if c.Group == nil {
		return fmt.Errorf("%w: fire needs a particle group", dynamo.ErrConfiguration)
	}
	if err := checkGrowth(c.Finc); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		v    float64
	}{{"fdec", c.Fdec}, {"alpha_start", c.AlphaStart}, {"falpha", c.Falpha}} {
		if err := checkFraction(f.name, f.v); err != nil {
			return err
		}
	}
	if err := checkPositive("ftol", c.Ftol); err != nil {
		return err
	}
	return checkPositive("etol", c.Etol)
}

// NewFIRE creates a FIRE minimizer and makes it the context's active
// integrator.
func NewFIRE(ctx *sim.Context, cfg FIREConfig) (*FIRE, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	d, err := ctx.System().NewFIREDriver(engine.FIREParams{
		Dt:         cfg.DT,
		Group:      cfg.Group,
		Nmin:       cfg.Nmin,
		Finc:       cfg.Finc,
		Fdec:       cfg.Fdec,
		AlphaStart: cfg.AlphaStart,
		Falpha:     cfg.Falpha,
		Ftol:       cfg.Ftol,
		Etol:       cfg.Etol,
		MinSteps:   cfg.MinSteps,
	})
	if err != nil {
		return nil, err
	}

	f := &FIRE{mode: mode{ctx: ctx, name: "fire", driver: d}, fire: d, group: cfg.Group}
	ctx.SetIntegrator(f)
	level.Info(ctx.Logger()).Log("op", "create", "mode", f.name, "group", cfg.Group.Name(), "dt", cfg.DT)
	return f, nil
}

func (f *FIRE) Group() *dynamo.Group { return f.group }

func (f *FIRE) check() error {
	if f == nil || f.fire == nil {
		return fmt.Errorf("%w: integrator mode has no driver", dynamo.ErrState)
	}
	return nil
}

// Converged reports whether the last run met the force and energy
// tolerances.
func (f *FIRE) Converged() bool {
	return f.check() == nil && f.fire.HasConverged()
}

// Reset zeroes the group's velocities and starts a fresh search.
func (f *FIRE) Reset() error {
	if err := f.check(); err != nil {
		return err
	}
	f.fire.Reset()
	level.Info(f.ctx.Logger()).Log("op", "reset", "mode", f.name)
	return nil
}

func (f *FIRE) SetParams(p FIREParams) error {
	if err := f.check(); err != nil {
		return err
	}

	// validate everything before pushing anything
	if p.DT != nil {
		if err := checkDT(*p.DT); err != nil {
			return err
		}
	}
	if p.Finc != nil {
		if err := checkGrowth(*p.Finc); err != nil {
			return err
		}
	}
	for _, fr := range []struct {
		name string
		v    *float64
	}{{"fdec", p.Fdec}, {"alpha_start", p.AlphaStart}, {"falpha", p.Falpha}} {
		if fr.v == nil {
			continue
		}
		if err := checkFraction(fr.name, *fr.v); err != nil {
			return err
		}
	}
	if p.Ftol != nil {
		if err := checkPositive("ftol", *p.Ftol); err != nil {
			return err
		}
	}
	if p.Etol != nil {
		if err := checkPositive("etol", *p.Etol); err != nil {
			return err
		}
	}

	if p.DT != nil {
		f.fire.SetDeltaT(*p.DT)
	}
	if p.Nmin != nil {
		f.fire.SetNmin(*p.Nmin)
	}
	if p.Finc != nil {
		f.fire.SetFinc(*p.Finc)
	}
	if p.Fdec != nil {
		f.fire.SetFdec(*p.Fdec)
	}
	if p.AlphaStart != nil {
		f.fire.SetAlphaStart(*p.AlphaStart)
	}
	if p.Falpha != nil {
		f.fire.SetFalpha(*p.Falpha)
	}
	if p.Ftol != nil {
		f.fire.SetFtol(*p.Ftol)
	}
	if p.Etol != nil {
		f.fire.SetEtol(*p.Etol)
	}
	if p.MinSteps != nil {
		f.fire.SetMinSteps(*p.MinSteps)
	}
	return nil
}

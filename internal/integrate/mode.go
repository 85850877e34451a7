// Package integrate holds the integrator modes and the integration methods
// a user composes before a run.
//
// A mode owns the time step and the engine driver. Methods each advance one
// particle group. Before every run the context asks the active mode to
// refresh: the driver's force and method lists are rebuilt from the
// context's registry.
package integrate

import (
	"fmt"

	"github.com/go-kit/kit/log/level"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine"
	"github.com/san-kum/mdsim/internal/sim"
	"github.com/san-kum/mdsim/internal/variant"
)

// mode is the part shared by every integrator mode.
type mode struct {
	ctx             *sim.Context
	name            string
	driver          engine.Driver
	supportsMethods bool
}

func (m *mode) Name() string          { return m.name }
func (m *mode) Driver() engine.Driver { return m.driver }
func (m *mode) SupportsMethods() bool { return m.supportsMethods }

func (m *mode) established() error {
	if m == nil || m.driver == nil {
		return fmt.Errorf("%w: integrator mode has no driver", dynamo.ErrState)
	}
	return nil
}

// DT returns the current time step.
func (m *mode) DT() float64 {
	if m.established() != nil {
		return 0
	}
	return m.driver.DeltaT()
}

// Refresh pushes the context's enabled forces and methods into the driver.
// Context.Run calls it before every run.
func (m *mode) Refresh() error {
	if err := m.established(); err != nil {
		return err
	}
	return m.ctx.Refresh(m)
}

// Attach rebuilds the driver's force and method lists. Forces go first, and
// each force's coefficients are pushed right after it is attached.
func (m *mode) Attach(forces []sim.Force, methods []sim.Method) error {
	if err := m.established(); err != nil {
		return err
	}
	m.driver.RemoveForceComputes()
	m.driver.RemoveAllIntegrationMethods()

	for i, f := range forces {
		h := f.Handle()
		if h == nil {
			return fmt.Errorf("%w: enabled force #%d has no engine handle", dynamo.ErrInternalInvariant, i)
		}
		m.driver.AddForceCompute(h)
		if err := f.UpdateCoeffs(); err != nil {
			return fmt.Errorf("updating %s coefficients: %w", h.Name(), err)
		}
	}

	if !m.supportsMethods {
		if len(methods) > 0 {
			return fmt.Errorf("%w: %s mode does not take integration methods, %d enabled",
				dynamo.ErrConfiguration, m.name, len(methods))
		}
		return nil
	}

	if len(methods) == 0 {
		return fmt.Errorf("%w: %s mode needs at least one enabled integration method",
			dynamo.ErrConfiguration, m.name)
	}
	for i, mt := range methods {
		h := mt.Handle()
		if h == nil {
			return fmt.Errorf("%w: enabled integration method #%d has no engine handle", dynamo.ErrInternalInvariant, i)
		}
		m.driver.AddIntegrationMethod(h)
	}
	return nil
}

func checkDT(dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", dynamo.ErrConfiguration, dt)
	}
	return nil
}

func checkPositive(name string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %g", dynamo.ErrConfiguration, name, v)
	}
	return nil
}

func checkContext(ctx *sim.Context) error {
	if !ctx.Initialized() {
		return fmt.Errorf("%w: create the system before integrators", dynamo.ErrInitialization)
	}
	return nil
}

// Standard integrates the system with whatever integration methods are
// enabled, one per group.
type Standard struct {
	mode
}

type StandardParams struct {
	DT *float64
}

// NewStandard creates a standard mode and makes it the context's active
// integrator.
func NewStandard(ctx *sim.Context, dt float64) (*Standard, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if err := checkDT(dt); err != nil {
		return nil, err
	}

	d, err := ctx.System().NewTwoStepDriver(dt)
	if err != nil {
		return nil, err
	}

	s := &Standard{mode{ctx: ctx, name: "standard", driver: d, supportsMethods: true}}
	ctx.SetIntegrator(s)
	level.Info(ctx.Logger()).Log("op", "create", "mode", s.name, "dt", dt)
	return s, nil
}

func (s *Standard) SetParams(p StandardParams) error {
	if s == nil {
		return fmt.Errorf("%w: integrator mode has no driver", dynamo.ErrState)
	}
	if err := s.established(); err != nil {
		return err
	}
	if p.DT != nil {
		if err := checkDT(*p.DT); err != nil {
			return err
		}
		s.driver.SetDeltaT(*p.DT)
		level.Info(s.ctx.Logger()).Log("op", "set_params", "mode", s.name, "dt", *p.DT)
	}
	return nil
}

// NPTConfig configures an NPT mode at construction.
type NPTConfig struct {
	DT   float64
	T    variant.Variant
	Tau  float64
	P    variant.Variant
	TauP float64
}

type NPTParams struct {
	DT   *float64
	T    *variant.Variant
	Tau  *float64
	P    *variant.Variant
	TauP *float64
}

// NPT integrates every particle at constant temperature and pressure. It
// drives the particles itself and refuses integration methods.
type NPT struct {
	mode
	npt engine.NPTDriver
}

func NewNPT(ctx *sim.Context, cfg NPTConfig) (*NPT, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if err := checkDT(cfg.DT); err != nil {
		return nil, err
	}
	if err := checkPositive("tau", cfg.Tau); err != nil {
		return nil, err
	}
	if err := checkPositive("tauP", cfg.TauP); err != nil {
		return nil, err
	}

	d, err := ctx.System().NewNPTDriver(engine.NPTParams{
		Dt:   cfg.DT,
		T:    cfg.T,
		Tau:  cfg.Tau,
		P:    cfg.P,
		TauP: cfg.TauP,
	})
	if err != nil {
		return nil, err
	}

	n := &NPT{mode: mode{ctx: ctx, name: "npt", driver: d}, npt: d}
	ctx.SetIntegrator(n)
	level.Info(ctx.Logger()).Log("op", "create", "mode", n.name, "dt", cfg.DT, "T", cfg.T, "P", cfg.P)
	return n, nil
}

func (n *NPT) SetParams(p NPTParams) error {
	if n == nil || n.npt == nil {
		return fmt.Errorf("%w: integrator mode has no driver", dynamo.ErrState)
	}

	// validate everything before pushing anything
	if p.DT != nil {
		if err := checkDT(*p.DT); err != nil {
			return err
		}
	}
	if p.Tau != nil {
		if err := checkPositive("tau", *p.Tau); err != nil {
			return err
		}
	}
	if p.TauP != nil {
		if err := checkPositive("tauP", *p.TauP); err != nil {
			return err
		}
	}

	if p.DT != nil {
		n.npt.SetDeltaT(*p.DT)
	}
	if p.T != nil {
		n.npt.SetT(*p.T)
	}
	if p.Tau != nil {
		n.npt.SetTau(*p.Tau)
	}
	if p.P != nil {
		n.npt.SetP(*p.P)
	}
	if p.TauP != nil {
		n.npt.SetTauP(*p.TauP)
	}
	return nil
}

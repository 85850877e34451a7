package cpu

import (
	"fmt"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine"
)

// driver is the engine-side contract every installable integrator meets.
type driver interface {
	engine.Driver
	forceTerms() []forceTerm
	validate() error
	advance(s *System, step uint64)
}

// stepper is a two-step integration method: step one moves positions to
// t+dt and velocities to t+dt/2, step two finishes the velocities once the
// forces at t+dt are known.
type stepper interface {
	engine.Method
	stepOne(s *System, step uint64, dt float64)
	stepTwo(s *System, step uint64, dt float64)
}

// attachments holds the force and method lists shared by both drivers.
type attachments struct {
	dt      float64
	forces  []forceTerm
	methods []stepper

	foreignForces  []string
	foreignMethods []string
}

func (a *attachments) SetDeltaT(dt float64) { a.dt = dt }
func (a *attachments) DeltaT() float64      { return a.dt }

func (a *attachments) RemoveForceComputes() {
	a.forces = a.forces[:0]
	a.foreignForces = nil
}

func (a *attachments) AddForceCompute(f engine.ForceCompute) {
	ft, ok := f.(forceTerm)
	if !ok {
		a.foreignForces = append(a.foreignForces, fmt.Sprintf("%T", f))
		return
	}
	a.forces = append(a.forces, ft)
}

func (a *attachments) RemoveAllIntegrationMethods() {
	a.methods = a.methods[:0]
	a.foreignMethods = nil
}

func (a *attachments) AddIntegrationMethod(m engine.Method) {
	st, ok := m.(stepper)
	if !ok {
		a.foreignMethods = append(a.foreignMethods, fmt.Sprintf("%T", m))
		return
	}
	a.methods = append(a.methods, st)
}

func (a *attachments) forceTerms() []forceTerm { return a.forces }

func (a *attachments) validateAttachments() error {
	if len(a.foreignForces)+len(a.foreignMethods) > 0 {
		return fmt.Errorf("%w: handles not created by this engine: forces %v, methods %v",
			dynamo.ErrConfiguration, a.foreignForces, a.foreignMethods)
	}
	if a.dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrConfiguration, a.dt)
	}
	return nil
}

// TwoStep runs every attached method over its own group around a single
// force evaluation per step.
type TwoStep struct {
	attachments
}

func (s *System) NewTwoStepDriver(dt float64) (engine.Driver, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrConfiguration, dt)
	}
	return &TwoStep{attachments{dt: dt}}, nil
}

// validate rejects methods whose groups share particles; a particle moved
// by two methods would be integrated twice per step.
func (d *TwoStep) validate() error {
	if err := d.validateAttachments(); err != nil {
		return err
	}
	for i := 0; i < len(d.methods); i++ {
		for j := i + 1; j < len(d.methods); j++ {
			gi, gj := d.methods[i].Group(), d.methods[j].Group()
			if gi.Overlaps(gj) {
				return fmt.Errorf("%w: integration methods on %s and %s overlap",
					dynamo.ErrConfiguration, gi.Name(), gj.Name())
			}
		}
	}
	return nil
}

func (d *TwoStep) advance(s *System, step uint64) {
	for _, m := range d.methods {
		m.stepOne(s, step, d.dt)
	}
	s.computeForces(d.forces)
	for _, m := range d.methods {
		m.stepTwo(s, step, d.dt)
	}
}

// Methods returns the attached methods in attachment order.
func (d *TwoStep) Methods() []engine.Method {
	out := make([]engine.Method, len(d.methods))
	for i, m := range d.methods {
		out[i] = m
	}
	return out
}

// Forces returns the attached force computes in attachment order.
func (d *TwoStep) Forces() []engine.ForceCompute {
	out := make([]engine.ForceCompute, len(d.forces))
	for i, f := range d.forces {
		out[i] = f
	}
	return out
}

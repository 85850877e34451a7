// Package sim holds the simulation context: the engine system, the registry
// of enabled forces and integration methods, and the active integrator mode.
//
// A Context is used from a single goroutine. Nothing in this package is
// process-global; tests and tools create as many contexts as they need.
package sim

import (
	"context"
	"fmt"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine"
)

type Context struct {
	system engine.System
	logger kitlog.Logger

	forces     []Force
	methods    []Method
	integrator Integrator
	refreshing bool
}

// New returns a context bound to system. A nil logger discards output.
func New(system engine.System, logger kitlog.Logger) *Context {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &Context{
		system:  system,
		logger:  logger,
		forces:  make([]Force, 0),
		methods: make([]Method, 0),
	}
}

// Initialized reports whether the context has a system to work on.
func (c *Context) Initialized() bool { return c != nil && c.system != nil }

func (c *Context) System() engine.System  { return c.system }
func (c *Context) Logger() kitlog.Logger  { return c.logger }
func (c *Context) Integrator() Integrator { return c.integrator }

// SetIntegrator makes i the active mode. The previous mode is dropped; the
// methods it was running stay registered.
func (c *Context) SetIntegrator(i Integrator) {
	c.integrator = i
	if i != nil && c.system != nil {
		c.system.SetIntegrator(i.Driver())
	}
}

// Forces returns the enabled forces in registration order.
func (c *Context) Forces() []Force {
	out := make([]Force, len(c.forces))
	copy(out, c.forces)
	return out
}

// Methods returns the enabled methods in the order they were last enabled.
func (c *Context) Methods() []Method {
	out := make([]Method, len(c.methods))
	copy(out, c.methods)
	return out
}

// HasForce reports whether f is in the enabled list.
func (c *Context) HasForce(f Force) bool {
	for _, x := range c.forces {
		if x == f {
			return true
		}
	}
	return false
}

// HasMethod reports whether m is in the enabled list.
func (c *Context) HasMethod(m Method) bool {
	for _, x := range c.methods {
		if x == m {
			return true
		}
	}
	return false
}

func (c *Context) AddForce(f Force) error {
	if err := c.checkMutable("add force"); err != nil {
		return err
	}
	c.forces = append(c.forces, f)
	return nil
}

// RemoveForce drops f from the registry. Removing an absent force is a
// no-op.
func (c *Context) RemoveForce(f Force) error {
	if err := c.checkMutable("remove force"); err != nil {
		return err
	}
	for i, x := range c.forces {
		if x == f {
			c.forces = append(c.forces[:i], c.forces[i+1:]...)
			break
		}
	}
	return nil
}

func (c *Context) AddMethod(m Method) error {
	if err := c.checkMutable("add method"); err != nil {
		return err
	}
	c.methods = append(c.methods, m)
	return nil
}

// RemoveMethod drops m from the registry. Removing an absent method is a
// no-op.
func (c *Context) RemoveMethod(m Method) error {
	if err := c.checkMutable("remove method"); err != nil {
		return err
	}
	for i, x := range c.methods {
		if x == m {
			c.methods = append(c.methods[:i], c.methods[i+1:]...)
			break
		}
	}
	return nil
}

func (c *Context) checkMutable(op string) error {
	if c.refreshing {
		return fmt.Errorf("%w: %s during integrator refresh", dynamo.ErrInternalInvariant, op)
	}
	return nil
}

// Refresh lets i attach the current registry to its driver. The registry
// is frozen for the duration of the call.
func (c *Context) Refresh(i Integrator) error {
	if c.refreshing {
		return fmt.Errorf("%w: nested integrator refresh", dynamo.ErrInternalInvariant)
	}
	c.refreshing = true
	defer func() { c.refreshing = false }()

	forces, methods := c.Forces(), c.Methods()
	if err := i.Attach(forces, methods); err != nil {
		return err
	}

	level.Debug(c.logger).Log("msg", "integrator refreshed", "forces", len(forces), "methods", len(methods))
	return nil
}

// Run refreshes the active mode and advances the system by steps.
func (c *Context) Run(ctx context.Context, steps uint64) error {
	if !c.Initialized() {
		return fmt.Errorf("%w: run needs a system", dynamo.ErrInitialization)
	}
	if c.integrator == nil {
		return fmt.Errorf("%w: no integrator mode is active", dynamo.ErrConfiguration)
	}
	if err := c.Refresh(c.integrator); err != nil {
		return err
	}

	c.system.SetIntegrator(c.integrator.Driver())
	start := c.system.Timestep()
	level.Info(c.logger).Log("op", "run", "from", start, "steps", steps)

	if err := c.system.Run(ctx, steps); err != nil {
		return fmt.Errorf("run from step %d: %w", start, err)
	}
	return nil
}

// Reset empties the registry and clears the active mode. The system is
// kept. Forces and methods created earlier report themselves disabled
// afterwards and can be enabled again.
func (c *Context) Reset() {
	c.forces = c.forces[:0]
	c.methods = c.methods[:0]
	c.integrator = nil
	c.refreshing = false
	if c.system != nil {
		c.system.SetIntegrator(nil)
	}
}

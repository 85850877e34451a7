package integrate

import (
	"fmt"

	"github.com/go-kit/kit/log/level"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine"
	"github.com/san-kum/mdsim/internal/sim"
)

// Kind names an integration method.
type Kind int

const (
	KindNVE Kind = iota
	KindNVT
	KindBDNVT
)

func (k Kind) String() string {
	switch k {
	case KindNVE:
		return "nve"
	case KindNVT:
		return "nvt"
	case KindBDNVT:
		return "bdnvt"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Method is satisfied by every integration method in this package.
type Method interface {
	sim.Method
	Kind() Kind
	Group() *dynamo.Group
	Enabled() bool
	Enable() error
	Disable() error
}

// method is the bookkeeping shared by every integration method: the group,
// the engine handle and registration with the context.
type method struct {
	ctx     *sim.Context
	kind    Kind
	group   *dynamo.Group
	handle  engine.Method
	self    sim.Method
}

func newMethod(ctx *sim.Context, kind Kind, g *dynamo.Group) (method, error) {
	if err := checkContext(ctx); err != nil {
		return method{}, err
	}
	if g == nil {
		return method{}, fmt.Errorf("%w: %s needs a particle group", dynamo.ErrConfiguration, kind)
	}
	return method{ctx: ctx, kind: kind, group: g}, nil
}

// establish records the engine handle and enables the method.
func (m *method) establish(self sim.Method, h engine.Method) error {
	m.self = self
	m.handle = h
	if err := m.ctx.AddMethod(self); err != nil {
		return err
	}
	level.Info(m.ctx.Logger()).Log("op", "create", "method", m.kind, "group", m.group.Name())
	return nil
}

func (m *method) Kind() Kind            { return m.kind }
func (m *method) Group() *dynamo.Group  { return m.group }
func (m *method) Handle() engine.Method { return m.handle }

// Enabled reports whether the method is in the context's enabled list.
func (m *method) Enabled() bool {
	return m != nil && m.self != nil && m.ctx.HasMethod(m.self)
}

func (m *method) check() error {
	if m == nil || m.handle == nil {
		return fmt.Errorf("%w: integration method has no engine handle", dynamo.ErrState)
	}
	return nil
}

// Enable puts the method back at the end of the context's enabled list.
// Enabling an enabled method only logs a warning.
func (m *method) Enable() error {
	if err := m.check(); err != nil {
		return err
	}
	if m.Enabled() {
		level.Warn(m.ctx.Logger()).Log("msg", "ignoring command, integration method is already enabled",
			"method", m.kind, "group", m.group.Name())
		return nil
	}
	if err := m.ctx.AddMethod(m.self); err != nil {
		return err
	}
	level.Info(m.ctx.Logger()).Log("op", "enable", "method", m.kind, "group", m.group.Name())
	return nil
}

// Disable removes the method from the context's enabled list. Disabling a
// disabled method only logs a warning.
func (m *method) Disable() error {
	if err := m.check(); err != nil {
		return err
	}
	if !m.Enabled() {
		level.Warn(m.ctx.Logger()).Log("msg", "ignoring command, integration method is already disabled",
			"method", m.kind, "group", m.group.Name())
		return nil
	}
	if err := m.ctx.RemoveMethod(m.self); err != nil {
		return err
	}
	level.Info(m.ctx.Logger()).Log("op", "disable", "method", m.kind, "group", m.group.Name())
	return nil
}

// Limit is an optional displacement cap. The zero value leaves the current
// setting alone; NoLimit removes the cap.
type Limit struct {
	present bool
	remove  bool
	value   float64
}

// NoLimit removes a displacement cap.
var NoLimit = Limit{present: true, remove: true}

// Cap limits each particle to moving at most dist per step.
func Cap(dist float64) Limit { return Limit{present: true, value: dist} }

// IsSet reports whether l changes anything.
func (l Limit) IsSet() bool { return l.present }

func (l Limit) String() string {
	switch {
	case !l.present:
		return "unchanged"
	case l.remove:
		return "none"
	default:
		return fmt.Sprintf("%g", l.value)
	}
}

type limiter interface {
	SetLimit(limit float64)
	RemoveLimit()
}

func (l Limit) validate() error {
	if l.present && !l.remove && l.value <= 0 {
		return fmt.Errorf("%w: displacement limit must be positive, got %g", dynamo.ErrConfiguration, l.value)
	}
	return nil
}

func (l Limit) apply(h limiter) {
	switch {
	case !l.present:
	case l.remove:
		h.RemoveLimit()
	default:
		h.SetLimit(l.value)
	}
}

// Float returns a pointer to v, for filling optional parameters.
func Float(v float64) *float64 { return &v }

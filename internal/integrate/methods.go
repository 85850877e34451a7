package integrate

import (
	"fmt"
	"sort"

	"github.com/go-kit/kit/log/level"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine"
	"github.com/san-kum/mdsim/internal/sim"
	"github.com/san-kum/mdsim/internal/variant"
)

// NVE integrates a group in the microcanonical ensemble (velocity Verlet).
type NVE struct {
	method
	h     engine.NVEMethod
	limit Limit
}

type NVEParams struct {
	Limit Limit
}

// NewNVE binds an NVE method to g. A set limit caps per-step displacement,
// which breaks momentum conservation; use it only to relax a bad starting
// configuration.
func NewNVE(ctx *sim.Context, g *dynamo.Group, limit Limit) (*NVE, error) {
	base, err := newMethod(ctx, KindNVE, g)
	if err != nil {
		return nil, err
	}
	if err := limit.validate(); err != nil {
		return nil, err
	}

	h, err := ctx.System().NewNVE(g)
	if err != nil {
		return nil, err
	}
	limit.apply(h)

	m := &NVE{method: base, h: h, limit: NoLimit}
	if limit.IsSet() {
		m.limit = limit
	}
	if err := m.establish(m, h); err != nil {
		return nil, err
	}
	return m, nil
}

// Limit reports the displacement cap in effect.
func (m *NVE) Limit() Limit { return m.limit }

func (m *NVE) SetParams(p NVEParams) error {
	if err := m.check(); err != nil {
		return err
	}
	if err := p.Limit.validate(); err != nil {
		return err
	}
	if p.Limit.IsSet() {
		p.Limit.apply(m.h)
		m.limit = p.Limit
		level.Info(m.ctx.Logger()).Log("op", "set_params", "method", m.kind, "limit", p.Limit)
	}
	return nil
}

// NVT integrates a group under a Nosé-Hoover thermostat.
type NVT struct {
	method
	h   engine.NVTMethod
	t   variant.Variant
	tau float64
}

type NVTParams struct {
	T   *variant.Variant
	Tau *float64
}

func NewNVT(ctx *sim.Context, g *dynamo.Group, t variant.Variant, tau float64) (*NVT, error) {
	base, err := newMethod(ctx, KindNVT, g)
	if err != nil {
		return nil, err
	}
	if err := checkPositive("tau", tau); err != nil {
		return nil, err
	}

	h, err := ctx.System().NewNVT(g, tau, t)
	if err != nil {
		return nil, err
	}

	m := &NVT{method: base, h: h, t: t, tau: tau}
	if err := m.establish(m, h); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *NVT) T() variant.Variant { return m.t }
func (m *NVT) Tau() float64       { return m.tau }

func (m *NVT) SetParams(p NVTParams) error {
	if err := m.check(); err != nil {
		return err
	}
	if p.Tau != nil {
		if err := checkPositive("tau", *p.Tau); err != nil {
			return err
		}
	}

	if p.T != nil {
		m.t = *p.T
		m.h.SetT(m.t)
		level.Info(m.ctx.Logger()).Log("op", "set_params", "method", m.kind, "T", m.t)
	}
	if p.Tau != nil {
		m.tau = *p.Tau
		m.h.SetTau(m.tau)
		level.Info(m.ctx.Logger()).Log("op", "set_params", "method", m.kind, "tau", m.tau)
	}
	return nil
}

// BDNVT is NVE plus a Langevin heat bath. Drag comes from per-type gamma
// values, or from the particle diameter when GammaDiam is set.
type BDNVT struct {
	method
	h         engine.BDNVTMethod
	t         variant.Variant
	seed      int64
	gammaDiam bool
	limit     Limit
	gamma     map[string]float64
}

type BDNVTOptions struct {
	Seed      int64
	GammaDiam bool
	Limit     Limit
}

type BDNVTParams struct {
	T     *variant.Variant
	Limit Limit
}

// DefaultGamma is the drag for types without an explicit SetGamma.
const DefaultGamma = 1.0

func NewBDNVT(ctx *sim.Context, g *dynamo.Group, t variant.Variant, opts BDNVTOptions) (*BDNVT, error) {
	base, err := newMethod(ctx, KindBDNVT, g)
	if err != nil {
		return nil, err
	}
	if err := opts.Limit.validate(); err != nil {
		return nil, err
	}

	h, err := ctx.System().NewBDNVT(g, t, opts.Seed, opts.GammaDiam)
	if err != nil {
		return nil, err
	}
	opts.Limit.apply(h)

	m := &BDNVT{
		method:    base,
		h:         h,
		t:         t,
		seed:      opts.Seed,
		gammaDiam: opts.GammaDiam,
		limit:     NoLimit,
		gamma:     make(map[string]float64),
	}
	if opts.Limit.IsSet() {
		m.limit = opts.Limit
	}
	if err := m.establish(m, h); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *BDNVT) T() variant.Variant { return m.t }
func (m *BDNVT) Seed() int64        { return m.seed }
func (m *BDNVT) GammaDiam() bool    { return m.gammaDiam }
func (m *BDNVT) Limit() Limit       { return m.limit }

func (m *BDNVT) SetParams(p BDNVTParams) error {
	if err := m.check(); err != nil {
		return err
	}
	if err := p.Limit.validate(); err != nil {
		return err
	}

	if p.T != nil {
		m.t = *p.T
		m.h.SetT(m.t)
		level.Info(m.ctx.Logger()).Log("op", "set_params", "method", m.kind, "T", m.t)
	}
	if p.Limit.IsSet() {
		p.Limit.apply(m.h)
		m.limit = p.Limit
		level.Info(m.ctx.Logger()).Log("op", "set_params", "method", m.kind, "limit", p.Limit)
	}
	return nil
}

// SetGamma sets the drag for particles of the named type. A type the
// system does not have is remembered but reaches no particle.
func (m *BDNVT) SetGamma(typeName string, gamma float64) error {
	if err := m.check(); err != nil {
		return err
	}
	if gamma < 0 {
		return fmt.Errorf("%w: gamma must not be negative, got %g", dynamo.ErrConfiguration, gamma)
	}

	m.gamma[typeName] = gamma
	sys := m.ctx.System()
	for id := 0; id < sys.NumTypes(); id++ {
		if sys.TypeName(id) == typeName {
			m.h.SetGamma(id, gamma)
		}
	}
	level.Info(m.ctx.Logger()).Log("op", "set_gamma", "type", typeName, "gamma", gamma)
	return nil
}

// Gamma returns the drag assigned to a type name.
func (m *BDNVT) Gamma(typeName string) float64 {
	if g, ok := m.gamma[typeName]; ok {
		return g
	}
	return DefaultGamma
}

// GammaTypes lists the type names with an explicit gamma, sorted.
func (m *BDNVT) GammaTypes() []string {
	out := make([]string, 0, len(m.gamma))
	for name := range m.gamma {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var (
	_ Method = (*NVE)(nil)
	_ Method = (*NVT)(nil)
	_ Method = (*BDNVT)(nil)
)

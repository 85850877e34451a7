// Package force holds the force objects a user enables in a simulation
// context. Each wraps an engine force handle and pushes its coefficients
// when the active integrator refreshes.
package force

import (
	"fmt"
	"sort"

	"github.com/go-kit/kit/log/level"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine"
	"github.com/san-kum/mdsim/internal/sim"
)

// base tracks the engine handle and registration of one force.
type base struct {
	ctx     *sim.Context
	name    string
	handle  engine.ForceCompute
	self    sim.Force
}

func newBase(ctx *sim.Context, name string) (base, error) {
	if !ctx.Initialized() {
		return base{}, fmt.Errorf("%w: create the system before forces", dynamo.ErrInitialization)
	}
	return base{ctx: ctx, name: name}, nil
}

func (b *base) establish(self sim.Force, h engine.ForceCompute) error {
	b.self = self
	b.handle = h
	if err := b.ctx.AddForce(self); err != nil {
		return err
	}
	level.Info(b.ctx.Logger()).Log("op", "create", "force", b.name)
	return nil
}

func (b *base) Name() string                { return b.name }
func (b *base) Enabled() bool               { return b.self != nil && b.ctx.HasForce(b.self) }
func (b *base) Handle() engine.ForceCompute { return b.handle }

// Release drops the engine handle. The force stays registered if it was
// enabled, which makes the next refresh fail.
func (b *base) Release() { b.handle = nil }

func (b *base) check() error {
	if b.handle == nil {
		return fmt.Errorf("%w: force has no engine handle", dynamo.ErrState)
	}
	return nil
}

func (b *base) Enable() error {
	if err := b.check(); err != nil {
		return err
	}
	if b.Enabled() {
		level.Warn(b.ctx.Logger()).Log("msg", "ignoring command, force is already enabled", "force", b.name)
		return nil
	}
	if err := b.ctx.AddForce(b.self); err != nil {
		return err
	}
	level.Info(b.ctx.Logger()).Log("op", "enable", "force", b.name)
	return nil
}

func (b *base) Disable() error {
	if err := b.check(); err != nil {
		return err
	}
	if !b.Enabled() {
		level.Warn(b.ctx.Logger()).Log("msg", "ignoring command, force is already disabled", "force", b.name)
		return nil
	}
	if err := b.ctx.RemoveForce(b.self); err != nil {
		return err
	}
	level.Info(b.ctx.Logger()).Log("op", "disable", "force", b.name)
	return nil
}

// LJCoeff are the Lennard-Jones parameters of one type pair. A zero RCut
// uses the force's default cutoff.
type LJCoeff struct {
	Epsilon float64
	Sigma   float64
	RCut    float64
}

type pairKey struct{ a, b string }

func keyOf(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// LJ is the 12-6 Lennard-Jones pair force.
type LJ struct {
	base
	h      engine.PairForce
	rCut   float64
	coeffs map[pairKey]LJCoeff
}

func NewLJ(ctx *sim.Context, rCut float64) (*LJ, error) {
	b, err := newBase(ctx, "pair.lj")
	if err != nil {
		return nil, err
	}
	if rCut <= 0 {
		return nil, fmt.Errorf("%w: r_cut must be positive, got %g", dynamo.ErrConfiguration, rCut)
	}

	h, err := ctx.System().NewPairLJ()
	if err != nil {
		return nil, err
	}
	lj := &LJ{base: b, h: h, rCut: rCut, coeffs: make(map[pairKey]LJCoeff)}
	if err := lj.establish(lj, h); err != nil {
		return nil, err
	}
	return lj, nil
}

// SetCoeff stores the parameters for the unordered pair (a, b). Types the
// system lacks are accepted and ignored at update time.
func (lj *LJ) SetCoeff(a, b string, c LJCoeff) error {
	if c.Sigma <= 0 {
		return fmt.Errorf("%w: sigma for %s-%s must be positive", dynamo.ErrConfiguration, a, b)
	}
	if c.RCut < 0 {
		return fmt.Errorf("%w: r_cut for %s-%s must not be negative", dynamo.ErrConfiguration, a, b)
	}
	lj.coeffs[keyOf(a, b)] = c
	return nil
}

// Coeff returns the parameters stored for (a, b).
func (lj *LJ) Coeff(a, b string) (LJCoeff, bool) {
	c, ok := lj.coeffs[keyOf(a, b)]
	return c, ok
}

// UpdateCoeffs pushes every pair of the system's types to the engine. All
// pairs must have coefficients.
func (lj *LJ) UpdateCoeffs() error {
	if err := lj.check(); err != nil {
		return err
	}
	sys := lj.ctx.System()
	n := sys.NumTypes()

	var missing []string
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a, b := sys.TypeName(i), sys.TypeName(j)
			c, ok := lj.coeffs[keyOf(a, b)]
			if !ok {
				missing = append(missing, a+"-"+b)
				continue
			}
			rc := c.RCut
			if rc == 0 {
				rc = lj.rCut
			}
			lj.h.SetParams(i, j, c.Epsilon, c.Sigma, rc)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: pair.lj coefficients not set for %s", dynamo.ErrConfiguration, missing[0])
	}
	return nil
}

// Constant applies the same force vector to every member of a group.
type Constant struct {
	base
	group *dynamo.Group
	f     dynamo.Vec3
}

func NewConstant(ctx *sim.Context, g *dynamo.Group, f dynamo.Vec3) (*Constant, error) {
	b, err := newBase(ctx, "force.constant")
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("%w: constant force needs a group", dynamo.ErrConfiguration)
	}

	h, err := ctx.System().NewConstantForce(g, f)
	if err != nil {
		return nil, err
	}
	c := &Constant{base: b, group: g, f: f}
	if err := c.establish(c, h); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Constant) Vector() dynamo.Vec3 { return c.f }

// UpdateCoeffs has nothing to push; the vector is fixed at creation.
func (c *Constant) UpdateCoeffs() error { return c.check() }

var (
	_ sim.Force = (*LJ)(nil)
	_ sim.Force = (*Constant)(nil)
)

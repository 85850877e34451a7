// Package enginetest provides an in-memory engine.System that records what
// the integration layer asks of it. It does no numerics.
package enginetest

import (
	"context"
	"fmt"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine"
	"github.com/san-kum/mdsim/internal/variant"
)

// Driver records the forces, methods and parameters pushed to it.
type Driver struct {
	Dt      float64
	Forces  []engine.ForceCompute
	Methods []engine.Method
	Calls   []string

	T, P      variant.Variant
	Tau, TauP float64
}

func (d *Driver) record(format string, args ...any) {
	d.Calls = append(d.Calls, fmt.Sprintf(format, args...))
}

func (d *Driver) SetDeltaT(dt float64) { d.Dt = dt; d.record("dt %g", dt) }
func (d *Driver) DeltaT() float64      { return d.Dt }

func (d *Driver) RemoveForceComputes() {
	d.Forces = nil
	d.record("clear forces")
}

func (d *Driver) AddForceCompute(f engine.ForceCompute) {
	d.Forces = append(d.Forces, f)
	d.record("add force %s", f.Name())
}

func (d *Driver) RemoveAllIntegrationMethods() {
	d.Methods = nil
	d.record("clear methods")
}

func (d *Driver) AddIntegrationMethod(m engine.Method) {
	d.Methods = append(d.Methods, m)
	d.record("add method %s", m.Group().Name())
}

func (d *Driver) SetT(t variant.Variant) { d.T = t }
func (d *Driver) SetTau(tau float64)     { d.Tau = tau }
func (d *Driver) SetP(p variant.Variant) { d.P = p }
func (d *Driver) SetTauP(tauP float64)   { d.TauP = tauP }

// FIREDriver records FIRE parameters on top of Driver. Converged is
// returned by HasConverged.
type FIREDriver struct {
	Driver
	Params    engine.FIREParams
	Resets    int
	Converged bool
}

func (d *FIREDriver) SetNmin(n uint)              { d.Params.Nmin = n; d.record("nmin %d", n) }
func (d *FIREDriver) SetFinc(f float64)           { d.Params.Finc = f; d.record("finc %g", f) }
func (d *FIREDriver) SetFdec(f float64)           { d.Params.Fdec = f; d.record("fdec %g", f) }
func (d *FIREDriver) SetAlphaStart(alpha float64) { d.Params.AlphaStart = alpha; d.record("alpha_start %g", alpha) }
func (d *FIREDriver) SetFalpha(f float64)         { d.Params.Falpha = f; d.record("falpha %g", f) }
func (d *FIREDriver) SetFtol(ftol float64)        { d.Params.Ftol = ftol; d.record("ftol %g", ftol) }
func (d *FIREDriver) SetEtol(etol float64)        { d.Params.Etol = etol; d.record("etol %g", etol) }
func (d *FIREDriver) SetMinSteps(n uint64)        { d.Params.MinSteps = n; d.record("min_steps %d", n) }
func (d *FIREDriver) Reset()                      { d.Resets++; d.Converged = false; d.record("reset") }
func (d *FIREDriver) HasConverged() bool          { return d.Converged }

// Method is a recording integration method handle of any kind.
type Method struct {
	Kind  string
	G     *dynamo.Group
	T     variant.Variant
	Tau   float64
	Seed  int64
	Limit float64
	// Limited is false when no displacement cap is active.
	Limited   bool
	Gamma     map[int]float64
	GammaDiam bool
	Pushes    int
}

func (m *Method) Group() *dynamo.Group { return m.G }

func (m *Method) SetLimit(limit float64) { m.Limit, m.Limited = limit, true; m.Pushes++ }
func (m *Method) RemoveLimit()           { m.Limit, m.Limited = 0, false; m.Pushes++ }
func (m *Method) SetT(t variant.Variant) { m.T = t; m.Pushes++ }
func (m *Method) SetTau(tau float64)     { m.Tau = tau; m.Pushes++ }

func (m *Method) SetGamma(typeID int, gamma float64) {
	if m.Gamma == nil {
		m.Gamma = make(map[int]float64)
	}
	m.Gamma[typeID] = gamma
	m.Pushes++
}

// Force is a recording force handle.
type Force struct {
	ForceName string
	Params    map[[2]int][3]float64
}

func (f *Force) Name() string { return f.ForceName }

func (f *Force) SetParams(typeA, typeB int, epsilon, sigma, rCut float64) {
	if f.Params == nil {
		f.Params = make(map[[2]int][3]float64)
	}
	if typeA > typeB {
		typeA, typeB = typeB, typeA
	}
	f.Params[[2]int{typeA, typeB}] = [3]float64{epsilon, sigma, rCut}
}

// System is a recording engine.System with N particles of the given types,
// assigned round-robin.
type System struct {
	N     int
	Types []string

	Installed engine.Driver
	Steps     uint64
	Runs      int
	// RunErr, when set, is returned by Run.
	RunErr error
}

var _ engine.System = (*System)(nil)

func New(n int, types ...string) *System {
	if len(types) == 0 {
		types = []string{"A"}
	}
	return &System{N: n, Types: types}
}

func (s *System) NumParticles() int { return s.N }
func (s *System) NumTypes() int     { return len(s.Types) }

func (s *System) TypeName(id int) string {
	if id < 0 || id >= len(s.Types) {
		return ""
	}
	return s.Types[id]
}

func (s *System) TypeID(name string) (int, bool) {
	for i, t := range s.Types {
		if t == name {
			return i, true
		}
	}
	return 0, false
}

func (s *System) GroupAll() *dynamo.Group {
	return s.GroupFilter("all", func(int) bool { return true })
}

func (s *System) GroupType(name string) (*dynamo.Group, error) {
	id, ok := s.TypeID(name)
	if !ok {
		return nil, fmt.Errorf("%w: no particle type named %q", dynamo.ErrConfiguration, name)
	}
	return s.GroupFilter("type "+name, func(i int) bool { return i%len(s.Types) == id }), nil
}

func (s *System) GroupFilter(name string, keep func(i int) bool) *dynamo.Group {
	var idx []uint32
	for i := 0; i < s.N; i++ {
		if keep(i) {
			idx = append(idx, uint32(i))
		}
	}
	return dynamo.NewGroup(name, idx)
}

func (s *System) NewTwoStepDriver(dt float64) (engine.Driver, error) {
	return &Driver{Dt: dt}, nil
}

func (s *System) NewNPTDriver(p engine.NPTParams) (engine.NPTDriver, error) {
	return &Driver{Dt: p.Dt, T: p.T, P: p.P, Tau: p.Tau, TauP: p.TauP}, nil
}

func (s *System) NewFIREDriver(p engine.FIREParams) (engine.FIREDriver, error) {
	return &FIREDriver{Driver: Driver{Dt: p.Dt}, Params: p}, nil
}

func (s *System) NewNVE(g *dynamo.Group) (engine.NVEMethod, error) {
	return &Method{Kind: "nve", G: g}, nil
}

func (s *System) NewNVT(g *dynamo.Group, tau float64, t variant.Variant) (engine.NVTMethod, error) {
	return &Method{Kind: "nvt", G: g, Tau: tau, T: t}, nil
}

func (s *System) NewBDNVT(g *dynamo.Group, t variant.Variant, seed int64, gammaDiam bool) (engine.BDNVTMethod, error) {
	return &Method{Kind: "bdnvt", G: g, T: t, Seed: seed, GammaDiam: gammaDiam}, nil
}

func (s *System) NewPairLJ() (engine.PairForce, error) {
	return &Force{ForceName: "pair.lj"}, nil
}

func (s *System) NewConstantForce(g *dynamo.Group, f dynamo.Vec3) (engine.ForceCompute, error) {
	return &Force{ForceName: "force.constant"}, nil
}

func (s *System) SetIntegrator(d engine.Driver) { s.Installed = d }
func (s *System) Timestep() uint64              { return s.Steps }

func (s *System) Run(ctx context.Context, steps uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.RunErr != nil {
		return s.RunErr
	}
	s.Runs++
	s.Steps += steps
	return nil
}

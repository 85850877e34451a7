// Package cpu is a reference engine that implements engine.System on the
// host CPU with direct O(N²) pair sums. It exists so the integration layer
// can be driven end to end without an accelerator build.
package cpu

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine"
)

// ErrUnstable indicates the particle state diverged (NaN or Inf).
var ErrUnstable = errors.New("cpu: simulation unstable (state diverged)")

type Options struct {
	N           int
	Types       []string
	Density     float64
	Temperature float64
	Mass        float64
	Diameter    float64
	Seed        int64
	Workers     int
	Validate    bool
}

func DefaultOptions() Options {
	return Options{
		N:           64,
		Types:       []string{"A"},
		Density:     0.8,
		Temperature: 1.0,
		Mass:        1.0,
		Diameter:    1.0,
		Seed:        1,
		Validate:    true,
	}
}

// Analyzer observes the system every period steps.
type Analyzer interface {
	Analyze(snap dynamo.Snapshot)
}

type analyzerEntry struct {
	a      Analyzer
	period uint64
}

type System struct {
	box      dynamo.Box
	pos      []dynamo.Vec3
	vel      []dynamo.Vec3
	force    []dynamo.Vec3
	energy   []float64
	virial   []float64
	mass     []float64
	diameter []float64
	typeID   []int

	typeNames []string
	step      uint64
	time      float64
	workers   int
	validate  bool

	driver    driver
	foreign   string
	analyzers []analyzerEntry
	rng       *rand.Rand
}

var _ engine.System = (*System)(nil)

// New places opts.N particles on a simple cubic lattice at the requested
// density and draws Maxwell–Boltzmann velocities with zero net momentum.
func New(opts Options) (*System, error) {
	if opts.N <= 0 {
		return nil, fmt.Errorf("%w: particle count must be positive, got %d", dynamo.ErrConfiguration, opts.N)
	}
	if opts.Density <= 0 {
		return nil, fmt.Errorf("%w: density must be positive, got %f", dynamo.ErrConfiguration, opts.Density)
	}
	if len(opts.Types) == 0 {
		opts.Types = []string{"A"}
	}
	seen := make(map[string]bool, len(opts.Types))
	for _, name := range opts.Types {
		if name == "" || seen[name] {
			return nil, fmt.Errorf("%w: particle type names must be unique and non-empty", dynamo.ErrConfiguration)
		}
		seen[name] = true
	}
	if opts.Mass <= 0 {
		opts.Mass = 1.0
	}
	if opts.Diameter <= 0 {
		opts.Diameter = 1.0
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	n := opts.N
	s := &System{
		pos:       make([]dynamo.Vec3, n),
		vel:       make([]dynamo.Vec3, n),
		force:     make([]dynamo.Vec3, n),
		energy:    make([]float64, n),
		virial:    make([]float64, n),
		mass:      make([]float64, n),
		diameter:  make([]float64, n),
		typeID:    make([]int, n),
		typeNames: append([]string(nil), opts.Types...),
		workers:   workers,
		validate:  opts.Validate,
		rng:       rand.New(rand.NewSource(opts.Seed)),
	}

	side := int(math.Ceil(math.Cbrt(float64(n))))
	l := math.Cbrt(float64(n) / opts.Density)
	s.box = dynamo.Box{L: dynamo.Vec3{l, l, l}}
	a := l / float64(side)

	for i := 0; i < n; i++ {
		ix := i % side
		iy := (i / side) % side
		iz := i / (side * side)
		s.pos[i] = dynamo.Vec3{
			(float64(ix)+0.5)*a - l/2,
			(float64(iy)+0.5)*a - l/2,
			(float64(iz)+0.5)*a - l/2,
		}
		s.mass[i] = opts.Mass
		s.diameter[i] = opts.Diameter
		s.typeID[i] = i % len(s.typeNames)
	}

	s.thermalize(opts.Temperature)
	return s, nil
}

func (s *System) thermalize(kT float64) {
	if kT <= 0 {
		return
	}
	var p dynamo.Vec3
	var mtot float64
	for i := range s.vel {
		sigma := math.Sqrt(kT / s.mass[i])
		s.vel[i] = dynamo.Vec3{s.rng.NormFloat64() * sigma, s.rng.NormFloat64() * sigma, s.rng.NormFloat64() * sigma}
		p = p.Add(s.vel[i].Scale(s.mass[i]))
		mtot += s.mass[i]
	}
	vcm := p.Scale(1 / mtot)
	for i := range s.vel {
		s.vel[i] = s.vel[i].Sub(vcm)
	}
}

func (s *System) NumParticles() int { return len(s.pos) }
func (s *System) NumTypes() int     { return len(s.typeNames) }

func (s *System) TypeName(id int) string {
	if id < 0 || id >= len(s.typeNames) {
		return ""
	}
	return s.typeNames[id]
}

func (s *System) TypeID(name string) (int, bool) {
	for i, n := range s.typeNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func (s *System) Box() dynamo.Box  { return s.box }
func (s *System) Timestep() uint64 { return s.step }
func (s *System) Time() float64    { return s.time }

func (s *System) Position(i int) dynamo.Vec3 { return s.pos[i] }
func (s *System) Velocity(i int) dynamo.Vec3 { return s.vel[i] }

func (s *System) SetPosition(i int, p dynamo.Vec3) { s.pos[i] = s.box.Wrap(p) }
func (s *System) SetVelocity(i int, v dynamo.Vec3) { s.vel[i] = v }

func (s *System) GroupAll() *dynamo.Group {
	return s.GroupFilter("all", func(int) bool { return true })
}

func (s *System) GroupType(name string) (*dynamo.Group, error) {
	id, ok := s.TypeID(name)
	if !ok {
		return nil, fmt.Errorf("%w: no particle type named %q", dynamo.ErrConfiguration, name)
	}
	return s.GroupFilter("type "+name, func(i int) bool { return s.typeID[i] == id }), nil
}

func (s *System) GroupFilter(name string, keep func(i int) bool) *dynamo.Group {
	idx := make([]uint32, 0, len(s.pos))
	for i := range s.pos {
		if keep(i) {
			idx = append(idx, uint32(i))
		}
	}
	return dynamo.NewGroup(name, idx)
}

// AddAnalyzer registers a to be called after every period-th step.
func (s *System) AddAnalyzer(a Analyzer, period uint64) {
	if period == 0 {
		period = 1
	}
	s.analyzers = append(s.analyzers, analyzerEntry{a: a, period: period})
}

// SetIntegrator installs d. A driver from another engine is remembered so
// Run can name it.
func (s *System) SetIntegrator(d engine.Driver) {
	s.driver, s.foreign = nil, ""
	if d == nil {
		return
	}
	dr, ok := d.(driver)
	if !ok {
		s.foreign = fmt.Sprintf("%T", d)
		return
	}
	s.driver = dr
}

func (s *System) Snapshot() dynamo.Snapshot {
	var pe, w float64
	for i := range s.energy {
		pe += s.energy[i]
		w += s.virial[i]
	}
	return dynamo.Snapshot{
		Step:            s.step,
		Time:            s.time,
		Box:             s.box,
		Pos:             s.pos,
		Vel:             s.vel,
		Mass:            s.mass,
		PotentialEnergy: pe,
		Virial:          w,
	}
}

// Run advances the system by steps using the installed driver.
func (s *System) Run(ctx context.Context, steps uint64) error {
	if s.foreign != "" {
		return fmt.Errorf("%w: driver %s was not created by this engine", dynamo.ErrConfiguration, s.foreign)
	}
	if s.driver == nil {
		return fmt.Errorf("%w: no integrator installed", dynamo.ErrConfiguration)
	}
	if err := s.driver.validate(); err != nil {
		return err
	}

	s.computeForces(s.driver.forceTerms())

	for i := uint64(0); i < steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.driver.advance(s, s.step)
		s.step++
		s.time += s.driver.DeltaT()

		if s.validate && !s.valid() {
			return &dynamo.StepError{Step: s.step, Wrapped: ErrUnstable}
		}

		for _, e := range s.analyzers {
			if s.step%e.period == 0 {
				e.a.Analyze(s.Snapshot())
			}
		}
	}

	return nil
}

func (s *System) valid() bool {
	for i := range s.pos {
		if !s.pos[i].IsValid() || !s.vel[i].IsValid() {
			return false
		}
	}
	return true
}

func (s *System) kinetic(g *dynamo.Group) float64 {
	ke := 0.0
	g.Each(func(i uint32) {
		ke += 0.5 * s.mass[i] * s.vel[i].Dot(s.vel[i])
	})
	return ke
}

// groupTemperature uses 3 translational degrees of freedom per particle.
func (s *System) groupTemperature(g *dynamo.Group) float64 {
	dof := 3 * g.Len()
	if dof == 0 {
		return 0
	}
	return 2 * s.kinetic(g) / float64(dof)
}

package cpu

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine"
	"github.com/san-kum/mdsim/internal/variant"
)

// displacementLimit caps how far a particle may move in one step. With the
// cap active momentum is not conserved.
type displacementLimit struct {
	active bool
	value  float64
}

func (l *displacementLimit) SetLimit(limit float64) { l.active, l.value = true, limit }
func (l *displacementLimit) RemoveLimit()           { l.active, l.value = false, 0 }

// Limit reports the active cap, if any.
func (l *displacementLimit) Limit() (float64, bool) { return l.value, l.active }

func (l *displacementLimit) clampDisplacement(dx dynamo.Vec3) dynamo.Vec3 {
	if !l.active {
		return dx
	}
	if n := dx.Norm(); n > l.value {
		return dx.Scale(l.value / n)
	}
	return dx
}

func (l *displacementLimit) clampVelocity(v dynamo.Vec3, dt float64) dynamo.Vec3 {
	if !l.active {
		return v
	}
	if n := v.Norm(); n*dt > l.value {
		return v.Scale(l.value / (n * dt))
	}
	return v
}

// NVE is velocity Verlet over one group.
type NVE struct {
	group *dynamo.Group
	displacementLimit
}

func (s *System) NewNVE(g *dynamo.Group) (engine.NVEMethod, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nve needs a group", dynamo.ErrConfiguration)
	}
	return &NVE{group: g}, nil
}

func (m *NVE) Group() *dynamo.Group { return m.group }

func (m *NVE) stepOne(s *System, _ uint64, dt float64) {
	halfDt := 0.5 * dt
	m.group.Each(func(i uint32) {
		a := s.force[i].Scale(1 / s.mass[i])
		s.vel[i] = s.vel[i].Add(a.Scale(halfDt))
		dx := m.clampDisplacement(s.vel[i].Scale(dt))
		s.pos[i] = s.box.Wrap(s.pos[i].Add(dx))
	})
}

func (m *NVE) stepTwo(s *System, _ uint64, dt float64) {
	halfDt := 0.5 * dt
	m.group.Each(func(i uint32) {
		a := s.force[i].Scale(1 / s.mass[i])
		s.vel[i] = m.clampVelocity(s.vel[i].Add(a.Scale(halfDt)), dt)
	})
}

// nhThermostat is a Nosé–Hoover thermostat acting on one group.
type nhThermostat struct {
	tau float64
	t   variant.Variant
	xi  float64
}

func (th *nhThermostat) SetT(t variant.Variant) { th.t = t }
func (th *nhThermostat) SetTau(tau float64)     { th.tau = tau }

// Xi is the current thermostat friction.
func (th *nhThermostat) Xi() float64 { return th.xi }

func (th *nhThermostat) halfKick(s *System, g *dynamo.Group, step uint64, dt float64) {
	halfDt := 0.5 * dt
	g.Each(func(i uint32) {
		a := s.force[i].Scale(1 / s.mass[i])
		v := s.vel[i]
		s.vel[i] = v.Add(a.Sub(v.Scale(th.xi)).Scale(halfDt))
		s.pos[i] = s.box.Wrap(s.pos[i].Add(s.vel[i].Scale(dt)))
	})

	setT := th.t.Eval(step)
	if setT <= 0 || th.tau <= 0 {
		return
	}
	cur := s.groupTemperature(g)
	th.xi += dt / (th.tau * th.tau) * (cur/setT - 1)
}

func (th *nhThermostat) finishKick(s *System, g *dynamo.Group, dt float64) {
	halfDt := 0.5 * dt
	denom := 1 + halfDt*th.xi
	g.Each(func(i uint32) {
		a := s.force[i].Scale(1 / s.mass[i])
		s.vel[i] = s.vel[i].Add(a.Scale(halfDt)).Scale(1 / denom)
	})
}

// NVT integrates one group under a Nosé–Hoover thermostat.
type NVT struct {
	group *dynamo.Group
	nhThermostat
}

func (s *System) NewNVT(g *dynamo.Group, tau float64, t variant.Variant) (engine.NVTMethod, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nvt needs a group", dynamo.ErrConfiguration)
	}
	return &NVT{group: g, nhThermostat: nhThermostat{tau: tau, t: t}}, nil
}

func (m *NVT) Group() *dynamo.Group { return m.group }

func (m *NVT) stepOne(s *System, step uint64, dt float64) {
	m.halfKick(s, m.group, step, dt)
}

func (m *NVT) stepTwo(s *System, _ uint64, dt float64) {
	m.finishKick(s, m.group, dt)
}

// BDNVT is NVE plus a Langevin heat bath: a drag -γv and a uniform random
// force whose magnitude follows from fluctuation–dissipation.
type BDNVT struct {
	group     *dynamo.Group
	t         variant.Variant
	gamma     []float64
	gammaDiam bool
	rng       *rand.Rand
	displacementLimit
}

func (s *System) NewBDNVT(g *dynamo.Group, t variant.Variant, seed int64, gammaDiam bool) (engine.BDNVTMethod, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: bdnvt needs a group", dynamo.ErrConfiguration)
	}
	gamma := make([]float64, len(s.typeNames))
	for i := range gamma {
		gamma[i] = 1.0
	}
	return &BDNVT{
		group:     g,
		t:         t,
		gamma:     gamma,
		gammaDiam: gammaDiam,
		rng:       rand.New(rand.NewSource(seed)),
	}, nil
}

func (m *BDNVT) Group() *dynamo.Group   { return m.group }
func (m *BDNVT) SetT(t variant.Variant) { m.t = t }

// SetGamma ignores type ids the system does not have.
func (m *BDNVT) SetGamma(typeID int, gamma float64) {
	if typeID < 0 || typeID >= len(m.gamma) {
		return
	}
	m.gamma[typeID] = gamma
}

// Gamma returns the drag for a type id.
func (m *BDNVT) Gamma(typeID int) float64 {
	if typeID < 0 || typeID >= len(m.gamma) {
		return 0
	}
	return m.gamma[typeID]
}

func (m *BDNVT) stepOne(s *System, _ uint64, dt float64) {
	halfDt := 0.5 * dt
	m.group.Each(func(i uint32) {
		a := s.force[i].Scale(1 / s.mass[i])
		s.vel[i] = s.vel[i].Add(a.Scale(halfDt))
		dx := m.clampDisplacement(s.vel[i].Scale(dt))
		s.pos[i] = s.box.Wrap(s.pos[i].Add(dx))
	})
}

func (m *BDNVT) stepTwo(s *System, step uint64, dt float64) {
	halfDt := 0.5 * dt
	kT := m.t.Eval(step)
	if kT < 0 {
		kT = 0
	}
	m.group.Each(func(i uint32) {
		gamma := m.gamma[s.typeID[i]]
		if m.gammaDiam {
			gamma = s.diameter[i]
		}
		coeff := math.Sqrt(6 * gamma * kT / dt)
		bath := dynamo.Vec3{
			(m.rng.Float64()*2 - 1) * coeff,
			(m.rng.Float64()*2 - 1) * coeff,
			(m.rng.Float64()*2 - 1) * coeff,
		}
		bath = bath.Sub(s.vel[i].Scale(gamma))

		// the bath force stays in the net force so the next step-one
		// half kick applies it as well
		s.force[i] = s.force[i].Add(bath)
		a := s.force[i].Scale(1 / s.mass[i])
		s.vel[i] = m.clampVelocity(s.vel[i].Add(a.Scale(halfDt)), dt)
	})
}

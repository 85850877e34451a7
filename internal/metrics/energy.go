package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/mdsim/internal/dynamo"
)

// kinetic returns the total kinetic energy of a snapshot.
func kinetic(snap dynamo.Snapshot) float64 {
	v2 := make([]float64, len(snap.Vel))
	for i, v := range snap.Vel {
		v2[i] = v.Dot(v)
	}
	return 0.5 * floats.Dot(snap.Mass, v2)
}

// temperature uses 3 translational degrees of freedom per particle.
func temperature(snap dynamo.Snapshot) float64 {
	dof := 3 * snap.N()
	if dof == 0 {
		return 0
	}
	return 2 * kinetic(snap) / float64(dof)
}

// pressure is the virial pressure (2K + W) / 3V.
func pressure(snap dynamo.Snapshot) float64 {
	v := snap.Box.Volume()
	if v == 0 {
		return 0
	}
	return (2*kinetic(snap) + snap.Virial) / (3 * v)
}

// mean is the shared accumulator behind the averaging metrics.
type mean struct {
	name    string
	fn      func(dynamo.Snapshot) float64
	sum     float64
	last    float64
	samples int
}

func (m *mean) Name() string { return m.name }

func (m *mean) Observe(snap dynamo.Snapshot) {
	m.last = m.fn(snap)
	m.sum += m.last
	m.samples++
}

// Value is the mean over all observations since the last Reset.
func (m *mean) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *mean) Last() float64 { return m.last }

func (m *mean) Reset() {
	m.sum = 0
	m.last = 0
	m.samples = 0
}

func NewKinetic() Metric     { return &mean{name: "kinetic_energy", fn: kinetic} }
func NewTemperature() Metric { return &mean{name: "temperature", fn: temperature} }
func NewPressure() Metric    { return &mean{name: "pressure", fn: pressure} }

func NewPotential() Metric {
	return &mean{name: "potential_energy", fn: func(s dynamo.Snapshot) float64 { return s.PotentialEnergy }}
}

func NewTotalEnergy() Metric {
	return &mean{name: "total_energy", fn: func(s dynamo.Snapshot) float64 { return kinetic(s) + s.PotentialEnergy }}
}

// NewMomentum tracks the magnitude of the total linear momentum.
func NewMomentum() Metric {
	return &mean{name: "momentum", fn: func(s dynamo.Snapshot) float64 {
		var p dynamo.Vec3
		for i, v := range s.Vel {
			p = p.Add(v.Scale(s.Mass[i]))
		}
		return p.Norm()
	}}
}

// EnergyDrift is the largest relative deviation of the total energy from
// its first observed value.
type EnergyDrift struct {
	initial  float64
	drift    float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift() *EnergyDrift { return &EnergyDrift{} }

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(snap dynamo.Snapshot) {
	energy := kinetic(snap) + snap.PotentialEnergy
	if e.samples == 0 {
		e.initial = energy
	}
	e.samples++

	if e.initial != 0 {
		e.drift = math.Abs(energy-e.initial) / math.Abs(e.initial)
		e.maxDrift = math.Max(e.maxDrift, e.drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }
func (e *EnergyDrift) Last() float64  { return e.drift }

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.drift = 0
	e.maxDrift = 0
	e.samples = 0
}

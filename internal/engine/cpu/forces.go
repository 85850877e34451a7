package cpu

import (
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine"
)

// forceTerm accumulates into the system's force, energy and virial arrays.
type forceTerm interface {
	engine.ForceCompute
	accumulate(s *System)
}

func (s *System) computeForces(terms []forceTerm) {
	for i := range s.force {
		s.force[i] = dynamo.Vec3{}
		s.energy[i] = 0
		s.virial[i] = 0
	}
	for _, t := range terms {
		t.accumulate(s)
	}
}

type ljParams struct {
	epsilon float64
	sigma   float64
	rCut    float64
	set     bool
}

// PairLJ is a 12-6 Lennard-Jones pair force.
type PairLJ struct {
	ntypes int
	params []ljParams
}

func (s *System) NewPairLJ() (engine.PairForce, error) {
	nt := len(s.typeNames)
	return &PairLJ{ntypes: nt, params: make([]ljParams, nt*nt)}, nil
}

func (p *PairLJ) Name() string { return "pair.lj" }

func (p *PairLJ) SetParams(typeA, typeB int, epsilon, sigma, rCut float64) {
	if typeA < 0 || typeB < 0 || typeA >= p.ntypes || typeB >= p.ntypes {
		return
	}
	v := ljParams{epsilon: epsilon, sigma: sigma, rCut: rCut, set: true}
	p.params[typeA*p.ntypes+typeB] = v
	p.params[typeB*p.ntypes+typeA] = v
}

// accumulate visits every ordered pair so each worker only writes the rows
// it owns. Energy and virial are halved per row to count each pair once.
func (p *PairLJ) accumulate(s *System) {
	n := len(s.pos)
	dynamo.ParallelFor(n, 16, s.workers, func(start, end int) {
		for i := start; i < end; i++ {
			xi := s.pos[i]
			ti := s.typeID[i]
			var fi dynamo.Vec3
			var ei, wi float64

			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				prm := p.params[ti*p.ntypes+s.typeID[j]]
				if !prm.set || prm.epsilon == 0 {
					continue
				}

				d := s.box.MinImage(xi.Sub(s.pos[j]))
				r2 := d.Dot(d)
				if r2 >= prm.rCut*prm.rCut || r2 == 0 {
					continue
				}

				sr2 := prm.sigma * prm.sigma / r2
				sr6 := sr2 * sr2 * sr2
				sr12 := sr6 * sr6

				fmag := 24 * prm.epsilon * (2*sr12 - sr6) / r2
				f := d.Scale(fmag)
				fi = fi.Add(f)
				ei += 0.5 * 4 * prm.epsilon * (sr12 - sr6)
				wi += 0.5 * f.Dot(d)
			}

			s.force[i] = s.force[i].Add(fi)
			s.energy[i] += ei
			s.virial[i] += wi
		}
	})
}

// ConstantForce applies a fixed force vector to every member of a group.
type ConstantForce struct {
	group *dynamo.Group
	f     dynamo.Vec3
}

func (s *System) NewConstantForce(g *dynamo.Group, f dynamo.Vec3) (engine.ForceCompute, error) {
	return &ConstantForce{group: g, f: f}, nil
}

func (c *ConstantForce) Name() string { return "force.constant" }

func (c *ConstantForce) accumulate(s *System) {
	c.group.Each(func(i uint32) {
		s.force[i] = s.force[i].Add(c.f)
	})
}

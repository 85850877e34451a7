package dynamo

import (
	"fmt"
	"math"
	"sort"
)

type Vec3 [3]float64

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }
func (v Vec3) Dot(o Vec3) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

func (v Vec3) Scale(factor float64) Vec3 {
	return Vec3{v[0] * factor, v[1] * factor, v[2] * factor}
}

func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

func (v Vec3) IsValid() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Group is an immutable, named selection of particle indices.
type Group struct {
	name    string
	members []uint32
}

// NewGroup copies and sorts idx; duplicate indices are dropped.
func NewGroup(name string, idx []uint32) *Group {
	members := make([]uint32, len(idx))
	copy(members, idx)
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

	out := members[:0]
	for i, m := range members {
		if i > 0 && m == members[i-1] {
			continue
		}
		out = append(out, m)
	}
	return &Group{name: name, members: out}
}

func (g *Group) Name() string { return g.name }
func (g *Group) Len() int     { return len(g.members) }

// Members returns a copy of the sorted member indices.
func (g *Group) Members() []uint32 {
	c := make([]uint32, len(g.members))
	copy(c, g.members)
	return c
}

// Each calls fn for every member in ascending order.
func (g *Group) Each(fn func(i uint32)) {
	for _, m := range g.members {
		fn(m)
	}
}

// Overlaps reports whether g and o share at least one particle.
func (g *Group) Overlaps(o *Group) bool {
	i, j := 0, 0
	for i < len(g.members) && j < len(o.members) {
		switch {
		case g.members[i] == o.members[j]:
			return true
		case g.members[i] < o.members[j]:
			i++
		default:
			j++
		}
	}
	return false
}

func (g *Group) String() string {
	return fmt.Sprintf("group(%s, %d particles)", g.name, len(g.members))
}

// Box is a periodic orthorhombic simulation box centred on the origin.
type Box struct {
	L Vec3
}

func (b Box) Volume() float64 { return b.L[0] * b.L[1] * b.L[2] }

// MinImage applies the minimum-image convention to a separation vector.
func (b Box) MinImage(d Vec3) Vec3 {
	for k := 0; k < 3; k++ {
		d[k] -= b.L[k] * math.Round(d[k]/b.L[k])
	}
	return d
}

// Wrap folds a position back into the box.
func (b Box) Wrap(p Vec3) Vec3 {
	for k := 0; k < 3; k++ {
		p[k] -= b.L[k] * math.Floor(p[k]/b.L[k]+0.5)
	}
	return p
}

// Snapshot is a read-only view of the particle data handed to analyzers.
// The slices alias engine storage and must not be retained.
type Snapshot struct {
	Step            uint64
	Time            float64
	Box             Box
	Pos             []Vec3
	Vel             []Vec3
	Mass            []float64
	PotentialEnergy float64
	Virial          float64
}

func (s Snapshot) N() int { return len(s.Pos) }

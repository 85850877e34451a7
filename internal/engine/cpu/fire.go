package cpu

import (
	"fmt"
	"math"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine"
)

// FIRE is the fast inertial relaxation engine: velocity Verlet over one
// group, with the velocities steered along the force and the step grown
// while the power F·v stays positive. The step never exceeds the dt it was
// given.
type FIRE struct {
	attachments
	group *dynamo.Group

	nmin       uint
	finc       float64
	fdec       float64
	alphaStart float64
	falpha     float64
	ftol       float64
	etol       float64
	minSteps   uint64

	dtMax          float64
	alpha          float64
	nSinceNegative uint
	nSinceStart    uint64
	oldEnergy      float64
	converged      bool
	stopPending    bool
}

func (s *System) NewFIREDriver(p engine.FIREParams) (engine.FIREDriver, error) {
	if p.Dt <= 0 {
		return nil, fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrConfiguration, p.Dt)
	}
	if p.Group == nil {
		return nil, fmt.Errorf("%w: fire needs a group", dynamo.ErrConfiguration)
	}
	d := &FIRE{
		attachments: attachments{dt: p.Dt},
		group:       p.Group,
		nmin:        p.Nmin,
		finc:        p.Finc,
		fdec:        p.Fdec,
		alphaStart:  p.AlphaStart,
		falpha:      p.Falpha,
		ftol:        p.Ftol,
		etol:        p.Etol,
		minSteps:    p.MinSteps,
		dtMax:       p.Dt,
	}
	d.Reset()
	return d, nil
}

// SetDeltaT sets both the current step and the ceiling the search grows
// toward.
func (d *FIRE) SetDeltaT(dt float64) { d.dt, d.dtMax = dt, dt }

func (d *FIRE) SetNmin(n uint)              { d.nmin = n }
func (d *FIRE) SetFinc(f float64)           { d.finc = f }
func (d *FIRE) SetFdec(f float64)           { d.fdec = f }
func (d *FIRE) SetAlphaStart(alpha float64) { d.alphaStart = alpha }
func (d *FIRE) SetFalpha(f float64)         { d.falpha = f }
func (d *FIRE) SetFtol(ftol float64)        { d.ftol = ftol }
func (d *FIRE) SetEtol(etol float64)        { d.etol = etol }
func (d *FIRE) SetMinSteps(n uint64)        { d.minSteps = n }
func (d *FIRE) HasConverged() bool          { return d.converged }

// Alpha is the current mixing coefficient.
func (d *FIRE) Alpha() float64 { return d.alpha }

func (d *FIRE) Reset() {
	d.converged = false
	d.nSinceNegative = 0
	d.nSinceStart = 0
	d.alpha = d.alphaStart
	d.oldEnergy = math.Inf(1)
	d.dt = d.dtMax
	d.stopPending = true
}

func (d *FIRE) validate() error {
	if err := d.validateAttachments(); err != nil {
		return err
	}
	if len(d.methods) > 0 {
		return fmt.Errorf("%w: fire does not accept integration methods", dynamo.ErrConfiguration)
	}
	return nil
}

func (d *FIRE) advance(s *System, _ uint64) {
	if d.converged || d.group.Len() == 0 {
		return
	}
	if d.stopPending {
		d.group.Each(func(i uint32) { s.vel[i] = dynamo.Vec3{} })
		d.stopPending = false
	}

	dt := d.dt
	halfDt := 0.5 * dt
	d.group.Each(func(i uint32) {
		a := s.force[i].Scale(1 / s.mass[i])
		s.vel[i] = s.vel[i].Add(a.Scale(halfDt))
		s.pos[i] = s.box.Wrap(s.pos[i].Add(s.vel[i].Scale(dt)))
	})
	s.computeForces(d.forces)

	var power, fsq, vsq, pe float64
	d.group.Each(func(i uint32) {
		a := s.force[i].Scale(1 / s.mass[i])
		s.vel[i] = s.vel[i].Add(a.Scale(halfDt))
		power += s.force[i].Dot(s.vel[i])
		fsq += s.force[i].Dot(s.force[i])
		vsq += s.vel[i].Dot(s.vel[i])
		pe += s.energy[i]
	})

	n := float64(d.group.Len())
	energy := pe / n
	fnorm := math.Sqrt(fsq)
	if d.nSinceStart >= d.minSteps && fnorm/math.Sqrt(3*n) < d.ftol && math.Abs(energy-d.oldEnergy) < d.etol {
		d.converged = true
		return
	}

	if power > 0 {
		if fnorm > 0 {
			mix := d.alpha * math.Sqrt(vsq) / fnorm
			d.group.Each(func(i uint32) {
				s.vel[i] = s.vel[i].Scale(1 - d.alpha).Add(s.force[i].Scale(mix))
			})
		}
		d.nSinceNegative++
		if d.nSinceNegative > d.nmin {
			d.dt = math.Min(d.dt*d.finc, d.dtMax)
			d.alpha *= d.falpha
		}
	} else {
		d.dt *= d.fdec
		d.alpha = d.alphaStart
		d.nSinceNegative = 0
		d.group.Each(func(i uint32) { s.vel[i] = dynamo.Vec3{} })
	}

	d.oldEnergy = energy
	d.nSinceStart++
}

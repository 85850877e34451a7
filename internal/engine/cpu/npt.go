package cpu

import (
	"fmt"
	"math"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine"
	"github.com/san-kum/mdsim/internal/variant"
)

// maxBoxScale bounds the per-step isotropic box rescale.
const maxBoxScale = 0.01

// NPT integrates every particle under a Nosé–Hoover thermostat and rescales
// the box toward the pressure setpoint (Berendsen coupling). It accepts no
// integration methods.
type NPT struct {
	attachments
	nhThermostat
	all  *dynamo.Group
	p    variant.Variant
	tauP float64
}

func (s *System) NewNPTDriver(p engine.NPTParams) (engine.NPTDriver, error) {
	if p.Dt <= 0 {
		return nil, fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrConfiguration, p.Dt)
	}
	return &NPT{
		attachments:  attachments{dt: p.Dt},
		nhThermostat: nhThermostat{tau: p.Tau, t: p.T},
		all:          s.GroupAll(),
		p:            p.P,
		tauP:         p.TauP,
	}, nil
}

func (d *NPT) SetP(p variant.Variant) { d.p = p }
func (d *NPT) SetTauP(tauP float64)   { d.tauP = tauP }

func (d *NPT) validate() error {
	if err := d.validateAttachments(); err != nil {
		return err
	}
	if len(d.methods) > 0 {
		return fmt.Errorf("%w: npt does not accept integration methods", dynamo.ErrConfiguration)
	}
	return nil
}

func (d *NPT) advance(s *System, step uint64) {
	d.halfKick(s, d.all, step, d.dt)
	s.computeForces(d.forces)
	d.finishKick(s, d.all, d.dt)

	if d.tauP <= 0 {
		return
	}
	mu := 1 - d.dt/d.tauP*(d.p.Eval(step)-pressure(s))
	mu = math.Cbrt(math.Max(mu, 0))
	mu = math.Min(math.Max(mu, 1-maxBoxScale), 1+maxBoxScale)

	s.box.L = s.box.L.Scale(mu)
	for i := range s.pos {
		s.pos[i] = s.pos[i].Scale(mu)
	}
}

// pressure is the instantaneous virial pressure (2K + W) / 3V.
func pressure(s *System) float64 {
	ke, w := 0.0, 0.0
	for i := range s.vel {
		ke += 0.5 * s.mass[i] * s.vel[i].Dot(s.vel[i])
		w += s.virial[i]
	}
	return (2*ke + w) / (3 * s.box.Volume())
}

// Package engine declares the narrow interface between the integration
// layer and the particle engine that does the numerical work.
//
// The integration layer only ever holds these handles; it never looks
// inside them. Implementations live in subpackages (see engine/cpu).
package engine

import (
	"context"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/variant"
)

// ForceCompute is an engine-side force contribution.
type ForceCompute interface {
	Name() string
}

// PairForce is a force with per-type-pair coefficients.
type PairForce interface {
	ForceCompute
	SetParams(typeA, typeB int, epsilon, sigma, rCut float64)
}

// Method is an engine-side integration method bound to one group.
type Method interface {
	Group() *dynamo.Group
}

type NVEMethod interface {
	Method
	SetLimit(limit float64)
	RemoveLimit()
}

type NVTMethod interface {
	Method
	SetT(t variant.Variant)
	SetTau(tau float64)
}

type BDNVTMethod interface {
	Method
	SetT(t variant.Variant)
	SetLimit(limit float64)
	RemoveLimit()
	SetGamma(typeID int, gamma float64)
}

// Driver is the engine integrator a mode configures before each run.
type Driver interface {
	SetDeltaT(dt float64)
	DeltaT() float64
	RemoveForceComputes()
	AddForceCompute(f ForceCompute)
	RemoveAllIntegrationMethods()
	AddIntegrationMethod(m Method)
}

type NPTDriver interface {
	Driver
	SetT(t variant.Variant)
	SetTau(tau float64)
	SetP(p variant.Variant)
	SetTauP(tauP float64)
}

// NPTParams configures an NPT driver at construction.
type NPTParams struct {
	Dt   float64
	Tau  float64
	TauP float64
	T    variant.Variant
	P    variant.Variant
}

// FIREDriver relaxes one group toward the nearest potential energy minimum
// with an adaptive step (FIRE). It accepts no integration methods.
type FIREDriver interface {
	Driver
	SetNmin(n uint)
	SetFinc(f float64)
	SetFdec(f float64)
	SetAlphaStart(alpha float64)
	SetFalpha(f float64)
	SetFtol(ftol float64)
	SetEtol(etol float64)
	SetMinSteps(n uint64)
	// Reset zeroes the group's velocities and restarts the search.
	Reset()
	HasConverged() bool
}

// FIREParams configures a FIRE driver at construction. Dt is the largest
// step the search may take.
type FIREParams struct {
	Dt         float64
	Group      *dynamo.Group
	Nmin       uint
	Finc       float64
	Fdec       float64
	AlphaStart float64
	Falpha     float64
	Ftol       float64
	Etol       float64
	MinSteps   uint64
}

// System is the engine's simulation definition: particle data, group
// provider, handle factories and the run loop.
type System interface {
	NumParticles() int
	NumTypes() int
	TypeName(id int) string
	TypeID(name string) (int, bool)

	GroupAll() *dynamo.Group
	GroupType(name string) (*dynamo.Group, error)
	GroupFilter(name string, keep func(i int) bool) *dynamo.Group

	NewTwoStepDriver(dt float64) (Driver, error)
	NewNPTDriver(p NPTParams) (NPTDriver, error)
	NewFIREDriver(p FIREParams) (FIREDriver, error)
	NewNVE(g *dynamo.Group) (NVEMethod, error)
	NewNVT(g *dynamo.Group, tau float64, t variant.Variant) (NVTMethod, error)
	NewBDNVT(g *dynamo.Group, t variant.Variant, seed int64, gammaDiam bool) (BDNVTMethod, error)
	NewPairLJ() (PairForce, error)
	NewConstantForce(g *dynamo.Group, f dynamo.Vec3) (ForceCompute, error)

	// SetIntegrator installs d as the driver used by the next Run.
	SetIntegrator(d Driver)
	Timestep() uint64
	Run(ctx context.Context, steps uint64) error
}

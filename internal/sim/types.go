package sim

import "github.com/san-kum/mdsim/internal/engine"

// Force is a registered force contribution. Handle may return nil if the
// engine object was never created or was released.
type Force interface {
	Handle() engine.ForceCompute
	// UpdateCoeffs pushes coefficients to the engine before a run.
	UpdateCoeffs() error
}

// Method is a registered integration method.
type Method interface {
	Handle() engine.Method
}

// Integrator is an integrator mode: it owns the engine driver and knows how
// to attach the registry's forces and methods to it.
type Integrator interface {
	Driver() engine.Driver
	SupportsMethods() bool
	Attach(forces []Force, methods []Method) error
}

package integrate_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine/enginetest"
	"github.com/san-kum/mdsim/internal/integrate"
	"github.com/san-kum/mdsim/internal/sim"
)

var _ = Describe("FIRE mode", func() {
	var (
		ctx *sim.Context
		sys *enginetest.System
		cfg integrate.FIREConfig
	)

	BeforeEach(func() {
		ctx, sys, _ = newContext("A", "B")
		cfg = integrate.DefaultFIREConfig(sys.GroupAll(), 0.005)
	})

	It("binds a group and becomes the active integrator", func() {
		m, err := integrate.NewFIRE(ctx, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(ctx.Integrator()).To(BeIdenticalTo(m))
		Expect(m.Name()).To(Equal("fire"))
		Expect(m.Group().Name()).To(Equal("all"))
		Expect(m.SupportsMethods()).To(BeFalse())

		d := m.Driver().(*enginetest.FIREDriver)
		Expect(d.Params.Group).To(BeIdenticalTo(cfg.Group))
		Expect(d.Params.Nmin).To(Equal(uint(5)))
		Expect(d.Params.Ftol).To(Equal(0.1))
	})

	It("rejects bad constants", func() {
		for _, mutate := range []func(*integrate.FIREConfig){
			func(c *integrate.FIREConfig) { c.DT = 0 },
			func(c *integrate.FIREConfig) { c.Group = nil },
			func(c *integrate.FIREConfig) { c.Finc = 1 },
			func(c *integrate.FIREConfig) { c.Fdec = 1 },
			func(c *integrate.FIREConfig) { c.AlphaStart = 0 },
			func(c *integrate.FIREConfig) { c.Falpha = 1.5 },
			func(c *integrate.FIREConfig) { c.Ftol = 0 },
			func(c *integrate.FIREConfig) { c.Etol = -1 },
		} {
			bad := cfg
			mutate(&bad)
			_, err := integrate.NewFIRE(ctx, bad)
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
		}
		Expect(ctx.Integrator()).To(BeNil())
	})

	It("requires an initialized context", func() {
		_, err := integrate.NewFIRE(sim.New(nil, nil), cfg)
		Expect(err).To(MatchError(dynamo.ErrInitialization))
	})

	It("fails refresh when a method is enabled", func() {
		m, _ := integrate.NewFIRE(ctx, cfg)
		Expect(m.Refresh()).To(Succeed())

		nve, _ := integrate.NewNVE(ctx, sys.GroupAll(), integrate.Limit{})
		Expect(m.Refresh()).To(MatchError(dynamo.ErrConfiguration))
		Expect(nve.Disable()).To(Succeed())
		Expect(m.Refresh()).To(Succeed())
	})

	It("pushes present parameters only", func() {
		m, _ := integrate.NewFIRE(ctx, cfg)
		d := m.Driver().(*enginetest.FIREDriver)
		d.Calls = nil

		nmin := uint(8)
		steps := uint64(50)
		Expect(m.SetParams(integrate.FIREParams{
			Nmin:     &nmin,
			Ftol:     integrate.Float(1e-3),
			MinSteps: &steps,
		})).To(Succeed())
		Expect(d.Calls).To(Equal([]string{"nmin 8", "ftol 0.001", "min_steps 50"}))

		Expect(m.SetParams(integrate.FIREParams{})).To(Succeed())
		Expect(d.Calls).To(HaveLen(3))
	})

	It("leaves the driver alone when a parameter is invalid", func() {
		m, _ := integrate.NewFIRE(ctx, cfg)
		d := m.Driver().(*enginetest.FIREDriver)
		err := m.SetParams(integrate.FIREParams{DT: integrate.Float(0.01), Fdec: integrate.Float(2)})
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
		Expect(d.Dt).To(Equal(0.005))
	})

	It("reports convergence and resets", func() {
		m, _ := integrate.NewFIRE(ctx, cfg)
		d := m.Driver().(*enginetest.FIREDriver)
		Expect(m.Converged()).To(BeFalse())

		d.Converged = true
		Expect(m.Converged()).To(BeTrue())
		Expect(m.Reset()).To(Succeed())
		Expect(m.Converged()).To(BeFalse())
		Expect(d.Resets).To(Equal(1))
	})

	It("fails on a mode that was never established", func() {
		var m integrate.FIRE
		Expect(m.SetParams(integrate.FIREParams{})).To(MatchError(dynamo.ErrState))
		Expect(m.Reset()).To(MatchError(dynamo.ErrState))
		Expect(m.Converged()).To(BeFalse())
	})
})

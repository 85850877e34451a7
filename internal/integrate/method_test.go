package integrate_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine/enginetest"
	"github.com/san-kum/mdsim/internal/integrate"
	"github.com/san-kum/mdsim/internal/sim"
	"github.com/san-kum/mdsim/internal/variant"
)

func handleOf(m integrate.Method) *enginetest.Method {
	return m.Handle().(*enginetest.Method)
}

var _ = Describe("Integration methods", func() {
	var (
		ctx  *sim.Context
		sys  *enginetest.System
		logs *bytes.Buffer
	)

	BeforeEach(func() {
		ctx, sys, logs = newContext("A", "B")
	})

	Describe("construction", func() {
		It("requires an initialized context", func() {
			_, err := integrate.NewNVE(sim.New(nil, nil), sys.GroupAll(), integrate.Limit{})
			Expect(err).To(MatchError(dynamo.ErrInitialization))
			_, err = integrate.NewNVT(nil, sys.GroupAll(), variant.Constant(1), 0.5)
			Expect(err).To(MatchError(dynamo.ErrInitialization))
		})

		It("requires a group", func() {
			_, err := integrate.NewBDNVT(ctx, nil, variant.Constant(1), integrate.BDNVTOptions{})
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
			Expect(ctx.Methods()).To(BeEmpty())
		})

		It("registers the method as enabled", func() {
			m, err := integrate.NewNVE(ctx, sys.GroupAll(), integrate.Limit{})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Enabled()).To(BeTrue())
			Expect(m.Kind()).To(Equal(integrate.KindNVE))
			Expect(m.Group().Name()).To(Equal("all"))
			Expect(ctx.Methods()).To(ConsistOf(m))
			Expect(logs.String()).To(ContainSubstring("op=create"))
		})

		It("rejects a non-positive tau", func() {
			_, err := integrate.NewNVT(ctx, sys.GroupAll(), variant.Constant(1), 0)
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
		})
	})

	Describe("enable and disable", func() {
		var a, b, c *integrate.NVE

		BeforeEach(func() {
			ga, _ := sys.GroupType("A")
			gb, _ := sys.GroupType("B")
			a, _ = integrate.NewNVE(ctx, sys.GroupAll(), integrate.Limit{})
			b, _ = integrate.NewNVE(ctx, ga, integrate.Limit{})
			c, _ = integrate.NewNVE(ctx, gb, integrate.Limit{})
			logs.Reset()
		})

		It("ignores enabling an enabled method with a warning", func() {
			Expect(a.Enable()).To(Succeed())
			Expect(ctx.Methods()).To(Equal([]sim.Method{a, b, c}))
			Expect(logs.String()).To(ContainSubstring("level=warn"))
		})

		It("ignores a second disable with a warning", func() {
			Expect(a.Disable()).To(Succeed())
			Expect(ctx.Methods()).To(Equal([]sim.Method{b, c}))
			Expect(logs.String()).NotTo(ContainSubstring("level=warn"))

			Expect(a.Disable()).To(Succeed())
			Expect(a.Enabled()).To(BeFalse())
			Expect(ctx.Methods()).To(Equal([]sim.Method{b, c}))
			Expect(logs.String()).To(ContainSubstring("already disabled"))
		})

		It("appends a re-enabled method to the end", func() {
			Expect(a.Disable()).To(Succeed())
			Expect(a.Enable()).To(Succeed())
			Expect(ctx.Methods()).To(Equal([]sim.Method{b, c, a}))

			Expect(c.Disable()).To(Succeed())
			Expect(c.Enable()).To(Succeed())
			Expect(ctx.Methods()).To(Equal([]sim.Method{b, a, c}))
		})

		It("can be enabled again after the context is reset", func() {
			ctx.Reset()
			Expect(a.Enabled()).To(BeFalse())
			Expect(ctx.Methods()).To(BeEmpty())

			mode, err := integrate.NewStandard(ctx, 0.005)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Enable()).To(Succeed())
			Expect(a.Enabled()).To(BeTrue())
			Expect(ctx.Methods()).To(Equal([]sim.Method{a}))
			Expect(logs.String()).NotTo(ContainSubstring("already enabled"))
			Expect(ctx.Refresh(mode)).To(Succeed())
		})

		It("fails on a method that was never established", func() {
			var m integrate.NVE
			Expect(m.Enable()).To(MatchError(dynamo.ErrState))
			Expect(m.Disable()).To(MatchError(dynamo.ErrState))
			Expect(m.SetParams(integrate.NVEParams{Limit: integrate.Cap(1)})).To(MatchError(dynamo.ErrState))
		})
	})

	Describe("NVE", func() {
		It("sets and removes the displacement limit", func() {
			integrate.NewStandard(ctx, 0.005)
			m, _ := integrate.NewNVE(ctx, sys.GroupAll(), integrate.Limit{})
			h := handleOf(m)

			Expect(m.SetParams(integrate.NVEParams{Limit: integrate.Cap(0.01)})).To(Succeed())
			Expect(h.Limited).To(BeTrue())
			Expect(h.Limit).To(Equal(0.01))

			Expect(m.SetParams(integrate.NVEParams{Limit: integrate.NoLimit})).To(Succeed())
			Expect(m.Limit()).To(Equal(integrate.NoLimit))

			Expect(ctx.Integrator().(*integrate.Standard).Refresh()).To(Succeed())
			d := ctx.Integrator().Driver().(*enginetest.Driver)
			Expect(d.Methods).To(HaveLen(1))
			Expect(d.Methods[0].(*enginetest.Method).Limited).To(BeFalse())
		})

		It("applies a limit given at construction", func() {
			m, _ := integrate.NewNVE(ctx, sys.GroupAll(), integrate.Cap(0.2))
			Expect(handleOf(m).Limit).To(Equal(0.2))
			Expect(m.Limit()).To(Equal(integrate.Cap(0.2)))
		})

		It("does not touch the handle without fields", func() {
			m, _ := integrate.NewNVE(ctx, sys.GroupAll(), integrate.Limit{})
			Expect(m.SetParams(integrate.NVEParams{})).To(Succeed())
			Expect(handleOf(m).Pushes).To(BeZero())
		})

		It("rejects a non-positive cap", func() {
			m, _ := integrate.NewNVE(ctx, sys.GroupAll(), integrate.Limit{})
			Expect(m.SetParams(integrate.NVEParams{Limit: integrate.Cap(-1)})).To(MatchError(dynamo.ErrConfiguration))
			Expect(handleOf(m).Pushes).To(BeZero())
		})
	})

	Describe("NVT", func() {
		It("swaps the temperature variant and tau", func() {
			m, _ := integrate.NewNVT(ctx, sys.GroupAll(), variant.Constant(1), 0.5)
			ramp := variant.MustLinear(variant.Point{Step: 0, Value: 4}, variant.Point{Step: 1_000_000, Value: 1})

			Expect(m.SetParams(integrate.NVTParams{T: &ramp})).To(Succeed())
			Expect(handleOf(m).T.Eval(500_000)).To(BeNumerically("~", 2.5, 1e-12))
			Expect(handleOf(m).Tau).To(Equal(0.5))

			Expect(m.SetParams(integrate.NVTParams{Tau: integrate.Float(2)})).To(Succeed())
			Expect(m.Tau()).To(Equal(2.0))
			Expect(handleOf(m).Pushes).To(Equal(2))
		})
	})

	Describe("BDNVT", func() {
		var m *integrate.BDNVT

		BeforeEach(func() {
			var err error
			m, err = integrate.NewBDNVT(ctx, sys.GroupAll(), variant.Constant(1), integrate.BDNVTOptions{Seed: 12})
			Expect(err).NotTo(HaveOccurred())
		})

		It("passes the seed to the engine", func() {
			Expect(handleOf(m).Seed).To(BeEquivalentTo(12))
			Expect(m.Seed()).To(BeEquivalentTo(12))
		})

		It("defaults gamma to one", func() {
			Expect(m.Gamma("A")).To(Equal(1.0))
			Expect(m.Gamma("Z")).To(Equal(1.0))
		})

		It("pushes gamma for a known type", func() {
			Expect(m.SetGamma("B", 2.5)).To(Succeed())
			Expect(handleOf(m).Gamma).To(Equal(map[int]float64{1: 2.5}))
			Expect(m.Gamma("B")).To(Equal(2.5))
		})

		It("accepts gamma for a type the system lacks", func() {
			Expect(m.SetGamma("C", 3)).To(Succeed())
			Expect(handleOf(m).Gamma).To(BeEmpty())
			Expect(m.Gamma("C")).To(Equal(3.0))
			Expect(m.GammaTypes()).To(Equal([]string{"C"}))
		})

		It("rejects a negative gamma", func() {
			Expect(m.SetGamma("A", -1)).To(MatchError(dynamo.ErrConfiguration))
		})

		It("sets temperature and limit together", func() {
			t := variant.Constant(3)
			Expect(m.SetParams(integrate.BDNVTParams{T: &t, Limit: integrate.Cap(0.05)})).To(Succeed())
			Expect(handleOf(m).T.Eval(10)).To(Equal(3.0))
			Expect(handleOf(m).Limit).To(Equal(0.05))
			Expect(m.Limit()).To(Equal(integrate.Cap(0.05)))
		})
	})
})

package integrate_test

import (
	"bytes"
	"context"
	"errors"

	kitlog "github.com/go-kit/kit/log"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/engine"
	"github.com/san-kum/mdsim/internal/engine/enginetest"
	"github.com/san-kum/mdsim/internal/integrate"
	"github.com/san-kum/mdsim/internal/sim"
	"github.com/san-kum/mdsim/internal/variant"
)

type stubForce struct {
	handle  engine.ForceCompute
	updates int
	err     error
}

func (f *stubForce) Handle() engine.ForceCompute { return f.handle }
func (f *stubForce) UpdateCoeffs() error {
	f.updates++
	return f.err
}

func newContext(types ...string) (*sim.Context, *enginetest.System, *bytes.Buffer) {
	var buf bytes.Buffer
	sys := enginetest.New(8, types...)
	return sim.New(sys, kitlog.NewLogfmtLogger(&buf)), sys, &buf
}

var _ = Describe("Standard mode", func() {
	var (
		ctx *sim.Context
		sys *enginetest.System
	)

	BeforeEach(func() {
		ctx, sys, _ = newContext()
	})

	It("requires an initialized context", func() {
		_, err := integrate.NewStandard(sim.New(nil, nil), 0.005)
		Expect(err).To(MatchError(dynamo.ErrInitialization))
	})

	It("rejects a non-positive dt", func() {
		_, err := integrate.NewStandard(ctx, 0)
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
		_, err = integrate.NewStandard(ctx, -1)
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
	})

	It("becomes the active integrator", func() {
		m, err := integrate.NewStandard(ctx, 0.005)
		Expect(err).NotTo(HaveOccurred())
		Expect(ctx.Integrator()).To(BeIdenticalTo(m))
		Expect(sys.Installed).To(BeIdenticalTo(m.Driver()))
		Expect(m.SupportsMethods()).To(BeTrue())
		Expect(m.DT()).To(Equal(0.005))
	})

	It("replaces the previous mode without touching enabled methods", func() {
		first, _ := integrate.NewStandard(ctx, 0.005)
		nve, _ := integrate.NewNVE(ctx, sys.GroupAll(), integrate.Limit{})

		second, err := integrate.NewStandard(ctx, 0.002)
		Expect(err).NotTo(HaveOccurred())
		Expect(ctx.Integrator()).To(BeIdenticalTo(second))
		Expect(ctx.Integrator()).NotTo(BeIdenticalTo(first))
		Expect(nve.Enabled()).To(BeTrue())
		Expect(ctx.Methods()).To(HaveLen(1))
	})

	Describe("SetParams", func() {
		It("pushes dt to the driver", func() {
			m, _ := integrate.NewStandard(ctx, 0.005)
			Expect(m.SetParams(integrate.StandardParams{DT: integrate.Float(0.001)})).To(Succeed())
			Expect(m.Driver().DeltaT()).To(Equal(0.001))
		})

		It("does nothing without fields", func() {
			m, _ := integrate.NewStandard(ctx, 0.005)
			d := m.Driver().(*enginetest.Driver)
			Expect(m.SetParams(integrate.StandardParams{})).To(Succeed())
			Expect(d.Calls).To(BeEmpty())
		})

		It("rejects a bad dt", func() {
			m, _ := integrate.NewStandard(ctx, 0.005)
			Expect(m.SetParams(integrate.StandardParams{DT: integrate.Float(0)})).To(MatchError(dynamo.ErrConfiguration))
			Expect(m.DT()).To(Equal(0.005))
		})

		It("fails on a mode that was never established", func() {
			var m integrate.Standard
			Expect(m.SetParams(integrate.StandardParams{DT: integrate.Float(0.1)})).To(MatchError(dynamo.ErrState))
			Expect(m.Refresh()).To(MatchError(dynamo.ErrState))
		})
	})

	Describe("Refresh", func() {
		var m *integrate.Standard

		BeforeEach(func() {
			var err error
			m, err = integrate.NewStandard(ctx, 0.005)
			Expect(err).NotTo(HaveOccurred())
		})

		It("fails without enabled methods", func() {
			Expect(m.Refresh()).To(MatchError(dynamo.ErrConfiguration))
		})

		It("fails once the only method is disabled", func() {
			nve, _ := integrate.NewNVE(ctx, sys.GroupAll(), integrate.Limit{})
			Expect(m.Refresh()).To(Succeed())
			Expect(nve.Disable()).To(Succeed())
			Expect(m.Refresh()).To(MatchError(dynamo.ErrConfiguration))
		})

		It("clears, attaches forces with their coefficients, then methods in enabled order", func() {
			a, _ := sys.GroupType("A")
			f := &stubForce{handle: &enginetest.Force{ForceName: "pair.lj"}}
			Expect(ctx.AddForce(f)).To(Succeed())

			first, _ := integrate.NewNVE(ctx, a, integrate.Limit{})
			second, _ := integrate.NewNVT(ctx, sys.GroupFilter("odd", func(i int) bool { return i%2 == 1 }), variant.Constant(1), 0.5)
			Expect(first.Disable()).To(Succeed())
			Expect(first.Enable()).To(Succeed())

			Expect(m.Refresh()).To(Succeed())

			d := m.Driver().(*enginetest.Driver)
			Expect(d.Calls).To(Equal([]string{
				"clear forces",
				"clear methods",
				"add force pair.lj",
				"add method odd",
				"add method type A",
			}))
			Expect(d.Methods).To(Equal([]engine.Method{second.Handle(), first.Handle()}))
			Expect(f.updates).To(Equal(1))
		})

		It("rebuilds the lists on every refresh", func() {
			integrate.NewNVE(ctx, sys.GroupAll(), integrate.Limit{})
			Expect(m.Refresh()).To(Succeed())
			Expect(m.Refresh()).To(Succeed())

			d := m.Driver().(*enginetest.Driver)
			Expect(d.Methods).To(HaveLen(1))
		})

		It("treats a force without a handle as an internal error", func() {
			integrate.NewNVE(ctx, sys.GroupAll(), integrate.Limit{})
			Expect(ctx.AddForce(&stubForce{})).To(Succeed())
			Expect(m.Refresh()).To(MatchError(dynamo.ErrInternalInvariant))
		})

		It("propagates coefficient errors", func() {
			integrate.NewNVE(ctx, sys.GroupAll(), integrate.Limit{})
			boom := errors.New("missing coefficients")
			Expect(ctx.AddForce(&stubForce{handle: &enginetest.Force{ForceName: "pair.lj"}, err: boom})).To(Succeed())
			Expect(m.Refresh()).To(MatchError(boom))
		})
	})

	It("runs through the context", func() {
		integrate.NewStandard(ctx, 0.005)
		integrate.NewNVE(ctx, sys.GroupAll(), integrate.Limit{})

		Expect(ctx.Run(context.Background(), 50)).To(Succeed())
		Expect(sys.Steps).To(BeEquivalentTo(50))
	})
})

var _ = Describe("NPT mode", func() {
	var (
		ctx *sim.Context
		sys *enginetest.System
		cfg integrate.NPTConfig
	)

	BeforeEach(func() {
		ctx, sys, _ = newContext()
		cfg = integrate.NPTConfig{
			DT:   0.005,
			T:    variant.Constant(1.2),
			Tau:  0.5,
			P:    variant.Constant(1.0),
			TauP: 0.5,
		}
	})

	It("does not support methods", func() {
		m, err := integrate.NewNPT(ctx, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.SupportsMethods()).To(BeFalse())
		Expect(m.Refresh()).To(Succeed())
	})

	It("fails refresh when a method is enabled", func() {
		m, _ := integrate.NewNPT(ctx, cfg)
		integrate.NewNVE(ctx, sys.GroupAll(), integrate.Limit{})
		Expect(m.Refresh()).To(MatchError(dynamo.ErrConfiguration))
	})

	It("validates coupling constants", func() {
		bad := cfg
		bad.Tau = 0
		_, err := integrate.NewNPT(ctx, bad)
		Expect(err).To(MatchError(dynamo.ErrConfiguration))

		bad = cfg
		bad.TauP = -1
		_, err = integrate.NewNPT(ctx, bad)
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
	})

	It("pushes present parameters only", func() {
		m, _ := integrate.NewNPT(ctx, cfg)
		d := m.Driver().(*enginetest.Driver)

		p := variant.MustLinear(variant.Point{Step: 0, Value: 1}, variant.Point{Step: 1000, Value: 2})
		Expect(m.SetParams(integrate.NPTParams{P: &p, TauP: integrate.Float(2)})).To(Succeed())
		Expect(d.P.Eval(500)).To(BeNumerically("~", 1.5))
		Expect(d.TauP).To(Equal(2.0))
		Expect(d.Tau).To(Equal(0.5))
		Expect(d.T.Eval(0)).To(Equal(1.2))
	})

	It("leaves the driver alone when a parameter is invalid", func() {
		m, _ := integrate.NewNPT(ctx, cfg)
		d := m.Driver().(*enginetest.Driver)
		err := m.SetParams(integrate.NPTParams{DT: integrate.Float(0.01), Tau: integrate.Float(-1)})
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
		Expect(d.Dt).To(Equal(0.005))
	})

	It("fails on a mode that was never established", func() {
		var m integrate.NPT
		Expect(m.SetParams(integrate.NPTParams{})).To(MatchError(dynamo.ErrState))
	})
})

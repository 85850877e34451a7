package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/mdsim/internal/dynamo"
)

func TestConstant(t *testing.T) {
	v := Constant(1.25)
	for _, step := range []uint64{0, 1, 500, 1 << 40} {
		assert.Equal(t, 1.25, v.Eval(step), "step %d", step)
	}
	assert.Equal(t, KindConstant, v.Kind())
	assert.Nil(t, v.Points())
}

func TestLinearMidpoint(t *testing.T) {
	v, err := Linear([]Point{{0, 4.0}, {1_000_000, 1.0}})
	require.NoError(t, err)

	assert.InDelta(t, 2.5, v.Eval(500_000), 1e-12, "linear midpoint")
	assert.InDelta(t, 3.25, v.Eval(250_000), 1e-12, "quarter point")
}

func TestLinearClamps(t *testing.T) {
	v := MustLinear(Point{100, 2.0}, Point{200, 3.0})

	assert.Equal(t, 2.0, v.Eval(0), "before first point")
	assert.Equal(t, 2.0, v.Eval(100), "at first point")
	assert.Equal(t, 3.0, v.Eval(200), "at last point")
	assert.Equal(t, 3.0, v.Eval(1_000_000), "after last point")
}

func TestLinearSinglePoint(t *testing.T) {
	v := MustLinear(Point{10, 7.0})
	assert.Equal(t, 7.0, v.Eval(0))
	assert.Equal(t, 7.0, v.Eval(10))
	assert.Equal(t, 7.0, v.Eval(11))
}

func TestLinearExactInterpolation(t *testing.T) {
	pts := []Point{{0, 0}, {10, 10}, {20, 0}, {40, 5}}
	v := MustLinear(pts...)

	for i := 1; i < len(pts); i++ {
		p1, p2 := pts[i-1], pts[i]
		for step := p1.Step; step <= p2.Step; step++ {
			want := p1.Value + (p2.Value-p1.Value)*float64(step-p1.Step)/float64(p2.Step-p1.Step)
			assert.InDelta(t, want, v.Eval(step), 1e-12, "step %d", step)
		}
	}
}

func TestLinearMonotonicBetweenMonotonicPoints(t *testing.T) {
	v := MustLinear(Point{0, 4.0}, Point{1000, 1.0})
	prev := v.Eval(0)
	for step := uint64(1); step <= 1000; step++ {
		cur := v.Eval(step)
		assert.LessOrEqual(t, cur, prev, "step %d", step)
		prev = cur
	}
}

func TestLinearRejectsMalformedPoints(t *testing.T) {
	tests := []struct {
		name   string
		points []Point
	}{
		{"empty", nil},
		{"repeated step", []Point{{0, 1}, {0, 2}}},
		{"unordered", []Point{{10, 1}, {5, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Linear(tt.points)
			assert.ErrorIs(t, err, dynamo.ErrConfiguration)
		})
	}
}

func TestLinearCopiesInput(t *testing.T) {
	pts := []Point{{0, 1}, {10, 2}}
	v := MustLinear(pts...)
	pts[1].Value = 100

	assert.Equal(t, 2.0, v.Eval(10))
	got := v.Points()
	got[0].Value = -1
	assert.Equal(t, 1.0, v.Eval(0))
}

func TestParse(t *testing.T) {
	v, err := Parse("2.5")
	require.NoError(t, err)
	assert.Equal(t, KindConstant, v.Kind())
	assert.Equal(t, 2.5, v.Eval(99))

	v, err = Parse("0:4.0, 1e6:1.0")
	require.NoError(t, err)
	assert.Equal(t, KindLinear, v.Kind())
	assert.InDelta(t, 2.5, v.Eval(500_000), 1e-12)

	for _, bad := range []string{"", "abc", "0:1,0:2", "1.5:2", "-1:3", "0:x"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, dynamo.ErrConfiguration, "input %q", bad)
	}
}

func TestStringRoundTrip(t *testing.T) {
	v := MustLinear(Point{0, 4}, Point{1000, 1.5})
	assert.Equal(t, "0:4,1000:1.5", v.String())

	back, err := Parse(v.String())
	require.NoError(t, err)
	assert.Equal(t, v.Points(), back.Points())
}

func TestSample(t *testing.T) {
	v := MustLinear(Point{0, 0}, Point{100, 10})
	assert.Equal(t, []float64{0, 5, 10}, v.Sample(0, 100, 3))
	assert.Equal(t, []float64{0}, v.Sample(0, 100, 1))
	assert.Nil(t, v.Sample(0, 100, 0))
}

func TestYAML(t *testing.T) {
	var doc struct {
		T Variant `yaml:"T"`
		P Variant `yaml:"P"`
		Q Variant `yaml:"Q"`
	}
	src := "T: 1.5\nP: [[0, 4.0], [1000000, 1.0]]\nQ: \"0:1,10:2\"\n"
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))

	assert.Equal(t, 1.5, doc.T.Eval(7))
	assert.InDelta(t, 2.5, doc.P.Eval(500_000), 1e-12)
	assert.InDelta(t, 1.5, doc.Q.Eval(5), 1e-12)

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)

	var back struct {
		T Variant `yaml:"T"`
		P Variant `yaml:"P"`
	}
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, doc.P.Points(), back.P.Points())
	assert.Equal(t, 1.5, back.T.Eval(0))
}

func TestYAMLRejectsBadPoints(t *testing.T) {
	var doc struct {
		T Variant `yaml:"T"`
	}
	for _, src := range []string{"T: [[10, 1], [5, 2]]", "T: [[1.5, 2]]", "T: {a: 1}"} {
		err := yaml.Unmarshal([]byte(src), &doc)
		assert.ErrorIs(t, err, dynamo.ErrConfiguration, "input %q", src)
	}
}

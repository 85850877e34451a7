// Package variant implements control parameters whose value depends on the
// simulation time step.
package variant

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/mdsim/internal/dynamo"
)

type Kind int

const (
	KindConstant Kind = iota
	KindLinear
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindLinear:
		return "linear"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Point is one (step, value) control point of a linear variant.
type Point struct {
	Step  uint64
	Value float64
}

// Variant is either a constant or a piecewise-linear series over time
// steps. The zero Variant is the constant 0. Variants are immutable.
type Variant struct {
	kind   Kind
	value  float64
	points []Point
}

func Constant(v float64) Variant {
	return Variant{kind: KindConstant, value: v}
}

// Linear builds a piecewise-linear variant. Steps must be strictly
// increasing.
func Linear(points []Point) (Variant, error) {
	if len(points) == 0 {
		return Variant{}, fmt.Errorf("%w: variant needs at least one point", dynamo.ErrConfiguration)
	}
	for i := 1; i < len(points); i++ {
		if points[i].Step == points[i-1].Step {
			return Variant{}, fmt.Errorf("%w: variant repeats step %d", dynamo.ErrConfiguration, points[i].Step)
		}
		if points[i].Step < points[i-1].Step {
			return Variant{}, fmt.Errorf("%w: variant steps out of order at %d", dynamo.ErrConfiguration, points[i].Step)
		}
	}

	pts := make([]Point, len(points))
	copy(pts, points)
	return Variant{kind: KindLinear, points: pts}, nil
}

// MustLinear is Linear for package-level literals; it panics on error.
func MustLinear(points ...Point) Variant {
	v, err := Linear(points)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Variant) Kind() Kind { return v.kind }

// Points returns a copy of the control points, nil for a constant.
func (v Variant) Points() []Point {
	if v.kind != KindLinear {
		return nil
	}
	pts := make([]Point, len(v.points))
	copy(pts, v.points)
	return pts
}

// Eval returns the value at step. Outside the control points the value is
// clamped to the nearest end.
func (v Variant) Eval(step uint64) float64 {
	if v.kind == KindConstant {
		return v.value
	}

	pts := v.points
	if step <= pts[0].Step {
		return pts[0].Value
	}
	last := len(pts) - 1
	if step >= pts[last].Step {
		return pts[last].Value
	}

	// first index whose step is beyond the query; 1 <= hi <= last
	hi := sort.Search(len(pts), func(i int) bool { return pts[i].Step > step })
	p1, p2 := pts[hi-1], pts[hi]
	frac := float64(step-p1.Step) / float64(p2.Step-p1.Step)
	return p1.Value + (p2.Value-p1.Value)*frac
}

// Sample evaluates the variant at n evenly spaced steps in [from, to].
func (v Variant) Sample(from, to uint64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = v.Eval(from)
		return out
	}
	span := float64(to) - float64(from)
	for i := range out {
		step := float64(from) + span*float64(i)/float64(n-1)
		out[i] = v.Eval(uint64(step + 0.5))
	}
	return out
}

func (v Variant) String() string {
	if v.kind == KindConstant {
		return strconv.FormatFloat(v.value, 'g', -1, 64)
	}
	parts := make([]string, len(v.points))
	for i, p := range v.points {
		parts[i] = fmt.Sprintf("%d:%s", p.Step, strconv.FormatFloat(p.Value, 'g', -1, 64))
	}
	return strings.Join(parts, ",")
}

// Parse reads either a plain number ("1.5") or a comma separated list of
// step:value pairs ("0:4.0,1e6:1.0").
func Parse(s string) (Variant, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Variant{}, fmt.Errorf("%w: empty variant", dynamo.ErrConfiguration)
	}
	if !strings.Contains(s, ":") {
		val, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Variant{}, fmt.Errorf("%w: variant value %q: %v", dynamo.ErrConfiguration, s, err)
		}
		return Constant(val), nil
	}

	fields := strings.Split(s, ",")
	points := make([]Point, 0, len(fields))
	for _, f := range fields {
		stepStr, valStr, ok := strings.Cut(strings.TrimSpace(f), ":")
		if !ok {
			return Variant{}, fmt.Errorf("%w: variant point %q is not step:value", dynamo.ErrConfiguration, f)
		}
		step, err := parseStep(stepStr)
		if err != nil {
			return Variant{}, err
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(valStr), 64)
		if err != nil {
			return Variant{}, fmt.Errorf("%w: variant value %q: %v", dynamo.ErrConfiguration, valStr, err)
		}
		points = append(points, Point{Step: step, Value: val})
	}
	return Linear(points)
}

// parseStep accepts integers and float notation such as 1e6.
func parseStep(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("%w: variant step %q is not a non-negative integer", dynamo.ErrConfiguration, s)
	}
	return uint64(f), nil
}

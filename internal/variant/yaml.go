package variant

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/mdsim/internal/dynamo"
)

// UnmarshalYAML accepts a scalar (constant), a "step:value,..." string, or
// a sequence of [step, value] pairs.
func (v *Variant) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		parsed, err := Parse(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*v = parsed
		return nil

	case yaml.SequenceNode:
		var raw [][2]float64
		if err := node.Decode(&raw); err != nil {
			return fmt.Errorf("%w: line %d: variant points must be [step, value] pairs: %v",
				dynamo.ErrConfiguration, node.Line, err)
		}
		points := make([]Point, len(raw))
		for i, pair := range raw {
			if pair[0] < 0 || pair[0] != float64(uint64(pair[0])) {
				return fmt.Errorf("%w: line %d: variant step %v is not a non-negative integer",
					dynamo.ErrConfiguration, node.Line, pair[0])
			}
			points[i] = Point{Step: uint64(pair[0]), Value: pair[1]}
		}
		parsed, err := Linear(points)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*v = parsed
		return nil

	default:
		return fmt.Errorf("%w: line %d: unsupported variant node", dynamo.ErrConfiguration, node.Line)
	}
}

func (v Variant) MarshalYAML() (interface{}, error) {
	if v.kind == KindConstant {
		return v.value, nil
	}
	raw := make([][2]float64, len(v.points))
	for i, p := range v.points {
		raw[i] = [2]float64{float64(p.Step), p.Value}
	}
	return raw, nil
}

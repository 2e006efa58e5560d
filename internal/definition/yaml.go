package definition

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

func scalarValue(node *yaml.Node) string {
	if node.Tag == "!!null" {
		return ""
	}
	return node.Value
}

// UnmarshalYAML keeps the document order of the mapping. A sequence value is joined with ", ",
// headers in particular are commonly written as single element lists.
func (p *Pairs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}

	out := make(Pairs, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		value := node.Content[i+1]

		switch value.Kind {
		case yaml.ScalarNode:
			out = append(out, Pair{Key: key.Value, Value: scalarValue(value)})
		case yaml.SequenceNode:
			parts := make([]string, 0, len(value.Content))
			for _, item := range value.Content {
				if item.Kind != yaml.ScalarNode {
					return fmt.Errorf("line %d: %s: expected a list of strings", item.Line, key.Value)
				}
				parts = append(parts, scalarValue(item))
			}
			out = append(out, Pair{Key: key.Value, Value: strings.Join(parts, ", ")})
		default:
			return fmt.Errorf("line %d: %s: expected a string", value.Line, key.Value)
		}
	}

	*p = out
	return nil
}

func (f *Fields) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of fields", node.Line)
	}

	out := make(Fields, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var block SelectorBlock
		err := node.Content[i+1].Decode(&block)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		out = append(out, Field{Name: name, Block: block})
	}

	*f = out
	return nil
}

// UnmarshalYAML accepts `args` as absent, a scalar of any type or a list of scalars.
func (f *Filter) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name string    `yaml:"name"`
		Args yaml.Node `yaml:"args"`
	}
	err := node.Decode(&raw)
	if err != nil {
		return err
	}
	if raw.Name == "" {
		return fmt.Errorf("line %d: filter without a name", node.Line)
	}

	f.Name = raw.Name
	f.Args = nil

	switch raw.Args.Kind {
	case 0:
	case yaml.ScalarNode:
		if raw.Args.Tag != "!!null" {
			f.Args = []string{raw.Args.Value}
		}
	case yaml.SequenceNode:
		for _, item := range raw.Args.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: filter %s: arguments must be scalars", item.Line, raw.Name)
			}
			f.Args = append(f.Args, scalarValue(item))
		}
	default:
		return fmt.Errorf("line %d: filter %s: unsupported arguments", raw.Args.Line, raw.Name)
	}
	return nil
}

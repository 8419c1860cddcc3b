package colorize

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
)

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// LoadColors reads a {group: {name: hex}} file (JSON or YAML) and flattens it
// to "group-name" slugs in document order.
func LoadColors(path string) ([]pipeline.ColorVariant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read icon colors: %w", err)
	}

	colors, err := ParseColors(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return colors, nil
}

// ParseColors flattens a two-level colour mapping. JSON is parsed as YAML so
// key order is preserved through yaml.Node.
func ParseColors(data []byte) ([]pipeline.ColorVariant, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping of colour groups, got %s", kindName(root.Kind))
	}

	var colors []pipeline.ColorVariant
	for i := 0; i+1 < len(root.Content); i += 2 {
		group, names := root.Content[i].Value, root.Content[i+1]
		if names.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("colour group %q: expected a mapping of names", group)
		}

		for j := 0; j+1 < len(names.Content); j += 2 {
			name, hex := names.Content[j].Value, names.Content[j+1].Value
			if !hexColor.MatchString(hex) {
				return nil, fmt.Errorf("colour %s-%s: invalid hex %q", group, name, hex)
			}
			colors = append(colors, pipeline.ColorVariant{
				Slug: group + "-" + name,
				Hex:  hex,
			})
		}
	}
	return colors, nil
}

func kindName(kind yaml.Kind) string {
	switch kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

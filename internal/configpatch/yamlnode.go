package configpatch

import (
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/zhugenanbei181/music-frog-sub001/internal/errs"
)

// parseDoc decodes content into its Document node, preserving key
// order. marshalDoc re-emits the whole document in yaml.v3's own
// indentation and quoting, so untouched mappings keep their keys,
// order and values but not necessarily their original formatting.
func parseDoc(content string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, errs.Validation("profile content is not valid YAML: %v", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errs.Validation("profile content must be a YAML mapping")
	}
	return &doc, nil
}

func marshalDoc(doc *yaml.Node) (string, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// getSection returns the value node for key within a mapping node's
// top-level pairs, or nil if absent.
func getSection(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// ensureSection returns key's existing mapping value, or creates and
// appends an empty one.
func ensureSection(mapping *yaml.Node, key string) *yaml.Node {
	if v := getSection(mapping, key); v != nil {
		return v
	}
	section := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	mapping.Content = append(mapping.Content, strNode(key), section)
	return section
}

// removeSectionIfEmpty deletes key from mapping when its value has no
// children left.
func removeSectionIfEmpty(mapping *yaml.Node, key string) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			if len(mapping.Content[i+1].Content) == 0 {
				mapping.Content = append(mapping.Content[:i], mapping.Content[i+2:]...)
			}
			return
		}
	}
}

// setKey overwrites key's value node in-place if present, else
// appends a new key/value pair at the end, preserving every other
// key's position.
func setKey(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content, strNode(key), value)
}

func strNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func boolNode(v bool) *yaml.Node {
	s := "false"
	if v {
		s = "true"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: s}
}

func intNode(v int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(v)}
}

func listNode(values []string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, v := range values {
		n.Content = append(n.Content, strNode(v))
	}
	return n
}

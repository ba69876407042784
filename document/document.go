package document

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/schema"
	"gopkg.in/yaml.v3"
)

// Document is a finalized, immutable document.
type Document struct {
	Family  schema.Family
	Version string
	root    *yaml.Node
	routes  int
}

// Node returns the ordered document tree. Callers must not modify it.
func (d *Document) Node() *yaml.Node {
	return d.root
}

// Routes returns the number of operations in the document.
func (d *Document) Routes() int {
	return d.routes
}

// YAML renders the document with two space indentation.
func (d *Document) YAML() ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(d.root); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// JSON renders the document as indented JSON, keeping key order.
func (d *Document) JSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, d.root); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("failed to indent document: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, node *yaml.Node) error {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeJSON(buf, node.Content[0])
	case yaml.AliasNode:
		return writeJSON(buf, node.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(node.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(node.Content[i].Value)
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeJSON(buf, node.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range node.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case yaml.ScalarNode:
		return writeScalar(buf, node)
	}
	return nil
}

func writeScalar(buf *bytes.Buffer, node *yaml.Node) error {
	switch node.ShortTag() {
	case "!!str":
		data, _ := json.Marshal(node.Value)
		buf.Write(data)
	case "!!int", "!!float", "!!bool":
		buf.WriteString(node.Value)
	case "!!null":
		buf.WriteString("null")
	default:
		var value any
		if err := node.Decode(&value); err != nil {
			return fmt.Errorf("failed to decode scalar %q: %w", node.Value, err)
		}
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode scalar %q: %w", node.Value, err)
		}
		buf.Write(data)
	}
	return nil
}

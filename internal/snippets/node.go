package snippets

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// nodeKind distinguishes decoded values.
type nodeKind int

const (
	kindNull nodeKind = iota
	kindString
	kindBool
	kindNumber
	kindObject
	kindArray
)

// node is a decoded document value that keeps object keys in document
// order. Category and snippet priority follow the order of the file, which
// a plain map[string]any would lose.
type node struct {
	kind    nodeKind
	text    string // string value, or the literal of a number/bool
	boolean bool
	keys    []string
	fields  map[string]*node
	items   []*node
}

func (n *node) get(key string) (*node, bool) {
	if n == nil || n.kind != kindObject {
		return nil, false
	}
	v, ok := n.fields[key]
	return v, ok
}

// set stores a field. A repeated key keeps its first position and takes the
// last value, the way JSON objects decode into ordered dictionaries.
func (n *node) set(key string, v *node) {
	if _, exists := n.fields[key]; !exists {
		n.keys = append(n.keys, key)
	}
	n.fields[key] = v
}

func newObject() *node {
	return &node{kind: kindObject, fields: make(map[string]*node)}
}

// plain converts the node into the generic shape produced by
// encoding/json, for schema validation.
func (n *node) plain() any {
	switch n.kind {
	case kindString:
		return n.text
	case kindBool:
		return n.boolean
	case kindNumber:
		return json.Number(n.text)
	case kindObject:
		m := make(map[string]any, len(n.keys))
		for _, k := range n.keys {
			m[k] = n.fields[k].plain()
		}
		return m
	case kindArray:
		out := make([]any, len(n.items))
		for i, it := range n.items {
			out[i] = it.plain()
		}
		return out
	default:
		return nil
	}
}

// decodeJSON decodes a JSON document into an ordered node tree.
func decodeJSON(data []byte) (*node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	root, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return root, nil
}

func decodeJSONValue(dec *json.Decoder) (*node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			obj := newObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T, not string", keyTok)
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				obj.set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := &node{kind: kindArray}
			for dec.More() {
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				arr.items = append(arr.items, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", v)
	case string:
		return &node{kind: kindString, text: v}, nil
	case bool:
		return &node{kind: kindBool, boolean: v, text: fmt.Sprint(v)}, nil
	case json.Number:
		return &node{kind: kindNumber, text: v.String()}, nil
	case nil:
		return &node{kind: kindNull}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// decodeYAML decodes a YAML document into an ordered node tree.
func decodeYAML(data []byte) (*node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		// Empty file.
		return newObject(), nil
	}
	return convertYAML(&doc)
}

func convertYAML(y *yaml.Node) (*node, error) {
	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return newObject(), nil
		}
		return convertYAML(y.Content[0])
	case yaml.AliasNode:
		return convertYAML(y.Alias)
	case yaml.MappingNode:
		obj := newObject()
		for i := 0; i+1 < len(y.Content); i += 2 {
			k, v := y.Content[i], y.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping key must be a scalar", k.Line)
			}
			val, err := convertYAML(v)
			if err != nil {
				return nil, err
			}
			obj.set(k.Value, val)
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := &node{kind: kindArray}
		for _, c := range y.Content {
			val, err := convertYAML(c)
			if err != nil {
				return nil, err
			}
			arr.items = append(arr.items, val)
		}
		return arr, nil
	case yaml.ScalarNode:
		switch y.ShortTag() {
		case "!!null":
			return &node{kind: kindNull}, nil
		case "!!bool":
			var b bool
			if err := y.Decode(&b); err != nil {
				return nil, err
			}
			return &node{kind: kindBool, boolean: b, text: y.Value}, nil
		case "!!int", "!!float":
			return &node{kind: kindNumber, text: y.Value}, nil
		default:
			return &node{kind: kindString, text: y.Value}, nil
		}
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", y.Line)
}

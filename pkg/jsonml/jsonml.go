// Package jsonml converts JSONML documents to XML.
//
// Two element shapes are accepted:
//
//	{"tagName": "declaratie112", "luna_r": "3", "childNodes": [...]}
//	["declaratie112", {"luna_r": "3"}, ...children]
//
// Children are elements in either shape or text (strings and numbers).
// Attributes are written in lexical order.
package jsonml

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Header is prepended to every converted document.
const Header = `<?xml version="1.0" encoding="utf-8"?>`

const (
	tagNameKey    = "tagName"
	childNodesKey = "childNodes"
)

// ErrInvalid reports input that is not a JSONML element.
var ErrInvalid = errors.New("jsonml: invalid element")

// Document is a parsed JSONML tree.
type Document struct {
	root any
}

// Parse decodes data. Numbers keep their literal form.
func Parse(data []byte) (*Document, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var root any
	if err := decoder.Decode(&root); err != nil {
		return nil, fmt.Errorf("jsonml: decode: %w", err)
	}
	if _, err := tagOf(root); err != nil {
		return nil, err
	}
	return &Document{root: root}, nil
}

// Tag returns the root element name.
func (d *Document) Tag() string {
	tag, _ := tagOf(d.root)
	return tag
}

// XML renders the document with the XML declaration header.
func (d *Document) XML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(Header)
	if err := writeNode(&buf, d.root, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// maxDepth bounds nesting so hostile input cannot exhaust the stack.
const maxDepth = 256

func tagOf(node any) (string, error) {
	var tag string
	switch v := node.(type) {
	case map[string]any:
		tag, _ = v[tagNameKey].(string)
	case []any:
		if len(v) > 0 {
			tag, _ = v[0].(string)
		}
	default:
		return "", fmt.Errorf("%w: expected object or array, got %T", ErrInvalid, node)
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", fmt.Errorf("%w: missing tag name", ErrInvalid)
	}
	if strings.ContainsAny(tag, "<>&\"' \t\r\n/=") {
		return "", fmt.Errorf("%w: bad tag name %q", ErrInvalid, tag)
	}
	return tag, nil
}

func writeNode(buf *bytes.Buffer, node any, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrInvalid, maxDepth)
	}
	switch v := node.(type) {
	case nil:
		return nil
	case string:
		return xml.EscapeText(buf, []byte(v))
	case json.Number:
		buf.WriteString(v.String())
		return nil
	case bool:
		fmt.Fprint(buf, v)
		return nil
	case map[string]any:
		return writeObject(buf, v, depth)
	case []any:
		return writeArray(buf, v, depth)
	}
	return fmt.Errorf("%w: unsupported node %T", ErrInvalid, node)
}

func writeObject(buf *bytes.Buffer, obj map[string]any, depth int) error {
	tag, err := tagOf(obj)
	if err != nil {
		return err
	}
	attrs := make(map[string]any, len(obj))
	for key, value := range obj {
		if key == tagNameKey || key == childNodesKey {
			continue
		}
		attrs[key] = value
	}
	var children []any
	if raw, ok := obj[childNodesKey]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("%w: %s of <%s> must be an array", ErrInvalid, childNodesKey, tag)
		}
		children = list
	}
	return writeElement(buf, tag, attrs, children, depth)
}

func writeArray(buf *bytes.Buffer, arr []any, depth int) error {
	tag, err := tagOf(arr)
	if err != nil {
		return err
	}
	rest := arr[1:]
	var attrs map[string]any
	if len(rest) > 0 {
		if m, ok := rest[0].(map[string]any); ok {
			if _, isElement := m[tagNameKey]; !isElement {
				attrs = m
				rest = rest[1:]
			}
		}
	}
	return writeElement(buf, tag, attrs, rest, depth)
}

func writeElement(buf *bytes.Buffer, tag string, attrs map[string]any, children []any, depth int) error {
	buf.WriteByte('<')
	buf.WriteString(tag)

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := attrs[name]
		if value == nil {
			continue
		}
		if strings.ContainsAny(name, "<>&\"' \t\r\n/=") || name == "" {
			return fmt.Errorf("%w: bad attribute name %q on <%s>", ErrInvalid, name, tag)
		}
		text, err := scalar(value)
		if err != nil {
			return fmt.Errorf("%w: attribute %s of <%s>: %v", ErrInvalid, name, tag, err)
		}
		buf.WriteByte(' ')
		buf.WriteString(name)
		buf.WriteString(`="`)
		if err := xml.EscapeText(buf, []byte(text)); err != nil {
			return err
		}
		buf.WriteByte('"')
	}

	if len(children) == 0 {
		buf.WriteString("/>")
		return nil
	}
	buf.WriteByte('>')
	for _, child := range children {
		if err := writeNode(buf, child, depth+1); err != nil {
			return err
		}
	}
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteByte('>')
	return nil
}

func scalar(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return fmt.Sprint(v), nil
	}
	return "", fmt.Errorf("expected scalar, got %T", value)
}

package entities

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"

	"github.com/goccy/go-json"
)

// JSONFormat reads entities stored as one JSON object per line.
//
// The "$id" field supplies the id; lines without one get the negated line
// number. Other fields starting with "$" and null values are skipped.
// Declared attributes are converted to their types; undeclared fields are
// read as long, double, boolean or string.
type JSONFormat struct {
	// Type is the entity type to produce.
	Type *EntityType
	// Attributes maps field names to their typed names. May be nil.
	Attributes map[string]*TypedName
	// Builder names the builder to use; empty means basic.
	Builder string
	// Interner resolves inferred attribute names. Defaults to the default
	// interner.
	Interner *Interner
}

// NewJSONFormat creates a format for typ, declaring attrs.
func NewJSONFormat(typ *EntityType, attrs ...*TypedName) *JSONFormat {
	f := &JSONFormat{Type: typ}
	if len(attrs) > 0 {
		f.Attributes = make(map[string]*TypedName, len(attrs))
		for _, a := range attrs {
			f.Attributes[a.name] = a
		}
	}
	return f
}

// JSONFormatFor creates a format declaring every attribute in d, using its
// default builder.
func JSONFormatFor(d *EntityDefaults) *JSONFormat {
	f := NewJSONFormat(d.typ, d.CommonAttributes()...)
	f.Builder = d.builder
	return f
}

// ParseLine parses one line. lineNo is 1-based.
func (f *JSONFormat) ParseLine(line []byte, lineNo int) (Entity, error) {
	b, err := NewBuilder(f.Builder, f.Type)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: line %d: %v", ErrIllegalArgument, lineNo, err)
	}

	id := -int64(lineNo)
	if raw, ok := obj["$id"]; ok {
		num, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%w: line %d: $id is not a number", ErrIllegalArgument, lineNo)
		}
		if id, err = num.Int64(); err != nil {
			return nil, fmt.Errorf("%w: line %d: $id: %v", ErrIllegalArgument, lineNo, err)
		}
	}
	b.SetID(id)

	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		raw := obj[name]
		if raw == nil || strings.HasPrefix(name, "$") {
			continue
		}
		n, v, err := f.convert(name, raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if n == nil {
			continue
		}
		if err := b.SetAttribute(n, v); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}

	return b.Build()
}

// ReadAll parses every non-blank line of r.
func (f *JSONFormat) ReadAll(r io.Reader) ([]Entity, error) {
	var out []Entity
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		e, err := f.ParseLine(line, lineNo)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s entities: %w", f.Type, err)
	}
	return out, nil
}

func (f *JSONFormat) interner() *Interner {
	if f.Interner != nil {
		return f.Interner
	}
	return defaultInterner
}

// convert maps a decoded field onto a typed name and value. A nil name
// means the field is skipped.
func (f *JSONFormat) convert(name string, raw any) (*TypedName, any, error) {
	if n, ok := f.Attributes[name]; ok {
		v, err := convertTo(n, raw)
		return n, v, err
	}

	switch x := raw.(type) {
	case json.Number:
		if l, err := x.Int64(); err == nil {
			return f.interner().TypedName(name, int64Type), l, nil
		}
		d, err := x.Float64()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrIllegalArgument, name, err)
		}
		return f.interner().TypedName(name, reflect.TypeFor[float64]()), d, nil
	case string:
		return f.interner().TypedName(name, reflect.TypeFor[string]()), x, nil
	case bool:
		return f.interner().TypedName(name, reflect.TypeFor[bool]()), x, nil
	}
	return nil, nil, nil
}

func convertTo(n *TypedName, raw any) (any, error) {
	switch x := raw.(type) {
	case json.Number:
		return n.ParseString(x.String())
	case string:
		return n.ParseString(x)
	case bool:
		if n.Accepts(x) {
			return x, nil
		}
	}
	if n.Accepts(raw) {
		return raw, nil
	}
	return nil, fmt.Errorf("%w: %s cannot hold %T", ErrIllegalArgument, n, raw)
}

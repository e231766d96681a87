package entities

import (
	"encoding"
	"encoding/csv"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// TypedName is an interned attribute name paired with the Go type of its
// values. Typed names obtained from the same [Interner] compare equal with
// ==.
type TypedName struct {
	name string
	typ  reflect.Type
}

// Text is a string attribute value meant to hold free text rather than a
// short label.
type Text string

var (
	anyType            = reflect.TypeFor[any]()
	textType           = reflect.TypeFor[Text]()
	textUnmarshalerTyp = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// NewTypedName returns the canonical typed name from the default interner.
func NewTypedName(name string, typ reflect.Type) *TypedName {
	return defaultInterner.TypedName(name, typ)
}

// TypedNameOf returns the canonical typed name for values of type T.
func TypedNameOf[T any](name string) *TypedName {
	return defaultInterner.TypedName(name, reflect.TypeFor[T]())
}

// CreateTypedName resolves typeName with [Interner.ResolveTypeName] and
// returns the typed name from the default interner.
func CreateTypedName(name, typeName string) (*TypedName, error) {
	return defaultInterner.CreateTypedName(name, typeName)
}

// CreateTypedName resolves typeName and returns the canonical typed name.
func (in *Interner) CreateTypedName(name, typeName string) (*TypedName, error) {
	typ, err := in.ResolveTypeName(typeName)
	if err != nil {
		return nil, err
	}
	return in.TypedName(name, typ), nil
}

// normalizeType maps pointers to basic kinds onto their element type so that
// *int64 and int64 name the same attribute.
func normalizeType(typ reflect.Type) reflect.Type {
	if typ == nil {
		return anyType
	}
	if typ.Kind() == reflect.Pointer && isBasicKind(typ.Elem().Kind()) {
		return typ.Elem()
	}
	return typ
}

func isBasicKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return true
	}
	return false
}

// Name returns the attribute name.
func (n *TypedName) Name() string { return n.name }

// Type returns the type of the attribute's values.
func (n *TypedName) Type() reflect.Type { return n.typ }

func (n *TypedName) String() string {
	return fmt.Sprintf("TypedName[%s: %s]", n.name, TypeName(n.typ))
}

// Accepts reports whether v may be stored under this name.
func (n *TypedName) Accepts(v any) bool {
	if v == nil {
		return false
	}
	return reflect.TypeOf(v).AssignableTo(n.typ)
}

// ParseString parses s into a value of the name's type. Slice types parse a
// comma-separated list.
func (n *TypedName) ParseString(s string) (any, error) {
	v, err := parseValue(n.typ, s)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %q as %s: %v", ErrIllegalArgument, s, n, err)
	}
	return v.Interface(), nil
}

func parseValue(typ reflect.Type, s string) (reflect.Value, error) {
	if reflect.PointerTo(typ).Implements(textUnmarshalerTyp) {
		ptr := reflect.New(typ)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	}

	switch typ.Kind() {
	case reflect.String:
		return reflect.ValueOf(s).Convert(typ), nil
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b).Convert(typ), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, typ.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(i).Convert(typ), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(strings.TrimSpace(s), 10, typ.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(u).Convert(typ), nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), typ.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(f).Convert(typ), nil
	case reflect.Slice:
		fields, err := splitList(s)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.MakeSlice(typ, 0, len(fields))
		for _, f := range fields {
			ev, err := parseValue(typ.Elem(), f)
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, ev)
		}
		return out, nil
	case reflect.Interface:
		if typ.NumMethod() == 0 {
			return reflect.ValueOf(s), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("cannot parse values of type %s", typ)
}

func splitList(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	r := csv.NewReader(strings.NewReader(s))
	r.TrimLeadingSpace = true
	return r.Read()
}

// ---------------------------------------------------------------------------
// Type names
// ---------------------------------------------------------------------------

var builtinTypeNames = map[string]reflect.Type{
	"string":  reflect.TypeFor[string](),
	"String":  reflect.TypeFor[string](),
	"int":     reflect.TypeFor[int](),
	"Integer": reflect.TypeFor[int](),
	"long":    reflect.TypeFor[int64](),
	"Long":    reflect.TypeFor[int64](),
	"double":  reflect.TypeFor[float64](),
	"real":    reflect.TypeFor[float64](),
	"Double":  reflect.TypeFor[float64](),
	"text":    textType,
	"Text":    textType,
	"bool":    reflect.TypeFor[bool](),
	"boolean": reflect.TypeFor[bool](),
	"Boolean": reflect.TypeFor[bool](),
}

// RegisterTypeName makes name resolvable to typ in this interner.
func (in *Interner) RegisterTypeName(name string, typ reflect.Type) {
	in.typeNames.Store(name, typ)
}

// ResolveTypeName resolves a type name such as "long", "double", "text" or
// "string[]" to a Go type. Names registered with RegisterTypeName take
// precedence over the built-in aliases.
func (in *Interner) ResolveTypeName(name string) (reflect.Type, error) {
	name = strings.TrimSpace(name)
	if v, ok := in.typeNames.Load(name); ok {
		return v.(reflect.Type), nil
	}
	if t, ok := builtinTypeNames[name]; ok {
		return t, nil
	}
	if elem, ok := strings.CutSuffix(name, "[]"); ok {
		et, err := in.ResolveTypeName(elem)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(et), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// TypeName returns the short name of typ understood by ResolveTypeName.
func TypeName(typ reflect.Type) string {
	switch typ {
	case reflect.TypeFor[string]():
		return "string"
	case reflect.TypeFor[int]():
		return "int"
	case reflect.TypeFor[int64]():
		return "long"
	case reflect.TypeFor[float64]():
		return "double"
	case reflect.TypeFor[bool]():
		return "boolean"
	case textType:
		return "text"
	}
	if typ.Kind() == reflect.Slice {
		return TypeName(typ.Elem()) + "[]"
	}
	return typ.String()
}

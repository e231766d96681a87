package inject

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// Satisfaction is a strategy for producing an instance of a type: a
// constructor, a zero struct with injected fields, a provider, a fixed
// instance, nil, or a placeholder. Satisfactions are immutable and compared
// by identity.
type Satisfaction interface {
	// ErasedType is the type of the values produced.
	ErasedType() reflect.Type
	// HasInstance reports whether the value is already known.
	HasInstance() bool
	// Dependencies lists the desires the satisfaction needs, in the order
	// their values are passed when instantiating.
	Dependencies() []Desire
	// DefaultCachePolicy applies when a node's policy is NoPreference.
	DefaultCachePolicy() CachePolicy
	// Shareable reports whether the satisfaction carries the shareable
	// capability, either from its type or from its binding.
	Shareable() bool
	String() string

	instantiate(args []any) (any, error)
}

// ---------------------------------------------------------------------------
// Component satisfactions
// ---------------------------------------------------------------------------

type fieldPoint struct {
	index []int
	point InjectionPoint
}

type setterPoint struct {
	name  string
	point InjectionPoint
}

// componentSatisfaction builds a value with a constructor or, when ctor is
// not set, by allocating a zero struct. Tagged fields and declared setters
// are injected afterwards.
type componentSatisfaction struct {
	name    string
	ctor    reflect.Value
	out     reflect.Type
	params  []InjectionPoint
	fields  []fieldPoint
	setters []setterPoint
	sharing sharing
	deps    []Desire
}

// NewConstructorSatisfaction creates a satisfaction from a constructor with
// the signature func(deps...) T or func(deps...) (T, error). Parameters are
// constructor injection points; if T is a struct pointer, its fields tagged
// `inject:"qualifier,transient,optional"` are injected as well.
func NewConstructorSatisfaction(ctor any, opts ...Option) (Satisfaction, error) {
	return newConstructorSatisfaction(ctor, opts...)
}

func newConstructorSatisfaction(ctor any, opts ...Option) (*componentSatisfaction, error) {
	val := reflect.ValueOf(ctor)
	if !val.IsValid() || val.Kind() != reflect.Func || val.IsNil() {
		return nil, fmt.Errorf("%w: constructor must be a function", ErrInvalidComponent)
	}

	typ := val.Type()
	if typ.IsVariadic() {
		return nil, fmt.Errorf("%w: constructor must not be variadic", ErrInvalidComponent)
	}
	if typ.NumOut() == 0 || typ.NumOut() > 2 {
		return nil, fmt.Errorf("%w: constructor must return (T) or (T, error)", ErrInvalidComponent)
	}
	if typ.NumOut() == 2 && !typ.Out(1).Implements(errorType) {
		return nil, fmt.Errorf("%w: second return value must implement error", ErrInvalidComponent)
	}

	cfg := applyOptions(opts)
	s := &componentSatisfaction{
		name:    funcName(val),
		ctor:    val,
		out:     typ.Out(0),
		sharing: cfg.sharing,
	}

	for i := 0; i < typ.NumIn(); i++ {
		p := InjectionPoint{Kind: ConstructorPoint, Member: s.name, Index: i, Type: typ.In(i)}
		for _, opt := range cfg.params[i] {
			opt(&p)
		}
		s.params = append(s.params, p)
	}
	for i := range cfg.params {
		if i < 0 || i >= typ.NumIn() {
			return nil, fmt.Errorf("%w: %s has no parameter %d", ErrInvalidComponent, s.name, i)
		}
	}

	if err := s.inspect(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStructSatisfaction creates a satisfaction that allocates a zero value
// of the struct pointer type typ and injects its tagged fields and declared
// setters.
func NewStructSatisfaction(typ reflect.Type, opts ...Option) (Satisfaction, error) {
	return newStructSatisfaction(typ, opts...)
}

func newStructSatisfaction(typ reflect.Type, opts ...Option) (*componentSatisfaction, error) {
	if !isStructPointer(typ) {
		return nil, fmt.Errorf("%w: %s is not a struct pointer", ErrInvalidComponent, typeString(typ))
	}
	cfg := applyOptions(opts)
	if len(cfg.params) > 0 {
		return nil, fmt.Errorf("%w: struct %s has no constructor parameters", ErrInvalidComponent, typ)
	}
	s := &componentSatisfaction{
		name:    typ.String(),
		out:     typ,
		sharing: cfg.sharing,
	}
	if err := s.inspect(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

type structEntry struct {
	sat *componentSatisfaction
	err error
}

// structSatisfactions caches the default satisfaction of each struct
// pointer type so that repeated resolutions share one node.
var structSatisfactions sync.Map // reflect.Type -> structEntry

func defaultStructSatisfaction(typ reflect.Type) (*componentSatisfaction, error) {
	if e, ok := structSatisfactions.Load(typ); ok {
		entry := e.(structEntry)
		return entry.sat, entry.err
	}
	sat, err := newStructSatisfaction(typ)
	e, _ := structSatisfactions.LoadOrStore(typ, structEntry{sat: sat, err: err})
	entry := e.(structEntry)
	return entry.sat, entry.err
}

func applyOptions(opts []Option) componentConfig {
	var cfg componentConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// inspect collects tagged fields and declared setters, then fixes the
// dependency list.
func (s *componentSatisfaction) inspect(cfg componentConfig) error {
	if isStructPointer(s.out) {
		for _, f := range reflect.VisibleFields(s.out.Elem()) {
			tag, ok := f.Tag.Lookup("inject")
			if !ok {
				continue
			}
			if !f.IsExported() {
				return fmt.Errorf("%w: field %s.%s is tagged but not exported", ErrInvalidComponent, s.out.Elem(), f.Name)
			}
			p := InjectionPoint{Kind: FieldPoint, Member: f.Name, Index: -1, Type: f.Type}
			if err := parseTag(tag, &p); err != nil {
				return fmt.Errorf("%w: field %s.%s: %v", ErrInvalidComponent, s.out.Elem(), f.Name, err)
			}
			s.fields = append(s.fields, fieldPoint{index: f.Index, point: p})
		}
	}

	for _, spec := range cfg.setters {
		m, ok := s.out.MethodByName(spec.name)
		if !ok {
			return fmt.Errorf("%w: %s has no method %s", ErrInvalidComponent, s.out, spec.name)
		}
		mt := m.Type
		in := 1
		if s.out.Kind() == reflect.Interface {
			in = 0
		}
		if mt.NumIn() != in+1 || mt.NumOut() > 1 || (mt.NumOut() == 1 && !mt.Out(0).Implements(errorType)) {
			return fmt.Errorf("%w: %s.%s is not a setter", ErrInvalidComponent, s.out, spec.name)
		}
		p := InjectionPoint{Kind: SetterPoint, Member: spec.name, Index: 0, Type: mt.In(in)}
		for _, opt := range spec.opts {
			opt(&p)
		}
		s.setters = append(s.setters, setterPoint{name: spec.name, point: p})
	}

	for _, p := range s.params {
		s.deps = append(s.deps, pointDesire(p))
	}
	for _, f := range s.fields {
		s.deps = append(s.deps, pointDesire(f.point))
	}
	for _, st := range s.setters {
		s.deps = append(s.deps, pointDesire(st.point))
	}
	return nil
}

// parseTag reads `inject:"qualifier,transient,optional"`.
func parseTag(tag string, p *InjectionPoint) error {
	parts := strings.Split(tag, ",")
	p.Qualifier = strings.TrimSpace(parts[0])
	for _, flag := range parts[1:] {
		switch strings.TrimSpace(flag) {
		case "transient":
			p.Transient = true
		case "optional":
			p.Optional = true
		case "":
		default:
			return fmt.Errorf("unknown inject option %q", flag)
		}
	}
	return nil
}

func (s *componentSatisfaction) ErasedType() reflect.Type        { return s.out }
func (s *componentSatisfaction) HasInstance() bool               { return false }
func (s *componentSatisfaction) Dependencies() []Desire          { return s.deps }
func (s *componentSatisfaction) DefaultCachePolicy() CachePolicy { return NoPreference }

func (s *componentSatisfaction) Shareable() bool {
	switch s.sharing {
	case forceShared:
		return true
	case forceUnshared:
		return false
	}
	return s.out.Implements(shareableType)
}

func (s *componentSatisfaction) String() string {
	if !s.ctor.IsValid() {
		return "struct " + s.out.String()
	}
	return fmt.Sprintf("component %s from %s", s.out, s.name)
}

func (s *componentSatisfaction) instantiate(args []any) (any, error) {
	var v reflect.Value
	if s.ctor.IsValid() {
		in := make([]reflect.Value, len(s.params))
		for i, p := range s.params {
			in[i] = argValue(args[i], p.Type)
		}
		out := s.ctor.Call(in)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		v = out[0]
	} else {
		v = reflect.New(s.out.Elem())
	}

	if len(s.fields) > 0 || len(s.setters) > 0 {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			return nil, fmt.Errorf("%s returned nil", s.name)
		}
		base := len(s.params)
		if len(s.fields) > 0 {
			elem := v.Elem()
			for i, f := range s.fields {
				fv, err := elem.FieldByIndexErr(f.index)
				if err != nil {
					return nil, fmt.Errorf("field %s: %w", f.point.Member, err)
				}
				fv.Set(argValue(args[base+i], f.point.Type))
			}
		}
		base += len(s.fields)
		for i, st := range s.setters {
			res := v.MethodByName(st.name).Call([]reflect.Value{argValue(args[base+i], st.point.Type)})
			if len(res) == 1 && !res[0].IsNil() {
				return nil, fmt.Errorf("setter %s: %w", st.name, res[0].Interface().(error))
			}
		}
	}

	return v.Interface(), nil
}

func argValue(a any, t reflect.Type) reflect.Value {
	if a == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(a)
}

func funcName(fn reflect.Value) string {
	if f := runtime.FuncForPC(fn.Pointer()); f != nil {
		return f.Name()
	}
	return fn.Type().String()
}

func isStructPointer(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct
}

// ---------------------------------------------------------------------------
// Provider satisfactions
// ---------------------------------------------------------------------------

type providerSatisfaction struct {
	provider *componentSatisfaction
	out      reflect.Type
}

// NewProviderSatisfaction creates a satisfaction from a provider
// constructor. The provider type must have a method Get() T or
// Get() (T, error); the satisfaction produces T. The provider type carrying
// the [Shareable] marker makes the satisfaction shareable.
func NewProviderSatisfaction(ctor any, opts ...Option) (Satisfaction, error) {
	return newProviderSatisfaction(ctor, opts...)
}

func newProviderSatisfaction(ctor any, opts ...Option) (*providerSatisfaction, error) {
	comp, err := newConstructorSatisfaction(ctor, opts...)
	if err != nil {
		return nil, err
	}
	m, ok := comp.out.MethodByName("Get")
	if !ok {
		return nil, fmt.Errorf("%w: provider %s has no Get method", ErrInvalidComponent, comp.out)
	}
	mt := m.Type
	in := 1
	if comp.out.Kind() == reflect.Interface {
		in = 0
	}
	if mt.NumIn() != in || mt.NumOut() == 0 || mt.NumOut() > 2 ||
		(mt.NumOut() == 2 && !mt.Out(1).Implements(errorType)) {
		return nil, fmt.Errorf("%w: %s.Get must be func() T or func() (T, error)", ErrInvalidComponent, comp.out)
	}
	return &providerSatisfaction{provider: comp, out: mt.Out(0)}, nil
}

func (s *providerSatisfaction) ErasedType() reflect.Type        { return s.out }
func (s *providerSatisfaction) HasInstance() bool               { return false }
func (s *providerSatisfaction) Dependencies() []Desire          { return s.provider.deps }
func (s *providerSatisfaction) DefaultCachePolicy() CachePolicy { return NoPreference }
func (s *providerSatisfaction) Shareable() bool                 { return s.provider.Shareable() }

func (s *providerSatisfaction) String() string {
	return fmt.Sprintf("provider %s of %s", s.provider.out, s.out)
}

func (s *providerSatisfaction) instantiate(args []any) (any, error) {
	p, err := s.provider.instantiate(args)
	if err != nil {
		return nil, err
	}
	pv := reflect.ValueOf(p)
	if !pv.IsValid() {
		return nil, fmt.Errorf("provider %s is nil", s.provider.name)
	}
	out := pv.MethodByName("Get").Call(nil)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

// ---------------------------------------------------------------------------
// Instance, null and placeholder satisfactions
// ---------------------------------------------------------------------------

type instanceSatisfaction struct {
	value any
	typ   reflect.Type
}

// InstanceOf returns a satisfaction that always produces v. A nil v yields
// a null satisfaction.
func InstanceOf(v any) Satisfaction {
	if v == nil {
		return NullOf(reflect.TypeFor[any]())
	}
	return &instanceSatisfaction{value: v, typ: reflect.TypeOf(v)}
}

func (s *instanceSatisfaction) ErasedType() reflect.Type        { return s.typ }
func (s *instanceSatisfaction) HasInstance() bool               { return true }
func (s *instanceSatisfaction) Dependencies() []Desire          { return nil }
func (s *instanceSatisfaction) DefaultCachePolicy() CachePolicy { return Memoize }
func (s *instanceSatisfaction) Shareable() bool                 { return s.typ.Implements(shareableType) }
func (s *instanceSatisfaction) String() string                  { return "instance of " + s.typ.String() }
func (s *instanceSatisfaction) instantiate([]any) (any, error)  { return s.value, nil }

// Value returns the wrapped instance of an instance satisfaction.
func Value(s Satisfaction) (any, bool) {
	switch s := s.(type) {
	case *instanceSatisfaction:
		return s.value, true
	case *nullSatisfaction:
		return nil, true
	}
	return nil, false
}

type nullSatisfaction struct {
	typ reflect.Type
}

// NullOf returns a satisfaction producing a nil value of typ.
func NullOf(typ reflect.Type) Satisfaction {
	return &nullSatisfaction{typ: typ}
}

func (s *nullSatisfaction) ErasedType() reflect.Type        { return s.typ }
func (s *nullSatisfaction) HasInstance() bool               { return true }
func (s *nullSatisfaction) Dependencies() []Desire          { return nil }
func (s *nullSatisfaction) DefaultCachePolicy() CachePolicy { return Memoize }
func (s *nullSatisfaction) Shareable() bool                 { return true }
func (s *nullSatisfaction) String() string                  { return "null of " + typeString(s.typ) }
func (s *nullSatisfaction) instantiate([]any) (any, error)  { return nil, nil }

// PlaceholderSatisfaction stands in for a binding removed when unsolving a
// graph. It cannot be instantiated.
type PlaceholderSatisfaction struct {
	typ reflect.Type
}

// NewPlaceholder returns a placeholder for typ.
func NewPlaceholder(typ reflect.Type) *PlaceholderSatisfaction {
	return &PlaceholderSatisfaction{typ: typ}
}

func (s *PlaceholderSatisfaction) ErasedType() reflect.Type        { return s.typ }
func (s *PlaceholderSatisfaction) HasInstance() bool               { return false }
func (s *PlaceholderSatisfaction) Dependencies() []Desire          { return nil }
func (s *PlaceholderSatisfaction) DefaultCachePolicy() CachePolicy { return NoPreference }
func (s *PlaceholderSatisfaction) Shareable() bool                 { return false }
func (s *PlaceholderSatisfaction) String() string                  { return "placeholder for " + typeString(s.typ) }

func (s *PlaceholderSatisfaction) instantiate([]any) (any, error) {
	return nil, fmt.Errorf("%w: %s", ErrPlaceholder, s)
}

// rootSatisfaction labels the synthetic root node of every graph.
type rootSatisfaction struct{}

var graphRoot Satisfaction = rootSatisfaction{}

func (rootSatisfaction) ErasedType() reflect.Type        { return nil }
func (rootSatisfaction) HasInstance() bool               { return true }
func (rootSatisfaction) Dependencies() []Desire          { return nil }
func (rootSatisfaction) DefaultCachePolicy() CachePolicy { return Memoize }
func (rootSatisfaction) Shareable() bool                 { return false }
func (rootSatisfaction) String() string                  { return "root" }
func (rootSatisfaction) instantiate([]any) (any, error)  { return nil, nil }

package inject

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// PointKind identifies where a dependency is injected.
type PointKind int

const (
	// ConstructorPoint is a constructor function parameter.
	ConstructorPoint PointKind = iota
	// SetterPoint is the argument of a setter method.
	SetterPoint
	// FieldPoint is an exported struct field tagged with `inject`.
	FieldPoint
	// SimplePoint is a bare type request, such as a graph root.
	SimplePoint
	// UnknownPoint is anything else.
	UnknownPoint
)

func (k PointKind) String() string {
	switch k {
	case ConstructorPoint:
		return "constructor"
	case SetterPoint:
		return "setter"
	case FieldPoint:
		return "field"
	case SimplePoint:
		return "simple"
	default:
		return "unknown"
	}
}

// InjectionPoint describes one place a component receives a dependency.
// Points are comparable and used as map keys.
type InjectionPoint struct {
	Kind PointKind
	// Member is the constructor, setter or field name.
	Member string
	// Index is the parameter index for constructor and setter points, -1
	// otherwise.
	Index int
	Type  reflect.Type
	// Qualifier selects among bindings of the same type. Empty means
	// unqualified.
	Qualifier string
	// Transient points are used only during construction and are not
	// retained by the constructed object.
	Transient bool
	// Optional points accept a nil value when nothing is bound.
	Optional bool
}

func (p InjectionPoint) String() string {
	var sb strings.Builder
	sb.WriteString(p.Kind.String())
	if p.Member != "" {
		sb.WriteByte(' ')
		sb.WriteString(p.Member)
	}
	if p.Index >= 0 && p.Kind != FieldPoint && p.Kind != SimplePoint {
		sb.WriteByte('[')
		sb.WriteString(strconv.Itoa(p.Index))
		sb.WriteByte(']')
	}
	return sb.String()
}

// Desire is a request for an instance of a type at an injection point. As
// bindings are applied the desired type narrows, and a desire may gain the
// satisfaction that will provide it.
type Desire struct {
	Point        InjectionPoint
	Type         reflect.Type
	Satisfaction Satisfaction
}

// NewDesire returns an unqualified desire for typ at a simple point.
func NewDesire(typ reflect.Type) Desire {
	return QualifiedDesire("", typ)
}

// QualifiedDesire returns a desire for typ with qualifier q at a simple
// point.
func QualifiedDesire(q string, typ reflect.Type) Desire {
	return Desire{
		Point: InjectionPoint{Kind: SimplePoint, Index: -1, Type: typ, Qualifier: q},
		Type:  typ,
	}
}

func pointDesire(p InjectionPoint) Desire {
	return Desire{Point: p, Type: p.Type}
}

// Instantiable reports whether the desire carries a satisfaction.
func (d Desire) Instantiable() bool { return d.Satisfaction != nil }

func (d Desire) String() string {
	var sb strings.Builder
	sb.WriteString(typeString(d.Type))
	if q := d.Point.Qualifier; q != "" {
		fmt.Fprintf(&sb, " @%s", q)
	}
	if d.Point.Kind != SimplePoint {
		fmt.Fprintf(&sb, " (%s)", d.Point)
	}
	return sb.String()
}

func typeString(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// ---------------------------------------------------------------------------
// Capability markers
// ---------------------------------------------------------------------------

// Shareable marks component types whose instances are safe to share across
// recommender sessions. Embed [SharedComponent] to implement it. A provider
// type implementing Shareable marks the components it provides.
type Shareable interface {
	lenskitShareable()
}

// SharedComponent implements [Shareable] when embedded.
type SharedComponent struct{}

func (SharedComponent) lenskitShareable() {}

// DataAccessObject marks data access types. Placeholders for them may
// legitimately survive in a graph until real data is supplied. Embed
// [DAOComponent] in implementations, or embed DataAccessObject in DAO
// interfaces.
type DataAccessObject interface {
	lenskitDAO()
}

// DAOComponent implements [DataAccessObject] when embedded.
type DAOComponent struct{}

func (DAOComponent) lenskitDAO() {}

var (
	shareableType = reflect.TypeFor[Shareable]()
	daoType       = reflect.TypeFor[DataAccessObject]()
	errorType     = reflect.TypeFor[error]()
)

// IsDataAccessObject reports whether typ carries the DAO marker.
func IsDataAccessObject(typ reflect.Type) bool {
	return typ != nil && typ.Implements(daoType)
}

// ---------------------------------------------------------------------------
// Qualifier matching
// ---------------------------------------------------------------------------

type qualifierMode int

const (
	matchDefault qualifierMode = iota
	matchExact
	matchAny
)

// QualifierMatcher selects qualifiers. The zero value matches only the
// empty (default) qualifier.
type QualifierMatcher struct {
	mode      qualifierMode
	qualifier string
}

// DefaultQualifier matches unqualified injection points.
func DefaultQualifier() QualifierMatcher { return QualifierMatcher{mode: matchDefault} }

// MatchQualifier matches exactly q. An empty q is the default matcher.
func MatchQualifier(q string) QualifierMatcher {
	if q == "" {
		return DefaultQualifier()
	}
	return QualifierMatcher{mode: matchExact, qualifier: q}
}

// AnyQualifierMatcher matches every qualifier, including none.
func AnyQualifierMatcher() QualifierMatcher { return QualifierMatcher{mode: matchAny} }

// Matches reports whether q is selected.
func (m QualifierMatcher) Matches(q string) bool {
	switch m.mode {
	case matchAny:
		return true
	case matchExact:
		return q == m.qualifier
	default:
		return q == ""
	}
}

// priority orders matchers by specificity when several rules apply.
func (m QualifierMatcher) priority() int {
	if m.mode == matchAny {
		return 0
	}
	return 1
}

func (m QualifierMatcher) String() string {
	switch m.mode {
	case matchAny:
		return "any"
	case matchExact:
		return "@" + m.qualifier
	default:
		return "default"
	}
}

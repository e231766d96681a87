package inject

import (
	"fmt"
	"reflect"
	"slices"
)

// RuleSet selects one layer of the binding functions compiled from
// [Bindings].
type RuleSet int

const (
	// Explicit holds the rules exactly as bound.
	Explicit RuleSet = iota
	// IntermediateTypes binds the concrete type produced by a rule to the
	// same satisfaction, so that desires for it share the node.
	IntermediateTypes
	// SuperTypes binds the extra types declared with [Binding.Exposes].
	SuperTypes
)

func (s RuleSet) String() string {
	switch s {
	case Explicit:
		return "explicit"
	case IntermediateTypes:
		return "intermediate-types"
	case SuperTypes:
		return "super-types"
	default:
		return "unknown"
	}
}

type bindRule struct {
	source    reflect.Type
	qualifier QualifierMatcher
	context   reflect.Type
	target    reflect.Type
	sat       Satisfaction
	policy    CachePolicy
	terminal  bool
	layer     RuleSet
	seq       int
}

func (r *bindRule) String() string {
	to := typeString(r.target)
	if r.sat != nil {
		to = r.sat.String()
	}
	s := fmt.Sprintf("bind %s (%s) to %s", r.source, r.qualifier, to)
	if r.context != nil {
		s += " within " + r.context.String()
	}
	return s
}

// Bindings is an ordered set of binding rules. Among rules matching a
// desire, one with a deeper context match wins, then one with a more
// specific qualifier matcher, then the one bound last.
type Bindings struct {
	rules []*bindRule
	seq   int
}

// NewBindings returns an empty rule set.
func NewBindings() *Bindings {
	return &Bindings{}
}

// Binding is a rule under construction. Configure it, then finish it with
// one of the To methods.
type Binding struct {
	owner     *Bindings
	source    reflect.Type
	qualifier QualifierMatcher
	context   reflect.Type
	sharing   sharing
	policy    CachePolicy
	exposes   []reflect.Type
}

// Bind starts a binding for T:
//
//	_ = inject.Bind[ItemScorer](b).To(NewItemMeanScorer)
func Bind[T any](b *Bindings) *Binding {
	return b.BindType(reflect.TypeFor[T]())
}

// BindType starts a binding for typ.
func (b *Bindings) BindType(typ reflect.Type) *Binding {
	return &Binding{owner: b, source: typ, qualifier: DefaultQualifier()}
}

// Qualified restricts the binding to points qualified with q.
func (b *Binding) Qualified(q string) *Binding {
	b.qualifier = MatchQualifier(q)
	return b
}

// AnyQualifier applies the binding whatever the point's qualifier.
func (b *Binding) AnyQualifier() *Binding {
	b.qualifier = AnyQualifierMatcher()
	return b
}

// Within restricts the binding to desires resolved beneath a component
// whose type is assignable to ctx.
func (b *Binding) Within(ctx reflect.Type) *Binding {
	b.context = ctx
	return b
}

// Shared marks the bound component shareable regardless of its type.
func (b *Binding) Shared() *Binding {
	b.sharing = forceShared
	return b
}

// Unshared marks the bound component not shareable regardless of its type.
func (b *Binding) Unshared() *Binding {
	b.sharing = forceUnshared
	return b
}

// Policy sets the cache policy of the bound component.
func (b *Binding) Policy(p CachePolicy) *Binding {
	b.policy = p
	return b
}

// Exposes also binds each of types, which the target must be assignable
// to, to the same satisfaction.
func (b *Binding) Exposes(types ...reflect.Type) *Binding {
	b.exposes = append(b.exposes, types...)
	return b
}

// To binds to a constructor. See [NewConstructorSatisfaction].
func (b *Binding) To(ctor any, opts ...Option) error {
	sat, err := newConstructorSatisfaction(ctor, slices.Concat(opts, []Option{withSharing(b.sharing)})...)
	if err != nil {
		return err
	}
	return b.bindSatisfaction(sat)
}

// ToProvider binds to the values produced by a provider. See
// [NewProviderSatisfaction].
func (b *Binding) ToProvider(ctor any, opts ...Option) error {
	sat, err := newProviderSatisfaction(ctor, slices.Concat(opts, []Option{withSharing(b.sharing)})...)
	if err != nil {
		return err
	}
	return b.bindSatisfaction(sat)
}

// ToInstance binds to a fixed value. A nil v binds to nil.
func (b *Binding) ToInstance(v any) error {
	if v == nil {
		return b.ToNull()
	}
	return b.bindSatisfaction(InstanceOf(v))
}

// ToNull binds to a nil value of the bound type.
func (b *Binding) ToNull() error {
	return b.bindSatisfaction(NullOf(b.source))
}

// ToPlaceholder binds to a placeholder for the bound type.
func (b *Binding) ToPlaceholder() error {
	return b.bindSatisfaction(NewPlaceholder(b.source))
}

// ToSatisfaction binds to an existing satisfaction.
func (b *Binding) ToSatisfaction(sat Satisfaction) error {
	return b.bindSatisfaction(sat)
}

// ToType binds to another type, which is resolved in turn by further
// rules or by default.
func (b *Binding) ToType(typ reflect.Type) error {
	if !typ.AssignableTo(b.source) {
		return fmt.Errorf("%w: %s is not assignable to %s", ErrInvalidComponent, typ, b.source)
	}
	var sat Satisfaction
	if b.sharing != inheritSharing && isStructPointer(typ) {
		s, err := newStructSatisfaction(typ, withSharing(b.sharing))
		if err != nil {
			return err
		}
		sat = s
	}
	b.owner.add(b.rule(Explicit, b.source, typ, sat, false))
	return nil
}

func (b *Binding) bindSatisfaction(sat Satisfaction) error {
	out := sat.ErasedType()
	if !out.AssignableTo(b.source) {
		return fmt.Errorf("%w: %s does not provide %s", ErrInvalidComponent, sat, b.source)
	}
	for _, x := range b.exposes {
		if !out.AssignableTo(x) {
			return fmt.Errorf("%w: %s does not provide %s", ErrInvalidComponent, sat, x)
		}
	}

	b.owner.add(b.rule(Explicit, b.source, out, sat, true))
	if out != b.source {
		b.owner.add(b.rule(IntermediateTypes, out, out, sat, true))
	}
	for _, x := range b.exposes {
		if x != b.source && x != out {
			b.owner.add(b.rule(SuperTypes, x, out, sat, true))
		}
	}
	return nil
}

func (b *Binding) rule(layer RuleSet, source, target reflect.Type, sat Satisfaction, terminal bool) *bindRule {
	return &bindRule{
		source:    source,
		qualifier: b.qualifier,
		context:   b.context,
		target:    target,
		sat:       sat,
		policy:    b.policy,
		terminal:  terminal,
		layer:     layer,
	}
}

func (b *Bindings) add(r *bindRule) {
	b.seq++
	r.seq = b.seq
	b.rules = append(b.rules, r)
}

// Len returns the number of compiled rules across all layers.
func (b *Bindings) Len() int { return len(b.rules) }

// Build compiles one layer of the rules into a binding function.
func (b *Bindings) Build(set RuleSet) BindingFunction {
	var rules []*bindRule
	for _, r := range b.rules {
		if r.layer == set {
			rules = append(rules, r)
		}
	}
	return &ruleBindingFunction{rules: rules}
}

// Placeholders returns a copy of the rules in which every rule binds its
// source type to a placeholder instead of its real target.
func (b *Bindings) Placeholders() *Bindings {
	out := &Bindings{seq: b.seq}
	for _, r := range b.rules {
		c := *r
		c.sat = NewPlaceholder(r.source)
		c.target = r.source
		c.terminal = true
		out.rules = append(out.rules, &c)
	}
	return out
}

type ruleBindingFunction struct {
	rules []*bindRule
}

func (f *ruleBindingFunction) Bind(ctx ResolutionContext, d Desire) (*BindingResult, error) {
	var best *bindRule
	bestDepth := -1
	for _, r := range f.rules {
		if r.source != d.Type || !r.qualifier.Matches(d.Point.Qualifier) {
			continue
		}
		depth := contextDepth(ctx, r.context)
		if depth < 0 {
			continue
		}
		if best == nil || better(r, depth, best, bestDepth) {
			best, bestDepth = r, depth
		}
	}
	if best == nil {
		return nil, nil
	}
	return &BindingResult{
		Desire:   Desire{Point: d.Point, Type: best.target, Satisfaction: best.sat},
		Policy:   best.policy,
		Terminal: best.terminal,
	}, nil
}

func better(r *bindRule, depth int, best *bindRule, bestDepth int) bool {
	if depth != bestDepth {
		return depth > bestDepth
	}
	if rp, bp := r.qualifier.priority(), best.qualifier.priority(); rp != bp {
		return rp > bp
	}
	return r.seq > best.seq
}

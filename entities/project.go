package entities

import (
	"fmt"
	"reflect"
	"sync"
)

var views sync.Map // reflect.Type -> builder name

// RegisterView declares the builder used to project entities onto the view
// type V.
func RegisterView[V Entity](builder string) {
	views.Store(reflect.TypeFor[V](), builder)
}

// Project converts e to the view type V. If e already is a V it is returned
// unchanged; otherwise every attribute is copied into V's registered
// builder and a new entity is built.
func Project[V Entity](e Entity) (V, error) {
	var zero V
	if v, ok := e.(V); ok {
		return v, nil
	}

	vt := reflect.TypeFor[V]()
	name, ok := views.Load(vt)
	if !ok {
		return zero, fmt.Errorf("%w: no builder registered for view %s", ErrIllegalArgument, vt)
	}

	b, err := NewBuilder(name.(string), e.Type())
	if err != nil {
		return zero, err
	}
	for _, a := range e.Values() {
		if err := b.SetAttribute(a.Name, a.Value); err != nil {
			return zero, fmt.Errorf("projecting %s onto %s: %w", e.Type(), vt, err)
		}
	}

	built, err := b.Build()
	if err != nil {
		return zero, fmt.Errorf("projecting %s onto %s: %w", e.Type(), vt, err)
	}
	v, ok := built.(V)
	if !ok {
		return zero, fmt.Errorf("%w: builder %q produced %T, not %s", ErrIllegalArgument, name, built, vt)
	}
	return v, nil
}

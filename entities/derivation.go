package entities

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// EntityDerivation states that every source entity carrying Attribute
// implies a bare entity of Type with that id.
type EntityDerivation struct {
	typ     *EntityType
	sources []*EntityType
	attr    *TypedName
}

// NewDerivation creates a derivation. The source attribute must hold ids,
// so its type must be int64.
func NewDerivation(typ *EntityType, sources []*EntityType, attr *TypedName) (*EntityDerivation, error) {
	if attr.typ != int64Type {
		return nil, fmt.Errorf("%w: derivation source %s must be of type long", ErrIllegalArgument, attr)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: derivation of %s has no source types", ErrIllegalArgument, typ)
	}
	return &EntityDerivation{typ: typ, sources: append([]*EntityType(nil), sources...), attr: attr}, nil
}

// Type returns the derived entity type.
func (d *EntityDerivation) Type() *EntityType { return d.typ }

// SourceTypes returns the entity types scanned for the source attribute.
func (d *EntityDerivation) SourceTypes() []*EntityType {
	return append([]*EntityType(nil), d.sources...)
}

// Attribute returns the source attribute.
func (d *EntityDerivation) Attribute() *TypedName { return d.attr }

// HasSource reports whether typ is one of the source types.
func (d *EntityDerivation) HasSource(typ *EntityType) bool {
	for _, s := range d.sources {
		if s == typ {
			return true
		}
	}
	return false
}

func (d *EntityDerivation) String() string {
	names := make([]string, len(d.sources))
	for i, s := range d.sources {
		names[i] = s.name
	}
	return fmt.Sprintf("derive %s from %s.%s", d.typ, strings.Join(names, "|"), d.attr.name)
}

type derivationJSON struct {
	SourceType      json.RawMessage `json:"source_type"`
	EntityType      string          `json:"entity_type"`
	SourceAttribute string          `json:"source_attribute"`
}

// ParseDerivationJSON reads a derivation from an object with the keys
// source_type (a name or list of names), entity_type and source_attribute.
func ParseDerivationJSON(data []byte) (*EntityDerivation, error) {
	var raw derivationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing derivation: %v", ErrIllegalArgument, err)
	}
	if raw.EntityType == "" || raw.SourceAttribute == "" || len(raw.SourceType) == 0 {
		return nil, fmt.Errorf("%w: derivation needs source_type, entity_type and source_attribute", ErrIllegalArgument)
	}

	var names []string
	var single string
	if err := json.Unmarshal(raw.SourceType, &single); err == nil {
		names = []string{single}
	} else if err := json.Unmarshal(raw.SourceType, &names); err != nil {
		return nil, fmt.Errorf("%w: source_type must be a string or list: %v", ErrIllegalArgument, err)
	}

	sources := make([]*EntityType, len(names))
	for i, n := range names {
		sources[i] = EntityTypeFor(n)
	}
	return NewDerivation(EntityTypeFor(raw.EntityType), sources, TypedNameOf[int64](raw.SourceAttribute))
}

// MarshalJSON writes the derivation in the form read by ParseDerivationJSON.
func (d *EntityDerivation) MarshalJSON() ([]byte, error) {
	var src any
	if len(d.sources) == 1 {
		src = d.sources[0].name
	} else {
		names := make([]string, len(d.sources))
		for i, s := range d.sources {
			names[i] = s.name
		}
		src = names
	}
	return json.Marshal(map[string]any{
		"source_type":      src,
		"entity_type":      d.typ.name,
		"source_attribute": d.attr.name,
	})
}

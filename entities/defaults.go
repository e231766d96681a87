package entities

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ARTM2000/lenskit/internal/logging"
)

// DefaultsPath is the directory, inside each search root, holding one
// <type>.yaml descriptor per entity type.
const DefaultsPath = "META-INF/lenskit/entity-defaults"

//go:embed META-INF/lenskit/entity-defaults/*.yaml
var builtinDefaults embed.FS

var validate = validator.New(validator.WithRequiredStructEnabled())

// defaultsDescriptor is the YAML form of an entity defaults file.
type defaultsDescriptor struct {
	Attributes  map[string]string `yaml:"attributes" validate:"dive,keys,required,endkeys,required"`
	Columns     []string          `yaml:"columns" validate:"dive,required"`
	Derivations map[string]string `yaml:"derivations" validate:"dive,keys,required,endkeys,required"`
	Builder     string            `yaml:"builder"`
}

// EntityDefaults describes the well-known schema of an entity type: its
// attributes, default column layout, builder and derivations.
type EntityDefaults struct {
	typ         *EntityType
	attributes  map[string]*TypedName
	columns     []*TypedName
	builder     string
	derivations []*EntityDerivation
}

// Type returns the described entity type.
func (d *EntityDefaults) Type() *EntityType { return d.typ }

// AttributeDefaults returns the typed name declared for name, or nil.
func (d *EntityDefaults) AttributeDefaults(name string) *TypedName {
	return d.attributes[name]
}

// CommonAttributes returns the declared attributes sorted by name.
func (d *EntityDefaults) CommonAttributes() []*TypedName {
	out := make([]*TypedName, 0, len(d.attributes))
	for _, n := range d.attributes {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *TypedName) int {
		switch {
		case a.name < b.name:
			return -1
		case a.name > b.name:
			return 1
		}
		return 0
	})
	return out
}

// DefaultColumns returns the default column layout.
func (d *EntityDefaults) DefaultColumns() []*TypedName {
	return append([]*TypedName(nil), d.columns...)
}

// DefaultBuilder returns the registered name of the default builder.
func (d *EntityDefaults) DefaultBuilder() string { return d.builder }

// NewBuilder creates the default builder for the type.
func (d *EntityDefaults) NewBuilder() (EntityBuilder, error) {
	return NewBuilder(d.builder, d.typ)
}

// DefaultDerivations returns the derivations declared for the type.
func (d *EntityDefaults) DefaultDerivations() []*EntityDerivation {
	return append([]*EntityDerivation(nil), d.derivations...)
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// DefaultsRegistry finds and caches entity defaults. Search roots are
// consulted in order, then the built-in descriptors. A type with no
// descriptor has no defaults; that is not an error.
type DefaultsRegistry struct {
	interner *Interner
	roots    []fs.FS
	cache    sync.Map // *EntityType -> *EntityDefaults, nil when absent
	group    singleflight.Group
	log      zerolog.Logger
}

// DefaultsOption configures a DefaultsRegistry.
type DefaultsOption func(*DefaultsRegistry)

// WithSearchFS adds search roots ahead of the built-in descriptors.
func WithSearchFS(roots ...fs.FS) DefaultsOption {
	return func(r *DefaultsRegistry) {
		r.roots = append(r.roots, roots...)
	}
}

// WithDefaultsInterner resolves attribute names in in.
func WithDefaultsInterner(in *Interner) DefaultsOption {
	return func(r *DefaultsRegistry) {
		r.interner = in
	}
}

// NewDefaultsRegistry creates a registry.
func NewDefaultsRegistry(opts ...DefaultsOption) *DefaultsRegistry {
	r := &DefaultsRegistry{
		interner: defaultInterner,
		log:      logging.Component("entities.defaults"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.roots = append(r.roots, builtinDefaults)
	return r
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *DefaultsRegistry
)

// LookupDefaults looks typ up in a registry holding only the built-in
// descriptors.
func LookupDefaults(typ *EntityType) (*EntityDefaults, error) {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewDefaultsRegistry()
	})
	return defaultRegistry.Lookup(typ)
}

// Lookup returns the defaults for typ, or nil if no descriptor exists.
func (r *DefaultsRegistry) Lookup(typ *EntityType) (*EntityDefaults, error) {
	if v, ok := r.cache.Load(typ); ok {
		return v.(*EntityDefaults), nil
	}

	v, err, _ := r.group.Do(typ.name, func() (any, error) {
		if v, ok := r.cache.Load(typ); ok {
			return v, nil
		}
		d, err := r.load(typ)
		if err != nil {
			return nil, err
		}
		r.cache.Store(typ, d)
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*EntityDefaults), nil
}

func (r *DefaultsRegistry) load(typ *EntityType) (*EntityDefaults, error) {
	file := path.Join(DefaultsPath, typ.name+".yaml")
	for _, root := range r.roots {
		data, err := fs.ReadFile(root, file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}

		d, err := r.parse(typ, data)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", file, err)
		}
		r.log.Debug().
			Str("entity_type", typ.name).
			Int("attributes", len(d.attributes)).
			Msg("loaded entity defaults")
		return d, nil
	}

	r.log.Debug().Str("entity_type", typ.name).Msg("no entity defaults")
	return nil, nil
}

func (r *DefaultsRegistry) parse(typ *EntityType, data []byte) (*EntityDefaults, error) {
	var desc defaultsDescriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalArgument, err)
	}
	if err := validate.Struct(&desc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalArgument, err)
	}

	d := &EntityDefaults{
		typ:        typ,
		attributes: make(map[string]*TypedName, len(desc.Attributes)),
		builder:    desc.Builder,
	}
	if d.builder == "" {
		d.builder = BasicBuilderName
	}

	for name, typeName := range desc.Attributes {
		tn, err := r.interner.CreateTypedName(name, typeName)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		d.attributes[name] = tn
	}

	for _, col := range desc.Columns {
		tn, ok := d.attributes[col]
		if !ok {
			return nil, fmt.Errorf("%w: column %s is not a declared attribute", ErrIllegalArgument, col)
		}
		d.columns = append(d.columns, tn)
	}

	targets := make([]string, 0, len(desc.Derivations))
	for target := range desc.Derivations {
		targets = append(targets, target)
	}
	slices.Sort(targets)
	for _, target := range targets {
		src := desc.Derivations[target]
		attr, ok := d.attributes[src]
		if !ok {
			attr = r.interner.TypedName(src, int64Type)
		}
		deriv, err := NewDerivation(r.interner.EntityType(target), []*EntityType{typ}, attr)
		if err != nil {
			return nil, err
		}
		d.derivations = append(d.derivations, deriv)
	}

	return d, nil
}

package inject

// sharing overrides the shareability a component type declares.
type sharing int

const (
	inheritSharing sharing = iota
	forceShared
	forceUnshared
)

type setterSpec struct {
	name string
	opts []PointOption
}

// componentConfig holds the options applied to a constructor, struct or
// provider satisfaction.
type componentConfig struct {
	params  map[int][]PointOption
	setters []setterSpec
	sharing sharing
}

// Option configures a component satisfaction.
type Option func(*componentConfig)

// Param configures constructor parameter i.
func Param(i int, opts ...PointOption) Option {
	return func(c *componentConfig) {
		if c.params == nil {
			c.params = make(map[int][]PointOption)
		}
		c.params[i] = append(c.params[i], opts...)
	}
}

// Setter declares a setter method to call after construction. The method
// must take one argument and return nothing or an error.
func Setter(name string, opts ...PointOption) Option {
	return func(c *componentConfig) {
		c.setters = append(c.setters, setterSpec{name: name, opts: opts})
	}
}

func withSharing(s sharing) Option {
	return func(c *componentConfig) {
		if s != inheritSharing {
			c.sharing = s
		}
	}
}

// PointOption configures an injection point.
type PointOption func(*InjectionPoint)

// Qualifier sets the point's qualifier.
func Qualifier(q string) PointOption {
	return func(p *InjectionPoint) { p.Qualifier = q }
}

// Transient marks the point as used only during construction.
func Transient() PointOption {
	return func(p *InjectionPoint) { p.Transient = true }
}

// Optional lets the point receive nil when nothing is bound.
func Optional() PointOption {
	return func(p *InjectionPoint) { p.Optional = true }
}

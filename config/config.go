// Package config loads lenskit runtime configuration.
//
// Configuration is layered, later layers winning:
//
//  1. Built-in defaults
//  2. An optional YAML file
//  3. LENSKIT_* environment variables
//
// Environment names map to keys by dropping the prefix and splitting the
// section from the field at the first underscore:
//
//	LENSKIT_LOGGING_LEVEL=debug                 -> logging.level
//	LENSKIT_ENTITIES_DEFAULTS_DIRS=./a,./b      -> entities.defaults_dirs
//	LENSKIT_INJECT_DEFAULT_CACHE_POLICY=memoize -> inject.default_cache_policy
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/ARTM2000/lenskit/entities"
	"github.com/ARTM2000/lenskit/inject"
	"github.com/ARTM2000/lenskit/internal/logging"
)

// EnvPrefix prefixes every environment variable read by [Load].
const EnvPrefix = "LENSKIT_"

// PathEnvVar names the config file when Load is called with an empty path.
const PathEnvVar = "LENSKIT_CONFIG"

// Config is the complete lenskit configuration.
type Config struct {
	Logging  LoggingConfig  `koanf:"logging"`
	Entities EntitiesConfig `koanf:"entities"`
	Inject   InjectConfig   `koanf:"inject"`
}

// LoggingConfig configures the process-wide logger.
type LoggingConfig struct {
	Level     string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format    string `koanf:"format" validate:"oneof=json console"`
	Caller    bool   `koanf:"caller"`
	Timestamp bool   `koanf:"timestamp"`
}

// EntitiesConfig configures the entity layer.
type EntitiesConfig struct {
	// DefaultsDirs are searched, in order, for
	// META-INF/lenskit/entity-defaults/<type>.yaml before the built-in
	// descriptors.
	DefaultsDirs []string `koanf:"defaults_dirs" validate:"dive,required"`
}

// InjectConfig configures graph building.
type InjectConfig struct {
	// DefaultCachePolicy applies to nodes whose bindings express no
	// preference.
	DefaultCachePolicy string `koanf:"default_cache_policy" validate:"oneof=no-preference memoize new-instance"`
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			Timestamp: true,
		},
		Entities: EntitiesConfig{
			DefaultsDirs: []string{},
		},
		Inject: InjectConfig{
			DefaultCachePolicy: inject.Memoize.String(),
		},
	}
}

// sliceKeys are split on commas when they arrive as strings from the
// environment.
var sliceKeys = []string{
	"entities.defaults_dirs",
}

// Load reads the configuration. path names a YAML file; when empty, the
// file named by LENSKIT_CONFIG is used if that variable is set, and no file
// is read otherwise.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps LENSKIT_SECTION_FIELD_NAME to section.field_name.
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

func splitSlices(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		parts := make([]string, 0, strings.Count(s, ",")+1)
		for p := range strings.SplitSeq(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

// Validate checks every field against its allowed values.
func (c *Config) Validate() error {
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	c.Inject.DefaultCachePolicy = strings.ReplaceAll(strings.ToLower(c.Inject.DefaultCachePolicy), "_", "-")

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s = %q fails %q", ErrInvalid, fe.Namespace(), fe.Value(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// ApplyLogging reconfigures the process-wide logger.
func (c *Config) ApplyLogging() {
	logging.Init(logging.Config{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		Caller:    c.Logging.Caller,
		Timestamp: c.Logging.Timestamp,
	})
}

// EntityDefaults returns a defaults registry that searches the configured
// directories ahead of the built-in descriptors.
func (c *Config) EntityDefaults() *entities.DefaultsRegistry {
	roots := make([]fs.FS, 0, len(c.Entities.DefaultsDirs))
	for _, dir := range c.Entities.DefaultsDirs {
		roots = append(roots, os.DirFS(dir))
	}
	return entities.NewDefaultsRegistry(entities.WithSearchFS(roots...))
}

// GraphBuilderOptions returns the graph builder options implied by the
// configuration.
func (c *Config) GraphBuilderOptions() ([]inject.GraphBuilderOption, error) {
	p, err := inject.ParseCachePolicy(c.Inject.DefaultCachePolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return []inject.GraphBuilderOption{inject.WithDefaultPolicy(p)}, nil
}

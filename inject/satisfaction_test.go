package inject

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taggedComponent struct {
	Logger *testLogger `inject:""`
	Config *testConfig `inject:"prod,transient"`
	Scorer testScorer  `inject:",optional"`
	Name   string
}

type hiddenTagged struct {
	logger *testLogger `inject:""`
}

type badOptionTagged struct {
	Logger *testLogger `inject:",sometimes"`
}

type settable struct {
	logger *testLogger
}

func (s *settable) SetLogger(l *testLogger) { s.logger = l }

func (s *settable) SetPrefix(p string) error {
	if p == "" {
		return errors.New("empty prefix")
	}
	return nil
}

func (s *settable) Reset() {}

type configProvider struct{ Logger *testLogger }

func (p *configProvider) Get() (*testConfig, error) { return &testConfig{DSN: "provided"}, nil }

func newConfigProvider(l *testLogger) *configProvider { return &configProvider{Logger: l} }

func TestNewConstructorSatisfaction(t *testing.T) {
	t.Parallel()

	var nilFunc func() *testLogger
	invalid := []struct {
		name string
		ctor any
	}{
		{"nil", nil},
		{"nil func", nilFunc},
		{"non-function", "not a function"},
		{"no return values", func() {}},
		{"three return values", func() (int, int, int) { return 0, 0, 0 }},
		{"second return not error", func() (int, string) { return 0, "" }},
		{"variadic", func(...int) int { return 0 }},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConstructorSatisfaction(tt.ctor)
			assert.ErrorIs(t, err, ErrInvalidComponent)
		})
	}

	t.Run("constructor returning (T, error)", func(t *testing.T) {
		sat, err := NewConstructorSatisfaction(func() (*testConfig, error) { return &testConfig{}, nil })
		require.NoError(t, err)
		assert.Equal(t, typeOf[*testConfig](), sat.ErasedType())
		assert.Empty(t, sat.Dependencies())
		assert.False(t, sat.HasInstance())
		assert.Equal(t, NoPreference, sat.DefaultCachePolicy())
	})

	t.Run("parameter out of range", func(t *testing.T) {
		_, err := NewConstructorSatisfaction(newTestLogger, Param(1, Qualifier("x")))
		assert.ErrorIs(t, err, ErrInvalidComponent)
	})

	t.Run("parameter options", func(t *testing.T) {
		sat, err := NewConstructorSatisfaction(newTestDatabase, Param(1, Qualifier("audit"), Transient()))
		require.NoError(t, err)

		deps := sat.Dependencies()
		require.Len(t, deps, 2)
		assert.Empty(t, deps[0].Point.Qualifier)
		assert.False(t, deps[0].Point.Transient)
		assert.Equal(t, "audit", deps[1].Point.Qualifier)
		assert.True(t, deps[1].Point.Transient)
	})

	t.Run("instantiate passes arguments", func(t *testing.T) {
		sat, err := NewConstructorSatisfaction(newTestDatabase)
		require.NoError(t, err)

		cfg, log := newTestConfig(), newTestLogger()
		v, err := sat.instantiate([]any{cfg, log})
		require.NoError(t, err)
		db := v.(*testDatabase)
		assert.Same(t, cfg, db.Config)
		assert.Same(t, log, db.Logger)
	})

	t.Run("nil argument becomes zero value", func(t *testing.T) {
		sat, err := NewConstructorSatisfaction(newTestRecommender)
		require.NoError(t, err)

		v, err := sat.instantiate([]any{nil, nil})
		require.NoError(t, err)
		assert.Nil(t, v.(*testRecommender).Scorer)
	})

	t.Run("constructor error propagates", func(t *testing.T) {
		sat, err := NewConstructorSatisfaction(func() (*testConfig, error) {
			return nil, errors.New("connection failed")
		})
		require.NoError(t, err)

		_, err = sat.instantiate(nil)
		assert.EqualError(t, err, "connection failed")
	})

	t.Run("describes itself by function", func(t *testing.T) {
		sat, err := NewConstructorSatisfaction(newTestDatabase)
		require.NoError(t, err)
		assert.Contains(t, sat.String(), "*inject.testDatabase")
		assert.Contains(t, sat.String(), "newTestDatabase")
	})
}

func TestStructSatisfaction(t *testing.T) {
	t.Parallel()

	t.Run("tagged fields", func(t *testing.T) {
		sat, err := NewStructSatisfaction(typeOf[*taggedComponent]())
		require.NoError(t, err)
		assert.Equal(t, "struct *inject.taggedComponent", sat.String())

		deps := sat.Dependencies()
		require.Len(t, deps, 3)
		for _, d := range deps {
			assert.Equal(t, FieldPoint, d.Point.Kind)
		}
		assert.Equal(t, "Logger", deps[0].Point.Member)
		assert.Equal(t, "prod", deps[1].Point.Qualifier)
		assert.True(t, deps[1].Point.Transient)
		assert.True(t, deps[2].Point.Optional)
		assert.Equal(t, typeOf[testScorer](), deps[2].Type)
	})

	t.Run("instantiate sets fields", func(t *testing.T) {
		sat, err := NewStructSatisfaction(typeOf[*taggedComponent]())
		require.NoError(t, err)

		log, cfg := newTestLogger(), newTestConfig()
		v, err := sat.instantiate([]any{log, cfg, nil})
		require.NoError(t, err)
		c := v.(*taggedComponent)
		assert.Same(t, log, c.Logger)
		assert.Same(t, cfg, c.Config)
		assert.Nil(t, c.Scorer)
	})

	t.Run("constructor result fields are injected", func(t *testing.T) {
		sat, err := NewConstructorSatisfaction(func() *taggedComponent {
			return &taggedComponent{Name: "built"}
		})
		require.NoError(t, err)
		require.Len(t, sat.Dependencies(), 3)

		log := newTestLogger()
		v, err := sat.instantiate([]any{log, nil, nil})
		require.NoError(t, err)
		assert.Equal(t, "built", v.(*taggedComponent).Name)
		assert.Same(t, log, v.(*taggedComponent).Logger)
	})

	t.Run("unexported tagged field rejected", func(t *testing.T) {
		_, err := NewStructSatisfaction(typeOf[*hiddenTagged]())
		assert.ErrorIs(t, err, ErrInvalidComponent)
	})

	t.Run("unknown tag option rejected", func(t *testing.T) {
		_, err := NewStructSatisfaction(typeOf[*badOptionTagged]())
		assert.ErrorIs(t, err, ErrInvalidComponent)
		assert.ErrorContains(t, err, "sometimes")
	})

	t.Run("non-pointer rejected", func(t *testing.T) {
		_, err := NewStructSatisfaction(typeOf[taggedComponent]())
		assert.ErrorIs(t, err, ErrInvalidComponent)
	})

	t.Run("constructor parameters rejected", func(t *testing.T) {
		_, err := NewStructSatisfaction(typeOf[*taggedComponent](), Param(0))
		assert.ErrorIs(t, err, ErrInvalidComponent)
	})

	t.Run("default satisfaction is cached", func(t *testing.T) {
		a, err := defaultStructSatisfaction(typeOf[*taggedComponent]())
		require.NoError(t, err)
		b, err := defaultStructSatisfaction(typeOf[*taggedComponent]())
		require.NoError(t, err)
		assert.Same(t, a, b)
	})
}

func TestSetterInjection(t *testing.T) {
	t.Parallel()

	t.Run("setter is a dependency", func(t *testing.T) {
		sat, err := NewStructSatisfaction(typeOf[*settable](), Setter("SetLogger", Qualifier("audit")))
		require.NoError(t, err)

		deps := sat.Dependencies()
		require.Len(t, deps, 1)
		assert.Equal(t, SetterPoint, deps[0].Point.Kind)
		assert.Equal(t, "SetLogger", deps[0].Point.Member)
		assert.Equal(t, "audit", deps[0].Point.Qualifier)
		assert.Equal(t, typeOf[*testLogger](), deps[0].Type)

		log := newTestLogger()
		v, err := sat.instantiate([]any{log})
		require.NoError(t, err)
		assert.Same(t, log, v.(*settable).logger)
	})

	t.Run("setter error propagates", func(t *testing.T) {
		sat, err := NewStructSatisfaction(typeOf[*settable](), Setter("SetPrefix"))
		require.NoError(t, err)

		_, err = sat.instantiate([]any{""})
		assert.ErrorContains(t, err, "empty prefix")
	})

	t.Run("missing method rejected", func(t *testing.T) {
		_, err := NewStructSatisfaction(typeOf[*settable](), Setter("SetNothing"))
		assert.ErrorIs(t, err, ErrInvalidComponent)
	})

	t.Run("method without argument rejected", func(t *testing.T) {
		_, err := NewStructSatisfaction(typeOf[*settable](), Setter("Reset"))
		assert.ErrorIs(t, err, ErrInvalidComponent)
	})
}

func TestProviderSatisfaction(t *testing.T) {
	t.Parallel()

	t.Run("produces Get result", func(t *testing.T) {
		sat, err := NewProviderSatisfaction(newConfigProvider)
		require.NoError(t, err)
		assert.Equal(t, typeOf[*testConfig](), sat.ErasedType())
		require.Len(t, sat.Dependencies(), 1)
		assert.Equal(t, typeOf[*testLogger](), sat.Dependencies()[0].Type)

		v, err := sat.instantiate([]any{newTestLogger()})
		require.NoError(t, err)
		assert.Equal(t, "provided", v.(*testConfig).DSN)
	})

	t.Run("provider without Get rejected", func(t *testing.T) {
		_, err := NewProviderSatisfaction(newTestLogger)
		assert.ErrorIs(t, err, ErrInvalidComponent)
	})
}

func TestFixedSatisfactions(t *testing.T) {
	t.Parallel()

	t.Run("instance", func(t *testing.T) {
		log := newTestLogger()
		sat := InstanceOf(log)
		assert.True(t, sat.HasInstance())
		assert.Equal(t, Memoize, sat.DefaultCachePolicy())
		assert.False(t, sat.Shareable())

		v, ok := Value(sat)
		require.True(t, ok)
		assert.Same(t, log, v)

		assert.True(t, InstanceOf(&meanScorer{}).Shareable())
	})

	t.Run("nil instance is null", func(t *testing.T) {
		sat := InstanceOf(nil)
		v, ok := Value(sat)
		assert.True(t, ok)
		assert.Nil(t, v)
	})

	t.Run("null", func(t *testing.T) {
		sat := NullOf(typeOf[testScorer]())
		assert.True(t, sat.HasInstance())
		assert.True(t, sat.Shareable())
		assert.Equal(t, typeOf[testScorer](), sat.ErasedType())
		v, err := sat.instantiate(nil)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("placeholder", func(t *testing.T) {
		sat := NewPlaceholder(typeOf[testScorer]())
		assert.False(t, sat.HasInstance())
		assert.False(t, sat.Shareable())
		_, ok := Value(sat)
		assert.False(t, ok)

		_, err := sat.instantiate(nil)
		assert.ErrorIs(t, err, ErrPlaceholder)
	})
}

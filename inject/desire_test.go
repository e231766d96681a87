package inject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDesire(t *testing.T) {
	t.Parallel()

	t.Run("simple desire", func(t *testing.T) {
		d := NewDesire(typeOf[*testLogger]())
		assert.Equal(t, SimplePoint, d.Point.Kind)
		assert.Equal(t, -1, d.Point.Index)
		assert.False(t, d.Instantiable())
		assert.Equal(t, "*inject.testLogger", d.String())
	})

	t.Run("qualified desire", func(t *testing.T) {
		d := QualifiedDesire("audit", typeOf[*testLogger]())
		assert.Equal(t, "audit", d.Point.Qualifier)
		assert.Equal(t, "*inject.testLogger @audit", d.String())
		assert.NotEqual(t, NewDesire(typeOf[*testLogger]()), d)
	})

	t.Run("constructor points", func(t *testing.T) {
		sat, err := NewConstructorSatisfaction(newTestDatabase)
		require.NoError(t, err)

		deps := sat.Dependencies()
		require.Len(t, deps, 2)
		assert.Equal(t, ConstructorPoint, deps[0].Point.Kind)
		assert.Equal(t, 0, deps[0].Point.Index)
		assert.Equal(t, typeOf[*testConfig](), deps[0].Type)
		assert.Equal(t, 1, deps[1].Point.Index)
		assert.Equal(t, typeOf[*testLogger](), deps[1].Type)
		assert.Contains(t, deps[1].String(), "newTestDatabase[1]")
	})
}

func TestQualifierMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		m     QualifierMatcher
		str   string
		match map[string]bool
	}{
		{"default", DefaultQualifier(), "default", map[string]bool{"": true, "fast": false}},
		{"exact", MatchQualifier("fast"), "@fast", map[string]bool{"": false, "fast": true, "slow": false}},
		{"exact empty", MatchQualifier(""), "default", map[string]bool{"": true, "fast": false}},
		{"any", AnyQualifierMatcher(), "any", map[string]bool{"": true, "fast": true}},
		{"zero value", QualifierMatcher{}, "default", map[string]bool{"": true, "fast": false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.str, tt.m.String())
			for q, want := range tt.match {
				assert.Equal(t, want, tt.m.Matches(q), "Matches(%q)", q)
			}
		})
	}

	assert.Greater(t, MatchQualifier("fast").priority(), AnyQualifierMatcher().priority())
	assert.Greater(t, DefaultQualifier().priority(), AnyQualifierMatcher().priority())
}

func TestCapabilityMarkers(t *testing.T) {
	t.Parallel()

	assert.True(t, IsDataAccessObject(typeOf[*ratingDAO]()))
	assert.True(t, IsDataAccessObject(typeOf[ratingDAO]()))
	assert.False(t, IsDataAccessObject(typeOf[*testDatabase]()))
	assert.False(t, IsDataAccessObject(nil))

	assert.True(t, typeOf[*meanScorer]().Implements(shareableType))
	assert.False(t, typeOf[*constScorer]().Implements(shareableType))
}

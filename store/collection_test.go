package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARTM2000/lenskit/entities"
)

// ratings returns n ratings spread over 100 users and 37 items.
func ratings(n int) []entities.Entity {
	out := make([]entities.Entity, n)
	for i := range n {
		id := int64(i + 1)
		out[i] = entities.NewRating(id, id%100, id%37, float64(id%5)+0.5, -1)
	}
	return out
}

func mustCollection(t testing.TB, b *CollectionBuilder) *EntityCollection {
	t.Helper()
	c, err := b.Build()
	require.NoError(t, err)
	return c
}

func TestCollectionFind(t *testing.T) {
	t.Parallel()

	rs := ratings(1000)

	plain := NewCollectionBuilder(entities.TypeRating)
	require.NoError(t, plain.AddAll(rs))
	unindexed := mustCollection(t, plain)

	ib := NewCollectionBuilder(entities.TypeRating)
	require.NoError(t, ib.AddIndex(entities.AttrUser))
	require.NoError(t, ib.AddIndexByName("item"))
	require.NoError(t, ib.AddAll(rs))
	indexed := mustCollection(t, ib)

	assert.False(t, unindexed.HasIndex("user"))
	assert.True(t, indexed.HasIndex("user"))
	assert.True(t, indexed.HasIndex("item"))

	t.Run("index does not change results", func(t *testing.T) {
		t.Parallel()
		for _, user := range []int64{0, 1, 42, 99, 100} {
			want := unindexed.Find(entities.AttrUser, user)
			assert.Equal(t, want, indexed.Find(entities.AttrUser, user), "user %d", user)
		}
		assert.Len(t, indexed.Find(entities.AttrUser, int64(42)), 10)
		assert.Empty(t, indexed.Find(entities.AttrUser, int64(100)))

		anyUser := entities.TypedNameOf[any]("user")
		want := unindexed.FindByName("user", 42)
		require.Len(t, want, 10)
		assert.Equal(t, want, unindexed.Find(anyUser, 42))
		assert.Equal(t, want, indexed.Find(anyUser, 42))
	})

	t.Run("numeric query values are converted", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, indexed.Find(entities.AttrUser, int64(42)), indexed.Find(entities.AttrUser, 42))
		assert.Equal(t, unindexed.Find(entities.AttrUser, int64(42)), unindexed.Find(entities.AttrUser, 42))
		assert.Empty(t, unindexed.Find(entities.AttrUser, 42.5))
	})

	t.Run("results are in id order", func(t *testing.T) {
		t.Parallel()
		found := indexed.Find(entities.AttrUser, 42)
		for i := 1; i < len(found); i++ {
			assert.Less(t, found[i-1].ID(), found[i].ID())
		}
		assert.Equal(t, int64(42), found[0].ID())
	})

	t.Run("find by name", func(t *testing.T) {
		t.Parallel()
		for _, item := range []int64{0, 5, 36} {
			want := unindexed.FindByName("item", item)
			assert.NotEmpty(t, want)
			assert.Equal(t, want, indexed.FindByName("item", item))
			assert.Equal(t, want, indexed.FindByName("item", int(item)))
		}
		assert.Empty(t, indexed.FindByName("bogus", 1))
	})

	t.Run("results cannot alter the collection", func(t *testing.T) {
		t.Parallel()
		found := indexed.Find(entities.AttrUser, int64(7))
		found[0] = nil
		assert.NotNil(t, indexed.Find(entities.AttrUser, int64(7))[0])
	})

	t.Run("lookup", func(t *testing.T) {
		t.Parallel()
		assert.Same(t, rs[9], indexed.Lookup(10))
		assert.Nil(t, indexed.Lookup(5000))
		assert.Equal(t, 1000, indexed.Size())
		assert.Len(t, indexed.IDs(), 1000)
		assert.Equal(t, rs, indexed.Entities())
	})
}

func TestCollectionBuilder(t *testing.T) {
	t.Parallel()

	t.Run("add replaces", func(t *testing.T) {
		t.Parallel()
		b := NewCollectionBuilder(entities.TypeRating)
		require.NoError(t, b.AddIndex(entities.AttrUser))
		first := entities.NewRating(1, 10, 1, 3, -1)
		second := entities.NewRating(1, 20, 1, 4, -1)
		require.NoError(t, b.Add(first))
		require.NoError(t, b.Add(second))
		assert.Equal(t, 1, b.Size())

		c := mustCollection(t, b)
		assert.Same(t, second, c.Lookup(1))
		assert.Empty(t, c.Find(entities.AttrUser, 10))
		assert.Equal(t, []entities.Entity{second}, c.Find(entities.AttrUser, 20))
	})

	t.Run("add without replace keeps first", func(t *testing.T) {
		t.Parallel()
		b := NewCollectionBuilder(entities.TypeRating)
		first := entities.NewRating(1, 10, 1, 3, -1)
		require.NoError(t, b.AddEntity(first, false))
		require.NoError(t, b.AddEntity(entities.NewRating(1, 20, 1, 4, -1), false))

		c := mustCollection(t, b)
		assert.Same(t, first, c.Lookup(1))
	})

	t.Run("index backfills", func(t *testing.T) {
		t.Parallel()
		b := NewCollectionBuilder(entities.TypeRating)
		require.NoError(t, b.AddAll(ratings(50)))
		require.NoError(t, b.AddIndex(entities.AttrItem))
		require.NoError(t, b.AddIndex(entities.AttrItem))

		c := mustCollection(t, b)
		assert.Len(t, c.Find(entities.AttrItem, 1), 2)
	})

	t.Run("wrong type", func(t *testing.T) {
		t.Parallel()
		b := NewCollectionBuilder(entities.TypeUser)
		err := b.Add(entities.NewRating(1, 10, 1, 3, -1))
		require.ErrorIs(t, err, ErrWrongEntityType)
		require.ErrorIs(t, err, entities.ErrIllegalArgument)
	})

	t.Run("consumed after build", func(t *testing.T) {
		t.Parallel()
		b := NewCollectionBuilder(entities.TypeUser)
		require.NoError(t, b.Add(entities.NewBareEntity(entities.TypeUser, 1)))
		_ = mustCollection(t, b)

		_, err := b.Build()
		require.ErrorIs(t, err, ErrBuilderConsumed)
		require.ErrorIs(t, b.Add(entities.NewBareEntity(entities.TypeUser, 2)), ErrBuilderConsumed)
		require.ErrorIs(t, b.AddIndex(entities.AttrName), ErrBuilderConsumed)
	})

	t.Run("builder entities are in id order", func(t *testing.T) {
		t.Parallel()
		b := NewCollectionBuilder(entities.TypeUser)
		for _, id := range []int64{5, 1, 3} {
			require.NoError(t, b.Add(entities.NewBareEntity(entities.TypeUser, id)))
		}
		es := b.Entities()
		require.Len(t, es, 3)
		assert.Equal(t, []int64{1, 3, 5}, []int64{es[0].ID(), es[1].ID(), es[2].ID()})
	})
}

func TestContentHash(t *testing.T) {
	t.Parallel()

	build := func(rs []entities.Entity) string {
		b := NewCollectionBuilder(entities.TypeRating)
		require.NoError(t, b.AddAll(rs))
		return mustCollection(t, b).ContentHash()
	}

	h1 := build(ratings(20))
	assert.Len(t, h1, 16)
	assert.Equal(t, h1, build(ratings(20)))
	assert.NotEqual(t, h1, build(ratings(21)))
}

func TestDerive(t *testing.T) {
	t.Parallel()

	rb := NewCollectionBuilder(entities.TypeRating)
	require.NoError(t, rb.AddAll([]entities.Entity{
		entities.NewRating(1, 10, 100, 3, -1),
		entities.NewRating(2, 11, 100, 4, -1),
		entities.NewRating(3, 10, 101, 5, -1),
	}))
	rc := mustCollection(t, rb)

	defaults, err := entities.LookupDefaults(entities.TypeRating)
	require.NoError(t, err)
	require.NotNil(t, defaults)

	var userDeriv *entities.EntityDerivation
	for _, d := range defaults.DefaultDerivations() {
		if d.Type() == entities.TypeUser {
			userDeriv = d
		}
	}
	require.NotNil(t, userDeriv)

	ub := NewCollectionBuilder(entities.TypeUser)
	named := entities.NewBasicEntityBuilder(entities.TypeUser)
	named.SetID(10)
	require.NoError(t, named.SetAttribute(entities.AttrName, "alice"))
	alice, err := named.Build()
	require.NoError(t, err)
	require.NoError(t, ub.Add(alice))

	require.NoError(t, Derive(userDeriv, ub, rc))
	users := mustCollection(t, ub)
	assert.Equal(t, []int64{10, 11}, users.IDs())
	assert.Same(t, alice, users.Lookup(10))

	t.Run("type mismatch", func(t *testing.T) {
		t.Parallel()
		err := Derive(userDeriv, NewCollectionBuilder(entities.TypeItem), rc)
		require.ErrorIs(t, err, ErrWrongEntityType)
	})
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	defaults, err := entities.LookupDefaults(entities.TypeRating)
	require.NoError(t, err)

	input := strings.Join([]string{
		`{"$id": 1, "user": 10, "item": 5, "rating": 3.5}`,
		`{"$id": 2, "user": 11, "item": 5, "rating": 4}`,
		``,
		`{"$id": 3, "user": 10, "item": 6, "rating": 2}`,
	}, "\n")

	c, err := LoadJSON(strings.NewReader(input), entities.JSONFormatFor(defaults), entities.AttrUser)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Size())
	assert.True(t, c.HasIndex("user"))

	found := c.Find(entities.AttrUser, 10)
	require.Len(t, found, 2)
	assert.Equal(t, int64(1), found[0].ID())
	assert.Equal(t, int64(3), found[1].ID())

	item, err := c.Lookup(2).GetLong(entities.AttrItem)
	require.NoError(t, err)
	assert.Equal(t, int64(5), item)
}

func BenchmarkCollectionFind(b *testing.B) {
	rs := ratings(10000)
	for _, indexed := range []bool{false, true} {
		name := "scan"
		if indexed {
			name = "indexed"
		}
		b.Run(name, func(b *testing.B) {
			cb := NewCollectionBuilder(entities.TypeRating)
			if indexed {
				require.NoError(b, cb.AddIndex(entities.AttrUser))
			}
			require.NoError(b, cb.AddAll(rs))
			c := mustCollection(b, cb)

			for b.Loop() {
				_ = c.Find(entities.AttrUser, int64(42))
			}
		})
	}
}

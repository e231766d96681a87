package entities

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributeSet(t *testing.T) {
	t.Parallel()

	t.Run("interning is idempotent", func(t *testing.T) {
		t.Parallel()
		a := NewAttributeSet(AttrID, AttrUser, AttrItem)
		b := NewAttributeSet(AttrID, AttrUser, AttrItem)
		assert.Same(t, a, b)
	})

	t.Run("order matters", func(t *testing.T) {
		t.Parallel()
		a := NewAttributeSet(AttrUser, AttrItem)
		b := NewAttributeSet(AttrItem, AttrUser)
		assert.NotSame(t, a, b)
	})

	t.Run("id is moved to position zero", func(t *testing.T) {
		t.Parallel()
		s := NewAttributeSet(AttrUser, AttrItem, AttrID, AttrRating)
		assert.Same(t, AttrID, s.Attribute(0))
		assert.Equal(t, 0, s.Lookup(AttrID))
		assert.Equal(t, []string{"id", "user", "item", "rating"}, s.Names())
		assert.Same(t, s, NewAttributeSet(AttrID, AttrUser, AttrItem, AttrRating))
	})

	t.Run("duplicates are dropped", func(t *testing.T) {
		t.Parallel()
		s := NewAttributeSet(AttrID, AttrName, AttrName)
		assert.Equal(t, 2, s.Size())
	})

	t.Run("lookup sign contract", func(t *testing.T) {
		t.Parallel()
		s := NewAttributeSet(AttrID, AttrUser, AttrName)

		assert.Equal(t, LookupAbsent, s.Lookup(AttrItem))
		assert.Equal(t, LookupIncompatible, s.Lookup(TypedNameOf[string]("user")))
		assert.Equal(t, 1, s.Lookup(AttrUser))
		assert.Equal(t, 2, s.LookupName("name"))
		assert.Equal(t, LookupAbsent, s.LookupName("bogus"))
	})

	t.Run("compatible lookup accepts assignable types", func(t *testing.T) {
		t.Parallel()
		s := NewAttributeSet(AttrID, AttrName)
		loose := TypedNameOf[any]("name")

		assert.Equal(t, LookupIncompatible, s.Lookup(loose))
		assert.Equal(t, 1, s.LookupCompatible(loose))
	})

	t.Run("names from another interner match structurally", func(t *testing.T) {
		t.Parallel()
		in := NewInterner()
		s := NewAttributeSet(AttrID, AttrUser)
		assert.Equal(t, 1, s.Lookup(in.TypedName("user", AttrUser.Type())))
	})

	t.Run("separate interners keep separate sets", func(t *testing.T) {
		t.Parallel()
		in := NewInterner()
		assert.NotSame(t, NewAttributeSet(AttrID, AttrTimestamp), in.AttributeSet(AttrID, AttrTimestamp))
	})

	t.Run("concurrent creation converges", func(t *testing.T) {
		t.Parallel()
		in := NewInterner()
		user := in.TypedName("user", int64Type)
		item := in.TypedName("item", int64Type)
		id := in.TypedName("id", int64Type)

		const n = 64
		got := make([]*AttributeSet, n)
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if i%2 == 0 {
					got[i] = in.AttributeSet(user, item, id)
				} else {
					got[i] = in.AttributeSet(id, user, item)
				}
			}()
		}
		wg.Wait()
		for _, s := range got {
			assert.Same(t, got[0], s)
		}
		assert.Same(t, got[0], in.AttributeSet(id, user, item))
		assert.Equal(t, []string{"id", "user", "item"}, got[0].Names())
	})

	t.Run("string form", func(t *testing.T) {
		t.Parallel()
		s := NewAttributeSet(AttrID, AttrRating)
		assert.Equal(t, "AttributeSet[id:long, rating:double]", s.String())
	})
}

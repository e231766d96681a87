// Package store holds immutable, indexed collections of entities.
//
// A [CollectionBuilder] accumulates entities of one type, optionally
// maintaining attribute indexes, and produces an [EntityCollection] that
// answers id lookups and attribute queries. Query results are identical
// with or without an index; indexes only change the cost.
//
//	b := store.NewCollectionBuilder(entities.TypeRating)
//	_ = b.AddIndex(entities.AttrUser)
//	_ = b.Add(entities.NewRating(1, 42, 7, 3.5, -1))
//	c, _ := b.Build()
//	byUser := c.Find(entities.AttrUser, 42)
package store

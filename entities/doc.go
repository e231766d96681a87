// Package entities provides the entity data model: interned attribute names
// and entity types, immutable entities addressed by (type, id), and the
// builders that produce them.
//
// # Identity
//
// [TypedName], [EntityType] and [AttributeSet] values are interned by an
// [Interner], so values from the same interner compare with ==. The
// package-level constructors use [DefaultInterner].
//
//	user := entities.TypedNameOf[int64]("user")
//	same := entities.NewTypedName("user", reflect.TypeFor[int64]())
//	// user == same
//
// # Entities
//
// Entities are immutable. Build them with an [EntityBuilder]:
//
//	b := entities.NewBasicEntityBuilder(entities.TypeItem)
//	b.SetID(7)
//	_ = b.SetAttribute(entities.AttrName, "Foo")
//	item, err := b.Build()
//
// Typed entity structs embed [BeanEntity] and list their getters in a
// [BeanSchema]; their builders embed [BeanEntityBuilder] with a
// [BeanBuilderSchema]. [Rating] and [RatingBuilder] are the stock example.
//
// # Defaults
//
// Per-type descriptors under META-INF/lenskit/entity-defaults/<type>.yaml
// declare an entity type's attributes, columns, builder and derivations.
// See [DefaultsRegistry].
package entities

package entities

// Common attributes.
var (
	AttrID        = TypedNameOf[int64]("id")
	AttrUser      = TypedNameOf[int64]("user")
	AttrItem      = TypedNameOf[int64]("item")
	AttrName      = TypedNameOf[string]("name")
	AttrRating    = TypedNameOf[float64]("rating")
	AttrTimestamp = TypedNameOf[int64]("timestamp")
	AttrCount     = TypedNameOf[int]("count")
)

// Common entity types.
var (
	TypeUser     = EntityTypeFor("user")
	TypeItem     = EntityTypeFor("item")
	TypeRating   = EntityTypeFor("rating")
	TypeItemName = EntityTypeFor("item_name")
)

package entities

import (
	"fmt"
	"math"
)

// RatingBuilderName is the registered name of [RatingBuilder].
const RatingBuilderName = "rating"

// Rating is a user's rating of an item. Ratings without a timestamp do not
// carry the timestamp attribute.
type Rating struct {
	BeanEntity[*Rating]
	user      int64
	item      int64
	value     float64
	timestamp int64
}

var (
	ratingSchema = MustBeanSchema(
		LongGetter(AttrUser, (*Rating).UserID),
		LongGetter(AttrItem, (*Rating).ItemID),
		DoubleGetter(AttrRating, (*Rating).Value),
	)
	timedRatingSchema = MustBeanSchema(
		LongGetter(AttrUser, (*Rating).UserID),
		LongGetter(AttrItem, (*Rating).ItemID),
		DoubleGetter(AttrRating, (*Rating).Value),
		LongGetter(AttrTimestamp, (*Rating).Timestamp),
	)
)

//nolint:gochecknoinits // registers the rating builder and view
func init() {
	RegisterBuilder(RatingBuilderName, func(typ *EntityType) EntityBuilder {
		return newRatingBuilder(typ)
	})
	RegisterView[*Rating](RatingBuilderName)
}

// NewRating creates a rating. A negative timestamp means none.
func NewRating(id, user, item int64, value float64, timestamp int64) *Rating {
	return newRating(TypeRating, id, user, item, value, timestamp)
}

func newRating(typ *EntityType, id, user, item int64, value float64, timestamp int64) *Rating {
	r := &Rating{user: user, item: item, value: value, timestamp: timestamp}
	schema := ratingSchema
	if timestamp >= 0 {
		schema = timedRatingSchema
	}
	r.BeanEntity = schema.Bind(typ, id, r)
	return r
}

// UserID returns the rating user's id.
func (r *Rating) UserID() int64 { return r.user }

// ItemID returns the rated item's id.
func (r *Rating) ItemID() int64 { return r.item }

// Value returns the rating value.
func (r *Rating) Value() float64 { return r.value }

// Timestamp returns the rating time, or -1.
func (r *Rating) Timestamp() int64 { return r.timestamp }

// RatingBuilder builds [Rating] entities.
type RatingBuilder struct {
	BeanEntityBuilder[*RatingBuilder]
	user, item       int64
	hasUser, hasItem bool
	rating           float64
	hasRating        bool
	timestamp        int64
}

var ratingBuilderSchema = MustBeanBuilderSchema(
	Setter(AttrUser, func(b *RatingBuilder, v int64) error {
		b.SetUserID(v)
		return nil
	}, (*RatingBuilder).ClearUserID),
	Setter(AttrItem, func(b *RatingBuilder, v int64) error {
		b.SetItemID(v)
		return nil
	}, (*RatingBuilder).ClearItemID),
	Setter(AttrRating, func(b *RatingBuilder, v float64) error {
		if math.IsNaN(v) {
			return fmt.Errorf("%w: rating is NaN", ErrIllegalArgument)
		}
		b.SetRating(v)
		return nil
	}, (*RatingBuilder).ClearRating),
	Setter(AttrTimestamp, func(b *RatingBuilder, v int64) error {
		b.SetTimestamp(v)
		return nil
	}, (*RatingBuilder).ClearTimestamp),
)

// NewRatingBuilder creates an empty rating builder.
func NewRatingBuilder() *RatingBuilder {
	return newRatingBuilder(TypeRating)
}

func newRatingBuilder(typ *EntityType) *RatingBuilder {
	b := &RatingBuilder{timestamp: -1}
	b.BeanEntityBuilder = ratingBuilderSchema.Bind(typ, b)
	return b
}

// SetUserID sets the user id.
func (b *RatingBuilder) SetUserID(u int64) *RatingBuilder {
	b.user, b.hasUser = u, true
	return b
}

// ClearUserID clears the user id.
func (b *RatingBuilder) ClearUserID() { b.user, b.hasUser = 0, false }

// SetItemID sets the item id.
func (b *RatingBuilder) SetItemID(i int64) *RatingBuilder {
	b.item, b.hasItem = i, true
	return b
}

// ClearItemID clears the item id.
func (b *RatingBuilder) ClearItemID() { b.item, b.hasItem = 0, false }

// SetRating sets the rating value.
func (b *RatingBuilder) SetRating(v float64) *RatingBuilder {
	b.rating, b.hasRating = v, true
	return b
}

// ClearRating clears the rating value.
func (b *RatingBuilder) ClearRating() { b.rating, b.hasRating = 0, false }

// SetTimestamp sets the rating time.
func (b *RatingBuilder) SetTimestamp(ts int64) *RatingBuilder {
	b.timestamp = ts
	return b
}

// ClearTimestamp removes the rating time.
func (b *RatingBuilder) ClearTimestamp() { b.timestamp = -1 }

// BuildRating builds the rating.
func (b *RatingBuilder) BuildRating() (*Rating, error) {
	id, err := b.RequireID()
	if err != nil {
		return nil, err
	}
	switch {
	case !b.hasUser:
		return nil, fmt.Errorf("%w: no user id set", ErrIllegalState)
	case !b.hasItem:
		return nil, fmt.Errorf("%w: no item id set", ErrIllegalState)
	case !b.hasRating:
		return nil, fmt.Errorf("%w: no rating set", ErrIllegalState)
	case math.IsNaN(b.rating):
		return nil, fmt.Errorf("%w: rating is NaN", ErrIllegalArgument)
	}
	return newRating(b.Type(), id, b.user, b.item, b.rating, b.timestamp), nil
}

func (b *RatingBuilder) Build() (Entity, error) {
	r, err := b.BuildRating()
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (b *RatingBuilder) Reset() {
	b.ResetID()
	b.ClearUserID()
	b.ClearItemID()
	b.ClearRating()
	b.ClearTimestamp()
}

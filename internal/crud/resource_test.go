package crud

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// memStore keeps documents in insertion order and records the last query.
type memStore[T any, P models.Entity[T]] struct {
	docs       []*T
	lastFilter interface{}
	lastOpts   *options.FindOptions
	writes     int
}

func (m *memStore[T, P]) Insert(_ context.Context, doc *T) error {
	if P(doc).GetID().IsZero() {
		P(doc).SetID(primitive.NewObjectID())
	}
	P(doc).Stamp(time.Now())
	m.docs = append(m.docs, doc)
	m.writes++
	return nil
}

func (m *memStore[T, P]) FindByID(_ context.Context, id primitive.ObjectID) (*T, error) {
	for _, d := range m.docs {
		if P(d).GetID() == id {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("No document found for this id: %s", id.Hex())
}

func (m *memStore[T, P]) Find(_ context.Context, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	m.lastFilter = filter
	if len(opts) > 0 {
		m.lastOpts = opts[0]
	}
	out := []T{}
	for _, d := range m.docs {
		out = append(out, *d)
	}
	if m.lastOpts != nil && m.lastOpts.Skip != nil && m.lastOpts.Limit != nil {
		start := int(*m.lastOpts.Skip)
		if start > len(out) {
			start = len(out)
		}
		end := start + int(*m.lastOpts.Limit)
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, nil
}

func (m *memStore[T, P]) Count(_ context.Context, filter interface{}) (int64, error) {
	m.lastFilter = filter
	return int64(len(m.docs)), nil
}

func (m *memStore[T, P]) Replace(_ context.Context, doc *T) error {
	for i, d := range m.docs {
		if P(d).GetID() == P(doc).GetID() {
			P(doc).Stamp(time.Now())
			cp := *doc
			m.docs[i] = &cp
			m.writes++
			return nil
		}
	}
	return apperr.NotFound("No document found")
}

func (m *memStore[T, P]) DeleteByID(_ context.Context, id primitive.ObjectID) error {
	for i, d := range m.docs {
		if P(d).GetID() == id {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			m.writes++
			return nil
		}
	}
	return apperr.NotFound("No document found for this id: %s", id.Hex())
}

func validProduct() *models.Product {
	return &models.Product{
		Title:       "Trail Runner",
		Description: "Lightweight shoe for rough trails and wet days",
		Quantity:    10,
		Price:       120,
		ImageCover:  "cover.png",
		Category:    primitive.NewObjectID(),
	}
}

func TestCreateValidatesBeforeWriting(t *testing.T) {
	store := &memStore[models.Product, *models.Product]{}
	res := New[models.Product](store, Options[models.Product]{})

	bad := validProduct()
	bad.Title = "x"
	err := res.Create(context.Background(), bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Contains(t, err.Error(), "title")
	assert.Zero(t, store.writes)

	discount := 150.0
	bad = validProduct()
	bad.PriceAfterDiscount = &discount
	err = res.Create(context.Background(), bad)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	good := validProduct()
	require.NoError(t, res.Create(context.Background(), good))
	assert.False(t, good.ID.IsZero())
	assert.Equal(t, 1, store.writes)
}

func TestGetRejectsMalformedID(t *testing.T) {
	res := New[models.Brand](&memStore[models.Brand, *models.Brand]{}, Options[models.Brand]{})

	_, err := res.Get(context.Background(), "not-an-id", false)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = res.Get(context.Background(), primitive.NewObjectID().Hex(), false)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestGetExpands(t *testing.T) {
	store := &memStore[models.Product, *models.Product]{}
	review := models.Review{Ratings: 4}
	res := New[models.Product](store, Options[models.Product]{
		Expand: func(_ context.Context, p *models.Product) error {
			p.Reviews = []models.Review{review}
			return nil
		},
	})
	p := validProduct()
	require.NoError(t, res.Create(context.Background(), p))

	plain, err := res.Get(context.Background(), p.ID.Hex(), false)
	require.NoError(t, err)
	assert.Empty(t, plain.Reviews)

	expanded, err := res.Get(context.Background(), p.ID.Hex(), true)
	require.NoError(t, err)
	assert.Len(t, expanded.Reviews, 1)
}

func TestUpdateMergesAndKeepsIdentity(t *testing.T) {
	store := &memStore[models.Product, *models.Product]{}
	res := New[models.Product](store, Options[models.Product]{})
	p := validProduct()
	require.NoError(t, res.Create(context.Background(), p))
	created := store.docs[0].CreatedAt

	otherID := primitive.NewObjectID()
	updated, err := res.Update(context.Background(), p.ID.Hex(),
		[]byte(`{"price": 99.5, "_id": "`+otherID.Hex()+`", "createdAt": "2001-01-01T00:00:00Z"}`))
	require.NoError(t, err)

	assert.Equal(t, p.ID, updated.ID)
	assert.Equal(t, 99.5, updated.Price)
	assert.Equal(t, "Trail Runner", updated.Title)
	assert.True(t, created.Equal(updated.CreatedAt))
}

func TestUpdateNonexistentLeavesCollectionUnchanged(t *testing.T) {
	store := &memStore[models.Product, *models.Product]{}
	res := New[models.Product](store, Options[models.Product]{})
	require.NoError(t, res.Create(context.Background(), validProduct()))
	writes := store.writes

	_, err := res.Update(context.Background(), primitive.NewObjectID().Hex(), []byte(`{"price": 1}`))
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, writes, store.writes)
	assert.Equal(t, 120.0, store.docs[0].Price)
}

func TestUpdateInvalidPatchWritesNothing(t *testing.T) {
	store := &memStore[models.Product, *models.Product]{}
	res := New[models.Product](store, Options[models.Product]{})
	p := validProduct()
	require.NoError(t, res.Create(context.Background(), p))
	writes := store.writes

	_, err := res.Update(context.Background(), p.ID.Hex(), []byte(`{"price": -3}`))
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, writes, store.writes)
	assert.Equal(t, 120.0, store.docs[0].Price)
}

func TestDelete(t *testing.T) {
	store := &memStore[models.Category, *models.Category]{}
	res := New[models.Category](store, Options[models.Category]{})
	c := &models.Category{Name: "Shoes"}
	require.NoError(t, res.Create(context.Background(), c))

	require.NoError(t, res.Delete(context.Background(), c.ID.Hex()))
	assert.Empty(t, store.docs)

	err := res.Delete(context.Background(), c.ID.Hex())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestListComposesQueryAndPagination(t *testing.T) {
	store := &memStore[models.Category, *models.Category]{}
	res := New[models.Category](store, Options[models.Category]{DefaultLimit: 2})
	for _, name := range []string{"Shoes", "Shirts", "Sports", "Socks", "Scarves"} {
		require.NoError(t, res.Create(context.Background(), &models.Category{Name: name}))
	}

	parent := primitive.NewObjectID()
	params, _ := url.ParseQuery("keyword=sh&page=3&sort=name")
	out, err := res.List(context.Background(), params, bson.M{"parent": parent})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Result)
	assert.Len(t, out.Data, 1)
	assert.Equal(t, int64(3), out.PaginationResult.NumberOfPages)
	assert.Zero(t, out.PaginationResult.Next)
	assert.Equal(t, int64(2), out.PaginationResult.Prev)

	filter := store.lastFilter.(bson.M)
	and := filter["$and"].(bson.A)
	assert.Equal(t, bson.M{"parent": parent}, and[0])
}

func TestListPropagatesBuilderErrors(t *testing.T) {
	res := New[models.Category](&memStore[models.Category, *models.Category]{}, Options[models.Category]{})
	params, _ := url.ParseQuery("name[$ne]=x")

	_, err := res.List(context.Background(), params, nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

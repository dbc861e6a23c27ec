package query

import (
	"errors"
	"net/url"
	"testing"

	"shop-service/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func params(t *testing.T, raw string) url.Values {
	t.Helper()
	v, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return v
}

func TestFilterComparisonOperators(t *testing.T) {
	q, err := New(params(t, "price[gte]=50&price[lte]=100&sort=-price&page=1"), nil).
		Filter().Sort().Query()
	require.NoError(t, err)

	assert.Equal(t, bson.M{"price": bson.M{"$gte": int64(50), "$lte": int64(100)}}, q.Filter)
	assert.Equal(t, bson.D{{Key: "price", Value: -1}}, q.Options.Sort)
}

func TestFilterDropsReservedKeysAndCoercesValues(t *testing.T) {
	id := primitive.NewObjectID()
	q, err := New(params(t, "keyword=x&limit=5&fields=title&category="+id.Hex()+"&isPaid=true&barcode=0012&color=red&color=blue"), nil).
		Filter().Query()
	require.NoError(t, err)

	assert.Equal(t, bson.M{
		"category": id,
		"isPaid":   true,
		"barcode":  "0012",
		"color":    bson.M{"$in": bson.A{"red", "blue"}},
	}, q.Filter)
}

func TestFilterRejectsOperatorInjection(t *testing.T) {
	for _, raw := range []string{"$where=1", "price[$ne]=1", "price[regex]=.*", "a[b][c]=1"} {
		_, err := New(params(t, raw), nil).Filter().Query()
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, apperr.ErrValidation), raw)
	}
}

func TestFilterComparisonNeedsNumber(t *testing.T) {
	_, err := New(params(t, "price[gte]=abc"), nil).Filter().Query()
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	q, err := New(params(t, "ratingsAverage[gt]=3.5&quantity[lt]=007"), nil).Filter().Query()
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"ratingsAverage": bson.M{"$gt": 3.5},
		"quantity":       bson.M{"$lt": int64(7)},
	}, q.Filter)
}

func TestFilterRejectsEqualityMixedWithComparison(t *testing.T) {
	// Run several times so both map iteration orders are hit.
	for i := 0; i < 20; i++ {
		_, err := New(params(t, "price=5&price[gte]=3"), nil).Filter().Query()
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrValidation))
	}
}

func TestBaseFilterCannotBeWidened(t *testing.T) {
	owner := primitive.NewObjectID()
	q, err := New(params(t, "user=somebody-else"), bson.M{"user": owner}).Filter().Query()
	require.NoError(t, err)

	assert.Equal(t, bson.M{"$and": bson.A{
		bson.M{"user": owner},
		bson.M{"user": "somebody-else"},
	}}, q.Filter)
}

func TestSearchEscapesKeyword(t *testing.T) {
	q, err := New(params(t, "keyword=a.b*"), nil).Search("title", "description").Query()
	require.NoError(t, err)

	pattern := primitive.Regex{Pattern: `a\.b\*`, Options: "i"}
	assert.Equal(t, bson.M{"$or": bson.A{
		bson.M{"title": pattern},
		bson.M{"description": pattern},
	}}, q.Filter)
}

func TestSearchWithoutKeywordIsNoop(t *testing.T) {
	q, err := New(url.Values{}, nil).Search("name").Query()
	require.NoError(t, err)
	assert.Equal(t, bson.M{}, q.Filter)
}

func TestSortAcceptsSpacesAndCommas(t *testing.T) {
	q, err := New(params(t, "sort=-sold+price,title"), nil).Sort().Query()
	require.NoError(t, err)

	assert.Equal(t, bson.D{
		{Key: "sold", Value: -1},
		{Key: "price", Value: 1},
		{Key: "title", Value: 1},
	}, q.Options.Sort)
}

func TestLimitFields(t *testing.T) {
	q, err := New(params(t, "fields=title,price,-_id"), nil).LimitFields().Query()
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "title", Value: 1},
		{Key: "price", Value: 1},
		{Key: "_id", Value: 0},
	}, q.Options.Projection)

	_, err = New(params(t, "fields=title,-price"), nil).LimitFields().Query()
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestPaginateLastPage(t *testing.T) {
	// 23 documents, 5 per page: last page is 5 and holds 3.
	q, err := New(params(t, "page=5&limit=5"), nil).Paginate(23, 50).Query()
	require.NoError(t, err)

	assert.Equal(t, Pagination{CurrentPage: 5, Limit: 5, NumberOfPages: 5, Prev: 4}, q.Pagination)
	assert.Equal(t, int64(20), *q.Options.Skip)
	assert.Equal(t, int64(5), *q.Options.Limit)
	assert.Equal(t, int64(3), 23-*q.Options.Skip)
}

func TestPaginateExactMultiple(t *testing.T) {
	p := Paginate(2, 10, 20)
	assert.Equal(t, int64(2), p.NumberOfPages)
	assert.Zero(t, p.Next)
	assert.Equal(t, int64(1), p.Prev)

	p = Paginate(1, 10, 20)
	assert.Equal(t, int64(2), p.Next)
	assert.Zero(t, p.Prev)
}

func TestPaginateFallsBackOnBadInput(t *testing.T) {
	q, err := New(params(t, "page=-2&limit=abc"), nil).Paginate(120, 50).Query()
	require.NoError(t, err)

	assert.Equal(t, int64(1), q.Pagination.CurrentPage)
	assert.Equal(t, int64(50), q.Pagination.Limit)
	assert.Equal(t, int64(3), q.Pagination.NumberOfPages)
	assert.Equal(t, int64(2), q.Pagination.Next)
}

func TestPaginateHugeValuesDoNotOverflow(t *testing.T) {
	q, err := New(params(t, "page=9223372036854775807&limit=50"), nil).Paginate(10, 50).Query()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, *q.Options.Skip, int64(0))
	assert.Zero(t, q.Pagination.Next)
	assert.Equal(t, int64(1), q.Pagination.NumberOfPages)

	q, err = New(params(t, "page=2&limit=9223372036854775807"), nil).Paginate(10, 50).Query()
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, *q.Options.Limit)
	assert.Equal(t, MaxLimit, *q.Options.Skip)
	assert.Equal(t, MaxLimit, q.Pagination.Limit)
}

func TestErrorSticksAcrossSteps(t *testing.T) {
	b := New(params(t, "fields=a,-b&sort=title"), nil).LimitFields().Sort().Search("name").Paginate(1, 10)
	_, err := b.Query()
	require.Error(t, err)
	assert.Nil(t, b.opts.Sort)
}

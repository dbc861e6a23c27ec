// Package crud provides the five generic resource operations shared by every
// simple collection: create, get, update, delete and list.
package crud

import (
	"context"
	"encoding/json"
	"net/url"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/query"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the persistence a Resource needs. store.Collection satisfies it.
type Store[T any] interface {
	Insert(ctx context.Context, doc *T) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*T, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]T, error)
	Count(ctx context.Context, filter interface{}) (int64, error)
	Replace(ctx context.Context, doc *T) error
	DeleteByID(ctx context.Context, id primitive.ObjectID) error
}

// Expander loads related documents into doc, e.g. a product's reviews.
type Expander[T any] func(ctx context.Context, doc *T) error

// Options tune a Resource.
type Options[T any] struct {
	SearchFields []string
	DefaultLimit int64
	Expand       Expander[T]
}

// ListResult is the list envelope returned by every getAll route.
type ListResult[T any] struct {
	Result           int              `json:"result"`
	PaginationResult query.Pagination `json:"paginationResult"`
	Data             []T              `json:"data"`
}

type Resource[T any, P models.Entity[T]] struct {
	store Store[T]
	opts  Options[T]
}

func New[T any, P models.Entity[T]](store Store[T], opts Options[T]) *Resource[T, P] {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 50
	}
	if len(opts.SearchFields) == 0 {
		opts.SearchFields = []string{"name"}
	}
	return &Resource[T, P]{store: store, opts: opts}
}

// ParseID rejects malformed ids before they reach the database.
func ParseID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("Invalid id format: %s", raw)
	}
	return id, nil
}

// Create validates and inserts doc.
func (r *Resource[T, P]) Create(ctx context.Context, doc *T) error {
	P(doc).SetID(primitive.NilObjectID)
	if err := Validate(doc); err != nil {
		return err
	}
	return r.store.Insert(ctx, doc)
}

// Get returns the document with rawID, expanded when asked and configured.
func (r *Resource[T, P]) Get(ctx context.Context, rawID string, expand bool) (*T, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	doc, err := r.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expand && r.opts.Expand != nil {
		if err := r.opts.Expand(ctx, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Update merges the JSON patch onto the stored document.
func (r *Resource[T, P]) Update(ctx context.Context, rawID string, patch []byte) (*T, error) {
	return r.UpdateWith(ctx, rawID, func(doc *T) error {
		if err := json.Unmarshal(patch, doc); err != nil {
			return apperr.Wrap(apperr.KindValidation, err, "Invalid request body")
		}
		return nil
	})
}

// UpdateWith loads the document, lets apply change it, revalidates and
// replaces it. Nothing is written when apply or validation fails. Identity and
// creation time cannot be changed by apply.
func (r *Resource[T, P]) UpdateWith(ctx context.Context, rawID string, apply func(doc *T) error) (*T, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	doc, err := r.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	created := P(doc).GetCreatedAt()
	if err := apply(doc); err != nil {
		return nil, err
	}
	P(doc).SetID(id)
	P(doc).SetCreatedAt(created)

	if err := Validate(doc); err != nil {
		return nil, err
	}
	if err := r.store.Replace(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes the document with rawID.
func (r *Resource[T, P]) Delete(ctx context.Context, rawID string) error {
	id, err := ParseID(rawID)
	if err != nil {
		return err
	}
	return r.store.DeleteByID(ctx, id)
}

// List runs the query builder over the collection, narrowed by base.
func (r *Resource[T, P]) List(ctx context.Context, params url.Values, base bson.M) (*ListResult[T], error) {
	b := query.New(params, base).
		Filter().
		Search(r.opts.SearchFields...).
		Sort().
		LimitFields()

	filter, err := b.Conditions()
	if err != nil {
		return nil, err
	}
	total, err := r.store.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	q, err := b.Paginate(total, r.opts.DefaultLimit).Query()
	if err != nil {
		return nil, err
	}
	docs, err := r.store.Find(ctx, q.Filter, q.Options)
	if err != nil {
		return nil, err
	}
	return &ListResult[T]{Result: len(docs), PaginationResult: q.Pagination, Data: docs}, nil
}

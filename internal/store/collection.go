package store

import (
	"context"
	"fmt"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Option configures a Collection.
type Option[T any] func(*hooks[T])

type hooks[T any] struct {
	beforeInsert []func(*T)
	beforeSave   []func(*T) error
	afterLoad    []func(*T)
}

// BeforeInsert registers a default applied only when a document is created.
func BeforeInsert[T any](fn func(*T)) Option[T] {
	return func(h *hooks[T]) { h.beforeInsert = append(h.beforeInsert, fn) }
}

// BeforeSave registers a transformation applied to every document right
// before it is inserted or replaced.
func BeforeSave[T any](fn func(*T) error) Option[T] {
	return func(h *hooks[T]) { h.beforeSave = append(h.beforeSave, fn) }
}

// AfterLoad registers a transformation applied to every document read back
// from the database, and to documents after they are written.
func AfterLoad[T any](fn func(*T)) Option[T] {
	return func(h *hooks[T]) { h.afterLoad = append(h.afterLoad, fn) }
}

// Collection is a typed MongoDB collection with explicit persistence hooks.
type Collection[T any, P models.Entity[T]] struct {
	coll  *mongo.Collection
	hooks hooks[T]
	now   func() time.Time
}

func NewCollection[T any, P models.Entity[T]](db *mongo.Database, name string, opts ...Option[T]) *Collection[T, P] {
	c := &Collection[T, P]{coll: db.Collection(name), now: time.Now}
	for _, opt := range opts {
		opt(&c.hooks)
	}
	return c
}

// Raw exposes the driver collection for aggregation pipelines.
func (c *Collection[T, P]) Raw() *mongo.Collection {
	return c.coll
}

func (c *Collection[T, P]) beforeSave(doc *T) error {
	for _, fn := range c.hooks.beforeSave {
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collection[T, P]) afterLoad(doc *T) {
	for _, fn := range c.hooks.afterLoad {
		fn(doc)
	}
}

func notFoundMsg(id primitive.ObjectID) string {
	return fmt.Sprintf("No document found for this id: %s", id.Hex())
}

// Insert stamps, transforms and inserts doc. A zero ID is generated.
func (c *Collection[T, P]) Insert(ctx context.Context, doc *T) error {
	p := P(doc)
	if p.GetID().IsZero() {
		p.SetID(primitive.NewObjectID())
	}
	p.Stamp(c.now())
	for _, fn := range c.hooks.beforeInsert {
		fn(doc)
	}
	if err := c.beforeSave(doc); err != nil {
		return err
	}
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return mapError(err, "")
	}
	c.afterLoad(doc)
	return nil
}

func (c *Collection[T, P]) FindByID(ctx context.Context, id primitive.ObjectID) (*T, error) {
	doc, err := c.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound("%s", notFoundMsg(id))
		}
		return nil, err
	}
	return doc, nil
}

// FindOne returns the first document matching filter or NotFound.
func (c *Collection[T, P]) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*T, error) {
	var doc T
	if err := c.coll.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		return nil, mapError(err, "No document found")
	}
	c.afterLoad(&doc)
	return &doc, nil
}

// Find returns every document matching filter.
func (c *Collection[T, P]) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.coll.Name(), err)
	}
	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", c.coll.Name(), err)
	}
	for i := range out {
		c.afterLoad(&out[i])
	}
	return out, nil
}

func (c *Collection[T, P]) Count(ctx context.Context, filter interface{}) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.coll.Name(), err)
	}
	return n, nil
}

// Replace overwrites the stored document with doc. NotFound if it is gone.
func (c *Collection[T, P]) Replace(ctx context.Context, doc *T) error {
	id := P(doc).GetID()
	ok, err := c.ReplaceWhere(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("%s", notFoundMsg(id))
	}
	return nil
}

// ReplaceWhere replaces the single document matching filter and reports
// whether one matched. Used for version-conditional writes.
func (c *Collection[T, P]) ReplaceWhere(ctx context.Context, filter bson.M, doc *T) (bool, error) {
	P(doc).Stamp(c.now())
	if err := c.beforeSave(doc); err != nil {
		return false, err
	}
	res, err := c.coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return false, mapError(err, "")
	}
	c.afterLoad(doc)
	return res.MatchedCount > 0, nil
}

// UpdateByID applies a raw update document and returns the new version.
func (c *Collection[T, P]) UpdateByID(ctx context.Context, id primitive.ObjectID, update bson.M) (*T, error) {
	return c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

// FindOneAndUpdate applies update to the first match and returns it after the
// update. updatedAt is always bumped.
func (c *Collection[T, P]) FindOneAndUpdate(ctx context.Context, filter bson.M, update bson.M) (*T, error) {
	update = withUpdatedAt(update, c.now())
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc T
	if err := c.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, mapError(err, "No document found")
	}
	c.afterLoad(&doc)
	return &doc, nil
}

// UpdateMany applies update to every match and returns the matched count.
func (c *Collection[T, P]) UpdateMany(ctx context.Context, filter bson.M, update bson.M) (int64, error) {
	res, err := c.coll.UpdateMany(ctx, filter, withUpdatedAt(update, c.now()))
	if err != nil {
		return 0, mapError(err, "")
	}
	return res.MatchedCount, nil
}

func (c *Collection[T, P]) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	ok, err := c.DeleteWhere(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("%s", notFoundMsg(id))
	}
	return nil
}

// DeleteWhere removes the first match and reports whether one existed.
func (c *Collection[T, P]) DeleteWhere(ctx context.Context, filter bson.M) (bool, error) {
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("failed to delete from %s: %w", c.coll.Name(), err)
	}
	return res.DeletedCount > 0, nil
}

// BulkWrite runs ordered write models and returns the driver result.
func (c *Collection[T, P]) BulkWrite(ctx context.Context, writes []mongo.WriteModel) (*mongo.BulkWriteResult, error) {
	res, err := c.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return nil, mapError(err, "")
	}
	return res, nil
}

func withUpdatedAt(update bson.M, now time.Time) bson.M {
	out := bson.M{}
	for k, v := range update {
		out[k] = v
	}
	set, _ := out["$set"].(bson.M)
	merged := bson.M{}
	for k, v := range set {
		merged[k] = v
	}
	merged["updatedAt"] = now
	out["$set"] = merged
	return out
}

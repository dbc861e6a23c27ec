package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop-service/internal/apperr"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names
const (
	ProductsCollection      = "products"
	CategoriesCollection    = "categories"
	SubCategoriesCollection = "subcategories"
	BrandsCollection        = "brands"
	CouponsCollection       = "coupons"
	CartsCollection         = "carts"
	OrdersCollection        = "orders"
	UsersCollection         = "users"
	ReviewsCollection       = "reviews"
	ConversationsCollection = "conversations"
	MessagesCollection      = "messages"
	CmsPagesCollection      = "cmspages"
)

// Mongo owns the document database connection.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects to uri and verifies the primary is reachable
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &Mongo{client: client, db: client.Database(database)}, nil
}

// DB returns the application database
func (m *Mongo) DB() *mongo.Database {
	return m.db
}

// Ping checks the primary, used by readiness probes
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// WithTransaction runs fn inside a multi-document transaction. Collection
// calls made with the ctx handed to fn take part in it; any error aborts.
// Requires a replica set.
func (m *Mongo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// mapError converts driver errors into application error kinds.
func mapError(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.NotFound("%s", notFound)
	case mongo.IsDuplicateKeyError(err):
		return apperr.Wrap(apperr.KindConflict, err, "Duplicate value for a unique field")
	default:
		return err
	}
}

package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var indexes = map[string][]mongo.IndexModel{
	ProductsCollection: {
		{Keys: bson.D{{Key: "barcode", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "price", Value: 1}}},
	},
	CategoriesCollection:    {uniqueOn("name")},
	SubCategoriesCollection: {uniqueOn("name"), {Keys: bson.D{{Key: "category", Value: 1}}}},
	BrandsCollection:        {uniqueOn("name")},
	CouponsCollection:       {uniqueOn("name")},
	CartsCollection:         {uniqueOn("user")},
	OrdersCollection:        {{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}}},
	UsersCollection:         {uniqueOn("email")},
	ReviewsCollection: {
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "product", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "product", Value: 1}}},
	},
	ConversationsCollection: {{Keys: bson.D{{Key: "participants", Value: 1}}}},
	MessagesCollection:      {{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: 1}}}},
	CmsPagesCollection:      {uniqueOn("slug")},
}

func uniqueOn(field string) mongo.IndexModel {
	return mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}, Options: options.Index().SetUnique(true)}
}

// EnsureIndexes creates the unique and lookup indexes. It is safe to run on
// every start.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	for name, models := range indexes {
		if _, err := m.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

package service

import (
	"context"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/realtime"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Locker serializes work on a key across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// Transactor runs fn atomically; writes made with the ctx passed to fn are
// rolled back when it returns an error.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatus(ctx context.Context, event *models.OrderStatusEvent) error
}

type IdempotencyStore interface {
	ReserveIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetIdempotencyKey(ctx context.Context, key string) (string, bool, error)
	DeleteIdempotencyKey(ctx context.Context, key string) error
}

type ProductReader interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
}

type CartStore interface {
	FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	SaveVersioned(ctx context.Context, cart *models.Cart) error
	DeleteByID(ctx context.Context, id primitive.ObjectID) error
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) error
}

type CouponFinder interface {
	FindActive(ctx context.Context, name string, now time.Time) (*models.Coupon, error)
}

type StockStore interface {
	DecrementStock(ctx context.Context, items []models.CartItem) ([]models.OrderItemData, error)
}

type OrderStore interface {
	Insert(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	Replace(ctx context.Context, order *models.Order) error
}

type UserStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByResetCode(ctx context.Context, hash string, now time.Time) (*models.User, error)
	Insert(ctx context.Context, user *models.User) error
	Replace(ctx context.Context, user *models.User) error
	AddToWishlist(ctx context.Context, userID, productID primitive.ObjectID) (*models.User, error)
	RemoveFromWishlist(ctx context.Context, userID, productID primitive.ObjectID) (*models.User, error)
	AddAddress(ctx context.Context, userID primitive.ObjectID, addr models.Address) (*models.User, error)
	RemoveAddress(ctx context.Context, userID, addressID primitive.ObjectID) (*models.User, error)
}

type ReviewStore interface {
	Insert(ctx context.Context, review *models.Review) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error)
	Replace(ctx context.Context, review *models.Review) error
	DeleteByID(ctx context.Context, id primitive.ObjectID) error
	ExistsFor(ctx context.Context, userID, productID primitive.ObjectID) (bool, error)
	ForProduct(ctx context.Context, productID primitive.ObjectID) ([]models.Review, error)
	Stats(ctx context.Context, productID primitive.ObjectID) (float64, int, error)
}

type RatingWriter interface {
	SetRatings(ctx context.Context, id primitive.ObjectID, average float64, count int) error
}

type InventoryStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindByBarcode(ctx context.Context, barcode string) (*models.Product, error)
	AdjustStock(ctx context.Context, id primitive.ObjectID, delta int, countAsSale bool) (*models.Product, error)
}

type InventoryLedger interface {
	Append(ctx context.Context, logs ...*models.InventoryLog) error
	ListByProduct(ctx context.Context, productID string) ([]models.InventoryLog, error)
}

type ChatStore interface {
	ListConversations(ctx context.Context, participant *primitive.ObjectID) ([]models.Conversation, error)
	FindConversation(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	FindBetween(ctx context.Context, a, b primitive.ObjectID) (*models.Conversation, error)
	CreateConversation(ctx context.Context, c *models.Conversation) error
	ListMessages(ctx context.Context, conversationID primitive.ObjectID) ([]models.Message, error)
	AddMessage(ctx context.Context, m *models.Message) error
}

// Notifier pushes an event to a user's open realtime connections.
type Notifier interface {
	SendToUser(userID string, event realtime.Event) int
}

type CmsStore interface {
	FindBySlug(ctx context.Context, slug string) (*models.CmsPage, error)
	Save(ctx context.Context, page *models.CmsPage) error
}

func isStaff(u *models.User) bool {
	return u.Role == models.RoleAdmin || u.Role == models.RoleManager
}

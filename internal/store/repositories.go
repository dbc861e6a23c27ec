package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	Products      = Collection[models.Product, *models.Product]
	Categories    = Collection[models.Category, *models.Category]
	SubCategories = Collection[models.SubCategory, *models.SubCategory]
	Brands        = Collection[models.Brand, *models.Brand]
	Coupons       = Collection[models.Coupon, *models.Coupon]
	Carts         = Collection[models.Cart, *models.Cart]
	Orders        = Collection[models.Order, *models.Order]
	Users         = Collection[models.User, *models.User]
	Reviews       = Collection[models.Review, *models.Review]
	Conversations = Collection[models.Conversation, *models.Conversation]
	Messages      = Collection[models.Message, *models.Message]
	CmsPages      = Collection[models.CmsPage, *models.CmsPage]
)

// Collections bundles every typed collection with its persistence hooks.
type Collections struct {
	Products      *Products
	Categories    *Categories
	SubCategories *SubCategories
	Brands        *Brands
	Coupons       *Coupons
	Carts         *Carts
	Orders        *Orders
	Users         *Users
	Reviews       *Reviews
	Conversations *Conversations
	Messages      *Messages
	CmsPages      *CmsPages
}

// NewCollections wires every collection of db. baseURL prefixes brand images.
func NewCollections(db *mongo.Database, baseURL string) *Collections {
	brandBefore, brandAfter := BrandImageURL(baseURL)
	return &Collections{
		Products:      NewCollection[models.Product](db, ProductsCollection, BeforeSave(ProductSlug)),
		Categories:    NewCollection[models.Category](db, CategoriesCollection, BeforeSave(CategorySlug)),
		SubCategories: NewCollection[models.SubCategory](db, SubCategoriesCollection, BeforeSave(SubCategorySlug)),
		Brands: NewCollection[models.Brand](db, BrandsCollection,
			BeforeSave(BrandSlug), BeforeSave(brandBefore), AfterLoad(brandAfter)),
		Coupons:       NewCollection[models.Coupon](db, CouponsCollection, BeforeSave(UpperCouponName)),
		Carts:         NewCollection[models.Cart](db, CartsCollection),
		Orders:        NewCollection[models.Order](db, OrdersCollection),
		Users:         NewCollection[models.User](db, UsersCollection, BeforeInsert(ActivateUser), BeforeSave(NormalizeUser), BeforeSave(HashPassword)),
		Reviews:       NewCollection[models.Review](db, ReviewsCollection),
		Conversations: NewCollection[models.Conversation](db, ConversationsCollection),
		Messages:      NewCollection[models.Message](db, MessagesCollection),
		CmsPages:      NewCollection[models.CmsPage](db, CmsPagesCollection, BeforeSave(LowerPageSlug)),
	}
}

// ProductRepo holds the stock-changing product queries.
type ProductRepo struct {
	*Products
}

func (r *ProductRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	return r.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *ProductRepo) FindByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	p, err := r.FindOne(ctx, bson.M{"barcode": barcode})
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, apperr.NotFound("Product not found with this barcode")
	}
	return p, err
}

// DecrementStock takes every line's quantity off stock and adds it to sold
// in one ordered bulk write. Each update only matches while enough stock is
// left; if any line misses, the caller's transaction must abort.
func (r *ProductRepo) DecrementStock(ctx context.Context, items []models.CartItem) ([]models.OrderItemData, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("Cart is empty")
	}

	var ids []primitive.ObjectID
	qty := make(map[primitive.ObjectID]int)
	price := make(map[primitive.ObjectID]float64)
	for _, item := range items {
		if _, seen := qty[item.Product]; !seen {
			ids = append(ids, item.Product)
			price[item.Product] = item.Price
		}
		qty[item.Product] += item.Quantity
	}

	now := time.Now()
	writes := make([]mongo.WriteModel, 0, len(ids))
	for _, id := range ids {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": id, "quantity": bson.M{"$gte": qty[id]}}).
			SetUpdate(bson.M{
				"$inc": bson.M{"quantity": -qty[id], "sold": qty[id]},
				"$set": bson.M{"updatedAt": now},
			}))
	}

	res, err := r.BulkWrite(ctx, writes)
	if err != nil {
		return nil, fmt.Errorf("failed to update stock: %w", err)
	}
	if res.MatchedCount != int64(len(writes)) {
		return nil, apperr.Validation("Insufficient stock for one or more products")
	}

	products, err := r.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	changes := make([]models.OrderItemData, 0, len(ids))
	for _, id := range ids {
		p := byID[id]
		changes = append(changes, models.OrderItemData{
			ProductID:        id.Hex(),
			Title:            p.Title,
			Quantity:         qty[id],
			UnitPrice:        price[id],
			PreviousQuantity: p.Quantity + qty[id],
			NewQuantity:      p.Quantity,
		})
	}
	return changes, nil
}

// AdjustStock adds delta to quantity, and -delta to sold when countAsSale is
// set. Negative deltas only apply while enough stock is left. It returns the
// product before the change.
func (r *ProductRepo) AdjustStock(ctx context.Context, id primitive.ObjectID, delta int, countAsSale bool) (*models.Product, error) {
	filter := bson.M{"_id": id}
	if delta < 0 {
		filter["quantity"] = bson.M{"$gte": -delta}
	}
	inc := bson.M{"quantity": delta}
	if countAsSale {
		inc["sold"] = -delta
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	var before models.Product
	err := r.Raw().FindOneAndUpdate(ctx, filter,
		bson.M{"$inc": inc, "$set": bson.M{"updatedAt": time.Now()}}, opts).Decode(&before)
	if err == nil {
		return &before, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}

	current, ferr := r.FindByID(ctx, id)
	if ferr != nil {
		return nil, ferr
	}
	return nil, apperr.Validation("Insufficient stock. Current: %d, Requested: %d", current.Quantity, -delta)
}

func (r *ProductRepo) SetRatings(ctx context.Context, id primitive.ObjectID, average float64, count int) error {
	update := bson.M{"$set": bson.M{"ratingsQuantity": count}}
	if count > 0 {
		update["$set"].(bson.M)["ratingsAverage"] = average
	} else {
		update["$unset"] = bson.M{"ratingsAverage": ""}
	}
	_, err := r.UpdateByID(ctx, id, update)
	return err
}

// CartRepo adds user scoping and versioned writes to carts.
type CartRepo struct {
	*Carts
}

func (r *CartRepo) FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	cart, err := r.FindOne(ctx, bson.M{"user": userID})
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, apperr.NotFound("There is no cart for this user id: %s", userID.Hex())
	}
	return cart, err
}

// Create inserts a first cart at version 1. A concurrent create for the same
// user hits the unique index and surfaces as Conflict.
func (r *CartRepo) Create(ctx context.Context, cart *models.Cart) error {
	cart.Version = 1
	return r.Insert(ctx, cart)
}

// SaveVersioned replaces cart only if nobody wrote it since it was loaded.
func (r *CartRepo) SaveVersioned(ctx context.Context, cart *models.Cart) error {
	expected := cart.Version
	cart.Version++
	ok, err := r.ReplaceWhere(ctx, bson.M{"_id": cart.ID, "version": expected}, cart)
	if err != nil {
		cart.Version = expected
		return err
	}
	if !ok {
		cart.Version = expected
		return apperr.Conflict("Cart was modified concurrently, please retry")
	}
	return nil
}

func (r *CartRepo) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.DeleteWhere(ctx, bson.M{"user": userID})
	return err
}

type CouponRepo struct {
	*Coupons
}

// FindActive returns the coupon named name that expires after now, or nil.
func (r *CouponRepo) FindActive(ctx context.Context, name string, now time.Time) (*models.Coupon, error) {
	c, err := r.FindOne(ctx, bson.M{"name": name, "expire": bson.M{"$gt": now}})
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, nil
	}
	return c, err
}

type UserRepo struct {
	*Users
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.FindOne(ctx, bson.M{"email": email})
}

// FindByResetCode matches an unexpired reset code hash.
func (r *UserRepo) FindByResetCode(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	return r.FindOne(ctx, bson.M{"passwordResetCode": hash, "passwordResetExpires": bson.M{"$gt": now}})
}

func (r *UserRepo) AddToWishlist(ctx context.Context, userID, productID primitive.ObjectID) (*models.User, error) {
	return r.UpdateByID(ctx, userID, bson.M{"$addToSet": bson.M{"wishlist": productID}})
}

func (r *UserRepo) RemoveFromWishlist(ctx context.Context, userID, productID primitive.ObjectID) (*models.User, error) {
	return r.UpdateByID(ctx, userID, bson.M{"$pull": bson.M{"wishlist": productID}})
}

func (r *UserRepo) AddAddress(ctx context.Context, userID primitive.ObjectID, addr models.Address) (*models.User, error) {
	return r.UpdateByID(ctx, userID, bson.M{"$push": bson.M{"addresses": addr}})
}

func (r *UserRepo) RemoveAddress(ctx context.Context, userID, addressID primitive.ObjectID) (*models.User, error) {
	return r.UpdateByID(ctx, userID, bson.M{"$pull": bson.M{"addresses": bson.M{"_id": addressID}}})
}

type ReviewRepo struct {
	*Reviews
}

func (r *ReviewRepo) ExistsFor(ctx context.Context, userID, productID primitive.ObjectID) (bool, error) {
	n, err := r.Count(ctx, bson.M{"user": userID, "product": productID})
	return n > 0, err
}

func (r *ReviewRepo) ForProduct(ctx context.Context, productID primitive.ObjectID) ([]models.Review, error) {
	return r.Find(ctx, bson.M{"product": productID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// Stats returns the average rating and review count of a product.
func (r *ReviewRepo) Stats(ctx context.Context, productID primitive.ObjectID) (float64, int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"product": productID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$product",
			"avg":   bson.M{"$avg": "$ratings"},
			"count": bson.M{"$sum": 1},
		}}},
	}
	cursor, err := r.Raw().Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	var rows []struct {
		Avg   float64 `bson:"avg"`
		Count int     `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, 0, fmt.Errorf("failed to decode ratings: %w", err)
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}
	return rows[0].Avg, rows[0].Count, nil
}

type ChatRepo struct {
	Conversations *Conversations
	Messages      *Messages
}

func (r *ChatRepo) ListConversations(ctx context.Context, participant *primitive.ObjectID) ([]models.Conversation, error) {
	filter := bson.M{}
	if participant != nil {
		filter["participants"] = *participant
	}
	return r.Conversations.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
}

func (r *ChatRepo) FindConversation(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	return r.Conversations.FindByID(ctx, id)
}

// FindBetween returns the conversation both users take part in, or nil.
func (r *ChatRepo) FindBetween(ctx context.Context, a, b primitive.ObjectID) (*models.Conversation, error) {
	c, err := r.Conversations.FindOne(ctx, bson.M{"participants": bson.M{"$all": bson.A{a, b}}})
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, nil
	}
	return c, err
}

func (r *ChatRepo) CreateConversation(ctx context.Context, c *models.Conversation) error {
	return r.Conversations.Insert(ctx, c)
}

func (r *ChatRepo) ListMessages(ctx context.Context, conversationID primitive.ObjectID) ([]models.Message, error) {
	return r.Messages.Find(ctx, bson.M{"conversationId": conversationID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (r *ChatRepo) AddMessage(ctx context.Context, m *models.Message) error {
	if err := r.Messages.Insert(ctx, m); err != nil {
		return err
	}
	_, err := r.Conversations.UpdateByID(ctx, m.ConversationID, bson.M{"$set": bson.M{"lastMessage": m.ID}})
	return err
}

type CmsRepo struct {
	*CmsPages
}

func (r *CmsRepo) FindBySlug(ctx context.Context, slug string) (*models.CmsPage, error) {
	p, err := r.FindOne(ctx, bson.M{"slug": slug})
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, apperr.NotFound("Page not found")
	}
	return p, err
}

func (r *CmsRepo) Save(ctx context.Context, p *models.CmsPage) error {
	if p.ID.IsZero() {
		return r.Insert(ctx, p)
	}
	return r.Replace(ctx, p)
}

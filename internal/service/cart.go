package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/pricing"
	"shop-service/internal/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CartService owns every change to a user's cart. Mutations hold the
// per-user lock and write with SaveVersioned.
type CartService struct {
	carts    CartStore
	products ProductReader
	coupons  CouponFinder
	locker   Locker
	lockTTL  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewCartService(carts CartStore, products ProductReader, coupons CouponFinder, locker Locker, lockTTL time.Duration) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		coupons:  coupons,
		locker:   locker,
		lockTTL:  lockTTL,
		now:      time.Now,
		logger:   util.Named("cart"),
	}
}

type AddToCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Color     string `json:"color"`
}

func lockKey(userID primitive.ObjectID) string {
	return "cart:" + userID.Hex()
}

// mutate loads the user's cart under the lock, applies fn and saves the
// result. fn's error aborts without writing.
func (s *CartService) mutate(ctx context.Context, userID primitive.ObjectID, op string, fn func(cart *models.Cart) error) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService."+op, attribute.String("user_id", userID.Hex()))
	defer span.End()

	var out *models.Cart
	err := s.locker.WithLock(ctx, lockKey(userID), s.lockTTL, func(ctx context.Context) error {
		cart, err := s.carts.FindByUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := fn(cart); err != nil {
			return err
		}
		if err := s.carts.SaveVersioned(ctx, cart); err != nil {
			return err
		}
		out = cart
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	util.CartMutationsTotal.WithLabelValues(op).Inc()
	return out, nil
}

// AddProduct puts one unit of a product in the cart, creating the cart on
// first use. The same product and color bumps the existing line.
func (s *CartService) AddProduct(ctx context.Context, userID primitive.ObjectID, req *AddToCartRequest) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddProduct")
	defer span.End()

	productID, err := primitive.ObjectIDFromHex(req.ProductID)
	if err != nil {
		return nil, apperr.Validation("Invalid product id format")
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	var out *models.Cart
	err = s.locker.WithLock(ctx, lockKey(userID), s.lockTTL, func(ctx context.Context) error {
		cart, err := s.carts.FindByUser(ctx, userID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		if cart == nil {
			cart = &models.Cart{
				User:      userID,
				CartItems: []models.CartItem{newLine(product, req.Color)},
			}
			pricing.RecomputeCartTotal(cart)
			if err := s.carts.Create(ctx, cart); err != nil {
				return err
			}
			out = cart
			return nil
		}

		found := false
		for i := range cart.CartItems {
			item := &cart.CartItems[i]
			if item.Product == product.ID && item.Color == req.Color {
				item.Quantity++
				found = true
				break
			}
		}
		if !found {
			cart.CartItems = append(cart.CartItems, newLine(product, req.Color))
		}
		pricing.RecomputeCartTotal(cart)
		if err := s.carts.SaveVersioned(ctx, cart); err != nil {
			return err
		}
		out = cart
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("add").Inc()
	s.logger.Debug("Product added to cart",
		zap.String("user_id", userID.Hex()),
		zap.String("product_id", product.ID.Hex()))
	return out, nil
}

func newLine(p *models.Product, color string) models.CartItem {
	return models.CartItem{
		ID:       primitive.NewObjectID(),
		Product:  p.ID,
		Color:    color,
		Quantity: 1,
		Price:    p.Price,
	}
}

func (s *CartService) GetCart(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	return s.carts.FindByUser(ctx, userID)
}

func (s *CartService) UpdateItemQuantity(ctx context.Context, userID primitive.ObjectID, rawItemID string, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, apperr.Validation("quantity must be at least 1")
	}
	itemID, err := primitive.ObjectIDFromHex(rawItemID)
	if err != nil {
		return nil, apperr.Validation("Invalid item id format")
	}
	return s.mutate(ctx, userID, "update_quantity", func(cart *models.Cart) error {
		for i := range cart.CartItems {
			if cart.CartItems[i].ID == itemID {
				cart.CartItems[i].Quantity = quantity
				pricing.RecomputeCartTotal(cart)
				return nil
			}
		}
		return apperr.NotFound("There is no item for this id: %s", rawItemID)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, userID primitive.ObjectID, rawItemID string) (*models.Cart, error) {
	itemID, err := primitive.ObjectIDFromHex(rawItemID)
	if err != nil {
		return nil, apperr.Validation("Invalid item id format")
	}
	return s.mutate(ctx, userID, "remove", func(cart *models.Cart) error {
		for i := range cart.CartItems {
			if cart.CartItems[i].ID == itemID {
				cart.CartItems = append(cart.CartItems[:i], cart.CartItems[i+1:]...)
				pricing.RecomputeCartTotal(cart)
				return nil
			}
		}
		return apperr.NotFound("There is no item for this id: %s", rawItemID)
	})
}

// Clear deletes the user's cart. Clearing a missing cart is not an error.
func (s *CartService) Clear(ctx context.Context, userID primitive.ObjectID) error {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer span.End()

	err := s.locker.WithLock(ctx, lockKey(userID), s.lockTTL, func(ctx context.Context) error {
		return s.carts.DeleteByUser(ctx, userID)
	})
	if err != nil {
		util.RecordError(span, err)
		return err
	}
	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	return nil
}

func (s *CartService) ApplyCoupon(ctx context.Context, userID primitive.ObjectID, name string) (*models.Cart, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return nil, apperr.Validation("coupon is required")
	}

	cart, err := s.mutate(ctx, userID, "apply_coupon", func(cart *models.Cart) error {
		now := s.now()
		coupon, err := s.coupons.FindActive(ctx, name, now)
		if err != nil {
			return err
		}
		return pricing.ApplyCoupon(cart, coupon, now)
	})
	switch {
	case err == nil:
		util.CouponsAppliedTotal.WithLabelValues("applied").Inc()
	case errors.Is(err, apperr.ErrInvalidCoupon):
		util.CouponsAppliedTotal.WithLabelValues("rejected").Inc()
	}
	return cart, err
}

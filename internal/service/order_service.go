package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/payment"
	"shop-service/internal/pricing"
	"shop-service/internal/util"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService turns carts into orders and moves orders through payment and
// delivery.
type OrderService struct {
	tx             Transactor
	carts          CartStore
	orders         OrderStore
	stock          StockStore
	users          UserStore
	idempotency    IdempotencyStore
	eventPublisher EventPublisher
	gateway        payment.Gateway
	pricing        OrderPricing
	logger         *zap.Logger
	now            func() time.Time
}

// OrderPricing carries the flat charges added to every order.
type OrderPricing struct {
	TaxPrice       float64
	ShippingPrice  float64
	IdempotencyTTL time.Duration
}

func NewOrderService(
	tx Transactor,
	carts CartStore,
	orders OrderStore,
	stock StockStore,
	users UserStore,
	idempotency IdempotencyStore,
	eventPublisher EventPublisher,
	gateway payment.Gateway,
	cfg OrderPricing,
) *OrderService {
	return &OrderService{
		tx:             tx,
		carts:          carts,
		orders:         orders,
		stock:          stock,
		users:          users,
		idempotency:    idempotency,
		eventPublisher: eventPublisher,
		gateway:        gateway,
		pricing:        cfg,
		logger:         util.Named("orders"),
		now:            time.Now,
	}
}

// CreateOrderRequest is the body of a cash order.
type CreateOrderRequest struct {
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	IdempotencyKey  string                 `json:"-"`
}

// VerifyPaymentRequest is what the hosted checkout hands back after a
// successful card payment.
type VerifyPaymentRequest struct {
	RazorpayOrderID   string                 `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string                 `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string                 `json:"razorpay_signature" binding:"required"`
	CartID            string                 `json:"cartId" binding:"required"`
	ShippingAddress   models.ShippingAddress `json:"shippingAddress"`
}

// CreateCashOrder places a cash order for the actor's cart.
func (s *OrderService) CreateCashOrder(ctx context.Context, actor *models.User, rawCartID string, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateCashOrder",
		attribute.String("user_id", actor.ID.Hex()))
	defer span.End()

	cartID, err := primitive.ObjectIDFromHex(rawCartID)
	if err != nil {
		return nil, apperr.Validation("Invalid cart id format")
	}

	key := ""
	if req.IdempotencyKey != "" {
		key = actor.ID.Hex() + ":" + req.IdempotencyKey
	}
	order, err := s.withIdempotency(ctx, key, func(ctx context.Context) (*models.Order, error) {
		return s.placeOrder(ctx, actor, cartID, req.ShippingAddress, models.PaymentCash, "", 0)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return order, nil
}

// withIdempotency runs place at most once per key. A completed key replays the
// stored order; a key still in flight is a Conflict. An empty key disables
// the check.
func (s *OrderService) withIdempotency(ctx context.Context, key string, place func(ctx context.Context) (*models.Order, error)) (*models.Order, error) {
	if key == "" || s.idempotency == nil {
		return place(ctx)
	}

	val, found, err := s.idempotency.GetIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if found {
		return s.replay(ctx, key, val)
	}

	reserved, err := s.idempotency.ReserveIdempotencyKey(ctx, key, s.pricing.IdempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if !reserved {
		val, _, err := s.idempotency.GetIdempotencyKey(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		return s.replay(ctx, key, val)
	}

	order, err := place(ctx)
	if err != nil {
		if derr := s.idempotency.DeleteIdempotencyKey(context.Background(), key); derr != nil {
			s.logger.Warn("Failed to free idempotency key", zap.String("key", key), zap.Error(derr))
		}
		return nil, err
	}
	if err := s.idempotency.SetIdempotencyKey(ctx, key, order.ID.Hex(), s.pricing.IdempotencyTTL); err != nil {
		s.logger.Error("Failed to store idempotency key", zap.String("key", key), zap.Error(err))
	}
	return order, nil
}

func (s *OrderService) replay(ctx context.Context, key, val string) (*models.Order, error) {
	if val == "" {
		return nil, apperr.Conflict("A request with this Idempotency-Key is still in progress")
	}
	id, err := primitive.ObjectIDFromHex(val)
	if err != nil {
		return nil, fmt.Errorf("corrupt idempotency value for %s: %w", key, err)
	}
	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.String("order_id", val))
	return s.orders.FindByID(ctx, id)
}

// placeOrder inserts the order, takes the stock and deletes the cart in one
// transaction, then announces the order. A non-zero paidMinor must equal the
// order total in minor units.
func (s *OrderService) placeOrder(ctx context.Context, actor *models.User, cartID primitive.ObjectID, addr models.ShippingAddress, method, paymentRef string, paidMinor int64) (*models.Order, error) {
	start := time.Now()
	defer func() {
		util.OrderPlacementLatency.Observe(time.Since(start).Seconds())
	}()

	var (
		order   *models.Order
		changes []models.OrderItemData
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		cart, err := s.carts.FindByID(ctx, cartID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.NotFound("There's no cart with this id: %s", cartID.Hex())
			}
			return err
		}
		if cart.User != actor.ID {
			return apperr.Forbidden("You are not allowed to order this cart")
		}
		if len(cart.CartItems) == 0 {
			return apperr.Validation("Cart is empty")
		}

		order = pricing.NewOrder(cart, actor.ID, addr, s.pricing.TaxPrice, s.pricing.ShippingPrice, method)
		if paidMinor != 0 && pricing.MinorUnits(order.TotalOrderPrice) != paidMinor {
			return apperr.Validation("Cart changed after checkout, paid amount does not match order total")
		}
		if paymentRef != "" {
			now := s.now()
			order.IsPaid = true
			order.PaidAt = &now
			order.PaymentReference = paymentRef
		}
		if err := s.orders.Insert(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		changes, err = s.stock.DecrementStock(ctx, cart.CartItems)
		if err != nil {
			return err
		}
		return s.carts.DeleteByID(ctx, cart.ID)
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.OrdersPlacedTotal.WithLabelValues(method).Inc()
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.Hex()),
		zap.String("user_id", actor.ID.Hex()),
		zap.Float64("total", order.TotalOrderPrice))

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: s.now(),
		},
		OrderID:       order.ID.Hex(),
		UserID:        actor.ID.Hex(),
		UserEmail:     actor.Email,
		UserName:      actor.Name,
		TotalAmount:   order.TotalOrderPrice,
		PaymentMethod: method,
		Items:         changes,
	}
	if err := s.eventPublisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}
	return order, nil
}

func failureReason(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return "invalid_cart"
	case apperr.KindNotFound:
		return "cart_not_found"
	case apperr.KindForbidden:
		return "forbidden"
	default:
		return "db_error"
	}
}

// GetOrder returns an order. Plain users only see their own; anyone else's
// order is reported as missing.
func (s *OrderService) GetOrder(ctx context.Context, actor *models.User, rawID string) (*models.Order, error) {
	id, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		return nil, apperr.Validation("Invalid id format")
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isStaff(actor) && order.User != actor.ID {
		return nil, apperr.NotFound("No document found for this id: %s", rawID)
	}
	return order, nil
}

func (s *OrderService) MarkPaid(ctx context.Context, rawID string) (*models.Order, error) {
	return s.updateStatus(ctx, rawID, models.EventTypeOrderPaid, func(o *models.Order, now time.Time) {
		o.IsPaid = true
		o.PaidAt = &now
	})
}

func (s *OrderService) MarkDelivered(ctx context.Context, rawID string) (*models.Order, error) {
	return s.updateStatus(ctx, rawID, models.EventTypeOrderDelivered, func(o *models.Order, now time.Time) {
		o.IsDelivered = true
		o.DeliveredAt = &now
	})
}

func (s *OrderService) updateStatus(ctx context.Context, rawID, eventType string, apply func(*models.Order, time.Time)) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus",
		attribute.String("order_id", rawID),
		attribute.String("status", eventType))
	defer span.End()

	id, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		return nil, apperr.Validation("Invalid id format")
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("There is no such order with this id: %s", rawID)
		}
		return nil, err
	}

	apply(order, s.now())
	if err := s.orders.Replace(ctx, order); err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	util.OrderStatusUpdatesTotal.WithLabelValues(eventType).Inc()

	event := &models.OrderStatusEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: s.now(),
		},
		OrderID: order.ID.Hex(),
		UserID:  order.User.Hex(),
	}
	if user, err := s.users.FindByID(ctx, order.User); err == nil {
		event.UserEmail = user.Email
		event.UserName = user.Name
	} else {
		s.logger.Warn("Order owner lookup failed", zap.String("order_id", rawID), zap.Error(err))
	}
	if err := s.eventPublisher.PublishOrderStatus(ctx, event); err != nil {
		s.logger.Error("Failed to publish order status event", zap.String("type", eventType), zap.Error(err))
	}
	return order, nil
}

// CheckoutSession opens a hosted payment for the cart's order total.
func (s *OrderService) CheckoutSession(ctx context.Context, actor *models.User, rawCartID string, addr models.ShippingAddress) (*payment.Session, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CheckoutSession")
	defer span.End()

	cartID, err := primitive.ObjectIDFromHex(rawCartID)
	if err != nil {
		return nil, apperr.Validation("Invalid cart id format")
	}
	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("There's no cart with this id: %s", rawCartID)
		}
		return nil, err
	}
	if cart.User != actor.ID {
		return nil, apperr.Forbidden("You are not allowed to order this cart")
	}
	if len(cart.CartItems) == 0 {
		return nil, apperr.Validation("Cart is empty")
	}

	total := pricing.OrderTotal(cart, s.pricing.TaxPrice, s.pricing.ShippingPrice)
	notes := map[string]string{
		"cartId":     cart.ID.Hex(),
		"userId":     actor.ID.Hex(),
		"email":      actor.Email,
		"city":       addr.City,
		"postalCode": addr.PostalCode,
	}
	session, err := s.gateway.CreateSession(ctx, pricing.MinorUnits(total), cart.ID.Hex(), notes)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return session, nil
}

// VerifyPayment checks the checkout signature and places a paid card order.
// The provider order must have been opened for this cart and its amount must
// still match the cart total. The payment id doubles as idempotency key so a
// retried callback never orders twice.
func (s *OrderService) VerifyPayment(ctx context.Context, actor *models.User, req *VerifyPaymentRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.VerifyPayment")
	defer span.End()

	if !s.gateway.VerifySignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		util.OrdersFailedTotal.WithLabelValues("bad_signature").Inc()
		return nil, apperr.Validation("Payment verification failed")
	}
	cartID, err := primitive.ObjectIDFromHex(req.CartID)
	if err != nil {
		return nil, apperr.Validation("Invalid cart id format")
	}

	session, err := s.gateway.FetchSession(ctx, req.RazorpayOrderID)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	if session.Receipt != cartID.Hex() || session.Amount <= 0 {
		util.OrdersFailedTotal.WithLabelValues("session_mismatch").Inc()
		return nil, apperr.Validation("Payment was not made for this cart")
	}

	order, err := s.withIdempotency(ctx, "razorpay:"+req.RazorpayPaymentID, func(ctx context.Context) (*models.Order, error) {
		return s.placeOrder(ctx, actor, cartID, req.ShippingAddress, models.PaymentCard, req.RazorpayPaymentID, session.Amount)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return order, nil
}

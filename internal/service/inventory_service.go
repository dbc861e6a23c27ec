package service

import (
	"context"
	"fmt"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// InventoryService changes stock outside of orders and records every change
// in the ledger.
type InventoryService struct {
	products InventoryStore
	ledger   InventoryLedger
	now      func() time.Time
	logger   *zap.Logger
}

func NewInventoryService(products InventoryStore, ledger InventoryLedger) *InventoryService {
	return &InventoryService{
		products: products,
		ledger:   ledger,
		now:      time.Now,
		logger:   util.Named("inventory"),
	}
}

type ScanRequest struct {
	Barcode  string `json:"barcode" binding:"required"`
	Quantity int    `json:"quantity" binding:"omitempty,min=1"`
}

type AdjustRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Delta     int    `json:"delta" binding:"required"`
	Reason    string `json:"reason"`
}

// StockResult is the product summary returned after a stock change.
type StockResult struct {
	ID       primitive.ObjectID `json:"_id"`
	Title    string             `json:"title"`
	Price    float64            `json:"price"`
	Barcode  string             `json:"barcode,omitempty"`
	Quantity int                `json:"quantity"`
}

// Scan sells quantity units of the product with this barcode. Quantity
// defaults to 1.
func (s *InventoryService) Scan(ctx context.Context, actor *models.User, req *ScanRequest) (*StockResult, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Scan", attribute.String("barcode", req.Barcode))
	defer span.End()

	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	product, err := s.products.FindByBarcode(ctx, req.Barcode)
	if err != nil {
		return nil, err
	}
	res, err := s.apply(ctx, actor, product.ID, -qty, true, models.InventoryOut, "Barcode Scan Sale")
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return res, nil
}

// Adjust applies a signed correction to a product's stock.
func (s *InventoryService) Adjust(ctx context.Context, actor *models.User, req *AdjustRequest) (*StockResult, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Adjust")
	defer span.End()

	id, err := primitive.ObjectIDFromHex(req.ProductID)
	if err != nil {
		return nil, apperr.Validation("Invalid product id format")
	}
	if req.Delta == 0 {
		return nil, apperr.Validation("delta must not be zero")
	}
	typ := models.InventoryIn
	if req.Delta < 0 {
		typ = models.InventoryAdjustment
	}
	reason := req.Reason
	if reason == "" {
		reason = "Manual adjustment"
	}
	res, err := s.apply(ctx, actor, id, req.Delta, false, typ, reason)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return res, nil
}

// apply changes stock, then writes the ledger row. When the ledger write
// fails the stock change is reverted.
func (s *InventoryService) apply(ctx context.Context, actor *models.User, id primitive.ObjectID, delta int, countAsSale bool, typ, reason string) (*StockResult, error) {
	before, err := s.products.AdjustStock(ctx, id, delta, countAsSale)
	if err != nil {
		return nil, err
	}

	entry := &models.InventoryLog{
		ProductID:        id.Hex(),
		UserID:           actor.ID.Hex(),
		Type:             typ,
		QuantityChange:   delta,
		PreviousQuantity: before.Quantity,
		NewQuantity:      before.Quantity + delta,
		Reason:           reason,
		CreatedAt:        s.now(),
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		if _, rerr := s.products.AdjustStock(context.Background(), id, -delta, countAsSale); rerr != nil {
			s.logger.Error("Failed to revert stock after ledger failure",
				zap.String("product_id", id.Hex()),
				zap.Int("delta", delta),
				zap.Error(rerr))
		}
		return nil, fmt.Errorf("failed to record inventory change: %w", err)
	}

	util.InventoryChangesTotal.WithLabelValues(typ).Inc()
	s.logger.Info("Stock changed",
		zap.String("product_id", id.Hex()),
		zap.String("type", typ),
		zap.Int("delta", delta),
		zap.Int("new_quantity", entry.NewQuantity))

	return &StockResult{
		ID:       before.ID,
		Title:    before.Title,
		Price:    before.Price,
		Barcode:  before.Barcode,
		Quantity: entry.NewQuantity,
	}, nil
}

func (s *InventoryService) Logs(ctx context.Context, rawProductID string) ([]models.InventoryLog, error) {
	id, err := primitive.ObjectIDFromHex(rawProductID)
	if err != nil {
		return nil, apperr.Validation("Invalid product id format")
	}
	if _, err := s.products.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.ledger.ListByProduct(ctx, id.Hex())
}

package worker

import (
	"context"
	"fmt"

	"shop-service/internal/broker"
	"shop-service/internal/mail"
	"shop-service/internal/models"
	"shop-service/internal/util"

	"go.uber.org/zap"
)

// SaleLedger records the stock movement of an order exactly once per event.
type SaleLedger interface {
	AppendForEvent(ctx context.Context, eventID, eventType string, logs ...*models.InventoryLog) (bool, error)
}

// ProcessedEvents remembers which events already had their side effects.
type ProcessedEvents interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// SaleRecorder turns ORDER_PLACED events into "sale" rows of the inventory
// ledger.
type SaleRecorder struct {
	ledger SaleLedger
	logger *zap.Logger
}

func NewSaleRecorder(ledger SaleLedger) *SaleRecorder {
	return &SaleRecorder{ledger: ledger, logger: util.Named("sale-recorder")}
}

func (r *SaleRecorder) HandleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	ctx, span := util.StartSpan(ctx, "SaleRecorder.HandleOrderPlaced")
	defer span.End()

	logs := make([]*models.InventoryLog, 0, len(event.Items))
	for _, item := range event.Items {
		logs = append(logs, &models.InventoryLog{
			ProductID:        item.ProductID,
			UserID:           event.UserID,
			Type:             models.InventorySale,
			QuantityChange:   -item.Quantity,
			PreviousQuantity: item.PreviousQuantity,
			NewQuantity:      item.NewQuantity,
			Reason:           "Order placed",
			OrderID:          event.OrderID,
			CreatedAt:        event.Timestamp,
		})
	}

	appended, err := r.ledger.AppendForEvent(ctx, event.EventID, event.EventType, logs...)
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to record sale: %w", err)
	}
	if !appended {
		r.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}
	util.InventoryChangesTotal.WithLabelValues(models.InventorySale).Add(float64(len(logs)))
	r.logger.Info("Sale recorded",
		zap.String("order_id", event.OrderID),
		zap.Int("lines", len(logs)))
	return nil
}

// OrderMailer sends the customer mails for order events.
type OrderMailer struct {
	mailer    mail.Mailer
	processed ProcessedEvents
	logger    *zap.Logger
}

func NewOrderMailer(mailer mail.Mailer, processed ProcessedEvents) *OrderMailer {
	return &OrderMailer{mailer: mailer, processed: processed, logger: util.Named("order-mailer")}
}

func (m *OrderMailer) HandleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	if event.UserEmail == "" {
		return nil
	}
	return m.sendOnce(ctx, event.EventID, event.EventType, mail.OrderConfirmation(event))
}

func (m *OrderMailer) HandleOrderStatus(ctx context.Context, event *models.OrderStatusEvent) error {
	if event.EventType != models.EventTypeOrderDelivered || event.UserEmail == "" {
		return nil
	}
	return m.sendOnce(ctx, event.EventID, event.EventType, mail.OrderDelivered(event))
}

// sendOnce keys the processed marker apart from the ledger's so both
// consumers can track the same event.
func (m *OrderMailer) sendOnce(ctx context.Context, eventID, eventType string, msg mail.Message) error {
	key := "mail:" + eventID
	done, err := m.processed.IsEventProcessed(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if done {
		m.logger.Info("Event already processed", zap.String("event_id", eventID))
		return nil
	}
	if err := m.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s mail: %w", eventType, err)
	}
	if err := m.processed.MarkEventProcessed(ctx, key, eventType); err != nil {
		m.logger.Error("Failed to mark event processed", zap.String("event_id", eventID), zap.Error(err))
	}
	return nil
}

// OrderWorker consumes order events with its own consumer group.
type OrderWorker struct {
	name         string
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

func newOrderWorker(name string, consumer *broker.Consumer, eventHandler *broker.EventHandler) *OrderWorker {
	return &OrderWorker{
		name:         name,
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.Named("worker").With(zap.String("worker", name)),
	}
}

// NewInventoryWorker records every placed order in the inventory ledger.
func NewInventoryWorker(consumer *broker.Consumer, recorder *SaleRecorder) *OrderWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(recorder.HandleOrderPlaced)
	return newOrderWorker("inventory", consumer, eventHandler)
}

// NewNotificationWorker mails order confirmations and delivery notices.
func NewNotificationWorker(consumer *broker.Consumer, mailer *OrderMailer) *OrderWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(mailer.HandleOrderPlaced)
	eventHandler.OnOrderStatus(mailer.HandleOrderStatus)
	return newOrderWorker("notification", consumer, eventHandler)
}

// Start blocks until ctx is cancelled.
func (w *OrderWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

func (w *OrderWorker) Stop() error {
	w.logger.Info("Stopping worker")
	return w.consumer.Close()
}

package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"shop-service/internal/broker"
	"shop-service/internal/mail"
	"shop-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) AppendForEvent(ctx context.Context, eventID, eventType string, logs ...*models.InventoryLog) (bool, error) {
	args := m.Called(ctx, eventID, eventType, logs)
	return args.Bool(0), args.Error(1)
}

type memProcessed struct {
	done map[string]string
}

func (p *memProcessed) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	_, ok := p.done[eventID]
	return ok, nil
}

func (p *memProcessed) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	p.done[eventID] = eventType
	return nil
}

type captureMailer struct {
	sent []mail.Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func placedEvent() *models.OrderPlacedEvent {
	return &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		OrderID:     "order-1",
		UserID:      "user-1",
		UserEmail:   "jane@shop.io",
		UserName:    "Jane",
		TotalAmount: 215,
		Items: []models.OrderItemData{
			{ProductID: "p1", Title: "Phone", Quantity: 2, UnitPrice: 100, PreviousQuantity: 5, NewQuantity: 3},
		},
	}
}

func TestSaleRecorderAppendsSaleRows(t *testing.T) {
	ledger := &mockLedger{}
	ledger.On("AppendForEvent", mock.Anything, "evt-1", models.EventTypeOrderPlaced,
		mock.MatchedBy(func(logs []*models.InventoryLog) bool {
			return len(logs) == 1 &&
				logs[0].Type == models.InventorySale &&
				logs[0].QuantityChange == -2 &&
				logs[0].PreviousQuantity == 5 &&
				logs[0].NewQuantity == 3 &&
				logs[0].OrderID == "order-1"
		})).Return(true, nil).Once()

	require.NoError(t, NewSaleRecorder(ledger).HandleOrderPlaced(context.Background(), placedEvent()))
	ledger.AssertExpectations(t)
}

func TestSaleRecorderDuplicateIsNoop(t *testing.T) {
	ledger := &mockLedger{}
	ledger.On("AppendForEvent", mock.Anything, "evt-1", mock.Anything, mock.Anything).Return(false, nil)

	assert.NoError(t, NewSaleRecorder(ledger).HandleOrderPlaced(context.Background(), placedEvent()))
}

func TestSaleRecorderErrorIsReturned(t *testing.T) {
	ledger := &mockLedger{}
	ledger.On("AppendForEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(false, errors.New("db down"))

	assert.Error(t, NewSaleRecorder(ledger).HandleOrderPlaced(context.Background(), placedEvent()))
}

func TestOrderMailerSendsOnce(t *testing.T) {
	mailer := &captureMailer{}
	processed := &memProcessed{done: map[string]string{}}
	om := NewOrderMailer(mailer, processed)
	ctx := context.Background()

	require.NoError(t, om.HandleOrderPlaced(ctx, placedEvent()))
	require.NoError(t, om.HandleOrderPlaced(ctx, placedEvent()))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "jane@shop.io", mailer.sent[0].To)
	assert.Equal(t, models.EventTypeOrderPlaced, processed.done["mail:evt-1"])
}

func TestOrderMailerFailureIsRetried(t *testing.T) {
	mailer := &captureMailer{err: errors.New("smtp down")}
	processed := &memProcessed{done: map[string]string{}}
	om := NewOrderMailer(mailer, processed)

	assert.Error(t, om.HandleOrderPlaced(context.Background(), placedEvent()))
	assert.Empty(t, processed.done)
}

func TestOrderMailerStatusEvents(t *testing.T) {
	mailer := &captureMailer{}
	om := NewOrderMailer(mailer, &memProcessed{done: map[string]string{}})
	ctx := context.Background()

	paid := &models.OrderStatusEvent{
		BaseEvent: models.BaseEvent{EventID: "e-paid", EventType: models.EventTypeOrderPaid},
		OrderID:   "order-1", UserEmail: "jane@shop.io",
	}
	delivered := &models.OrderStatusEvent{
		BaseEvent: models.BaseEvent{EventID: "e-del", EventType: models.EventTypeOrderDelivered},
		OrderID:   "order-1", UserEmail: "jane@shop.io",
	}

	require.NoError(t, om.HandleOrderStatus(ctx, paid))
	require.NoError(t, om.HandleOrderStatus(ctx, delivered))
	assert.Len(t, mailer.sent, 1)
}

func TestEventRoutingThroughHandler(t *testing.T) {
	mailer := &captureMailer{}
	om := NewOrderMailer(mailer, &memProcessed{done: map[string]string{}})
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(om.HandleOrderPlaced)

	payload := []byte(`{"event_id":"evt-9","event_type":"ORDER_PLACED","order_id":"o9","user_email":"a@b.io","items":[]}`)
	require.NoError(t, eventHandler.HandleMessage(context.Background(), kafka.Message{Value: payload}))
	require.Len(t, mailer.sent, 1)

	assert.NoError(t, eventHandler.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")}))
}

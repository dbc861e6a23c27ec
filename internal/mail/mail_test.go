package mail

import (
	"context"
	"testing"

	"shop-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestNewFallsBackToLogMailer(t *testing.T) {
	_, ok := New("", "no-reply@shop.local", "Shop").(*LogMailer)
	assert.True(t, ok)

	_, ok = New("SG.key", "no-reply@shop.local", "Shop").(*SendGridMailer)
	assert.True(t, ok)

	assert.NoError(t, NewLogMailer().Send(context.Background(), Message{To: "a@b.c"}))
}

func TestResetCodeMessage(t *testing.T) {
	msg := ResetCode(&models.User{Name: "Jane", Email: "jane@shop.io"}, "123456")

	assert.Equal(t, "jane@shop.io", msg.To)
	assert.Contains(t, msg.Body, "Reset Code: 123456")
	assert.Contains(t, msg.Subject, "10 min")
}

func TestOrderConfirmationListsItems(t *testing.T) {
	msg := OrderConfirmation(&models.OrderPlacedEvent{
		OrderID:       "o1",
		UserEmail:     "jane@shop.io",
		TotalAmount:   20,
		PaymentMethod: models.PaymentCash,
		Items: []models.OrderItemData{
			{ProductID: "p1", Title: "Mug", Quantity: 2, UnitPrice: 10},
		},
	})

	assert.Contains(t, msg.Body, "2 x Mug @ 10.00")
	assert.Contains(t, msg.Body, "Total: 20.00 (cash)")
}

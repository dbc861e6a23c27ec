package mail

import (
	"fmt"
	"strings"

	"shop-service/internal/models"
)

func ResetCode(user *models.User, code string) Message {
	body := fmt.Sprintf(`Hello %s,

You have requested to reset your password.
Please use the following code to reset your password:

Reset Code: %s

This code is valid for 10 minutes.
If you did not request a password reset, please ignore this email or contact support.`, user.Name, code)

	return Message{
		To:      user.Email,
		ToName:  user.Name,
		Subject: "Your password reset code (valid for 10 min)",
		Body:    body,
	}
}

func OrderConfirmation(event *models.OrderPlacedEvent) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nThanks for your order %s.\n\n", event.UserName, event.OrderID)
	for _, item := range event.Items {
		name := item.Title
		if name == "" {
			name = item.ProductID
		}
		fmt.Fprintf(&b, "  %d x %s @ %.2f\n", item.Quantity, name, item.UnitPrice)
	}
	fmt.Fprintf(&b, "\nTotal: %.2f (%s)\n", event.TotalAmount, event.PaymentMethod)

	return Message{
		To:      event.UserEmail,
		ToName:  event.UserName,
		Subject: "Order confirmation " + event.OrderID,
		Body:    b.String(),
	}
}

func OrderDelivered(event *models.OrderStatusEvent) Message {
	return Message{
		To:      event.UserEmail,
		ToName:  event.UserName,
		Subject: "Your order " + event.OrderID + " was delivered",
		Body:    fmt.Sprintf("Hello %s,\n\nYour order %s has been delivered.\n", event.UserName, event.OrderID),
	}
}

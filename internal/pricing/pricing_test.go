package pricing

import (
	"errors"
	"testing"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func line(price float64, qty int) models.CartItem {
	return models.CartItem{ID: primitive.NewObjectID(), Product: primitive.NewObjectID(), Price: price, Quantity: qty}
}

func TestRecomputeCartTotalClearsDiscount(t *testing.T) {
	discounted := 1.0
	cart := &models.Cart{
		CartItems:          []models.CartItem{line(10, 2), line(5, 1)},
		PriceAfterDiscount: &discounted,
	}

	RecomputeCartTotal(cart)

	assert.Equal(t, 25.0, cart.TotalCartPrice)
	assert.Nil(t, cart.PriceAfterDiscount)
}

func TestRecomputeCartTotalAvoidsFloatDrift(t *testing.T) {
	cart := &models.Cart{CartItems: []models.CartItem{line(0.1, 3), line(0.2, 1)}}
	RecomputeCartTotal(cart)
	assert.Equal(t, 0.5, cart.TotalCartPrice)
}

func TestApplyCoupon(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cart := &models.Cart{CartItems: []models.CartItem{line(10, 2), line(5, 1)}}
	RecomputeCartTotal(cart)

	err := ApplyCoupon(cart, &models.Coupon{Name: "SAVE20", Discount: 20, Expire: now.Add(time.Hour)}, now)
	require.NoError(t, err)

	require.NotNil(t, cart.PriceAfterDiscount)
	assert.Equal(t, 20.0, *cart.PriceAfterDiscount)
	assert.Equal(t, 25.0, cart.TotalCartPrice)
}

func TestApplyCouponRoundsToCents(t *testing.T) {
	now := time.Now()
	cart := &models.Cart{TotalCartPrice: 99.99}

	require.NoError(t, ApplyCoupon(cart, &models.Coupon{Discount: 33, Expire: now.Add(time.Minute)}, now))
	assert.Equal(t, 66.99, *cart.PriceAfterDiscount)
}

func TestApplyCouponRejectsExpiredOrUnknown(t *testing.T) {
	now := time.Now()
	cases := map[string]*models.Coupon{
		"unknown":           nil,
		"expired":           {Discount: 10, Expire: now.Add(-time.Second)},
		"expires this tick": {Discount: 10, Expire: now},
	}

	for name, coupon := range cases {
		t.Run(name, func(t *testing.T) {
			cart := &models.Cart{TotalCartPrice: 25}
			err := ApplyCoupon(cart, coupon, now)

			assert.True(t, errors.Is(err, apperr.ErrInvalidCoupon))
			assert.Equal(t, 25.0, cart.TotalCartPrice)
			assert.Nil(t, cart.PriceAfterDiscount)
		})
	}
}

func TestNewOrderFreezesLinesAndTotals(t *testing.T) {
	now := time.Now()
	cart := &models.Cart{CartItems: []models.CartItem{line(10, 2), line(5, 1)}}
	RecomputeCartTotal(cart)
	require.NoError(t, ApplyCoupon(cart, &models.Coupon{Discount: 20, Expire: now.Add(time.Hour)}, now))

	user := primitive.NewObjectID()
	order := NewOrder(cart, user, models.ShippingAddress{City: "Pune"}, 0, 0, models.PaymentCash)

	assert.Equal(t, 20.0, order.TotalOrderPrice)
	assert.Equal(t, user, order.User)
	assert.Equal(t, models.PaymentCash, order.PaymentMethodType)

	cart.CartItems[0].Price = 999
	assert.Equal(t, 10.0, order.CartItems[0].Price)
}

func TestOrderTotalAddsTaxAndShipping(t *testing.T) {
	cart := &models.Cart{TotalCartPrice: 100.1}
	assert.Equal(t, 115.3, OrderTotal(cart, 5.1, 10.1))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(2000), MinorUnits(20))
	assert.Equal(t, int64(1999), MinorUnits(19.99))
}

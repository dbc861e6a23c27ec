// Package pricing keeps cart and order totals consistent. All arithmetic runs
// on decimals and is rounded to two places before it is stored.
package pricing

import (
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var hundred = decimal.NewFromInt(100)

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// CartTotal sums quantity*price over the cart lines.
func CartTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return total
}

// RecomputeCartTotal refreshes TotalCartPrice and drops any applied discount.
// It must run after every line change and before the cart is saved.
func RecomputeCartTotal(cart *models.Cart) {
	cart.TotalCartPrice = round2(CartTotal(cart.CartItems))
	cart.PriceAfterDiscount = nil
}

// ApplyCoupon sets PriceAfterDiscount from coupon. A nil or expired coupon
// yields InvalidCoupon and leaves the cart untouched.
func ApplyCoupon(cart *models.Cart, coupon *models.Coupon, now time.Time) error {
	if coupon == nil || !coupon.Expire.After(now) {
		return apperr.InvalidCoupon()
	}

	total := decimal.NewFromFloat(cart.TotalCartPrice)
	discount := total.Mul(decimal.NewFromFloat(coupon.Discount)).Div(hundred)
	after := round2(total.Sub(discount))
	cart.PriceAfterDiscount = &after
	return nil
}

// EffectivePrice is the discounted price when a coupon was applied, else
// the cart total.
func EffectivePrice(cart *models.Cart) decimal.Decimal {
	if cart.PriceAfterDiscount != nil {
		return decimal.NewFromFloat(*cart.PriceAfterDiscount)
	}
	return decimal.NewFromFloat(cart.TotalCartPrice)
}

// OrderTotal is the effective cart price plus tax and shipping.
func OrderTotal(cart *models.Cart, taxPrice, shippingPrice float64) float64 {
	total := EffectivePrice(cart).
		Add(decimal.NewFromFloat(taxPrice)).
		Add(decimal.NewFromFloat(shippingPrice))
	return round2(total)
}

// MinorUnits converts an amount to the smallest currency unit (paise, cents).
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

// NewOrder builds an unsaved order for cart. Line items are copied by value so
// later product price changes never touch the order.
func NewOrder(cart *models.Cart, user primitive.ObjectID, addr models.ShippingAddress, taxPrice, shippingPrice float64, method string) *models.Order {
	items := make([]models.CartItem, len(cart.CartItems))
	copy(items, cart.CartItems)

	return &models.Order{
		User:              user,
		CartItems:         items,
		ShippingAddress:   addr,
		TaxPrice:          taxPrice,
		ShippingPrice:     shippingPrice,
		TotalOrderPrice:   OrderTotal(cart, taxPrice, shippingPrice),
		PaymentMethodType: method,
	}
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CartItem struct {
	ID       primitive.ObjectID `bson:"_id" json:"_id"`
	Product  primitive.ObjectID `bson:"product" json:"product"`
	Color    string             `bson:"color,omitempty" json:"color,omitempty"`
	Quantity int                `bson:"quantity" json:"quantity"`
	Price    float64            `bson:"price" json:"price"`
}

// Cart belongs to exactly one user. Version increases on every write and
// guards concurrent replaces.
type Cart struct {
	Base               `bson:",inline"`
	User               primitive.ObjectID `bson:"user" json:"user"`
	CartItems          []CartItem         `bson:"cartItems" json:"cartItems"`
	TotalCartPrice     float64            `bson:"totalCartPrice" json:"totalCartPrice"`
	PriceAfterDiscount *float64           `bson:"priceAfterDiscount,omitempty" json:"priceAfterDiscount,omitempty"`
	Version            int64              `bson:"version" json:"-"`
}

// Payment methods
const (
	PaymentCash = "cash"
	PaymentCard = "card"
)

type ShippingAddress struct {
	Details    string `bson:"details,omitempty" json:"details,omitempty"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
	City       string `bson:"city,omitempty" json:"city,omitempty"`
	PostalCode string `bson:"postalCode,omitempty" json:"postalCode,omitempty"`
}

// Order holds a value copy of the cart lines at purchase time.
type Order struct {
	Base              `bson:",inline"`
	User              primitive.ObjectID `bson:"user" json:"user"`
	CartItems         []CartItem         `bson:"cartItems" json:"cartItems"`
	ShippingAddress   ShippingAddress    `bson:"shippingAddress" json:"shippingAddress"`
	TaxPrice          float64            `bson:"taxPrice" json:"taxPrice"`
	ShippingPrice     float64            `bson:"shippingPrice" json:"shippingPrice"`
	TotalOrderPrice   float64            `bson:"totalOrderPrice" json:"totalOrderPrice"`
	PaymentMethodType string             `bson:"paymentMethodType" json:"paymentMethodType"`
	IsPaid            bool               `bson:"isPaid" json:"isPaid"`
	PaidAt            *time.Time         `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	IsDelivered       bool               `bson:"isDelivered" json:"isDelivered"`
	DeliveredAt       *time.Time         `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	PaymentReference  string             `bson:"paymentReference,omitempty" json:"paymentReference,omitempty"`
}

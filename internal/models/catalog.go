package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is a sellable catalog item.
type Product struct {
	Base               `bson:",inline"`
	Title              string               `bson:"title" json:"title" binding:"required,min=2,max=100"`
	Slug               string               `bson:"slug" json:"slug"`
	Description        string               `bson:"description" json:"description" binding:"required,min=20"`
	Quantity           int                  `bson:"quantity" json:"quantity" binding:"gte=0"`
	Sold               int                  `bson:"sold" json:"sold" binding:"gte=0"`
	Price              float64              `bson:"price" json:"price" binding:"required,gt=0,lte=200000"`
	Barcode            string               `bson:"barcode,omitempty" json:"barcode,omitempty"`
	PriceAfterDiscount *float64             `bson:"priceAfterDiscount,omitempty" json:"priceAfterDiscount,omitempty" binding:"omitempty,gt=0"`
	Colors             []string             `bson:"colors,omitempty" json:"colors,omitempty"`
	ImageCover         string               `bson:"imageCover" json:"imageCover"`
	Images             []string             `bson:"images,omitempty" json:"images,omitempty"`
	Category           primitive.ObjectID   `bson:"category" json:"category" binding:"required"`
	Subcategories      []primitive.ObjectID `bson:"subcategories,omitempty" json:"subcategories,omitempty"`
	Brand              *primitive.ObjectID  `bson:"brand,omitempty" json:"brand,omitempty"`
	RatingsAverage     float64              `bson:"ratingsAverage,omitempty" json:"ratingsAverage,omitempty" binding:"omitempty,min=1,max=5"`
	RatingsQuantity    int                  `bson:"ratingsQuantity" json:"ratingsQuantity"`

	// Reviews is filled only when a single product is fetched with expansion.
	Reviews []Review `bson:"-" json:"reviews,omitempty"`
}

func (p *Product) Validate() error {
	if p.PriceAfterDiscount != nil && *p.PriceAfterDiscount >= p.Price {
		return errors.New("priceAfterDiscount must be lower than price")
	}
	return nil
}

type Category struct {
	Base  `bson:",inline"`
	Name  string `bson:"name" json:"name" binding:"required,min=3,max=32"`
	Slug  string `bson:"slug" json:"slug"`
	Image string `bson:"image,omitempty" json:"image,omitempty"`
}

type SubCategory struct {
	Base     `bson:",inline"`
	Name     string             `bson:"name" json:"name" binding:"required,min=2,max=32"`
	Slug     string             `bson:"slug" json:"slug"`
	Category primitive.ObjectID `bson:"category" json:"category" binding:"required"`
}

type Brand struct {
	Base  `bson:",inline"`
	Name  string `bson:"name" json:"name" binding:"required,min=3,max=32"`
	Slug  string `bson:"slug" json:"slug"`
	Image string `bson:"image,omitempty" json:"image,omitempty"`
}

// Coupon is a named percentage discount valid until Expire.
type Coupon struct {
	Base     `bson:",inline"`
	Name     string    `bson:"name" json:"name" binding:"required"`
	Expire   time.Time `bson:"expire" json:"expire" binding:"required"`
	Discount float64   `bson:"discount" json:"discount" binding:"required,min=1,max=100"`
}

// Review is unique per (user, product).
type Review struct {
	Base    `bson:",inline"`
	Title   string             `bson:"title,omitempty" json:"title,omitempty"`
	Ratings float64            `bson:"ratings" json:"ratings" binding:"required,min=1,max=5"`
	User    primitive.ObjectID `bson:"user" json:"user"`
	Product primitive.ObjectID `bson:"product" json:"product"`
}

package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Address struct {
	ID         primitive.ObjectID `bson:"_id" json:"_id"`
	Alias      string             `bson:"alias,omitempty" json:"alias,omitempty"`
	Details    string             `bson:"details,omitempty" json:"details,omitempty"`
	Phone      string             `bson:"phone,omitempty" json:"phone,omitempty"`
	City       string             `bson:"city,omitempty" json:"city,omitempty"`
	PostalCode string             `bson:"postalCode,omitempty" json:"postalCode,omitempty"`
}

// User is an account. Password holds a bcrypt hash once persisted and is
// never written to JSON.
type User struct {
	Base                  `bson:",inline"`
	Name                  string               `bson:"name" json:"name" binding:"required,min=3"`
	Slug                  string               `bson:"slug" json:"slug"`
	Email                 string               `bson:"email" json:"email" binding:"required,email"`
	Phone                 string               `bson:"phone,omitempty" json:"phone,omitempty"`
	ProfileImg            string               `bson:"profileImg,omitempty" json:"profileImg,omitempty"`
	Password              string               `bson:"password" json:"password,omitempty" binding:"required,min=6"`
	PasswordChangedAt     *time.Time           `bson:"passwordChangedAt,omitempty" json:"passwordChangedAt,omitempty"`
	Role                  string               `bson:"role" json:"role" binding:"omitempty,oneof=user admin manager"`
	Wishlist              []primitive.ObjectID `bson:"wishlist" json:"wishlist"`
	Addresses             []Address            `bson:"addresses" json:"addresses"`
	Active                bool                 `bson:"active" json:"active"`
	PasswordResetCode     string               `bson:"passwordResetCode,omitempty" json:"-"`
	PasswordResetExpires  *time.Time           `bson:"passwordResetExpires,omitempty" json:"-"`
	PasswordResetVerified *bool                `bson:"passwordResetVerified,omitempty" json:"-"`
}

// MarshalJSON drops the password hash from every response.
func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	out := plain(u)
	out.Password = ""
	return json.Marshal(out)
}

// ClearReset removes every password-reset field.
func (u *User) ClearReset() {
	u.PasswordResetCode = ""
	u.PasswordResetExpires = nil
	u.PasswordResetVerified = nil
}

// ResetVerified reports whether the current reset code was verified.
func (u *User) ResetVerified() bool {
	return u.PasswordResetVerified != nil && *u.PasswordResetVerified
}

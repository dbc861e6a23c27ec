package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Base carries the identity and timestamps shared by every document.
type Base struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (b *Base) GetID() primitive.ObjectID   { return b.ID }
func (b *Base) SetID(id primitive.ObjectID) { b.ID = id }
func (b *Base) GetCreatedAt() time.Time     { return b.CreatedAt }
func (b *Base) SetCreatedAt(t time.Time)    { b.CreatedAt = t }

// Stamp sets CreatedAt on first save and bumps UpdatedAt.
func (b *Base) Stamp(now time.Time) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// Entity is satisfied by a pointer to any document type embedding Base.
type Entity[T any] interface {
	*T
	GetID() primitive.ObjectID
	SetID(primitive.ObjectID)
	GetCreatedAt() time.Time
	SetCreatedAt(time.Time)
	Stamp(now time.Time)
}

// Validator is implemented by documents with cross-field rules that struct
// tags cannot express.
type Validator interface {
	Validate() error
}

// User roles
const (
	RoleUser    = "user"
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Address is a shipping address owned by a single user. At most one
// address per user has IsDefault set.
type Address struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Label     string             `bson:"label" json:"label"`
	Line1     string             `bson:"line1" json:"line1"`
	Line2     string             `bson:"line2,omitempty" json:"line2,omitempty"`
	City      string             `bson:"city" json:"city"`
	State     string             `bson:"state" json:"state"`
	Country   string             `bson:"country" json:"country"`
	ZipCode   string             `bson:"zipCode" json:"zipCode"`
	Phone     string             `bson:"phone,omitempty" json:"phone,omitempty"`
	IsDefault bool               `bson:"isDefault" json:"isDefault"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ShippingAddress is the copy of an Address stored on an order, so later
// edits to the address book do not rewrite order history.
type ShippingAddress struct {
	Label   string `bson:"label" json:"label"`
	Line1   string `bson:"line1" json:"line1"`
	Line2   string `bson:"line2,omitempty" json:"line2,omitempty"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state" json:"state"`
	Country string `bson:"country" json:"country"`
	ZipCode string `bson:"zipCode" json:"zipCode"`
	Phone   string `bson:"phone,omitempty" json:"phone,omitempty"`
}

func (a Address) Snapshot() ShippingAddress {
	return ShippingAddress{
		Label:   a.Label,
		Line1:   a.Line1,
		Line2:   a.Line2,
		City:    a.City,
		State:   a.State,
		Country: a.Country,
		ZipCode: a.ZipCode,
		Phone:   a.Phone,
	}
}

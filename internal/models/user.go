package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultStorageLimit is the quota granted to new accounts (15 GiB).
const DefaultStorageLimit int64 = 15 * 1024 * 1024 * 1024

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name" validate:"required,min=1,max=100"`
	Email        string             `bson:"email" json:"email" validate:"required,email"`
	Password     string             `bson:"password" json:"-"`
	Verified     bool               `bson:"verified" json:"verified"`
	StorageUsed  int64              `bson:"storage_used" json:"storageUsed"`
	StorageLimit int64              `bson:"storage_limit" json:"storageLimit"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}

// StoragePercentage returns used/limit as a percentage rounded to two decimals.
func (u *User) StoragePercentage() float64 {
	if u.StorageLimit <= 0 {
		return 0
	}
	pct := float64(u.StorageUsed) / float64(u.StorageLimit) * 100
	return math.Round(pct*100) / 100
}

// StorageLeft returns the remaining quota headroom in bytes.
func (u *User) StorageLeft() int64 {
	return u.StorageLimit - u.StorageUsed
}

// PublicIdentity is the minimal owner view exposed on shared files.
type PublicIdentity struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
}

// Public returns the user's public identity.
func (u *User) Public() PublicIdentity {
	return PublicIdentity{ID: u.ID, Name: u.Name, Email: u.Email}
}

// internal/domain/models/registrationtoken.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TokenPayload is the data a registration token carries to whoever redeems it.
// Which fields are set depends on the token kind.
type TokenPayload struct {
	SchoolID *primitive.ObjectID `bson:"school_id,omitempty" json:"school_id,omitempty"`
	UserID   *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Email    string              `bson:"email,omitempty" json:"email,omitempty"`
	Role     string              `bson:"role,omitempty" json:"role,omitempty"`
}

// RegistrationToken is an opaque, time-boxed token used for invites,
// school invite links and password resets.
type RegistrationToken struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Token        string             `bson:"token" json:"token"`
	Kind         string             `bson:"kind" json:"kind"`
	TokenPayload `bson:",inline"`
	ExpiresAt    time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

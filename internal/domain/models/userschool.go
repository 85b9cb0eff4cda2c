// internal/domain/models/userschool.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserSchool binds one user to one school with a role.
//
// NOTE:
//   - (user_id, school_id) is unique; leaving a school flips Role to "inactive"
//     in place so the row keeps its history.
type UserSchool struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	SchoolID  primitive.ObjectID `bson:"school_id" json:"school_id"`
	Role      string             `bson:"role" json:"role"` // leader | animator | user | inactive
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

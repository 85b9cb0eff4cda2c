package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ImpersonationGrant backs one impersonation session. The impersonation
// credential names it; consuming it ends the session and authorizes exactly
// one restore of the admin credential.
type ImpersonationGrant struct {
	GrantID   string             `bson:"grant_id" json:"grant_id"`
	AdminID   primitive.ObjectID `bson:"admin_id" json:"admin_id"`
	TargetID  primitive.ObjectID `bson:"target_id" json:"target_id"`
	SchoolID  primitive.ObjectID `bson:"school_id" json:"school_id"`
	ExpiresAt time.Time          `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

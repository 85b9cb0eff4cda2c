// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/camphub/internal/app/store/audit"
	impersonationstore "github.com/dalemusser/camphub/internal/app/store/impersonation"
	membershipstore "github.com/dalemusser/camphub/internal/app/store/memberships"
	"github.com/dalemusser/camphub/internal/app/store/regtokens"
	schoolstore "github.com/dalemusser/camphub/internal/app/store/schools"
	subscriptionstore "github.com/dalemusser/camphub/internal/app/store/subscriptions"
	userstore "github.com/dalemusser/camphub/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type ensurer interface {
	EnsureIndexes(ctx context.Context) error
}

/*
EnsureAll is called at startup. Each store's EnsureIndexes is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	sets := []struct {
		name string
		e    ensurer
	}{
		{"users", userstore.New(db)},
		{"schools", schoolstore.New(db)},
		{"user_schools", membershipstore.New(db)},
		{"registration_tokens", regtokens.New(db)},
		{"impersonation_grants", impersonationstore.NewMongo(db)},
		{"push_subscriptions", subscriptionstore.New(db)},
		{"audit_events", audit.New(db)},
	}

	var problems []string
	for _, s := range sets {
		start := time.Now()
		if err := s.e.EnsureIndexes(ctx); err != nil {
			zap.L().Warn("ensure indexes failed", zap.String("collection", s.name), zap.Error(err))
			problems = append(problems, s.name+": "+err.Error())
			continue
		}
		zap.L().Info("indexes ensured", zap.String("collection", s.name), zap.String("took", time.Since(start).String()))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

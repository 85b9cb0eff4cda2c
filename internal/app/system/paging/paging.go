// internal/app/system/paging/paging.go
package paging

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultLimit is used when ?limit= is absent.
	DefaultLimit = 50
	// MaxLimit caps ?limit=.
	MaxLimit = 200
)

var (
	ErrBadLimit  = errors.New("paging: limit must be a positive integer")
	ErrBadCursor = errors.New("paging: malformed cursor")
)

// Page is a forward keyset window ordered by _id.
type Page struct {
	Limit int
	After primitive.ObjectID // zero on the first page
}

// Parse reads ?limit= and ?after= from r. Limits above MaxLimit are clamped.
func Parse(r *http.Request) (Page, error) {
	p := Page{Limit: DefaultLimit}
	if s := query.Get(r, "limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return Page{}, ErrBadLimit
		}
		p.Limit = min(n, MaxLimit)
	}
	if s := query.Get(r, "after"); s != "" {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil || id.IsZero() {
			return Page{}, ErrBadCursor
		}
		p.After = id
	}
	return p, nil
}

// Apply adds the cursor condition to filter and returns find options that
// fetch one row beyond the page so Trim can tell whether another page exists.
func (p Page) Apply(filter bson.M) *options.FindOptions {
	if !p.After.IsZero() {
		filter["_id"] = bson.M{"$gt": p.After}
	}
	limit := p.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	return options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit + 1))
}

// Trim cuts rows fetched with Apply down to the page and returns the cursor
// for the next page, or "" when this is the last one.
func Trim[T any](rows []T, p Page, id func(T) primitive.ObjectID) ([]T, string) {
	limit := p.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	if len(rows) <= limit {
		return rows, ""
	}
	rows = rows[:limit]
	return rows, id(rows[limit-1]).Hex()
}

// internal/app/system/churchutil/params.go
package churchutil

import (
	"errors"
	"net/http"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrBadID is returned for a path or query id that is not an ObjectID.
var ErrBadID = errors.New("invalid id")

// PathID parses the chi URL parameter name as an ObjectID.
func PathID(r *http.Request, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, ErrBadID
	}
	return id, nil
}

// QueryID parses the optional query parameter name. A missing parameter
// yields nil.
func QueryID(r *http.Request, name string) (*primitive.ObjectID, error) {
	raw := query.Get(r, name)
	if raw == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, ErrBadID
	}
	return &id, nil
}

// ParseIDs converts hex strings to ObjectIDs, failing on the first bad one.
func ParseIDs(hexes []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		id, err := primitive.ObjectIDFromHex(h)
		if err != nil {
			return nil, ErrBadID
		}
		out = append(out, id)
	}
	return out, nil
}

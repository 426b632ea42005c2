// Package paging implements keyset pagination for list endpoints.
//
// Lists are sorted by a case-folded key plus _id. Clients pass the cursor
// of the last row they saw in ?after= (or of the first row in ?before= to
// go back) and an optional ?limit=.
package paging

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultPageSize is used when ?limit= is absent.
	DefaultPageSize = 50
	// MaxPageSize caps ?limit=.
	MaxPageSize = 200
)

// ErrBadLimit is returned for a ?limit= that is not a positive integer.
var ErrBadLimit = errors.New("limit must be a positive integer")

// Params are the paging inputs of one request.
type Params struct {
	Before string
	After  string
	Size   int
}

// ParseParams reads ?before=, ?after= and ?limit=. Limits above
// MaxPageSize are clamped.
func ParseParams(r *http.Request) (Params, error) {
	p := Params{
		Before: query.Get(r, "before"),
		After:  query.Get(r, "after"),
		Size:   DefaultPageSize,
	}
	if s := query.Get(r, "limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return Params{}, ErrBadLimit
		}
		p.Size = min(n, MaxPageSize)
	}
	return p, nil
}

func (p Params) size() int {
	if p.Size < 1 {
		return DefaultPageSize
	}
	return p.Size
}

// Result holds the output of TrimPage.
type Result struct {
	HasPrev bool
	HasNext bool
}

// TrimPage trims rows fetched with a limit of Size+1.
//
// Going backwards (Before set) the extra row is at the front and means an
// older page exists; there is always a next page. Going forwards the extra
// row is at the back; there is a previous page only when After was set.
func TrimPage[T any](rows *[]T, p Params) Result {
	size := p.size()
	orig := len(*rows)
	var res Result

	if p.Before != "" {
		if orig > size {
			*rows = (*rows)[1:]
			res.HasPrev = true
		}
		res.HasNext = true
		return res
	}
	if orig > size {
		*rows = (*rows)[:size]
		res.HasNext = true
	}
	res.HasPrev = p.After != ""
	return res
}

// Direction indicates the pagination direction.
type Direction int

const (
	Forward  Direction = iota // sort ascending, "gt" the cursor
	Backward                  // sort descending, "lt" the cursor
)

// KeysetConfig is the query shape for one page.
type KeysetConfig struct {
	Direction Direction
	SortOrder int // 1 ascending, -1 descending
	Cursor    *wafflemongo.Cursor
	Size      int
}

// Keyset determines direction and decodes the cursor. Before wins when
// both cursors are present. Undecodable cursors are ignored (first page).
func (p Params) Keyset() KeysetConfig {
	cfg := KeysetConfig{Direction: Forward, SortOrder: 1, Size: p.size()}

	switch {
	case p.Before != "":
		cfg.Direction = Backward
		cfg.SortOrder = -1
		if c, ok := wafflemongo.DecodeCursor(p.Before); ok {
			cfg.Cursor = &c
		}
	case p.After != "":
		if c, ok := wafflemongo.DecodeCursor(p.After); ok {
			cfg.Cursor = &c
		}
	}
	return cfg
}

// ApplyToFind sets sort (sortField, _id) and a look-ahead limit of Size+1.
func (cfg KeysetConfig) ApplyToFind(find *options.FindOptions, sortField string) {
	find.SetSort(bson.D{
		{Key: sortField, Value: cfg.SortOrder},
		{Key: "_id", Value: cfg.SortOrder},
	}).SetLimit(int64(cfg.Size + 1))
}

// KeysetWindow returns the cursor condition to merge into the filter, or
// nil on the first page.
func (cfg KeysetConfig) KeysetWindow(sortField string) bson.M {
	if cfg.Cursor == nil {
		return nil
	}
	dir := "gt"
	if cfg.Direction == Backward {
		dir = "lt"
	}
	return wafflemongo.KeysetWindow(sortField, dir, cfg.Cursor.CI, cfg.Cursor.ID)
}

// Reverse reverses a slice in place. Call it after a backward fetch to
// restore ascending order.
func Reverse[T any](rows []T) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// BuildCursors creates prev/next cursors from the first and last rows.
func BuildCursors[T any](rows []T, keyFn func(T) string, idFn func(T) primitive.ObjectID) (prev, next string) {
	if len(rows) == 0 {
		return "", ""
	}
	first := rows[0]
	last := rows[len(rows)-1]
	prev = wafflemongo.EncodeCursor(keyFn(first), idFn(first))
	next = wafflemongo.EncodeCursor(keyFn(last), idFn(last))
	return prev, next
}

// Page is the paging block of a list response.
type Page struct {
	HasPrev    bool   `json:"has_prev"`
	HasNext    bool   `json:"has_next"`
	PrevCursor string `json:"prev_cursor,omitempty"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// NewPage builds the response block from a trimmed page.
func NewPage[T any](rows []T, res Result, keyFn func(T) string, idFn func(T) primitive.ObjectID) Page {
	pg := Page{HasPrev: res.HasPrev, HasNext: res.HasNext}
	prev, next := BuildCursors(rows, keyFn, idFn)
	if res.HasPrev {
		pg.PrevCursor = prev
	}
	if res.HasNext {
		pg.NextCursor = next
	}
	return pg
}

// FindPage fetches one keyset page of T from c, sorted by (sortField, _id)
// ascending. filter is combined with the cursor window. Rows come back in
// ascending order whichever direction was requested.
func FindPage[T any](ctx context.Context, c *mongo.Collection, filter bson.M, sortField string, p Params) ([]T, Result, error) {
	cfg := p.Keyset()
	if w := cfg.KeysetWindow(sortField); w != nil {
		if len(filter) == 0 {
			filter = w
		} else {
			filter = bson.M{"$and": bson.A{filter, w}}
		}
	}
	if filter == nil {
		filter = bson.M{}
	}

	find := options.Find()
	cfg.ApplyToFind(find, sortField)

	cur, err := c.Find(ctx, filter, find)
	if err != nil {
		return nil, Result{}, err
	}
	defer cur.Close(ctx)

	rows := []T{}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, Result{}, err
	}
	if cfg.Direction == Backward {
		Reverse(rows)
	}
	res := TrimPage(&rows, p)
	return rows, res, nil
}

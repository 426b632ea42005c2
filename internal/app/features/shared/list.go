package shared

import (
	"github.com/dalemusser/flockhub/internal/app/system/paging"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// List is the data block of a paged list response.
type List[T any] struct {
	Items []T         `json:"items"`
	Page  paging.Page `json:"page"`
}

// NewList wraps one keyset page. key returns the folded sort key of a row.
func NewList[T any](rows []T, res paging.Result, key func(T) string, id func(T) primitive.ObjectID) List[T] {
	if rows == nil {
		rows = []T{}
	}
	return List[T]{Items: rows, Page: paging.NewPage(rows, res, key, id)}
}

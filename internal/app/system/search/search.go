// Package search builds the filters behind the ?q= parameter of list
// endpoints.
package search

import (
	"regexp"
	"strings"

	"github.com/dalemusser/flockhub/internal/app/system/normalize"
	"go.mongodb.org/mongo-driver/bson"
)

// Prefix returns a filter matching documents whose folded field starts
// with the folded q, or nil when q is blank. Anchored prefix regexes can
// use the *_ci indexes.
func Prefix(field, q string) bson.M {
	q = normalize.CI(q)
	if q == "" {
		return nil
	}
	return bson.M{field: bson.M{"$regex": "^" + regexp.QuoteMeta(q)}}
}

// EmailPivotOK reports whether a user list search should sort by email
// instead of folded name: the query looks like an email and the status is
// fixed, so the {church, role, status, email} path stays selective.
//
//	sortField := "full_name_ci"
//	if search.EmailPivotOK(q, status) {
//	    sortField = "email"
//	}
func EmailPivotOK(q, status string) bool {
	return strings.Contains(q, "@") && equalsAnyFold(status, "active", "disabled")
}

func equalsAnyFold(s string, vals ...string) bool {
	s = strings.TrimSpace(s)
	for _, v := range vals {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// Merge adds every key of extra to filter. Nil extra is a no-op.
func Merge(filter, extra bson.M) bson.M {
	for k, v := range extra {
		filter[k] = v
	}
	return filter
}

// Package htmlsanitize cleans free-text fields (descriptions, attendance
// notes) before they are stored.
package htmlsanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcOnce sync.Once
	ugc     *bluemonday.Policy

	plainOnce sync.Once
	plain     *bluemonday.Policy
)

func ugcPolicy() *bluemonday.Policy {
	ugcOnce.Do(func() {
		ugc = bluemonday.UGCPolicy()
		ugc.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	})
	return ugc
}

func plainPolicy() *bluemonday.Policy {
	plainOnce.Do(func() {
		plain = bluemonday.StrictPolicy()
	})
	return plain
}

// Sanitize keeps basic formatting markup (paragraphs, emphasis, lists,
// links, tables) and strips scripts, event handlers and unsafe URLs.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return ugcPolicy().Sanitize(s)
}

// PlainText strips all markup and trims the result. Used for short fields
// like attendance notes.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(plainPolicy().Sanitize(s))
}

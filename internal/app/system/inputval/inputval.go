// Package inputval decodes and validates request bodies.
//
// Request structs carry `validate:"..."` tags; field names in error
// details are taken from their json tags.
package inputval

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

// Error is a validation failure. Fields maps json field names to messages;
// it is nil when the body itself could not be decoded.
type Error struct {
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %d invalid field(s)", e.Message, len(e.Fields))
}

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	english := en.New()
	translator, _ = ut.New(english, english).GetTranslator("en")
	_ = entranslations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	for tag, fn := range customTags {
		_ = validate.RegisterValidation(tag, fn.check)
	}
	registerFn := func(ut.Translator) error { return nil }
	for tag := range customTags {
		_ = validate.RegisterTranslation(tag, translator, registerFn, translateCustom)
	}
}

// Struct validates v against its validate tags.
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fromValidator(err)
	}
	return nil
}

// Var validates a single value against a tag expression, e.g.
// Var("status", s, "required,oneof=active disabled").
func Var(field string, v any, tag string) error {
	if err := validate.Var(v, tag); err != nil {
		verr := fromValidator(err).(*Error)
		if msg, ok := verr.Fields[""]; ok {
			verr.Fields = map[string]string{field: msg}
		}
		return verr
	}
	return nil
}

// DecodeJSON reads a JSON body into dst and validates it. Unknown fields
// are rejected.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &Error{Message: "request body is empty"}
		}
		return &Error{Message: "malformed JSON: " + err.Error()}
	}
	return Struct(dst)
}

func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Message: err.Error()}
	}
	out := &Error{Message: "validation failed", Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fieldPath(fe)] = fe.Translate(translator)
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace so nested
// fields read "member.membership_date".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// IsValidEmail reports whether s is a bare RFC 5322 address (no display
// name). Single-label domains such as "localhost" are allowed.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t<>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	local, domain := s[:at], s[at+1:]
	for _, part := range []string{local, domain} {
		if part == "" || strings.HasPrefix(part, ".") || strings.HasSuffix(part, ".") || strings.Contains(part, "..") {
			return false
		}
	}
	return true
}

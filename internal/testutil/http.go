package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SessionKey signs test session cookies.
const SessionKey = "0123456789abcdef0123456789abcdef"

// SessionManager returns a cookie session manager with bearer tokens
// enabled, for handler tests that sign users in.
func SessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager(SessionKey, "flockhub-test", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	ti, err := auth.NewTokenIssuer(SessionKey, "flockhub-test", time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	sm.SetTokenIssuer(ti)
	return sm
}

// SuperAdminUser returns a superadmin session user with no church.
func SuperAdminUser() *auth.SessionUser {
	return &auth.SessionUser{
		ID:    primitive.NewObjectID().Hex(),
		Name:  "Test Superadmin",
		Email: "root@test.org",
		Role:  models.RoleSuperAdmin,
	}
}

// ChurchUser returns a session user with role in churchID.
func ChurchUser(role string, churchID primitive.ObjectID) *auth.SessionUser {
	return &auth.SessionUser{
		ID:       primitive.NewObjectID().Hex(),
		Name:     "Test " + role,
		Email:    role + "@test.org",
		Role:     role,
		ChurchID: churchID.Hex(),
	}
}

// SessionUserFor returns the session view of a stored user.
func SessionUserFor(u models.User) *auth.SessionUser {
	return auth.FromUser(&u)
}

// WithUser injects u into the request context, bypassing sessions.
func WithUser(r *http.Request, u *auth.SessionUser) *http.Request {
	return auth.WithTestUser(r, u)
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewJSONRequest encodes body as the request body with a JSON content type.
func NewJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d (body: %s)", r.Code, expected, r.Body.String())
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}

// AssertNotContains checks that the response body does not contain s.
func (r *ResponseRecorder) AssertNotContains(t interface{ Errorf(string, ...any) }, s string) {
	if strings.Contains(r.Body.String(), s) {
		t.Errorf("response body unexpectedly contains %q", s)
	}
}

// Envelope mirrors the JSON envelope written by the API.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

// DecodeEnvelope decodes the body as an Envelope and, when data is non-nil,
// decodes Data into it.
func DecodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, rec.Body.String())
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode envelope data: %v (data: %s)", err, env.Data)
		}
	}
	return env
}

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"insurance-management/backend/internal/security"
	"insurance-management/backend/internal/session/domain"
	"insurance-management/backend/internal/session/service"
)

func TestRequireSession_AttachesIdentity(t *testing.T) {
	tokens, err := security.NewTokenProvider("test-secret", "HS256", 30*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenProvider: %v", err)
	}
	repo := newMemRepo()
	repo.sessions["sess-1"] = &domain.Session{SessionID: "sess-1", UserID: 42, IsActive: true}
	repo.roles[42] = "ke_toan"
	validator := service.NewValidator(tokens, repo, nil, nil, service.ModeStrict)

	var got domain.View
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	token, _, err := tokens.Issue("42", "ke_toan", "sess-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	RequireSession(validator)(inner).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got.UserID != "42" || got.Role != "ke_toan" || got.SessionID != "sess-1" {
		t.Errorf("identity = %+v", got)
	}
}

func TestRequireSession_NoHeader(t *testing.T) {
	validator := service.NewValidator(nil, nil, nil, nil, service.ModeStrict)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler ran without credentials")
	})

	rec := httptest.NewRecorder()
	RequireSession(validator)(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:54321"
	if got := ClientIP(r); got != "192.0.2.10" {
		t.Errorf("ClientIP = %q", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.5, 192.0.2.10")
	if got := ClientIP(r); got != "203.0.113.5" {
		t.Errorf("ClientIP with forwarded header = %q", got)
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := bearerToken(r); got != "" {
		t.Errorf("bearerToken on bare request = %q", got)
	}
	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	if got := bearerToken(r); got != "abc.def.ghi" {
		t.Errorf("bearerToken = %q", got)
	}
	r.Header.Set("Authorization", "Basic abc")
	if got := bearerToken(r); got != "" {
		t.Errorf("bearerToken on basic auth = %q", got)
	}
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"insurance-management/backend/internal/platform/rbac"
	"insurance-management/backend/internal/procedure"
	"insurance-management/backend/internal/security"
	"insurance-management/backend/internal/session/domain"
	"insurance-management/backend/internal/session/service"
)

type fakeCaller struct {
	results map[string][][]procedure.Row
}

func (f *fakeCaller) Call(ctx context.Context, name string, params ...any) ([][]procedure.Row, error) {
	return f.results[name], nil
}

type memRepo struct {
	sessions map[string]*domain.Session
	roles    map[int64]string
}

func (m *memRepo) Find(ctx context.Context, id string) (*domain.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memRepo) Create(ctx context.Context, id string, userID int64, ip string) error {
	m.sessions[id] = &domain.Session{SessionID: id, UserID: userID, IPAddress: ip, IsActive: true}
	return nil
}

func (m *memRepo) Reactivate(ctx context.Context, id string) error {
	if s, ok := m.sessions[id]; ok {
		s.IsActive = true
	}
	return nil
}

func (m *memRepo) RebindUser(ctx context.Context, id string, userID int64) error {
	if s, ok := m.sessions[id]; ok {
		s.UserID = userID
	}
	return nil
}

func (m *memRepo) Deactivate(ctx context.Context, id string) error {
	if s, ok := m.sessions[id]; ok {
		s.IsActive = false
	}
	return nil
}

func (m *memRepo) Validate(ctx context.Context, id string) (*domain.Validation, error) {
	s, ok := m.sessions[id]
	if !ok || !s.IsActive {
		return &domain.Validation{Valid: false}, nil
	}
	return &domain.Validation{Valid: true, UserID: s.UserID, Role: m.roles[s.UserID]}, nil
}

func newTestServer(t *testing.T, caller *fakeCaller, repo *memRepo) *Server {
	t.Helper()
	tokens, err := security.NewTokenProvider("test-secret", "HS256", 30*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenProvider: %v", err)
	}
	procs := procedure.NewClient(caller)
	validator := service.NewValidator(tokens, repo, nil, nil, service.ModeStrict)
	return New(":0", Deps{
		Logger:    zerolog.Nop(),
		Procs:     procs,
		Tokens:    tokens,
		Hasher:    security.NewHasher(bcrypt.MinCost),
		Sessions:  repo,
		Validator: validator,
		Gate:      rbac.NewGate(nil, nil, nil),
		Mode:      service.ModeStrict,
	})
}

// Login then validate through the real route tree. The session record the
// login procedure writes is what the validate call reads back.
func TestLoginThenValidate(t *testing.T) {
	repo := &memRepo{sessions: map[string]*domain.Session{}, roles: map[int64]string{42: "nguoi_lap_hop_dong"}}
	caller := &fakeCaller{results: map[string][][]procedure.Row{
		"fastapi_login": {{
			{"result": `{"success": true, "user_id": 42, "role": "nguoi_lap_hop_dong"}`},
		}},
	}}
	srv := newTestServer(t, caller, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username": "alice", "password": "Secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var login struct {
		AccessToken string `json:"access_token"`
		SessionID   string `json:"session_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login response: %v", err)
	}

	// The login procedure records the session server-side.
	repo.sessions[login.SessionID] = &domain.Session{SessionID: login.SessionID, UserID: 42, IsActive: true}

	req = httptest.NewRequest(http.MethodGet, "/auth/validate", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var validate struct {
		Valid  bool   `json:"valid"`
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &validate); err != nil {
		t.Fatalf("decode validate response: %v", err)
	}
	if !validate.Valid || validate.UserID != "42" || validate.Role != "nguoi_lap_hop_dong" {
		t.Errorf("validate response = %+v", validate)
	}
}

func TestProtectedRouteWithoutToken(t *testing.T) {
	srv := newTestServer(t, &fakeCaller{results: map[string][][]procedure.Row{}},
		&memRepo{sessions: map[string]*domain.Session{}, roles: map[int64]string{}})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/contracts", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRootBanner(t *testing.T) {
	srv := newTestServer(t, &fakeCaller{results: map[string][][]procedure.Row{}},
		&memRepo{sessions: map[string]*domain.Session{}, roles: map[int64]string{}})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "insurance-management-backend") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

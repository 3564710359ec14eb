package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"insurance-management/backend/internal/audit"
	"insurance-management/backend/internal/procedure"
	"insurance-management/backend/internal/security"
	"insurance-management/backend/internal/session/repository"
	"insurance-management/backend/internal/session/service"
	userdomain "insurance-management/backend/internal/user/domain"
)

// AuthHandler serves login, logout, and token validation.
type AuthHandler struct {
	procs     *procedure.Client
	tokens    *security.TokenProvider
	sessions  repository.Repository
	validator *service.Validator
	auditor   audit.ActivityLogger
	mode      service.OperatingMode
}

func NewAuthHandler(procs *procedure.Client, tokens *security.TokenProvider, sessions repository.Repository, validator *service.Validator, auditor audit.ActivityLogger, mode service.OperatingMode) *AuthHandler {
	return &AuthHandler{
		procs:     procs,
		tokens:    tokens,
		sessions:  sessions,
		validator: validator,
		auditor:   auditor,
		mode:      mode,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies credentials through the login procedure and issues an
// access token bound to a fresh session record. Accepts a JSON body or a
// classic password form.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeBody(r, &req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Malformed request body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeDetail(w, http.StatusBadRequest, "Malformed request body")
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	}
	if req.Username == "" || req.Password == "" {
		writeDetail(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	clientIP := ClientIP(r)
	sessionID := uuid.NewString()
	res, err := h.procs.Login(r.Context(), req.Username, req.Password, sessionID, clientIP)
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.Success {
		audit.EmitAsync(h.auditor, 0, audit.TypeFailedLogin, "Invalid credentials", clientIP,
			map[string]any{"username": req.Username})
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	role, ok := userdomain.ParseRole(res.Role)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "Unknown role on account")
		return
	}

	token, expiresAt, err := h.tokens.Issue(strconv.FormatInt(res.UserID, 10), string(role), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	audit.EmitAsync(h.auditor, res.UserID, audit.TypeLogin, "User logged in", clientIP,
		map[string]any{"username": req.Username, "session_id": sessionID})

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_at":   expiresAt.Format(time.RFC3339),
		"session_id":   sessionID,
	})
}

// Logout ends the session named by the bearer token. Only the token's
// signature is checked here; a session must remain terminable even when the
// store would no longer validate it.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, errNotAuthenticated)
		return
	}
	claims, err := h.tokens.Decode(token)
	if err != nil {
		writeError(w, err)
		return
	}

	sessionID := claims.SessionID
	if sessionID == "" {
		if h.mode != service.ModeLenient {
			writeDetail(w, http.StatusBadRequest, "Token carries no session id")
			return
		}
		// Legacy token with no session. Logging out a session that never
		// existed is a no-op, kept for compatibility.
		sessionID = uuid.NewString()
	}

	clientIP := ClientIP(r)
	if _, err := h.procs.Logout(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.sessions.Deactivate(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	audit.EmitAsync(h.auditor, userIDOf(claims.Subject), audit.TypeLogout, "User logged out", clientIP,
		map[string]any{"session_id": sessionID})

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
}

// Validate runs the full token-then-store validation and reports the
// store-backed identity.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, errNotAuthenticated)
		return
	}
	res, err := h.validator.Validate(r.Context(), token, ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	// user_id stays in string form on the wire, matching the token subject.
	resp := map[string]any{
		"valid":      true,
		"user_id":    res.View.UserID,
		"role":       res.View.Role,
		"session_id": res.View.SessionID,
	}
	if res.Claims != nil && res.Claims.ExpiresAt != nil {
		resp["expires_at"] = res.Claims.ExpiresAt.Time.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

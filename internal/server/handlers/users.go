package handlers

import (
	"net/http"
	"strconv"

	"insurance-management/backend/internal/audit"
	"insurance-management/backend/internal/platform/rbac"
	"insurance-management/backend/internal/procedure"
	"insurance-management/backend/internal/security"
	userdomain "insurance-management/backend/internal/user/domain"
)

// UserHandler serves account management. Every data operation is a shim
// over a stored procedure; passwords are hashed here before they cross the
// procedure boundary on write paths.
type UserHandler struct {
	procs   *procedure.Client
	hasher  *security.Hasher
	gate    *rbac.Gate
	auditor audit.ActivityLogger
}

func NewUserHandler(procs *procedure.Client, hasher *security.Hasher, gate *rbac.Gate, auditor audit.ActivityLogger) *UserHandler {
	return &UserHandler{procs: procs, hasher: hasher, gate: gate, auditor: auditor}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"ho_ten"`
	Phone    string `json:"so_dien_thoai"`
	Address  string `json:"dia_chi"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		writeDetail(w, http.StatusBadRequest, "Email, password, and full name are required")
		return
	}
	hash, err := h.hasher.Hash([]byte(req.Password))
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.procs.RegisterUser(r.Context(), req.Email, hash, req.FullName, req.Phone, req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.Success {
		writeDetail(w, http.StatusBadRequest, res.Message)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &req); err != nil || req.Token == "" {
		writeDetail(w, http.StatusBadRequest, "Activation token is required")
		return
	}
	res, err := h.procs.ActivateAccount(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.Success {
		writeDetail(w, http.StatusBadRequest, res.Message)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *UserHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil || req.Email == "" {
		writeDetail(w, http.StatusBadRequest, "Email is required")
		return
	}
	if _, err := h.procs.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	// Same answer whether or not the account exists.
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "If the account exists, a reset email has been sent",
	})
}

func (h *UserHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeBody(r, &req); err != nil || req.Token == "" || req.NewPassword == "" {
		writeDetail(w, http.StatusBadRequest, "Token and new password are required")
		return
	}
	hash, err := h.hasher.Hash([]byte(req.NewPassword))
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.procs.ResetPassword(r.Context(), req.Token, hash)
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.Success {
		writeDetail(w, http.StatusBadRequest, res.Message)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	view, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, errNotAuthenticated)
		return
	}
	info, err := h.procs.GetUserInfo(r.Context(), userIDOf(view.UserID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *UserHandler) ChangeMyPassword(w http.ResponseWriter, r *http.Request) {
	view, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, errNotAuthenticated)
		return
	}
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeBody(r, &req); err != nil || req.OldPassword == "" || req.NewPassword == "" {
		writeDetail(w, http.StatusBadRequest, "Old and new passwords are required")
		return
	}
	hash, err := h.hasher.Hash([]byte(req.NewPassword))
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.procs.ChangePassword(r.Context(), userIDOf(view.UserID), req.OldPassword, hash)
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.Success {
		writeDetail(w, http.StatusBadRequest, res.Message)
		return
	}
	audit.EmitAsync(h.auditor, userIDOf(view.UserID), "change_password", "Password changed", ClientIP(r), nil)
	writeJSON(w, http.StatusOK, res)
}

// Get serves another user's profile. Users can always read themselves;
// reading anyone else takes the admin or supervisor role.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, errNotAuthenticated)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	if view.UserID != r.PathValue("id") {
		if err := h.gate.Authorize(r.Context(), view, "users:read",
			string(userdomain.RoleAdmin), string(userdomain.RoleSupervisor)); err != nil {
			writeError(w, err)
			return
		}
	}
	info, err := h.procs.GetUserInfo(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Update edits a user's profile. Self-service or admin.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	view, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, errNotAuthenticated)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	if view.UserID != r.PathValue("id") {
		if err := h.gate.Authorize(r.Context(), view, "users:update", string(userdomain.RoleAdmin)); err != nil {
			writeError(w, err)
			return
		}
	}
	var req struct {
		FullName string `json:"ho_ten"`
		Phone    string `json:"so_dien_thoai"`
		Address  string `json:"dia_chi"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	res, err := h.procs.UpdateUserInfo(r.Context(), id, req.FullName, req.Phone, req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.Success {
		writeDetail(w, http.StatusBadRequest, res.Message)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

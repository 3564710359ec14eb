package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"insurance-management/backend/internal/audit"
	"insurance-management/backend/internal/platform/rbac"
	"insurance-management/backend/internal/procedure"
	userdomain "insurance-management/backend/internal/user/domain"
)

// ContractHandler serves the contract CRUD shims. Row-level visibility lives
// inside the procedures; the gate enforces the coarse per-route roles.
type ContractHandler struct {
	procs   *procedure.Client
	gate    *rbac.Gate
	auditor audit.ActivityLogger
}

func NewContractHandler(procs *procedure.Client, gate *rbac.Gate, auditor audit.ActivityLogger) *ContractHandler {
	return &ContractHandler{procs: procs, gate: gate, auditor: auditor}
}

func (h *ContractHandler) List(w http.ResponseWriter, r *http.Request) {
	view, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, errNotAuthenticated)
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)
	if limit > 100 {
		limit = 100
	}
	list, err := h.procs.ListContracts(r.Context(), userIDOf(view.UserID), page, limit,
		r.URL.Query().Get("search"), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	items := list.Items
	if items == nil {
		items = []procedure.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": list.Total,
		"page":  page,
		"limit": limit,
	})
}

func (h *ContractHandler) Detail(w http.ResponseWriter, r *http.Request) {
	view, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, errNotAuthenticated)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid contract id")
		return
	}

	detail, denied, err := h.procs.GetContractDetail(r.Context(), userIDOf(view.UserID), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if denied != nil {
		writeDetail(w, http.StatusForbidden, denied.Message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contract":       detail.Contract,
		"insured_person": detail.Insured,
		"payments":       detail.Payments,
	})
}

type contractRequest struct {
	InsuranceTypeID int64          `json:"insurance_type_id"`
	InsuredPersonID int64          `json:"insured_person_id"`
	SignDate        string         `json:"ngay_ky"`
	EndDate         string         `json:"ngay_het_han"`
	Status          string         `json:"trang_thai"`
	InsuredDetails  map[string]any `json:"insured_details"`
}

func (h *ContractHandler) Create(w http.ResponseWriter, r *http.Request) {
	view, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, errNotAuthenticated)
		return
	}
	if err := h.gate.Authorize(r.Context(), view, "contracts:create",
		string(userdomain.RoleContractCreator)); err != nil {
		writeError(w, err)
		return
	}
	var req contractRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed request body")
		return
	}

	var detailsJSON string
	if len(req.InsuredDetails) > 0 {
		b, err := json.Marshal(req.InsuredDetails)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "Malformed insured details")
			return
		}
		detailsJSON = string(b)
	}
	res, err := h.procs.CreateContract(r.Context(), userIDOf(view.UserID),
		req.InsuranceTypeID, req.InsuredPersonID, req.SignDate, req.EndDate, req.Status, detailsJSON)
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.OK() {
		writeDetail(w, http.StatusBadRequest, res.Message)
		return
	}
	audit.EmitAsync(h.auditor, userIDOf(view.UserID), "create_contract", "Contract created", ClientIP(r),
		map[string]any{"contract_id": res.ContractID})
	writeJSON(w, http.StatusCreated, res)
}

func (h *ContractHandler) Update(w http.ResponseWriter, r *http.Request) {
	view, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, errNotAuthenticated)
		return
	}
	if err := h.gate.Authorize(r.Context(), view, "contracts:update",
		string(userdomain.RoleContractCreator)); err != nil {
		writeError(w, err)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid contract id")
		return
	}
	var req contractRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	res, err := h.procs.UpdateContract(r.Context(), userIDOf(view.UserID), id,
		req.SignDate, req.EndDate, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.OK() {
		writeDetail(w, http.StatusBadRequest, res.Message)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ContractHandler) Delete(w http.ResponseWriter, r *http.Request) {
	view, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, errNotAuthenticated)
		return
	}
	if err := h.gate.Authorize(r.Context(), view, "contracts:delete"); err != nil {
		writeError(w, err)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid contract id")
		return
	}
	res, err := h.procs.DeleteContract(r.Context(), userIDOf(view.UserID), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.OK() {
		writeDetail(w, http.StatusBadRequest, res.Message)
		return
	}
	audit.EmitAsync(h.auditor, userIDOf(view.UserID), "delete_contract", "Contract deleted", ClientIP(r),
		map[string]any{"contract_id": id})
	writeJSON(w, http.StatusOK, res)
}

func (h *ContractHandler) CreateInsuredUser(w http.ResponseWriter, r *http.Request) {
	view, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, errNotAuthenticated)
		return
	}
	if err := h.gate.Authorize(r.Context(), view, "contracts:create-insured-user",
		string(userdomain.RoleContractCreator)); err != nil {
		writeError(w, err)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid contract id")
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil || req.Email == "" {
		writeDetail(w, http.StatusBadRequest, "Email is required")
		return
	}
	res, err := h.procs.CreateInsuredUser(r.Context(), userIDOf(view.UserID), id, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.OK() {
		writeDetail(w, http.StatusBadRequest, res.Message)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

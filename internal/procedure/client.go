package procedure

import (
	"context"
	"fmt"
)

// Client is the typed stored-procedure client. Each method wraps one
// procedure with named parameters and a typed result, isolating the
// stringly-typed RPC boundary in this package.
type Client struct {
	caller Caller
}

// NewClient returns a Client that executes procedures through caller.
func NewClient(caller Caller) *Client {
	return &Client{caller: caller}
}

// LoginResult is the payload of fastapi_login.
type LoginResult struct {
	Success bool   `json:"success"`
	UserID  int64  `json:"user_id"`
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Login verifies credentials and records the new session server-side.
func (c *Client) Login(ctx context.Context, username, password, sessionID, clientIP string) (*LoginResult, error) {
	sets, err := c.caller.Call(ctx, "fastapi_login", username, password, sessionID, clientIP)
	if err != nil {
		return nil, err
	}
	var out LoginResult
	if err := DecodeFirst(sets, &out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &out, nil
}

// LogoutResult is the payload of fastapi_logout.
type LogoutResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Logout ends the session identified by sessionID.
func (c *Client) Logout(ctx context.Context, sessionID string) (*LogoutResult, error) {
	sets, err := c.caller.Call(ctx, "fastapi_logout", sessionID)
	if err != nil {
		return nil, err
	}
	var out LogoutResult
	if err := DecodeFirst(sets, &out); err != nil {
		return nil, fmt.Errorf("logout: %w", err)
	}
	return &out, nil
}

// SessionValidation is the payload of fastapi_validate_session. Valid is false
// whenever the session record is missing, inactive, or expired.
type SessionValidation struct {
	Valid         bool   `json:"valid"`
	UserID        int64  `json:"user_id"`
	Role          string `json:"role"`
	InsuranceType string `json:"insurance_type"`
}

// ValidateSession runs the authoritative server-side session check and bumps
// the session's last_activity on success.
func (c *Client) ValidateSession(ctx context.Context, sessionID string) (*SessionValidation, error) {
	sets, err := c.caller.Call(ctx, "fastapi_validate_session", sessionID)
	if err != nil {
		return nil, err
	}
	var out SessionValidation
	if err := DecodeFirst(sets, &out); err != nil {
		return nil, fmt.Errorf("validate session: %w", err)
	}
	return &out, nil
}

// RecordActivity writes one row to the activity log via log_user_activity.
// detailsJSON may be empty.
func (c *Client) RecordActivity(ctx context.Context, userID int64, activityType, description, ipAddress, detailsJSON string) error {
	var details any
	if detailsJSON != "" {
		details = detailsJSON
	}
	_, err := c.caller.Call(ctx, "log_user_activity", userID, activityType, description, ipAddress, details)
	return err
}

// GenericResult is the {success, message} payload shared by several fastapi_* procedures.
type GenericResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  int64  `json:"user_id,omitempty"`
}

// RegisterUser creates a user account. passwordHash must already be hashed;
// plaintext never reaches the database on write paths.
func (c *Client) RegisterUser(ctx context.Context, email, passwordHash, fullName, phone, address string) (*GenericResult, error) {
	sets, err := c.caller.Call(ctx, "fastapi_register_user", email, passwordHash, fullName, phone, address)
	if err != nil {
		return nil, err
	}
	var out GenericResult
	if err := DecodeFirst(sets, &out); err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	return &out, nil
}

// ActivateAccount activates a pending account using its activation token.
func (c *Client) ActivateAccount(ctx context.Context, token string) (*GenericResult, error) {
	sets, err := c.caller.Call(ctx, "fastapi_activate_account", token)
	if err != nil {
		return nil, err
	}
	var out GenericResult
	if err := DecodeFirst(sets, &out); err != nil {
		return nil, fmt.Errorf("activate account: %w", err)
	}
	return &out, nil
}

// RequestPasswordReset starts the password reset flow for email.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (*GenericResult, error) {
	sets, err := c.caller.Call(ctx, "fastapi_request_password_reset", email)
	if err != nil {
		return nil, err
	}
	var out GenericResult
	if err := DecodeFirst(sets, &out); err != nil {
		return nil, fmt.Errorf("request password reset: %w", err)
	}
	return &out, nil
}

// ResetPassword completes a password reset with the token from the reset email.
func (c *Client) ResetPassword(ctx context.Context, token, newPasswordHash string) (*GenericResult, error) {
	sets, err := c.caller.Call(ctx, "fastapi_reset_password", token, newPasswordHash)
	if err != nil {
		return nil, err
	}
	var out GenericResult
	if err := DecodeFirst(sets, &out); err != nil {
		return nil, fmt.Errorf("reset password: %w", err)
	}
	return &out, nil
}

// UserInfo is the payload of fastapi_get_user_info.
type UserInfo struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"ho_ten"`
	Role     string `json:"vai_tro"`
	Phone    string `json:"so_dien_thoai"`
	Address  string `json:"dia_chi"`
	Active   bool   `json:"trang_thai"`
}

// GetUserInfo returns profile data for userID, or ErrEmptyResult if unknown.
func (c *Client) GetUserInfo(ctx context.Context, userID int64) (*UserInfo, error) {
	sets, err := c.caller.Call(ctx, "fastapi_get_user_info", userID)
	if err != nil {
		return nil, err
	}
	var out UserInfo
	if err := DecodeFirst(sets, &out); err != nil {
		return nil, fmt.Errorf("get user info: %w", err)
	}
	return &out, nil
}

// UpdateUserInfo updates mutable profile fields for userID.
func (c *Client) UpdateUserInfo(ctx context.Context, userID int64, fullName, phone, address string) (*GenericResult, error) {
	sets, err := c.caller.Call(ctx, "fastapi_update_user_info", userID, fullName, phone, address)
	if err != nil {
		return nil, err
	}
	var out GenericResult
	if err := DecodeFirst(sets, &out); err != nil {
		return nil, fmt.Errorf("update user info: %w", err)
	}
	return &out, nil
}

// ChangePassword changes userID's password. The old password is verified by
// the procedure; newPasswordHash must already be hashed.
func (c *Client) ChangePassword(ctx context.Context, userID int64, oldPassword, newPasswordHash string) (*GenericResult, error) {
	sets, err := c.caller.Call(ctx, "fastapi_change_password", userID, oldPassword, newPasswordHash)
	if err != nil {
		return nil, err
	}
	var out GenericResult
	if err := DecodeFirst(sets, &out); err != nil {
		return nil, fmt.Errorf("change password: %w", err)
	}
	return &out, nil
}

// StatusResult is the {status, message} payload shared by the sp_* contract procedures.
// Status is "success" or "error"; on error Message explains the denial.
type StatusResult struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	ContractID int64  `json:"contract_id,omitempty"`
}

// OK reports whether the procedure reported success.
func (r *StatusResult) OK() bool { return r != nil && r.Status != "error" }

// ContractList holds one page of contracts plus the unpaged total.
type ContractList struct {
	Items []Row
	Total int64
}

// ListContracts returns the contracts visible to userID, filtered and paged.
// Role-based visibility is enforced inside the procedure. search and
// statusFilter may be empty.
func (c *Client) ListContracts(ctx context.Context, userID int64, page, limit int, search, statusFilter string) (*ContractList, error) {
	var searchArg, statusArg any
	if search != "" {
		searchArg = search
	}
	if statusFilter != "" {
		statusArg = statusFilter
	}
	sets, err := c.caller.Call(ctx, "sp_get_contracts_list", userID, page, limit, searchArg, statusArg)
	if err != nil {
		return nil, err
	}
	out := &ContractList{}
	if len(sets) > 0 {
		out.Items = sets[0]
	}
	if len(sets) > 1 && len(sets[1]) > 0 {
		var totals struct {
			Total int64 `json:"total"`
		}
		if err := decodeValue(sets[1][0], &totals); err == nil {
			out.Total = totals.Total
		}
	}
	return out, nil
}

// ContractDetail holds the full view of one contract: header, insured-person
// row, and payment history, from the procedure's three result sets.
type ContractDetail struct {
	Contract Row
	Insured  Row
	Payments []Row
}

// GetContractDetail returns the detail for contractID as visible to userID.
// The procedure signals an access denial with a status=error first row; that
// is surfaced as a StatusResult alongside a nil detail.
func (c *Client) GetContractDetail(ctx context.Context, userID, contractID int64) (*ContractDetail, *StatusResult, error) {
	sets, err := c.caller.Call(ctx, "sp_get_contract_detail", userID, contractID)
	if err != nil {
		return nil, nil, err
	}
	if len(sets) > 0 && len(sets[0]) > 0 {
		if status, ok := sets[0][0]["status"]; ok && status == "error" {
			var denied StatusResult
			if err := decodeValue(sets[0][0], &denied); err != nil {
				return nil, nil, fmt.Errorf("contract detail: %w", err)
			}
			return nil, &denied, nil
		}
	}
	if len(sets) < 3 || len(sets[0]) == 0 {
		return nil, nil, ErrEmptyResult
	}
	detail := &ContractDetail{Contract: sets[0][0], Payments: sets[2]}
	if len(sets[1]) > 0 {
		detail.Insured = sets[1][0]
	}
	return detail, nil, nil
}

// CreateContract creates a contract on behalf of userID. detailsJSON carries
// the optional insured-person details; pass "" for none.
func (c *Client) CreateContract(ctx context.Context, userID, insuranceTypeID, insuredPersonID int64, signDate, endDate, status, detailsJSON string) (*StatusResult, error) {
	var details any
	if detailsJSON != "" {
		details = detailsJSON
	}
	sets, err := c.caller.Call(ctx, "sp_create_contract", userID, insuranceTypeID, insuredPersonID, signDate, endDate, status, details)
	if err != nil {
		return nil, err
	}
	var out StatusResult
	if err := DecodeFirst(sets, &out); err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}
	return &out, nil
}

// UpdateContract updates contractID on behalf of userID.
func (c *Client) UpdateContract(ctx context.Context, userID, contractID int64, signDate, endDate, status string) (*StatusResult, error) {
	sets, err := c.caller.Call(ctx, "sp_update_contract", userID, contractID, signDate, endDate, status)
	if err != nil {
		return nil, err
	}
	var out StatusResult
	if err := DecodeFirst(sets, &out); err != nil {
		return nil, fmt.Errorf("update contract: %w", err)
	}
	return &out, nil
}

// DeleteContract deletes contractID on behalf of userID.
func (c *Client) DeleteContract(ctx context.Context, userID, contractID int64) (*StatusResult, error) {
	sets, err := c.caller.Call(ctx, "sp_delete_contract", userID, contractID)
	if err != nil {
		return nil, err
	}
	var out StatusResult
	if err := DecodeFirst(sets, &out); err != nil {
		return nil, fmt.Errorf("delete contract: %w", err)
	}
	return &out, nil
}

// CreateInsuredUser creates a login account for the insured person on
// contractID and links it to the contract.
func (c *Client) CreateInsuredUser(ctx context.Context, userID, contractID int64, email string) (*StatusResult, error) {
	sets, err := c.caller.Call(ctx, "sp_create_insured_user_from_contract", userID, contractID, email)
	if err != nil {
		return nil, err
	}
	var out StatusResult
	if err := DecodeFirst(sets, &out); err != nil {
		return nil, fmt.Errorf("create insured user: %w", err)
	}
	return &out, nil
}

// AuthorizationPolicy returns the Rego policy text for fine-grained
// authorization checks, or "" when none is configured server-side.
func (c *Client) AuthorizationPolicy(ctx context.Context) (string, error) {
	sets, err := c.caller.Call(ctx, "sp_get_authz_policy")
	if err != nil {
		return "", err
	}
	row, err := firstRow(sets)
	if err != nil {
		return "", err
	}
	if p, ok := row["policy"].(string); ok {
		return p, nil
	}
	return "", nil
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"insurance-management/backend/internal/platform/rbac"
	"insurance-management/backend/internal/procedure"
	"insurance-management/backend/internal/security"
	"insurance-management/backend/internal/session/repository"
	"insurance-management/backend/internal/session/service"
)

// errNotAuthenticated covers requests with no usable bearer token.
var errNotAuthenticated = errors.New("not authenticated")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError maps the auth error taxonomy onto HTTP statuses. A store outage
// is 503, never 401: clients must be able to tell "retry later" from
// "log in again".
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNotAuthenticated),
		errors.Is(err, security.ErrInvalidToken),
		errors.Is(err, service.ErrMissingSession),
		errors.Is(err, service.ErrSessionInvalid):
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
	case errors.Is(err, rbac.ErrForbidden):
		writeDetail(w, http.StatusForbidden, "Not enough permissions")
	case errors.Is(err, service.ErrStoreUnavailable),
		errors.Is(err, repository.ErrUnavailable),
		errors.Is(err, procedure.ErrUnavailable):
		writeDetail(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	case errors.Is(err, procedure.ErrEmptyResult):
		writeDetail(w, http.StatusNotFound, "Not found")
	default:
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dinlipi/internal/auth"
	"dinlipi/internal/errs"
	"dinlipi/internal/middleware"
	"dinlipi/internal/models"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "bad_request"})
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", Code: "not_found"})
}

// writeError maps a domain error to its HTTP status. Store failures keep the
// store's own message.
func writeError(w http.ResponseWriter, err error) {
	var ve *errs.ValidationError
	var re *errs.RemoteError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Code: "validation_failed"})
	case errors.Is(err, errs.ErrNotFound):
		notFound(w)
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "invalid_credentials"})
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, errs.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "unauthorized"})
	case errors.Is(err, auth.ErrUnknownProvider):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "unsupported_provider"})
	case errors.Is(err, auth.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "user_exists"})
	case errors.Is(err, errs.ErrConflict), errs.IsUniqueViolation(err), errs.IsForeignKeyViolation(err):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "conflict"})
	case errors.As(err, &re):
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: re.Error(), Code: "remote_error"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error", Code: "internal"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "invalid body")
		return false
	}
	return true
}

// requireUser returns the caller's id. The auth middleware guarantees it on
// protected routes, so a miss is answered with 401.
func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Code: "unauthorized"})
	}
	return id, ok
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func dateParam(w http.ResponseWriter, r *http.Request, name string) (models.Date, bool) {
	d, err := models.ParseDate(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, err.Error())
		return models.Date{}, false
	}
	return d, true
}

// optionalDate parses a YYYY-MM-DD query value; an absent value yields nil.
func optionalDate(w http.ResponseWriter, r *http.Request, name string) (*models.Date, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, true
	}
	d, err := models.ParseDate(s)
	if err != nil {
		badRequest(w, fmt.Sprintf("invalid %s; expected YYYY-MM-DD", name))
		return nil, false
	}
	return &d, true
}

// queryInt parses a non-negative integer query value; absent yields 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		badRequest(w, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return n, true
}

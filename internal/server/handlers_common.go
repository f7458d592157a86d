package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"med/dispatch/internal/dispatch"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type APIError struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

const (
	errInvalidPayload     = "invalid payload"
	errInvalidReportID    = "invalid report id"
	errInvalidAmbulanceID = "invalid ambulance id"
	errInvalidHospitalID  = "invalid hospital id"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string, details interface{}) {
	s.writeJSON(w, status, APIError{Error: message, Details: details})
}

// writeEngineError converts an allocation engine error into the matching
// HTTP status. Precondition failures and lost version races are conflicts,
// out-of-range values are the caller's mistake.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	kind := dispatch.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case dispatch.ErrNotFound:
		status = http.StatusNotFound
	case dispatch.ErrConflict,
		dispatch.ErrReportNotPending,
		dispatch.ErrAmbulanceUnavailable,
		dispatch.ErrAmbulanceNotBusy,
		dispatch.ErrAmbulanceBusy,
		dispatch.ErrHospitalFull,
		dispatch.ErrDuplicateVehicle:
		status = http.StatusConflict
	case dispatch.ErrOutOfRange:
		status = http.StatusBadRequest
	case dispatch.ErrScopeMismatch:
		status = http.StatusForbidden
	}
	s.writeJSON(w, status, APIError{Error: err.Error(), Details: string(kind)})
}

func (s *Server) decodeAndValidate(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := s.validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	raw := chi.URLParam(r, key)
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, errors.New("missing id")
	}
	return uuid.Parse(raw)
}

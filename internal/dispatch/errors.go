package dispatch

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrorKind enumerates the engine's failure vocabulary. Every engine error
// carries a kind plus the offending entity so callers can decide between
// re-fetch-and-retry and a hard failure.
type ErrorKind string

const (
	ErrNotFound             ErrorKind = "not_found"
	ErrReportNotPending     ErrorKind = "report_not_pending"
	ErrAmbulanceUnavailable ErrorKind = "ambulance_unavailable"
	ErrAmbulanceNotBusy     ErrorKind = "ambulance_not_busy"
	ErrAmbulanceBusy        ErrorKind = "ambulance_busy"
	ErrHospitalFull         ErrorKind = "hospital_full"
	ErrConflict             ErrorKind = "conflict"
	ErrOutOfRange           ErrorKind = "out_of_range"
	ErrDuplicateVehicle     ErrorKind = "duplicate_vehicle"
	ErrScopeMismatch        ErrorKind = "scope_mismatch"
)

// Error is the engine's typed error. Partial success is never reported:
// any Error means no entity was mutated by the call.
type Error struct {
	Kind       ErrorKind
	EntityKind Kind
	EntityID   uuid.UUID
	Detail     string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s %s", e.Kind, e.EntityKind, e.EntityID)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// KindOf extracts the ErrorKind from err, or "" when err is not an engine
// error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

func notFound(entity Kind, id uuid.UUID) error {
	return &Error{Kind: ErrNotFound, EntityKind: entity, EntityID: id}
}

func conflict(entity Kind, id uuid.UUID, detail string) error {
	return &Error{Kind: ErrConflict, EntityKind: entity, EntityID: id, Detail: detail}
}

func failed(kind ErrorKind, entity Kind, id uuid.UUID, detail string) error {
	return &Error{Kind: kind, EntityKind: entity, EntityID: id, Detail: detail}
}

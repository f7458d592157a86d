package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// View is a read-only snapshot of committed entity state. All returned
// records are copies; mutating them has no effect on the store.
type View interface {
	Hospital(id uuid.UUID) (Hospital, bool)
	Ambulance(id uuid.UUID) (Ambulance, bool)
	AmbulanceByVehicle(vehicleNumber string) (Ambulance, bool)
	Report(id uuid.UUID) (EmergencyReport, bool)
	ListHospitals() []Hospital
	ListAmbulances() []Ambulance
	ListReports() []EmergencyReport
}

// Tx is a transactional unit of work. Reads observe the transaction's own
// writes. Put records a mutation; nothing becomes visible to other callers
// until the transaction function returns nil and the store commits every
// recorded change together. Versions and updated_at are stamped by the
// store at Put time using its own clock.
type Tx interface {
	View
	PutHospital(h Hospital)
	PutAmbulance(a Ambulance)
	PutReport(r EmergencyReport)
}

// Store is the entity store contract. Implementations must guarantee that
// Update bodies run against an isolated copy of state, that concurrent
// Updates are serialized at commit, and that a returned error discards
// every change (no partial commit is ever observable).
type Store interface {
	// Update runs fn in a transaction and commits its changes atomically.
	// The committed changes are returned in the order they were recorded.
	Update(ctx context.Context, fn func(tx Tx) error) ([]Change, error)
	// ViewState runs fn against a consistent read-only snapshot.
	ViewState(ctx context.Context, fn func(v View) error) error
	// Now is the store's server-side clock. Expiry decisions use this
	// clock, never caller-supplied timestamps.
	Now() time.Time
}

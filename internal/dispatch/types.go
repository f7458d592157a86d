// Package dispatch implements the emergency dispatch allocation engine:
// entity records for hospitals, ambulances and emergency reports, the
// state-transition rules linking them, and the store contract the rules
// run against.
package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies one of the three entity types managed by the engine.
type Kind string

const (
	KindHospital  Kind = "hospital"
	KindAmbulance Kind = "ambulance"
	KindReport    Kind = "emergency_report"
)

// AmbulanceStatus is the dispatch readiness of a vehicle.
type AmbulanceStatus string

const (
	AmbulanceAvailable   AmbulanceStatus = "available"
	AmbulanceBusy        AmbulanceStatus = "busy"
	AmbulanceMaintenance AmbulanceStatus = "maintenance"
)

// ReportStatus is the lifecycle state of an emergency report.
type ReportStatus string

const (
	ReportReported  ReportStatus = "reported"
	ReportEnRoute   ReportStatus = "en_route"
	ReportCompleted ReportStatus = "completed"
)

// Severity is retained for display and audit only; assignment is manual and
// the engine never orders by it.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// reportTransitions lists the prior statuses each report status may be
// entered from.
var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportEnRoute:   {ReportReported},
	ReportCompleted: {ReportEnRoute},
}

// ValidReportTransition reports whether a report may move from one status to
// another.
func ValidReportTransition(from, to ReportStatus) bool {
	for _, allowed := range reportTransitions[to] {
		if allowed == from {
			return true
		}
	}
	return false
}

// Hospital tracks a facility's fixed capacity and live availability counters.
// Bed identity is fungible: only aggregate counts are kept.
type Hospital struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Address          string    `json:"address"`
	TotalBeds        int       `json:"total_beds"`
	ICUBeds          int       `json:"icu_beds"`
	AvailableBeds    int       `json:"available_beds"`
	AvailableICUBeds int       `json:"available_icu_beds"`
	Version          int64     `json:"version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Ambulance is a fleet vehicle. AssignedHospital, AssignedReport and
// HoldExpiry are set together while busy and cleared together otherwise.
type Ambulance struct {
	ID               uuid.UUID       `json:"id"`
	VehicleNumber    string          `json:"vehicle_number"`
	CurrentLocation  string          `json:"current_location"`
	Status           AmbulanceStatus `json:"status"`
	AssignedHospital *uuid.UUID      `json:"assigned_hospital,omitempty"`
	AssignedReport   *uuid.UUID      `json:"assigned_report,omitempty"`
	HoldExpiry       *time.Time      `json:"hold_expiry,omitempty"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// EmergencyReport is a patient emergency case. Patient fields are opaque to
// the engine; only Status and the assignment references participate in
// transitions.
type EmergencyReport struct {
	ID                uuid.UUID    `json:"id"`
	PatientName       string       `json:"patient_name"`
	PatientAge        *int         `json:"patient_age,omitempty"`
	PatientPhone      string       `json:"patient_phone,omitempty"`
	PatientAddress    string       `json:"patient_address,omitempty"`
	Symptoms          string       `json:"symptoms"`
	Severity          Severity     `json:"severity"`
	PickupLocation    string       `json:"pickup_location"`
	Status            ReportStatus `json:"status"`
	AssignedAmbulance *uuid.UUID   `json:"assigned_ambulance,omitempty"`
	AssignedHospital  *uuid.UUID   `json:"assigned_hospital,omitempty"`
	Version           int64        `json:"version"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Action classifies a mutation for change events.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// MutationEvent is delivered to subscribers after a transaction commits.
// Events carry no payload beyond identity and version; consumers re-read
// full entity state and must tolerate duplicates.
type MutationEvent struct {
	Kind    Kind      `json:"kind"`
	ID      uuid.UUID `json:"id"`
	Action  Action    `json:"action"`
	Version int64     `json:"version"`
	At      time.Time `json:"at"`
}

// Change describes one entity mutated within a committed transaction.
// Exactly one of Hospital, Ambulance, Report is non-nil, matching Kind.
type Change struct {
	Kind      Kind
	Action    Action
	Hospital  *Hospital
	Ambulance *Ambulance
	Report    *EmergencyReport
}

// Event derives the MutationEvent announced for this change.
func (c Change) Event() MutationEvent {
	ev := MutationEvent{Kind: c.Kind, Action: c.Action}
	switch c.Kind {
	case KindHospital:
		ev.ID, ev.Version, ev.At = c.Hospital.ID, c.Hospital.Version, c.Hospital.UpdatedAt
	case KindAmbulance:
		ev.ID, ev.Version, ev.At = c.Ambulance.ID, c.Ambulance.Version, c.Ambulance.UpdatedAt
	case KindReport:
		ev.ID, ev.Version, ev.At = c.Report.ID, c.Report.Version, c.Report.UpdatedAt
	}
	return ev
}

func cloneUUIDPtr(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneIntPtr(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

// CloneAmbulance returns a deep copy safe to hand outside the store.
func CloneAmbulance(a Ambulance) Ambulance {
	a.AssignedHospital = cloneUUIDPtr(a.AssignedHospital)
	a.AssignedReport = cloneUUIDPtr(a.AssignedReport)
	a.HoldExpiry = cloneTimePtr(a.HoldExpiry)
	return a
}

// CloneReport returns a deep copy safe to hand outside the store.
func CloneReport(r EmergencyReport) EmergencyReport {
	r.PatientAge = cloneIntPtr(r.PatientAge)
	r.AssignedAmbulance = cloneUUIDPtr(r.AssignedAmbulance)
	r.AssignedHospital = cloneUUIDPtr(r.AssignedHospital)
	return r
}

package dispatch

import (
	"context"

	"github.com/google/uuid"
)

// Query views are pure derived reads recomputed from committed entity state
// on every call. Nothing here is incrementally maintained; there is exactly
// one source of truth and it lives in the store.

// AvailableAmbulances lists vehicles ready for assignment.
func (e *Engine) AvailableAmbulances(ctx context.Context) ([]Ambulance, error) {
	var out []Ambulance
	err := e.store.ViewState(ctx, func(v View) error {
		for _, a := range v.ListAmbulances() {
			if a.Status == AmbulanceAvailable {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

// AvailableHospitals lists facilities with at least one free bed.
func (e *Engine) AvailableHospitals(ctx context.Context) ([]Hospital, error) {
	var out []Hospital
	err := e.store.ViewState(ctx, func(v View) error {
		for _, h := range v.ListHospitals() {
			if h.AvailableBeds > 0 {
				out = append(out, h)
			}
		}
		return nil
	})
	return out, err
}

// PendingReports lists reports awaiting assignment.
func (e *Engine) PendingReports(ctx context.Context) ([]EmergencyReport, error) {
	return e.reportsByStatus(ctx, ReportReported)
}

// ActiveReports lists reports with an ambulance en route.
func (e *Engine) ActiveReports(ctx context.Context) ([]EmergencyReport, error) {
	return e.reportsByStatus(ctx, ReportEnRoute)
}

func (e *Engine) reportsByStatus(ctx context.Context, status ReportStatus) ([]EmergencyReport, error) {
	var out []EmergencyReport
	err := e.store.ViewState(ctx, func(v View) error {
		for _, r := range v.ListReports() {
			if r.Status == status {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

// IncomingAmbulance pairs an en-route vehicle with its patient for a
// hospital's incoming board.
type IncomingAmbulance struct {
	AmbulanceID   uuid.UUID `json:"ambulance_id"`
	VehicleNumber string    `json:"vehicle_number"`
	ReportID      uuid.UUID `json:"report_id"`
	PatientName   string    `json:"patient_name"`
}

// IncomingAmbulances derives the vehicles currently en route to one
// hospital by cross-referencing active reports at read time. Kept as a
// join, never as stored state, so it cannot drift from the entity store.
func (e *Engine) IncomingAmbulances(ctx context.Context, hospitalID uuid.UUID) ([]IncomingAmbulance, error) {
	var out []IncomingAmbulance
	err := e.store.ViewState(ctx, func(v View) error {
		if _, ok := v.Hospital(hospitalID); !ok {
			return notFound(KindHospital, hospitalID)
		}
		for _, r := range v.ListReports() {
			if r.Status != ReportEnRoute || r.AssignedHospital == nil || *r.AssignedHospital != hospitalID {
				continue
			}
			if r.AssignedAmbulance == nil {
				continue
			}
			entry := IncomingAmbulance{
				AmbulanceID: *r.AssignedAmbulance,
				ReportID:    r.ID,
				PatientName: r.PatientName,
			}
			if a, ok := v.Ambulance(*r.AssignedAmbulance); ok {
				entry.VehicleNumber = a.VehicleNumber
			}
			out = append(out, entry)
		}
		return nil
	})
	return out, err
}

// Snapshot is a consolidated read of the whole dispatch state, served to
// dashboards on mount so they do not issue one request per table.
type Snapshot struct {
	Hospitals  []Hospital        `json:"hospitals"`
	Ambulances []Ambulance       `json:"ambulances"`
	Reports    []EmergencyReport `json:"reports"`
}

// SnapshotAll reads everything under one consistent view.
func (e *Engine) SnapshotAll(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := e.store.ViewState(ctx, func(v View) error {
		snap.Hospitals = v.ListHospitals()
		snap.Ambulances = v.ListAmbulances()
		snap.Reports = v.ListReports()
		return nil
	})
	return snap, err
}

// Hospital returns one hospital record.
func (e *Engine) Hospital(ctx context.Context, id uuid.UUID) (Hospital, error) {
	var out Hospital
	err := e.store.ViewState(ctx, func(v View) error {
		h, ok := v.Hospital(id)
		if !ok {
			return notFound(KindHospital, id)
		}
		out = h
		return nil
	})
	return out, err
}

// Ambulance returns one ambulance record.
func (e *Engine) Ambulance(ctx context.Context, id uuid.UUID) (Ambulance, error) {
	var out Ambulance
	err := e.store.ViewState(ctx, func(v View) error {
		a, ok := v.Ambulance(id)
		if !ok {
			return notFound(KindAmbulance, id)
		}
		out = a
		return nil
	})
	return out, err
}

// Report returns one emergency report record.
func (e *Engine) Report(ctx context.Context, id uuid.UUID) (EmergencyReport, error) {
	var out EmergencyReport
	err := e.store.ViewState(ctx, func(v View) error {
		r, ok := v.Report(id)
		if !ok {
			return notFound(KindReport, id)
		}
		out = r
		return nil
	})
	return out, err
}

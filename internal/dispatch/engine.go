package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultHoldDuration is how long an ambulance assignment is held before the
// expiry monitor may auto-release it.
const DefaultHoldDuration = 30 * time.Minute

// Engine applies the allocation rules. Every operation is a single store
// transaction: it either commits all of its entity updates or none, and it
// never retries on conflict; retry-with-fresh-read belongs to the caller,
// since a blind internal retry could apply a stale intent.
type Engine struct {
	store        Store
	log          zerolog.Logger
	holdDuration time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithHoldDuration overrides the assignment hold duration.
func WithHoldDuration(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.holdDuration = d
		}
	}
}

// NewEngine wires the allocation engine to its entity store.
func NewEngine(store Store, log zerolog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:        store,
		log:          log,
		holdDuration: DefaultHoldDuration,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the underlying entity store for read-only consumers.
func (e *Engine) Store() Store { return e.store }

// ExpectedVersions carries the entity versions a dashboard last rendered.
// A zero field skips the check for that entity; a non-zero stale value
// fails the operation with Conflict before any precondition is evaluated.
type ExpectedVersions struct {
	Report    int64
	Ambulance int64
	Hospital  int64
}

// AssignRequest names the three entities of an assignment. Selection is
// caller-directed; the engine does no ranking.
type AssignRequest struct {
	ReportID    uuid.UUID
	AmbulanceID uuid.UUID
	HospitalID  uuid.UUID
	Expected    ExpectedVersions
}

// AssignmentSnapshot is the post-commit state of all three entities.
type AssignmentSnapshot struct {
	Report    EmergencyReport
	Ambulance Ambulance
	Hospital  Hospital
}

// AssignAmbulance links a pending report to an available ambulance and a
// hospital with a free bed, atomically: report goes en_route, the ambulance
// goes busy under a time-bounded hold, and one bed is reserved. A lost race
// surfaces as the precise precondition error; no intermediate state is ever
// observable.
func (e *Engine) AssignAmbulance(ctx context.Context, req AssignRequest) (AssignmentSnapshot, error) {
	var snap AssignmentSnapshot
	_, err := e.store.Update(ctx, func(tx Tx) error {
		report, ok := tx.Report(req.ReportID)
		if !ok {
			return notFound(KindReport, req.ReportID)
		}
		ambulance, ok := tx.Ambulance(req.AmbulanceID)
		if !ok {
			return notFound(KindAmbulance, req.AmbulanceID)
		}
		hospital, ok := tx.Hospital(req.HospitalID)
		if !ok {
			return notFound(KindHospital, req.HospitalID)
		}

		if req.Expected.Report != 0 && req.Expected.Report != report.Version {
			return conflict(KindReport, report.ID, "report changed since last read")
		}
		if req.Expected.Ambulance != 0 && req.Expected.Ambulance != ambulance.Version {
			return conflict(KindAmbulance, ambulance.ID, "ambulance changed since last read")
		}
		if req.Expected.Hospital != 0 && req.Expected.Hospital != hospital.Version {
			return conflict(KindHospital, hospital.ID, "hospital changed since last read")
		}

		if report.Status != ReportReported {
			return failed(ErrReportNotPending, KindReport, report.ID, "status is "+string(report.Status))
		}
		if ambulance.Status != AmbulanceAvailable {
			return failed(ErrAmbulanceUnavailable, KindAmbulance, ambulance.ID, "status is "+string(ambulance.Status))
		}
		if hospital.AvailableBeds <= 0 {
			return failed(ErrHospitalFull, KindHospital, hospital.ID, "no beds available")
		}

		expiry := e.store.Now().Add(e.holdDuration)

		report.Status = ReportEnRoute
		report.AssignedAmbulance = &req.AmbulanceID
		report.AssignedHospital = &req.HospitalID
		tx.PutReport(report)

		ambulance.Status = AmbulanceBusy
		ambulance.AssignedHospital = &req.HospitalID
		ambulance.AssignedReport = &req.ReportID
		ambulance.HoldExpiry = &expiry
		tx.PutAmbulance(ambulance)

		hospital.AvailableBeds--
		tx.PutHospital(hospital)

		snap = AssignmentSnapshot{
			Report:    mustReport(tx, report.ID),
			Ambulance: mustAmbulance(tx, ambulance.ID),
			Hospital:  mustHospital(tx, hospital.ID),
		}
		return nil
	})
	if err != nil {
		if kind := KindOf(err); kind != "" {
			ObserveAssignment(string(kind))
		}
		return AssignmentSnapshot{}, err
	}
	ObserveAssignment("ok")

	e.log.Info().
		Str("report_id", req.ReportID.String()).
		Str("ambulance_id", req.AmbulanceID.String()).
		Str("hospital_id", req.HospitalID.String()).
		Time("hold_expiry", *snap.Ambulance.HoldExpiry).
		Int("beds_remaining", snap.Hospital.AvailableBeds).
		Msg("ambulance assigned")
	return snap, nil
}

// ReleaseOptions scope and classify a release.
type ReleaseOptions struct {
	// Scope restricts the release to ambulances assigned to this hospital.
	// Role enforcement lives outside the engine; the scope parameter is how
	// the outer layer applies it.
	Scope *uuid.UUID
	// Auto marks a release triggered by the expiry monitor rather than a
	// staff member; it is logged distinctly for audit.
	Auto bool
}

// ReleaseSnapshot is the post-commit state after a release. Report is nil
// when the ambulance carried no report reference.
type ReleaseSnapshot struct {
	Ambulance Ambulance
	Hospital  Hospital
	Report    *EmergencyReport
}

// ReleaseAmbulance reverses an assignment: the ambulance becomes available
// with its hold cleared, its en_route report completes, and the hospital
// recorded on the ambulance gets the bed back, clamped at capacity. The
// ambulance-side hospital reference is used deliberately so the increment
// hits the same facility the assignment decremented even if the report's
// hospital field was edited elsewhere. A second release fails with
// AmbulanceNotBusy so stale dashboards can detect it.
func (e *Engine) ReleaseAmbulance(ctx context.Context, ambulanceID uuid.UUID, opts ReleaseOptions) (ReleaseSnapshot, error) {
	var snap ReleaseSnapshot
	_, err := e.store.Update(ctx, func(tx Tx) error {
		ambulance, ok := tx.Ambulance(ambulanceID)
		if !ok {
			return notFound(KindAmbulance, ambulanceID)
		}
		if ambulance.Status != AmbulanceBusy {
			return failed(ErrAmbulanceNotBusy, KindAmbulance, ambulance.ID, "status is "+string(ambulance.Status))
		}
		if opts.Scope != nil && (ambulance.AssignedHospital == nil || *ambulance.AssignedHospital != *opts.Scope) {
			return failed(ErrScopeMismatch, KindAmbulance, ambulance.ID, "not assigned to caller hospital")
		}

		hospitalID := ambulance.AssignedHospital
		reportID := ambulance.AssignedReport

		ambulance.Status = AmbulanceAvailable
		ambulance.AssignedHospital = nil
		ambulance.AssignedReport = nil
		ambulance.HoldExpiry = nil
		tx.PutAmbulance(ambulance)

		if reportID != nil {
			if report, ok := tx.Report(*reportID); ok && report.Status == ReportEnRoute {
				report.Status = ReportCompleted
				tx.PutReport(report)
				done := mustReport(tx, report.ID)
				snap.Report = &done
			}
		}

		if hospitalID == nil {
			return failed(ErrNotFound, KindHospital, uuid.Nil, "busy ambulance carried no hospital reference")
		}
		hospital, ok := tx.Hospital(*hospitalID)
		if !ok {
			return notFound(KindHospital, *hospitalID)
		}
		if hospital.AvailableBeds < hospital.TotalBeds {
			hospital.AvailableBeds++
		}
		tx.PutHospital(hospital)

		snap.Ambulance = mustAmbulance(tx, ambulance.ID)
		snap.Hospital = mustHospital(tx, hospital.ID)
		return nil
	})
	if err != nil {
		return ReleaseSnapshot{}, err
	}
	if opts.Auto {
		ObserveRelease("auto")
	} else {
		ObserveRelease("manual")
	}

	evt := e.log.Info().
		Str("ambulance_id", ambulanceID.String()).
		Str("hospital_id", snap.Hospital.ID.String()).
		Int("beds_available", snap.Hospital.AvailableBeds)
	if opts.Auto {
		evt.Str("event", "auto_released").Msg("ambulance hold expired, auto released")
	} else {
		evt.Str("event", "released").Msg("ambulance released")
	}
	return snap, nil
}

// UpdateBedAvailability overwrites a hospital's availability counters with
// the staff-reported ground truth. The caller supplies the version it last
// saw; a concurrent assignment or release in between fails the update with
// Conflict instead of silently undoing or double-applying a bed adjustment.
func (e *Engine) UpdateBedAvailability(ctx context.Context, hospitalID uuid.UUID, availableBeds, availableICUBeds int, expectedVersion int64) (Hospital, error) {
	var out Hospital
	_, err := e.store.Update(ctx, func(tx Tx) error {
		hospital, ok := tx.Hospital(hospitalID)
		if !ok {
			return notFound(KindHospital, hospitalID)
		}
		if expectedVersion != 0 && expectedVersion != hospital.Version {
			return conflict(KindHospital, hospital.ID, "hospital changed since last read")
		}
		if availableBeds < 0 || availableBeds > hospital.TotalBeds {
			return failed(ErrOutOfRange, KindHospital, hospital.ID, "available_beds outside 0..total_beds")
		}
		if availableICUBeds < 0 || availableICUBeds > hospital.ICUBeds {
			return failed(ErrOutOfRange, KindHospital, hospital.ID, "available_icu_beds outside 0..icu_beds")
		}
		hospital.AvailableBeds = availableBeds
		hospital.AvailableICUBeds = availableICUBeds
		tx.PutHospital(hospital)
		out = mustHospital(tx, hospital.ID)
		return nil
	})
	return out, err
}

// ReportInput carries the patient fields of a new emergency report. Shape
// validation happens at the transport boundary; the engine only pins the
// initial status and empty assignment references.
type ReportInput struct {
	PatientName    string
	PatientAge     *int
	PatientPhone   string
	PatientAddress string
	Symptoms       string
	Severity       Severity
	PickupLocation string
}

// CreateEmergencyReport inserts a new report in status reported.
func (e *Engine) CreateEmergencyReport(ctx context.Context, in ReportInput) (EmergencyReport, error) {
	report := EmergencyReport{
		ID:             uuid.New(),
		PatientName:    in.PatientName,
		PatientAge:     in.PatientAge,
		PatientPhone:   in.PatientPhone,
		PatientAddress: in.PatientAddress,
		Symptoms:       in.Symptoms,
		Severity:       in.Severity,
		PickupLocation: in.PickupLocation,
		Status:         ReportReported,
	}
	var out EmergencyReport
	_, err := e.store.Update(ctx, func(tx Tx) error {
		tx.PutReport(report)
		out = mustReport(tx, report.ID)
		return nil
	})
	if err != nil {
		return EmergencyReport{}, err
	}
	e.log.Info().Str("report_id", out.ID.String()).Str("severity", string(out.Severity)).Msg("emergency report created")
	return out, nil
}

// AmbulanceInput registers a fleet vehicle.
type AmbulanceInput struct {
	VehicleNumber   string
	CurrentLocation string
	Status          AmbulanceStatus
}

// RegisterAmbulance adds a vehicle to the fleet. Only available and
// maintenance are valid registration statuses; busy requires an assignment.
func (e *Engine) RegisterAmbulance(ctx context.Context, in AmbulanceInput) (Ambulance, error) {
	status := in.Status
	if status == "" {
		status = AmbulanceAvailable
	}
	if status != AmbulanceAvailable && status != AmbulanceMaintenance {
		return Ambulance{}, failed(ErrOutOfRange, KindAmbulance, uuid.Nil, "registration status must be available or maintenance")
	}
	ambulance := Ambulance{
		ID:              uuid.New(),
		VehicleNumber:   in.VehicleNumber,
		CurrentLocation: in.CurrentLocation,
		Status:          status,
	}
	var out Ambulance
	_, err := e.store.Update(ctx, func(tx Tx) error {
		if existing, ok := tx.AmbulanceByVehicle(in.VehicleNumber); ok {
			return failed(ErrDuplicateVehicle, KindAmbulance, existing.ID, "vehicle number already registered")
		}
		tx.PutAmbulance(ambulance)
		out = mustAmbulance(tx, ambulance.ID)
		return nil
	})
	if err != nil {
		return Ambulance{}, err
	}
	e.log.Info().Str("ambulance_id", out.ID.String()).Str("vehicle_number", out.VehicleNumber).Msg("ambulance registered")
	return out, nil
}

// SetAmbulanceStatus moves a vehicle between available and maintenance.
// Busy ambulances must be released first.
func (e *Engine) SetAmbulanceStatus(ctx context.Context, ambulanceID uuid.UUID, status AmbulanceStatus) (Ambulance, error) {
	if status != AmbulanceAvailable && status != AmbulanceMaintenance {
		return Ambulance{}, failed(ErrOutOfRange, KindAmbulance, ambulanceID, "status must be available or maintenance")
	}
	var out Ambulance
	_, err := e.store.Update(ctx, func(tx Tx) error {
		ambulance, ok := tx.Ambulance(ambulanceID)
		if !ok {
			return notFound(KindAmbulance, ambulanceID)
		}
		if ambulance.Status == AmbulanceBusy {
			return failed(ErrAmbulanceBusy, KindAmbulance, ambulance.ID, "release the assignment first")
		}
		ambulance.Status = status
		tx.PutAmbulance(ambulance)
		out = mustAmbulance(tx, ambulance.ID)
		return nil
	})
	return out, err
}

// HospitalInput provisions a facility. Availability starts at capacity.
type HospitalInput struct {
	Name      string
	Address   string
	TotalBeds int
	ICUBeds   int
}

// ProvisionHospital creates a hospital record.
func (e *Engine) ProvisionHospital(ctx context.Context, in HospitalInput) (Hospital, error) {
	if in.TotalBeds < 0 || in.ICUBeds < 0 {
		return Hospital{}, failed(ErrOutOfRange, KindHospital, uuid.Nil, "bed capacity cannot be negative")
	}
	hospital := Hospital{
		ID:               uuid.New(),
		Name:             in.Name,
		Address:          in.Address,
		TotalBeds:        in.TotalBeds,
		ICUBeds:          in.ICUBeds,
		AvailableBeds:    in.TotalBeds,
		AvailableICUBeds: in.ICUBeds,
	}
	var out Hospital
	_, err := e.store.Update(ctx, func(tx Tx) error {
		tx.PutHospital(hospital)
		out = mustHospital(tx, hospital.ID)
		return nil
	})
	if err != nil {
		return Hospital{}, err
	}
	e.log.Info().Str("hospital_id", out.ID.String()).Str("name", out.Name).Int("total_beds", out.TotalBeds).Msg("hospital provisioned")
	return out, nil
}

// ExpiredHolds returns the busy ambulances whose hold has passed according
// to the store clock.
func (e *Engine) ExpiredHolds(ctx context.Context) ([]uuid.UUID, error) {
	now := e.store.Now()
	var expired []uuid.UUID
	err := e.store.ViewState(ctx, func(v View) error {
		for _, a := range v.ListAmbulances() {
			if a.Status == AmbulanceBusy && a.HoldExpiry != nil && !a.HoldExpiry.After(now) {
				expired = append(expired, a.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// The must* helpers re-read an entity just written within the same
// transaction; the store stamped version and timestamps on Put.

func mustHospital(tx Tx, id uuid.UUID) Hospital {
	h, _ := tx.Hospital(id)
	return h
}

func mustAmbulance(tx Tx, id uuid.UUID) Ambulance {
	a, _ := tx.Ambulance(id)
	return a
}

func mustReport(tx Tx, id uuid.UUID) EmergencyReport {
	r, _ := tx.Report(id)
	return r
}

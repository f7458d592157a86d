// Package postgres provides a Postgres-backed entity store. It reuses the
// in-memory store for transaction semantics and persists every committed
// change set in a single database transaction, hydrating from the tables on
// startup.
package postgres

import (
	"context"
	"fmt"

	"med/dispatch/internal/dispatch"
	"med/dispatch/internal/store/memory"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ dispatch.Store = (*Store)(nil)

// Store persists dispatch state to Postgres. The commit hook runs inside
// the memory store's commit section, so a database failure aborts the
// in-memory commit too and the two copies cannot diverge.
type Store struct {
	*memory.Store
	pool *pgxpool.Pool
}

// NewStore hydrates from the entity tables and returns a ready store.
// Extra options (commit hooks such as the change notifier) run after the
// database persist succeeds.
func NewStore(ctx context.Context, pool *pgxpool.Pool, opts ...memory.Option) (*Store, error) {
	s := &Store{pool: pool}
	all := append([]memory.Option{memory.WithCommitHook(s.persist)}, opts...)
	s.Store = memory.NewStore(all...)
	if err := s.hydrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) persist(ctx context.Context, changes []dispatch.Change) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, change := range changes {
		switch change.Kind {
		case dispatch.KindHospital:
			err = upsertHospital(ctx, tx, *change.Hospital)
		case dispatch.KindAmbulance:
			err = upsertAmbulance(ctx, tx, *change.Ambulance)
		case dispatch.KindReport:
			err = upsertReport(ctx, tx, *change.Report)
		}
		if err != nil {
			return fmt.Errorf("upsert %s: %w", change.Kind, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func upsertHospital(ctx context.Context, tx pgx.Tx, h dispatch.Hospital) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO hospitals (id, name, address, total_beds, icu_beds, available_beds, available_icu_beds, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			total_beds = EXCLUDED.total_beds,
			icu_beds = EXCLUDED.icu_beds,
			available_beds = EXCLUDED.available_beds,
			available_icu_beds = EXCLUDED.available_icu_beds,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at`,
		h.ID, h.Name, h.Address, h.TotalBeds, h.ICUBeds, h.AvailableBeds, h.AvailableICUBeds, h.Version, h.CreatedAt, h.UpdatedAt)
	return err
}

func upsertAmbulance(ctx context.Context, tx pgx.Tx, a dispatch.Ambulance) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ambulances (id, vehicle_number, current_location, status, assigned_hospital, assigned_report, hold_expiry, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			vehicle_number = EXCLUDED.vehicle_number,
			current_location = EXCLUDED.current_location,
			status = EXCLUDED.status,
			assigned_hospital = EXCLUDED.assigned_hospital,
			assigned_report = EXCLUDED.assigned_report,
			hold_expiry = EXCLUDED.hold_expiry,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at`,
		a.ID, a.VehicleNumber, a.CurrentLocation, a.Status, a.AssignedHospital, a.AssignedReport, a.HoldExpiry, a.Version, a.CreatedAt, a.UpdatedAt)
	return err
}

func upsertReport(ctx context.Context, tx pgx.Tx, r dispatch.EmergencyReport) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO emergency_reports (id, patient_name, patient_age, patient_phone, patient_address, symptoms, severity, pickup_location, status, assigned_ambulance, assigned_hospital, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			patient_name = EXCLUDED.patient_name,
			patient_age = EXCLUDED.patient_age,
			patient_phone = EXCLUDED.patient_phone,
			patient_address = EXCLUDED.patient_address,
			symptoms = EXCLUDED.symptoms,
			severity = EXCLUDED.severity,
			pickup_location = EXCLUDED.pickup_location,
			status = EXCLUDED.status,
			assigned_ambulance = EXCLUDED.assigned_ambulance,
			assigned_hospital = EXCLUDED.assigned_hospital,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at`,
		r.ID, r.PatientName, r.PatientAge, r.PatientPhone, r.PatientAddress, r.Symptoms, r.Severity, r.PickupLocation, r.Status, r.AssignedAmbulance, r.AssignedHospital, r.Version, r.CreatedAt, r.UpdatedAt)
	return err
}

func (s *Store) hydrate(ctx context.Context) error {
	hospitals, err := s.loadHospitals(ctx)
	if err != nil {
		return fmt.Errorf("load hospitals: %w", err)
	}
	ambulances, err := s.loadAmbulances(ctx)
	if err != nil {
		return fmt.Errorf("load ambulances: %w", err)
	}
	reports, err := s.loadReports(ctx)
	if err != nil {
		return fmt.Errorf("load emergency reports: %w", err)
	}
	s.Hydrate(hospitals, ambulances, reports)
	return nil
}

func (s *Store) loadHospitals(ctx context.Context) ([]dispatch.Hospital, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, address, total_beds, icu_beds, available_beds, available_icu_beds, version, created_at, updated_at
		FROM hospitals`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dispatch.Hospital
	for rows.Next() {
		var h dispatch.Hospital
		if err := rows.Scan(&h.ID, &h.Name, &h.Address, &h.TotalBeds, &h.ICUBeds, &h.AvailableBeds, &h.AvailableICUBeds, &h.Version, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) loadAmbulances(ctx context.Context) ([]dispatch.Ambulance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, vehicle_number, current_location, status, assigned_hospital, assigned_report, hold_expiry, version, created_at, updated_at
		FROM ambulances`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dispatch.Ambulance
	for rows.Next() {
		var a dispatch.Ambulance
		if err := rows.Scan(&a.ID, &a.VehicleNumber, &a.CurrentLocation, &a.Status, &a.AssignedHospital, &a.AssignedReport, &a.HoldExpiry, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) loadReports(ctx context.Context) ([]dispatch.EmergencyReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, patient_name, patient_age, patient_phone, patient_address, symptoms, severity, pickup_location, status, assigned_ambulance, assigned_hospital, version, created_at, updated_at
		FROM emergency_reports`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dispatch.EmergencyReport
	for rows.Next() {
		var r dispatch.EmergencyReport
		if err := rows.Scan(&r.ID, &r.PatientName, &r.PatientAge, &r.PatientPhone, &r.PatientAddress, &r.Symptoms, &r.Severity, &r.PickupLocation, &r.Status, &r.AssignedAmbulance, &r.AssignedHospital, &r.Version, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

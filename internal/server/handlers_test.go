package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"med/dispatch/internal/config"
	"med/dispatch/internal/dispatch"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	cfg := config.Config{
		AppName:  "med-dispatch-api",
		Env:      "test",
		Storage:  config.StorageConfig{Driver: "memory"},
		Dispatch: config.DispatchConfig{HoldDuration: 30 * time.Minute, MonitorInterval: time.Minute, EventBuffer: 16},
	}
	srv, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv, srv.routes()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

func TestHealthEndpoint(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	decode(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Env)
}

func TestDispatchLifecycleOverHTTP(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/hospitals", map[string]interface{}{
		"name": "General Hospital", "address": "1 Main St", "total_beds": 3, "icu_beds": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var hospital dispatch.Hospital
	decode(t, rec, &hospital)
	assert.Equal(t, 3, hospital.AvailableBeds)

	rec = doJSON(t, h, http.MethodPost, "/v1/ambulances", map[string]interface{}{
		"vehicle_number": "AMB-101", "current_location": "Station 4",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ambulance dispatch.Ambulance
	decode(t, rec, &ambulance)
	assert.Equal(t, dispatch.AmbulanceAvailable, ambulance.Status)

	rec = doJSON(t, h, http.MethodPost, "/v1/reports", map[string]interface{}{
		"patient_name": "Jonas Weiss", "symptoms": "chest pain",
		"severity": "critical", "pickup_location": "12 Oak Ave",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var report dispatch.EmergencyReport
	decode(t, rec, &report)
	assert.Equal(t, dispatch.ReportReported, report.Status)

	rec = doJSON(t, h, http.MethodPost, "/v1/assignments", map[string]interface{}{
		"report_id": report.ID.String(), "ambulance_id": ambulance.ID.String(), "hospital_id": hospital.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var assigned AssignmentResponse
	decode(t, rec, &assigned)
	assert.Equal(t, dispatch.ReportEnRoute, assigned.Report.Status)
	assert.Equal(t, dispatch.AmbulanceBusy, assigned.Ambulance.Status)
	assert.Equal(t, 2, assigned.Hospital.AvailableBeds)

	rec = doJSON(t, h, http.MethodGet, "/v1/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sync SyncResponse
	decode(t, rec, &sync)
	assert.Equal(t, 1, sync.Counts.ActiveReports)
	assert.Equal(t, 0, sync.Counts.PendingReports)
	assert.Equal(t, 0, sync.Counts.AvailableAmbulances)
	assert.Equal(t, 2, sync.Counts.AvailableBeds)

	rec = doJSON(t, h, http.MethodGet, "/v1/hospitals/"+hospital.ID.String()+"/incoming", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var incoming []dispatch.IncomingAmbulance
	decode(t, rec, &incoming)
	require.Len(t, incoming, 1)
	assert.Equal(t, "AMB-101", incoming[0].VehicleNumber)

	rec = doJSON(t, h, http.MethodPost, "/v1/ambulances/"+ambulance.ID.String()+"/release", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var released ReleaseResponse
	decode(t, rec, &released)
	assert.Equal(t, dispatch.AmbulanceAvailable, released.Ambulance.Status)
	require.NotNil(t, released.Report)
	assert.Equal(t, dispatch.ReportCompleted, released.Report.Status)
	assert.Equal(t, 3, released.Hospital.AvailableBeds)

	// Second release reports the conflict.
	rec = doJSON(t, h, http.MethodPost, "/v1/ambulances/"+ambulance.ID.String()+"/release", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateReportValidation(t *testing.T) {
	_, h := newTestServer(t)

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing name", map[string]interface{}{"symptoms": "x", "severity": "low", "pickup_location": "y"}},
		{"bad severity", map[string]interface{}{"patient_name": "A", "symptoms": "x", "severity": "urgent", "pickup_location": "y"}},
		{"bad age", map[string]interface{}{"patient_name": "A", "patient_age": 200, "symptoms": "x", "severity": "low", "pickup_location": "y"}},
		{"unknown field", map[string]interface{}{"patient_name": "A", "symptoms": "x", "severity": "low", "pickup_location": "y", "extra": true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/v1/reports", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRegisterAmbulanceValidation(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/ambulances", map[string]interface{}{
		"vehicle_number": "amb 101",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/ambulances", map[string]interface{}{
		"vehicle_number": "AMB-102",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/ambulances", map[string]interface{}{
		"vehicle_number": "AMB-102",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAssignmentErrorStatuses(t *testing.T) {
	srv, h := newTestServer(t)
	ctx := context.Background()

	hospital, err := srv.engine.ProvisionHospital(ctx, dispatch.HospitalInput{Name: "Full House", TotalBeds: 0})
	require.NoError(t, err)
	ambulance, err := srv.engine.RegisterAmbulance(ctx, dispatch.AmbulanceInput{VehicleNumber: "AMB-1"})
	require.NoError(t, err)
	report, err := srv.engine.CreateEmergencyReport(ctx, dispatch.ReportInput{
		PatientName: "A", Symptoms: "s", Severity: dispatch.SeverityLow, PickupLocation: "p",
	})
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/v1/assignments", map[string]interface{}{
		"report_id": report.ID.String(), "ambulance_id": ambulance.ID.String(), "hospital_id": hospital.ID.String(),
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/assignments", map[string]interface{}{
		"report_id": report.ID.String(), "ambulance_id": ambulance.ID.String(), "hospital_id": "b2f5e6a0-0000-0000-0000-000000000000",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownEntities(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/v1/reports/6a6e2f86-16e7-4e61-9e3f-9f43d1a8a111", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/reports/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateBedsConflict(t *testing.T) {
	srv, h := newTestServer(t)

	hospital, err := srv.engine.ProvisionHospital(context.Background(), dispatch.HospitalInput{Name: "General", TotalBeds: 4, ICUBeds: 2})
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPatch, "/v1/hospitals/"+hospital.ID.String()+"/beds", map[string]interface{}{
		"available_beds": 2, "available_icu_beds": 1, "expected_version": hospital.Version,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Replaying the same expected version loses.
	rec = doJSON(t, h, http.MethodPatch, "/v1/hospitals/"+hospital.ID.String()+"/beds", map[string]interface{}{
		"available_beds": 4, "available_icu_beds": 2, "expected_version": hospital.Version,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

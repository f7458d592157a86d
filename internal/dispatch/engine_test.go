package dispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"med/dispatch/internal/dispatch"
	"med/dispatch/internal/store/memory"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T, opts ...dispatch.EngineOption) (*dispatch.Engine, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.NewStore(memory.WithClock(clock.Now))
	return dispatch.NewEngine(store, zerolog.Nop(), opts...), clock
}

func seedHospital(t *testing.T, e *dispatch.Engine, beds int) dispatch.Hospital {
	t.Helper()
	h, err := e.ProvisionHospital(context.Background(), dispatch.HospitalInput{
		Name:      "General Hospital",
		Address:   "1 Main St",
		TotalBeds: beds,
		ICUBeds:   2,
	})
	require.NoError(t, err)
	return h
}

func seedAmbulance(t *testing.T, e *dispatch.Engine, vehicle string) dispatch.Ambulance {
	t.Helper()
	a, err := e.RegisterAmbulance(context.Background(), dispatch.AmbulanceInput{
		VehicleNumber:   vehicle,
		CurrentLocation: "Station 4",
	})
	require.NoError(t, err)
	return a
}

func seedReport(t *testing.T, e *dispatch.Engine) dispatch.EmergencyReport {
	t.Helper()
	r, err := e.CreateEmergencyReport(context.Background(), dispatch.ReportInput{
		PatientName:    "Jonas Weiss",
		Symptoms:       "chest pain",
		Severity:       dispatch.SeverityCritical,
		PickupLocation: "12 Oak Ave",
	})
	require.NoError(t, err)
	return r
}

func assign(t *testing.T, e *dispatch.Engine, report, ambulance, hospital uuid.UUID) dispatch.AssignmentSnapshot {
	t.Helper()
	snap, err := e.AssignAmbulance(context.Background(), dispatch.AssignRequest{
		ReportID:    report,
		AmbulanceID: ambulance,
		HospitalID:  hospital,
	})
	require.NoError(t, err)
	return snap
}

func TestAssignAmbulance(t *testing.T) {
	e, clock := newTestEngine(t)
	h := seedHospital(t, e, 5)
	a := seedAmbulance(t, e, "AMB-101")
	r := seedReport(t, e)

	snap := assign(t, e, r.ID, a.ID, h.ID)

	assert.Equal(t, dispatch.ReportEnRoute, snap.Report.Status)
	require.NotNil(t, snap.Report.AssignedAmbulance)
	assert.Equal(t, a.ID, *snap.Report.AssignedAmbulance)
	require.NotNil(t, snap.Report.AssignedHospital)
	assert.Equal(t, h.ID, *snap.Report.AssignedHospital)

	assert.Equal(t, dispatch.AmbulanceBusy, snap.Ambulance.Status)
	require.NotNil(t, snap.Ambulance.AssignedHospital)
	assert.Equal(t, h.ID, *snap.Ambulance.AssignedHospital)
	require.NotNil(t, snap.Ambulance.AssignedReport)
	assert.Equal(t, r.ID, *snap.Ambulance.AssignedReport)
	require.NotNil(t, snap.Ambulance.HoldExpiry)
	assert.Equal(t, clock.Now().Add(dispatch.DefaultHoldDuration), *snap.Ambulance.HoldExpiry)

	assert.Equal(t, 4, snap.Hospital.AvailableBeds)
	assert.Greater(t, snap.Report.Version, r.Version)
	assert.Greater(t, snap.Ambulance.Version, a.Version)
	assert.Greater(t, snap.Hospital.Version, h.Version)
}

func TestAssignReportNotPending(t *testing.T) {
	e, _ := newTestEngine(t)
	h := seedHospital(t, e, 5)
	a1 := seedAmbulance(t, e, "AMB-101")
	a2 := seedAmbulance(t, e, "AMB-102")
	r := seedReport(t, e)

	assign(t, e, r.ID, a1.ID, h.ID)

	_, err := e.AssignAmbulance(context.Background(), dispatch.AssignRequest{
		ReportID: r.ID, AmbulanceID: a2.ID, HospitalID: h.ID,
	})
	assert.Equal(t, dispatch.ErrReportNotPending, dispatch.KindOf(err))
}

func TestAssignAmbulanceUnavailable(t *testing.T) {
	e, _ := newTestEngine(t)
	h := seedHospital(t, e, 5)
	a := seedAmbulance(t, e, "AMB-101")
	r := seedReport(t, e)

	_, err := e.SetAmbulanceStatus(context.Background(), a.ID, dispatch.AmbulanceMaintenance)
	require.NoError(t, err)

	_, err = e.AssignAmbulance(context.Background(), dispatch.AssignRequest{
		ReportID: r.ID, AmbulanceID: a.ID, HospitalID: h.ID,
	})
	assert.Equal(t, dispatch.ErrAmbulanceUnavailable, dispatch.KindOf(err))
}

func TestAssignHospitalFullLeavesEverythingUntouched(t *testing.T) {
	e, _ := newTestEngine(t)
	h := seedHospital(t, e, 0)
	a := seedAmbulance(t, e, "AMB-101")
	r := seedReport(t, e)

	_, err := e.AssignAmbulance(context.Background(), dispatch.AssignRequest{
		ReportID: r.ID, AmbulanceID: a.ID, HospitalID: h.ID,
	})
	assert.Equal(t, dispatch.ErrHospitalFull, dispatch.KindOf(err))

	gotR, err := e.Report(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, dispatch.ReportReported, gotR.Status)
	assert.Equal(t, r.Version, gotR.Version)

	gotA, err := e.Ambulance(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, dispatch.AmbulanceAvailable, gotA.Status)
	assert.Nil(t, gotA.HoldExpiry)
	assert.Equal(t, a.Version, gotA.Version)
}

func TestAssignUnknownEntities(t *testing.T) {
	e, _ := newTestEngine(t)
	h := seedHospital(t, e, 5)
	a := seedAmbulance(t, e, "AMB-101")
	r := seedReport(t, e)

	cases := []struct {
		name string
		req  dispatch.AssignRequest
	}{
		{"report", dispatch.AssignRequest{ReportID: uuid.New(), AmbulanceID: a.ID, HospitalID: h.ID}},
		{"ambulance", dispatch.AssignRequest{ReportID: r.ID, AmbulanceID: uuid.New(), HospitalID: h.ID}},
		{"hospital", dispatch.AssignRequest{ReportID: r.ID, AmbulanceID: a.ID, HospitalID: uuid.New()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.AssignAmbulance(context.Background(), tc.req)
			assert.Equal(t, dispatch.ErrNotFound, dispatch.KindOf(err))
		})
	}
}

func TestAssignStaleVersionConflict(t *testing.T) {
	e, _ := newTestEngine(t)
	h := seedHospital(t, e, 5)
	a := seedAmbulance(t, e, "AMB-101")
	r := seedReport(t, e)

	// Bump the hospital version behind the dispatcher's back.
	_, err := e.UpdateBedAvailability(context.Background(), h.ID, 3, 2, h.Version)
	require.NoError(t, err)

	_, err = e.AssignAmbulance(context.Background(), dispatch.AssignRequest{
		ReportID:    r.ID,
		AmbulanceID: a.ID,
		HospitalID:  h.ID,
		Expected:    dispatch.ExpectedVersions{Hospital: h.Version},
	})
	assert.Equal(t, dispatch.ErrConflict, dispatch.KindOf(err))

	// Zero skips the check.
	_, err = e.AssignAmbulance(context.Background(), dispatch.AssignRequest{
		ReportID: r.ID, AmbulanceID: a.ID, HospitalID: h.ID,
	})
	assert.NoError(t, err)
}

func TestAssignLastBedRace(t *testing.T) {
	e, _ := newTestEngine(t)
	h := seedHospital(t, e, 1)
	a1 := seedAmbulance(t, e, "AMB-101")
	a2 := seedAmbulance(t, e, "AMB-102")
	r1 := seedReport(t, e)
	r2 := seedReport(t, e)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	reqs := []dispatch.AssignRequest{
		{ReportID: r1.ID, AmbulanceID: a1.ID, HospitalID: h.ID},
		{ReportID: r2.ID, AmbulanceID: a2.ID, HospitalID: h.ID},
	}
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req dispatch.AssignRequest) {
			defer wg.Done()
			_, errs[i] = e.AssignAmbulance(context.Background(), req)
		}(i, req)
	}
	wg.Wait()

	var full, ok int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case dispatch.IsKind(err, dispatch.ErrHospitalFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, full)

	got, err := e.Hospital(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableBeds)
}

func TestReleaseRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	h := seedHospital(t, e, 5)
	a := seedAmbulance(t, e, "AMB-101")
	r := seedReport(t, e)
	assign(t, e, r.ID, a.ID, h.ID)

	snap, err := e.ReleaseAmbulance(context.Background(), a.ID, dispatch.ReleaseOptions{})
	require.NoError(t, err)

	assert.Equal(t, dispatch.AmbulanceAvailable, snap.Ambulance.Status)
	assert.Nil(t, snap.Ambulance.AssignedHospital)
	assert.Nil(t, snap.Ambulance.AssignedReport)
	assert.Nil(t, snap.Ambulance.HoldExpiry)

	require.NotNil(t, snap.Report)
	assert.Equal(t, dispatch.ReportCompleted, snap.Report.Status)
	assert.Equal(t, 5, snap.Hospital.AvailableBeds)
}

func TestDoubleRelease(t *testing.T) {
	e, _ := newTestEngine(t)
	h := seedHospital(t, e, 5)
	a := seedAmbulance(t, e, "AMB-101")
	r := seedReport(t, e)
	assign(t, e, r.ID, a.ID, h.ID)

	_, err := e.ReleaseAmbulance(context.Background(), a.ID, dispatch.ReleaseOptions{})
	require.NoError(t, err)

	_, err = e.ReleaseAmbulance(context.Background(), a.ID, dispatch.ReleaseOptions{})
	assert.Equal(t, dispatch.ErrAmbulanceNotBusy, dispatch.KindOf(err))

	got, err := e.Hospital(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.AvailableBeds)
}

func TestReleaseClampsBedCountAtCapacity(t *testing.T) {
	e, _ := newTestEngine(t)
	h := seedHospital(t, e, 2)
	a := seedAmbulance(t, e, "AMB-101")
	r := seedReport(t, e)
	assign(t, e, r.ID, a.ID, h.ID)

	// Staff report the bed came back early; the later release must not
	// push the count past capacity.
	current, err := e.Hospital(context.Background(), h.ID)
	require.NoError(t, err)
	_, err = e.UpdateBedAvailability(context.Background(), h.ID, 2, 2, current.Version)
	require.NoError(t, err)

	snap, err := e.ReleaseAmbulance(context.Background(), a.ID, dispatch.ReleaseOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Hospital.AvailableBeds)
}

func TestReleaseScope(t *testing.T) {
	e, _ := newTestEngine(t)
	h := seedHospital(t, e, 5)
	other := seedHospital(t, e, 5)
	a := seedAmbulance(t, e, "AMB-101")
	r := seedReport(t, e)
	assign(t, e, r.ID, a.ID, h.ID)

	_, err := e.ReleaseAmbulance(context.Background(), a.ID, dispatch.ReleaseOptions{Scope: &other.ID})
	assert.Equal(t, dispatch.ErrScopeMismatch, dispatch.KindOf(err))

	_, err = e.ReleaseAmbulance(context.Background(), a.ID, dispatch.ReleaseOptions{Scope: &h.ID})
	assert.NoError(t, err)
}

func TestUpdateBedAvailability(t *testing.T) {
	e, _ := newTestEngine(t)
	h := seedHospital(t, e, 5)

	got, err := e.UpdateBedAvailability(context.Background(), h.ID, 3, 1, h.Version)
	require.NoError(t, err)
	assert.Equal(t, 3, got.AvailableBeds)
	assert.Equal(t, 1, got.AvailableICUBeds)

	// Stale version loses.
	_, err = e.UpdateBedAvailability(context.Background(), h.ID, 5, 2, h.Version)
	assert.Equal(t, dispatch.ErrConflict, dispatch.KindOf(err))

	// Out of bounds.
	_, err = e.UpdateBedAvailability(context.Background(), h.ID, 6, 1, got.Version)
	assert.Equal(t, dispatch.ErrOutOfRange, dispatch.KindOf(err))
	_, err = e.UpdateBedAvailability(context.Background(), h.ID, -1, 1, got.Version)
	assert.Equal(t, dispatch.ErrOutOfRange, dispatch.KindOf(err))
}

func TestRegisterAmbulanceDuplicateVehicle(t *testing.T) {
	e, _ := newTestEngine(t)
	seedAmbulance(t, e, "AMB-101")

	_, err := e.RegisterAmbulance(context.Background(), dispatch.AmbulanceInput{VehicleNumber: "AMB-101"})
	assert.Equal(t, dispatch.ErrDuplicateVehicle, dispatch.KindOf(err))
}

func TestSetAmbulanceStatusWhileBusy(t *testing.T) {
	e, _ := newTestEngine(t)
	h := seedHospital(t, e, 5)
	a := seedAmbulance(t, e, "AMB-101")
	r := seedReport(t, e)
	assign(t, e, r.ID, a.ID, h.ID)

	_, err := e.SetAmbulanceStatus(context.Background(), a.ID, dispatch.AmbulanceMaintenance)
	assert.Equal(t, dispatch.ErrAmbulanceBusy, dispatch.KindOf(err))
}

func TestExpiredHolds(t *testing.T) {
	e, clock := newTestEngine(t, dispatch.WithHoldDuration(10*time.Minute))
	h := seedHospital(t, e, 5)
	a := seedAmbulance(t, e, "AMB-101")
	r := seedReport(t, e)
	assign(t, e, r.ID, a.ID, h.ID)

	ids, err := e.ExpiredHolds(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	clock.Advance(10 * time.Minute)

	ids, err = e.ExpiredHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID}, ids)
}

func TestQueryViews(t *testing.T) {
	e, _ := newTestEngine(t)
	h := seedHospital(t, e, 1)
	a1 := seedAmbulance(t, e, "AMB-101")
	seedAmbulance(t, e, "AMB-102")
	r1 := seedReport(t, e)
	r2 := seedReport(t, e)
	assign(t, e, r1.ID, a1.ID, h.ID)

	ctx := context.Background()

	available, err := e.AvailableAmbulances(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "AMB-102", available[0].VehicleNumber)

	hospitals, err := e.AvailableHospitals(ctx)
	require.NoError(t, err)
	assert.Empty(t, hospitals)

	pending, err := e.PendingReports(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, r2.ID, pending[0].ID)

	active, err := e.ActiveReports(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, r1.ID, active[0].ID)

	incoming, err := e.IncomingAmbulances(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, a1.ID, incoming[0].AmbulanceID)
	assert.Equal(t, "AMB-101", incoming[0].VehicleNumber)
	assert.Equal(t, r1.ID, incoming[0].ReportID)

	_, err = e.IncomingAmbulances(ctx, uuid.New())
	assert.Equal(t, dispatch.ErrNotFound, dispatch.KindOf(err))
}

package dispatch_test

import (
	"context"
	"testing"
	"time"

	"med/dispatch/internal/dispatch"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorReleasesExpiredHolds(t *testing.T) {
	e, clock := newTestEngine(t, dispatch.WithHoldDuration(5*time.Minute))
	h := seedHospital(t, e, 3)
	a := seedAmbulance(t, e, "AMB-201")
	r := seedReport(t, e)
	assign(t, e, r.ID, a.ID, h.ID)

	clock.Advance(6 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	monitor := dispatch.StartExpiryMonitor(ctx, e, zerolog.Nop(), 5*time.Millisecond)

	require.Eventually(t, func() bool {
		got, err := e.Ambulance(context.Background(), a.ID)
		return err == nil && got.Status == dispatch.AmbulanceAvailable
	}, 2*time.Second, 5*time.Millisecond)

	got, err := e.Report(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, dispatch.ReportCompleted, got.Status)

	gotH, err := e.Hospital(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, gotH.AvailableBeds)

	cancel()
	select {
	case <-monitor.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
}

func TestMonitorLeavesLiveHoldsAlone(t *testing.T) {
	e, _ := newTestEngine(t)
	h := seedHospital(t, e, 3)
	a := seedAmbulance(t, e, "AMB-201")
	r := seedReport(t, e)
	assign(t, e, r.ID, a.ID, h.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatch.StartExpiryMonitor(ctx, e, zerolog.Nop(), 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)

	got, err := e.Ambulance(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, dispatch.AmbulanceBusy, got.Status)
}

package server

import (
	"net/http"

	"med/dispatch/internal/dispatch"
)

// handleSync godoc
// @Title Sync snapshot
// @Description Returns the consolidated dispatch state for dashboard mount: every entity list plus derived counts, read under one consistent view.
// @Resource Common
// @Produce json
// @Success 200 {object} SyncResponse
// @Failure 500 {object} APIError
// @Route /v1/sync [get]
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.SnapshotAll(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read state", err.Error())
		return
	}

	resp := SyncResponse{
		Hospitals:  snap.Hospitals,
		Ambulances: snap.Ambulances,
		Reports:    snap.Reports,
	}
	for _, h := range snap.Hospitals {
		resp.Counts.AvailableBeds += h.AvailableBeds
	}
	for _, a := range snap.Ambulances {
		if a.Status == dispatch.AmbulanceAvailable {
			resp.Counts.AvailableAmbulances++
		}
	}
	for _, rep := range snap.Reports {
		switch rep.Status {
		case dispatch.ReportReported:
			resp.Counts.PendingReports++
		case dispatch.ReportEnRoute:
			resp.Counts.ActiveReports++
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

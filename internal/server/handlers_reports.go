package server

import (
	"net/http"

	"med/dispatch/internal/dispatch"
)

type CreateReportRequest struct {
	PatientName    string `json:"patient_name" validate:"required,max=100"`
	PatientAge     *int   `json:"patient_age" validate:"omitempty,min=0,max=150"`
	PatientPhone   string `json:"patient_phone" validate:"omitempty,max=20"`
	PatientAddress string `json:"patient_address" validate:"omitempty,max=500"`
	Symptoms       string `json:"symptoms" validate:"required,max=2000"`
	Severity       string `json:"severity" validate:"required,oneof=critical high medium low"`
	PickupLocation string `json:"pickup_location" validate:"required,max=500"`
}

// handleCreateReport godoc
// @Title Create emergency report
// @Description Registers a new emergency report in status reported.
// @Resource Reports
// @Accept json
// @Produce json
// @Param request body CreateReportRequest true "Report payload"
// @Success 201 {object} dispatch.EmergencyReport
// @Failure 400 {object} APIError
// @Route /v1/reports [post]
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req CreateReportRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	report, err := s.engine.CreateEmergencyReport(r.Context(), dispatch.ReportInput{
		PatientName:    req.PatientName,
		PatientAge:     req.PatientAge,
		PatientPhone:   req.PatientPhone,
		PatientAddress: req.PatientAddress,
		Symptoms:       req.Symptoms,
		Severity:       dispatch.Severity(req.Severity),
		PickupLocation: req.PickupLocation,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, report)
}

// handleListReports godoc
// @Title List emergency reports
// @Description Returns all reports, newest first.
// @Resource Reports
// @Produce json
// @Success 200 {array} dispatch.EmergencyReport
// @Route /v1/reports [get]
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.SnapshotAll(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list reports", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, snap.Reports)
}

// handleListPendingReports godoc
// @Title List pending reports
// @Description Returns reports awaiting an ambulance assignment.
// @Resource Reports
// @Produce json
// @Success 200 {array} dispatch.EmergencyReport
// @Route /v1/reports/pending [get]
func (s *Server) handleListPendingReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.engine.PendingReports(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list pending reports", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, reports)
}

// handleListActiveReports godoc
// @Title List active reports
// @Description Returns reports with an ambulance en route.
// @Resource Reports
// @Produce json
// @Success 200 {array} dispatch.EmergencyReport
// @Route /v1/reports/active [get]
func (s *Server) handleListActiveReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.engine.ActiveReports(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list active reports", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, reports)
}

// handleGetReport godoc
// @Title Get emergency report
// @Description Returns a single report by id.
// @Resource Reports
// @Produce json
// @Param reportID path string true "Report ID"
// @Success 200 {object} dispatch.EmergencyReport
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/reports/{reportID} [get]
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	reportID, err := s.parseUUIDParam(r, "reportID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidReportID, err.Error())
		return
	}

	report, err := s.engine.Report(r.Context(), reportID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

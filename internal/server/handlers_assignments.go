package server

import (
	"net/http"

	"med/dispatch/internal/dispatch"

	"github.com/google/uuid"
)

type CreateAssignmentRequest struct {
	ReportID    string `json:"report_id" validate:"required,uuid4"`
	AmbulanceID string `json:"ambulance_id" validate:"required,uuid4"`
	HospitalID  string `json:"hospital_id" validate:"required,uuid4"`
	// Versions read by the dispatcher before deciding. Zero skips the check
	// for that entity.
	ExpectedReportVersion    int64 `json:"expected_report_version" validate:"min=0"`
	ExpectedAmbulanceVersion int64 `json:"expected_ambulance_version" validate:"min=0"`
	ExpectedHospitalVersion  int64 `json:"expected_hospital_version" validate:"min=0"`
}

// handleCreateAssignment godoc
// @Title Assign ambulance
// @Description Atomically links a pending report, an available ambulance and a hospital with a free bed.
// @Resource Assignments
// @Accept json
// @Produce json
// @Param request body CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} AssignmentResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/assignments [post]
func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req CreateAssignmentRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	reportID, err := uuid.Parse(req.ReportID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidReportID, err.Error())
		return
	}
	ambulanceID, err := uuid.Parse(req.AmbulanceID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidAmbulanceID, err.Error())
		return
	}
	hospitalID, err := uuid.Parse(req.HospitalID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidHospitalID, err.Error())
		return
	}

	snap, err := s.engine.AssignAmbulance(r.Context(), dispatch.AssignRequest{
		ReportID:    reportID,
		AmbulanceID: ambulanceID,
		HospitalID:  hospitalID,
		Expected: dispatch.ExpectedVersions{
			Report:    req.ExpectedReportVersion,
			Ambulance: req.ExpectedAmbulanceVersion,
			Hospital:  req.ExpectedHospitalVersion,
		},
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, AssignmentResponse{
		Report:    snap.Report,
		Ambulance: snap.Ambulance,
		Hospital:  snap.Hospital,
	})
}

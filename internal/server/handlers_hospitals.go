package server

import (
	"net/http"

	"med/dispatch/internal/dispatch"
)

type ProvisionHospitalRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	Address   string `json:"address" validate:"omitempty,max=500"`
	TotalBeds int    `json:"total_beds" validate:"min=0"`
	ICUBeds   int    `json:"icu_beds" validate:"min=0"`
}

type UpdateBedsRequest struct {
	AvailableBeds    int   `json:"available_beds" validate:"min=0"`
	AvailableICUBeds int   `json:"available_icu_beds" validate:"min=0"`
	ExpectedVersion  int64 `json:"expected_version" validate:"required,min=1"`
}

// handleProvisionHospital godoc
// @Title Provision hospital
// @Description Creates a hospital with availability counters at capacity.
// @Resource Hospitals
// @Accept json
// @Produce json
// @Param request body ProvisionHospitalRequest true "Hospital payload"
// @Success 201 {object} dispatch.Hospital
// @Failure 400 {object} APIError
// @Route /v1/hospitals [post]
func (s *Server) handleProvisionHospital(w http.ResponseWriter, r *http.Request) {
	var req ProvisionHospitalRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	hospital, err := s.engine.ProvisionHospital(r.Context(), dispatch.HospitalInput{
		Name:      req.Name,
		Address:   req.Address,
		TotalBeds: req.TotalBeds,
		ICUBeds:   req.ICUBeds,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, hospital)
}

// handleListHospitals godoc
// @Title List hospitals
// @Description Returns all hospitals ordered by name.
// @Resource Hospitals
// @Produce json
// @Success 200 {array} dispatch.Hospital
// @Route /v1/hospitals [get]
func (s *Server) handleListHospitals(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.SnapshotAll(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list hospitals", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, snap.Hospitals)
}

// handleListAvailableHospitals godoc
// @Title List hospitals with free beds
// @Description Returns hospitals with at least one available bed.
// @Resource Hospitals
// @Produce json
// @Success 200 {array} dispatch.Hospital
// @Route /v1/hospitals/available [get]
func (s *Server) handleListAvailableHospitals(w http.ResponseWriter, r *http.Request) {
	hospitals, err := s.engine.AvailableHospitals(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list available hospitals", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, hospitals)
}

// handleGetHospital godoc
// @Title Get hospital
// @Description Returns a single hospital by id.
// @Resource Hospitals
// @Produce json
// @Param hospitalID path string true "Hospital ID"
// @Success 200 {object} dispatch.Hospital
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/hospitals/{hospitalID} [get]
func (s *Server) handleGetHospital(w http.ResponseWriter, r *http.Request) {
	hospitalID, err := s.parseUUIDParam(r, "hospitalID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidHospitalID, err.Error())
		return
	}

	hospital, err := s.engine.Hospital(r.Context(), hospitalID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, hospital)
}

// handleUpdateBeds godoc
// @Title Update bed availability
// @Description Overwrites the availability counters with a staff-reported ground truth. The expected version guards against racing an assignment.
// @Resource Hospitals
// @Accept json
// @Produce json
// @Param hospitalID path string true "Hospital ID"
// @Param request body UpdateBedsRequest true "Bed counts and expected version"
// @Success 200 {object} dispatch.Hospital
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/hospitals/{hospitalID}/beds [patch]
func (s *Server) handleUpdateBeds(w http.ResponseWriter, r *http.Request) {
	hospitalID, err := s.parseUUIDParam(r, "hospitalID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidHospitalID, err.Error())
		return
	}

	var req UpdateBedsRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	if scope := s.hospitalScope(r); scope != nil && *scope != hospitalID {
		s.writeError(w, http.StatusForbidden, "hospital outside caller scope", nil)
		return
	}

	hospital, err := s.engine.UpdateBedAvailability(r.Context(), hospitalID, req.AvailableBeds, req.AvailableICUBeds, req.ExpectedVersion)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, hospital)
}

// handleIncomingAmbulances godoc
// @Title List incoming ambulances
// @Description Returns vehicles currently en route to this hospital with their patients.
// @Resource Hospitals
// @Produce json
// @Param hospitalID path string true "Hospital ID"
// @Success 200 {array} dispatch.IncomingAmbulance
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/hospitals/{hospitalID}/incoming [get]
func (s *Server) handleIncomingAmbulances(w http.ResponseWriter, r *http.Request) {
	hospitalID, err := s.parseUUIDParam(r, "hospitalID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidHospitalID, err.Error())
		return
	}

	incoming, err := s.engine.IncomingAmbulances(r.Context(), hospitalID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if incoming == nil {
		incoming = []dispatch.IncomingAmbulance{}
	}
	s.writeJSON(w, http.StatusOK, incoming)
}

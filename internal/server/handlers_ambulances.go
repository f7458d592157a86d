package server

import (
	"net/http"

	"med/dispatch/internal/dispatch"
)

type RegisterAmbulanceRequest struct {
	VehicleNumber   string `json:"vehicle_number" validate:"required,max=50,vehicle_number"`
	CurrentLocation string `json:"current_location" validate:"omitempty,max=200"`
	Status          string `json:"status" validate:"omitempty,oneof=available maintenance"`
}

type SetAmbulanceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=available maintenance"`
}

// handleRegisterAmbulance godoc
// @Title Register ambulance
// @Description Adds a vehicle to the fleet.
// @Resource Ambulances
// @Accept json
// @Produce json
// @Param request body RegisterAmbulanceRequest true "Ambulance payload"
// @Success 201 {object} dispatch.Ambulance
// @Failure 400 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/ambulances [post]
func (s *Server) handleRegisterAmbulance(w http.ResponseWriter, r *http.Request) {
	var req RegisterAmbulanceRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	ambulance, err := s.engine.RegisterAmbulance(r.Context(), dispatch.AmbulanceInput{
		VehicleNumber:   req.VehicleNumber,
		CurrentLocation: req.CurrentLocation,
		Status:          dispatch.AmbulanceStatus(req.Status),
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, ambulance)
}

// handleListAmbulances godoc
// @Title List ambulances
// @Description Returns the whole fleet ordered by vehicle number.
// @Resource Ambulances
// @Produce json
// @Success 200 {array} dispatch.Ambulance
// @Route /v1/ambulances [get]
func (s *Server) handleListAmbulances(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.SnapshotAll(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list ambulances", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, snap.Ambulances)
}

// handleListAvailableAmbulances godoc
// @Title List available ambulances
// @Description Returns ambulances eligible for assignment.
// @Resource Ambulances
// @Produce json
// @Success 200 {array} dispatch.Ambulance
// @Route /v1/ambulances/available [get]
func (s *Server) handleListAvailableAmbulances(w http.ResponseWriter, r *http.Request) {
	ambulances, err := s.engine.AvailableAmbulances(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list available ambulances", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, ambulances)
}

// handleGetAmbulance godoc
// @Title Get ambulance
// @Description Returns a single ambulance by id.
// @Resource Ambulances
// @Produce json
// @Param ambulanceID path string true "Ambulance ID"
// @Success 200 {object} dispatch.Ambulance
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/ambulances/{ambulanceID} [get]
func (s *Server) handleGetAmbulance(w http.ResponseWriter, r *http.Request) {
	ambulanceID, err := s.parseUUIDParam(r, "ambulanceID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidAmbulanceID, err.Error())
		return
	}

	ambulance, err := s.engine.Ambulance(r.Context(), ambulanceID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ambulance)
}

// handleSetAmbulanceStatus godoc
// @Title Set ambulance status
// @Description Moves a vehicle between available and maintenance. Busy vehicles must be released first.
// @Resource Ambulances
// @Accept json
// @Produce json
// @Param ambulanceID path string true "Ambulance ID"
// @Param request body SetAmbulanceStatusRequest true "Status payload"
// @Success 200 {object} dispatch.Ambulance
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/ambulances/{ambulanceID}/status [patch]
func (s *Server) handleSetAmbulanceStatus(w http.ResponseWriter, r *http.Request) {
	ambulanceID, err := s.parseUUIDParam(r, "ambulanceID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidAmbulanceID, err.Error())
		return
	}

	var req SetAmbulanceStatusRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	ambulance, err := s.engine.SetAmbulanceStatus(r.Context(), ambulanceID, dispatch.AmbulanceStatus(req.Status))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ambulance)
}

// handleReleaseAmbulance godoc
// @Title Release ambulance
// @Description Completes an assignment: the ambulance becomes available, its report completes and the bed returns.
// @Resource Ambulances
// @Produce json
// @Param ambulanceID path string true "Ambulance ID"
// @Success 200 {object} ReleaseResponse
// @Failure 400 {object} APIError
// @Failure 403 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/ambulances/{ambulanceID}/release [post]
func (s *Server) handleReleaseAmbulance(w http.ResponseWriter, r *http.Request) {
	ambulanceID, err := s.parseUUIDParam(r, "ambulanceID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidAmbulanceID, err.Error())
		return
	}

	opts := dispatch.ReleaseOptions{Scope: s.hospitalScope(r)}

	snap, err := s.engine.ReleaseAmbulance(r.Context(), ambulanceID, opts)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ReleaseResponse{
		Ambulance: snap.Ambulance,
		Hospital:  snap.Hospital,
		Report:    snap.Report,
	})
}

package server

import "med/dispatch/internal/dispatch"

type HealthResponse struct {
	Status string `json:"status"`
	Env    string `json:"env"`
	Uptime string `json:"uptime"`
}

// AssignmentResponse carries the post-commit state of all three entities so
// dashboards can update without a follow-up read.
type AssignmentResponse struct {
	Report    dispatch.EmergencyReport `json:"report"`
	Ambulance dispatch.Ambulance       `json:"ambulance"`
	Hospital  dispatch.Hospital        `json:"hospital"`
}

type ReleaseResponse struct {
	Ambulance dispatch.Ambulance        `json:"ambulance"`
	Hospital  dispatch.Hospital         `json:"hospital"`
	Report    *dispatch.EmergencyReport `json:"report,omitempty"`
}

// SyncResponse is the consolidated dashboard payload: full entity lists plus
// the derived counts the dashboards show in their headers.
type SyncResponse struct {
	Hospitals  []dispatch.Hospital        `json:"hospitals"`
	Ambulances []dispatch.Ambulance       `json:"ambulances"`
	Reports    []dispatch.EmergencyReport `json:"reports"`
	Counts     SyncCounts                 `json:"counts"`
}

type SyncCounts struct {
	PendingReports      int `json:"pending_reports"`
	ActiveReports       int `json:"active_reports"`
	AvailableAmbulances int `json:"available_ambulances"`
	AvailableBeds       int `json:"available_beds"`
}

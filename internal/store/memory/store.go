// Package memory provides the in-memory entity store used for tests and
// ephemeral environments, and as the transactional core the Postgres store
// builds on.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"med/dispatch/internal/dispatch"

	"github.com/google/uuid"
)

var _ dispatch.Store = (*Store)(nil)

// CommitHook runs inside the commit critical section, after the transaction
// body succeeded and before its state becomes visible. Returning an error
// aborts the commit. Hooks observe changes in commit order, which is what
// gives subscribers per-entity event ordering.
type CommitHook func(ctx context.Context, changes []dispatch.Change) error

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the store clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.nowFn = now }
}

// WithCommitHook appends a hook run on every successful commit, in the
// order the hooks were registered.
func WithCommitHook(h CommitHook) Option {
	return func(s *Store) { s.hooks = append(s.hooks, h) }
}

type state struct {
	hospitals  map[uuid.UUID]dispatch.Hospital
	ambulances map[uuid.UUID]dispatch.Ambulance
	reports    map[uuid.UUID]dispatch.EmergencyReport
}

func newState() state {
	return state{
		hospitals:  make(map[uuid.UUID]dispatch.Hospital),
		ambulances: make(map[uuid.UUID]dispatch.Ambulance),
		reports:    make(map[uuid.UUID]dispatch.EmergencyReport),
	}
}

func (st state) clone() state {
	out := state{
		hospitals:  make(map[uuid.UUID]dispatch.Hospital, len(st.hospitals)),
		ambulances: make(map[uuid.UUID]dispatch.Ambulance, len(st.ambulances)),
		reports:    make(map[uuid.UUID]dispatch.EmergencyReport, len(st.reports)),
	}
	for k, v := range st.hospitals {
		out.hospitals[k] = v
	}
	for k, v := range st.ambulances {
		out.ambulances[k] = dispatch.CloneAmbulance(v)
	}
	for k, v := range st.reports {
		out.reports[k] = dispatch.CloneReport(v)
	}
	return out
}

// Store keeps all entity state in memory. Transactions run against a clone
// of the state and swap it in atomically on commit under a single mutex, so
// a failed transaction leaves no trace and readers never observe a partial
// multi-entity update.
type Store struct {
	mu    sync.RWMutex
	state state
	nowFn func() time.Time
	hooks []CommitHook
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state: newState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's server-side clock reading.
func (s *Store) Now() time.Time { return s.nowFn() }

// Update implements dispatch.Store.
func (s *Store) Update(ctx context.Context, fn func(tx dispatch.Tx) error) ([]dispatch.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{state: s.state.clone(), now: s.nowFn()}
	if err := fn(tx); err != nil {
		return nil, err
	}
	for _, hook := range s.hooks {
		if err := hook(ctx, tx.changes); err != nil {
			return nil, fmt.Errorf("commit hook: %w", err)
		}
	}
	s.state = tx.state
	return tx.changes, nil
}

// ViewState implements dispatch.Store.
func (s *Store) ViewState(_ context.Context, fn func(v dispatch.View) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(stateView{state: &s.state})
}

// Hydrate loads pre-existing records, preserving their versions and
// timestamps. Used by persistent drivers when booting from durable state.
func (s *Store) Hydrate(hospitals []dispatch.Hospital, ambulances []dispatch.Ambulance, reports []dispatch.EmergencyReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hospitals {
		s.state.hospitals[h.ID] = h
	}
	for _, a := range ambulances {
		s.state.ambulances[a.ID] = dispatch.CloneAmbulance(a)
	}
	for _, r := range reports {
		s.state.reports[r.ID] = dispatch.CloneReport(r)
	}
}

type transaction struct {
	state   state
	now     time.Time
	changes []dispatch.Change
}

var _ dispatch.Tx = (*transaction)(nil)

func (tx *transaction) Hospital(id uuid.UUID) (dispatch.Hospital, bool) {
	h, ok := tx.state.hospitals[id]
	return h, ok
}

func (tx *transaction) Ambulance(id uuid.UUID) (dispatch.Ambulance, bool) {
	a, ok := tx.state.ambulances[id]
	if !ok {
		return dispatch.Ambulance{}, false
	}
	return dispatch.CloneAmbulance(a), true
}

func (tx *transaction) AmbulanceByVehicle(vehicleNumber string) (dispatch.Ambulance, bool) {
	return ambulanceByVehicle(&tx.state, vehicleNumber)
}

func (tx *transaction) Report(id uuid.UUID) (dispatch.EmergencyReport, bool) {
	r, ok := tx.state.reports[id]
	if !ok {
		return dispatch.EmergencyReport{}, false
	}
	return dispatch.CloneReport(r), true
}

func (tx *transaction) ListHospitals() []dispatch.Hospital      { return listHospitals(&tx.state) }
func (tx *transaction) ListAmbulances() []dispatch.Ambulance    { return listAmbulances(&tx.state) }
func (tx *transaction) ListReports() []dispatch.EmergencyReport { return listReports(&tx.state) }

func (tx *transaction) PutHospital(h dispatch.Hospital) {
	prev, exists := tx.state.hospitals[h.ID]
	h.Version = prev.Version + 1
	h.UpdatedAt = tx.now
	action := dispatch.ActionUpdated
	if !exists {
		h.CreatedAt = tx.now
		action = dispatch.ActionCreated
	} else {
		h.CreatedAt = prev.CreatedAt
	}
	tx.state.hospitals[h.ID] = h
	tx.record(dispatch.Change{Kind: dispatch.KindHospital, Action: action, Hospital: &h})
}

func (tx *transaction) PutAmbulance(a dispatch.Ambulance) {
	prev, exists := tx.state.ambulances[a.ID]
	a.Version = prev.Version + 1
	a.UpdatedAt = tx.now
	action := dispatch.ActionUpdated
	if !exists {
		a.CreatedAt = tx.now
		action = dispatch.ActionCreated
	} else {
		a.CreatedAt = prev.CreatedAt
	}
	a = dispatch.CloneAmbulance(a)
	tx.state.ambulances[a.ID] = a
	tx.record(dispatch.Change{Kind: dispatch.KindAmbulance, Action: action, Ambulance: &a})
}

func (tx *transaction) PutReport(r dispatch.EmergencyReport) {
	prev, exists := tx.state.reports[r.ID]
	r.Version = prev.Version + 1
	r.UpdatedAt = tx.now
	action := dispatch.ActionUpdated
	if !exists {
		r.CreatedAt = tx.now
		action = dispatch.ActionCreated
	} else {
		r.CreatedAt = prev.CreatedAt
	}
	r = dispatch.CloneReport(r)
	tx.state.reports[r.ID] = r
	tx.record(dispatch.Change{Kind: dispatch.KindReport, Action: action, Report: &r})
}

// record coalesces repeated writes to the same entity within one
// transaction into a single change carrying the final state.
func (tx *transaction) record(c dispatch.Change) {
	ev := c.Event()
	for i, existing := range tx.changes {
		prev := existing.Event()
		if prev.Kind == ev.Kind && prev.ID == ev.ID {
			if existing.Action == dispatch.ActionCreated {
				c.Action = dispatch.ActionCreated
			}
			tx.changes[i] = c
			return
		}
	}
	tx.changes = append(tx.changes, c)
}

type stateView struct {
	state *state
}

var _ dispatch.View = stateView{}

func (v stateView) Hospital(id uuid.UUID) (dispatch.Hospital, bool) {
	h, ok := v.state.hospitals[id]
	return h, ok
}

func (v stateView) Ambulance(id uuid.UUID) (dispatch.Ambulance, bool) {
	a, ok := v.state.ambulances[id]
	if !ok {
		return dispatch.Ambulance{}, false
	}
	return dispatch.CloneAmbulance(a), true
}

func (v stateView) AmbulanceByVehicle(vehicleNumber string) (dispatch.Ambulance, bool) {
	return ambulanceByVehicle(v.state, vehicleNumber)
}

func (v stateView) Report(id uuid.UUID) (dispatch.EmergencyReport, bool) {
	r, ok := v.state.reports[id]
	if !ok {
		return dispatch.EmergencyReport{}, false
	}
	return dispatch.CloneReport(r), true
}

func (v stateView) ListHospitals() []dispatch.Hospital      { return listHospitals(v.state) }
func (v stateView) ListAmbulances() []dispatch.Ambulance    { return listAmbulances(v.state) }
func (v stateView) ListReports() []dispatch.EmergencyReport { return listReports(v.state) }

func ambulanceByVehicle(st *state, vehicleNumber string) (dispatch.Ambulance, bool) {
	for _, a := range st.ambulances {
		if a.VehicleNumber == vehicleNumber {
			return dispatch.CloneAmbulance(a), true
		}
	}
	return dispatch.Ambulance{}, false
}

func listHospitals(st *state) []dispatch.Hospital {
	out := make([]dispatch.Hospital, 0, len(st.hospitals))
	for _, h := range st.hospitals {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func listAmbulances(st *state) []dispatch.Ambulance {
	out := make([]dispatch.Ambulance, 0, len(st.ambulances))
	for _, a := range st.ambulances {
		out = append(out, dispatch.CloneAmbulance(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleNumber < out[j].VehicleNumber })
	return out
}

func listReports(st *state) []dispatch.EmergencyReport {
	out := make([]dispatch.EmergencyReport, 0, len(st.reports))
	for _, r := range st.reports {
		out = append(out, dispatch.CloneReport(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

package session

import "sync/atomic"

// Identity is the local player's display identity as reported by the client.
type Identity struct {
	Name string
	Tag  string
}

// State is a point-in-time view of the local client session. Zero value
// means "nothing known yet": not ready, no phase, no identity, no region.
type State struct {
	Ready    bool
	Phase    string
	Identity *Identity
	Region   string
}

// DisplayName returns "Name#Tag", or "" when the identity is unknown.
func (s State) DisplayName() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Name + "#" + s.Identity.Tag
}

// Store holds the shared session state. Snapshot may be called from any
// goroutine; Update and Reset must only be called from the connector's
// event goroutine. The whole State is swapped as one pointer, so a
// snapshot can never see some fields from one update and some from another.
type Store struct {
	cur atomic.Pointer[State]
}

func NewStore() *Store {
	st := &Store{}
	st.cur.Store(&State{})
	return st
}

// Snapshot returns a consistent copy of the current state.
func (st *Store) Snapshot() State {
	s := *st.cur.Load()
	if s.Identity != nil {
		id := *s.Identity
		s.Identity = &id
	}
	return s
}

// Update applies fn to a copy of the current state and publishes the
// result in a single swap. fn must be pure.
func (st *Store) Update(fn func(State) State) {
	next := fn(st.Snapshot())
	st.cur.Store(&next)
}

// Reset drops everything known about the session in one swap. Called on
// connection loss so readers never see a half-cleared state.
func (st *Store) Reset() {
	st.cur.Store(&State{})
}

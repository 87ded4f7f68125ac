package registry

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Property is a single owned property. Immutable once created; new
// properties are appended to a player's list by a purchase.
type Property struct {
	Name   string `json:"name"`
	Reward int    `json:"reward"`
}

// State holds the mutable fields of a player record. Mutate hands a
// *State to its callback under the record's own lock.
type State struct {
	// Username is the display name shown to other players.
	Username string
	// PvPLevel is the player's arena level, starting at 1.
	PvPLevel int
	// Properties is the ordered list of owned properties.
	Properties []Property
}

// PlayerRecord is a read-only snapshot of one connected player. The
// Properties slice is a copy and safe to retain.
type PlayerRecord struct {
	ID         uuid.UUID
	Username   string
	PvPLevel   int
	Properties []Property
}

// Summary is the subset of a record exposed when listing opponents.
type Summary struct {
	ID       uuid.UUID
	Username string
	PvPLevel int
}

// entry is the live registry slot for one session. The entry mutex
// serialises mutation of the state fields; the registry mutex only
// guards the shape of the map, so purchases against different players
// never contend with each other.
type entry struct {
	mu    sync.Mutex
	state State
	out   *Outbound
}

func (e *entry) snapshot(id uuid.UUID) PlayerRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	props := make([]Property, len(e.state.Properties))
	copy(props, e.state.Properties)
	return PlayerRecord{
		ID:         id,
		Username:   e.state.Username,
		PvPLevel:   e.state.PvPLevel,
		Properties: props,
	}
}

// Registry tracks all active player records keyed by session identity.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	players map[uuid.UUID]*entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		players: make(map[uuid.UUID]*entry),
	}
}

// DefaultUsername derives the fallback display name for a session that
// never supplied one.
func DefaultUsername(id uuid.UUID) string {
	return fmt.Sprintf("User-%s", id.String()[:8])
}

// Upsert creates a record for id if absent and returns a snapshot. An
// existing record is returned unchanged, so concurrent upserts for the
// same identity never produce two records.
//
// Precondition: id must be a valid session identity.
// Postcondition: A record for id exists with PvPLevel >= 1.
func (r *Registry) Upsert(id uuid.UUID, usernameIfNew string) PlayerRecord {
	r.mu.Lock()
	e, ok := r.players[id]
	if !ok {
		if usernameIfNew == "" {
			usernameIfNew = DefaultUsername(id)
		}
		e = &entry{state: State{
			Username: usernameIfNew,
			PvPLevel: 1,
		}}
		r.players[id] = e
	}
	r.mu.Unlock()

	return e.snapshot(id)
}

// AttachOutbound sets the send capability for id, creating the record
// first if it does not exist yet. Called once per session start.
func (r *Registry) AttachOutbound(id uuid.UUID, out *Outbound) {
	r.mu.Lock()
	e, ok := r.players[id]
	if !ok {
		e = &entry{state: State{
			Username: DefaultUsername(id),
			PvPLevel: 1,
		}}
		r.players[id] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	e.out = out
	e.mu.Unlock()
}

// Remove deletes the record for id and closes its outbound channel.
// No-op if the record is absent, so error-path teardown and peer-close
// teardown can both call it safely.
//
// Postcondition: id is absent from the registry.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	e, ok := r.players[id]
	if ok {
		delete(r.players, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	e.mu.Lock()
	out := e.out
	e.out = nil
	e.mu.Unlock()

	if out != nil {
		_ = out.Close()
	}
}

// Get returns a snapshot of the record for id.
//
// Postcondition: Returns (record, true) if found, or (zero, false)
// otherwise. The snapshot never aliases live registry state.
func (r *Registry) Get(id uuid.UUID) (PlayerRecord, bool) {
	r.mu.RLock()
	e, ok := r.players[id]
	r.mu.RUnlock()

	if !ok {
		return PlayerRecord{}, false
	}
	return e.snapshot(id), true
}

// Outbound returns the attached send channel for id.
//
// Postcondition: Returns (channel, true) only when the record exists and
// a channel has been attached.
func (r *Registry) Outbound(id uuid.UUID) (*Outbound, bool) {
	r.mu.RLock()
	e, ok := r.players[id]
	r.mu.RUnlock()

	if !ok {
		return nil, false
	}

	e.mu.Lock()
	out := e.out
	e.mu.Unlock()

	if out == nil {
		return nil, false
	}
	return out, true
}

// ListOthers returns a summary of every record except the caller's own.
// Ordering is unspecified.
func (r *Registry) ListOthers(excluding uuid.UUID) []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Summary, 0, len(r.players))
	for id, e := range r.players {
		if id == excluding {
			continue
		}
		e.mu.Lock()
		out = append(out, Summary{
			ID:       id,
			Username: e.state.Username,
			PvPLevel: e.state.PvPLevel,
		})
		e.mu.Unlock()
	}
	return out
}

// Mutate runs fn with exclusive access to the record's state.
//
// Precondition: fn must not call back into the Registry.
// Postcondition: Returns true if the record existed and fn ran. Readers
// never observe a partially-applied mutation.
func (r *Registry) Mutate(id uuid.UUID, fn func(*State)) bool {
	r.mu.RLock()
	e, ok := r.players[id]
	r.mu.RUnlock()

	if !ok {
		return false
	}

	e.mu.Lock()
	fn(&e.state)
	e.mu.Unlock()
	return true
}

// Count returns the number of active records.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

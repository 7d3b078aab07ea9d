// v3
// internal/store/store.go
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/maxmcoste/home-controller/internal/topology"
)

// ErrRoomNotFound is returned when an operation references an unregistered room id.
var ErrRoomNotFound = errors.New("unknown room id")

// ErrTargetOutOfRange indicates a requested target outside the allowed range.
var ErrTargetOutOfRange = errors.New("target outside configured range")

// ErrMissingDefaultTarget indicates a topology room type with no configured
// default target temperature. Registration fails as a whole.
var ErrMissingDefaultTarget = errors.New("no default target for room type")

// RoomIdentity is the immutable identity a room carries from the topology.
type RoomIdentity struct {
	ID    string
	Name  string
	Floor int
	Type  string
}

// RoomState is a point-in-time copy of one room's state. Current is nil
// until the first temperature report arrives.
type RoomState struct {
	RoomIdentity
	Target   float64
	Current  *float64
	HeaterOn bool
}

type room struct {
	identity RoomIdentity
	target   float64
	current  *float64
	heaterOn bool
}

// Store is the shared room registry and mutable state store. A single
// RWMutex serializes mutations (reports, target changes, tick commits,
// re-registration) while snapshots take shared access. Heater status is
// derived state owned by the controller; external callers can only move it
// indirectly through targets and reports.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*room
	min   float64
	max   float64
}

// New creates an empty store enforcing the given allowed target range.
func New(min, max float64) *Store {
	return &Store{rooms: map[string]*room{}, min: min, max: max}
}

// Register replaces the store contents from the topology. Each room's target
// is the per-type default unless an explicit per-room override exists; both
// are validated against the allowed range. The replacement is all-or-nothing:
// readers observe either the previous complete set or the new one, and any
// in-flight current temperature is dropped until the next report.
func (s *Store) Register(topo *topology.Topology, defaults map[string]float64, overrides map[string]float64) error {
	next := make(map[string]*room, topo.RoomCount())
	for roomType, rooms := range topo.Rooms {
		def, ok := defaults[roomType]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingDefaultTarget, roomType)
		}
		for _, r := range rooms {
			target := def
			if ov, ok := overrides[r.ID]; ok {
				target = ov
			}
			if target < s.min || target > s.max {
				return fmt.Errorf("%w: room %s target %.1f not in %.1f..%.1f", ErrTargetOutOfRange, r.ID, target, s.min, s.max)
			}
			next[r.ID] = &room{
				identity: RoomIdentity{ID: r.ID, Name: r.Name, Floor: r.Floor, Type: roomType},
				target:   target,
			}
		}
	}

	s.mu.Lock()
	s.rooms = next
	s.mu.Unlock()
	return nil
}

// ReportTemperature records a sensor reading for the room. Heater status is
// deliberately untouched here: recomputing it is the controller tick's job,
// which keeps reports O(1) and decouples report rate from actuation rate.
func (s *Store) ReportTemperature(id string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	v := value
	r.current = &v
	return nil
}

// SetTarget updates a room's target temperature after range validation and
// returns the previous value for the caller's audit log.
func (s *Store) SetTarget(id string, value float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	if value < s.min || value > s.max {
		return 0, fmt.Errorf("%w: %.1f not in %.1f..%.1f", ErrTargetOutOfRange, value, s.min, s.max)
	}
	old := r.target
	r.target = value
	return old, nil
}

// CommitHeater records the heater status decided by a control tick. Only the
// controller calls this; there is no external path to heater status.
func (s *Store) CommitHeater(id string, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	r.heaterOn = on
	return nil
}

// Get returns a copy of one room's state.
func (s *Store) Get(id string) (RoomState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return RoomState{}, false
	}
	return r.snapshot(), true
}

// Snapshot returns a point-in-time consistent copy of every room's state.
// The copies are detached so callers can marshal them without holding any
// lock against the control loop.
func (s *Store) Snapshot() []RoomState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RoomState, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r.snapshot())
	}
	return out
}

// Len returns the number of registered rooms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Range returns the allowed target bounds for validation messages.
func (s *Store) Range() (float64, float64) {
	return s.min, s.max
}

func (r *room) snapshot() RoomState {
	st := RoomState{
		RoomIdentity: r.identity,
		Target:       r.target,
		HeaterOn:     r.heaterOn,
	}
	if r.current != nil {
		v := *r.current
		st.Current = &v
	}
	return st
}

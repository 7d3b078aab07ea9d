// v1
// internal/topology/topology.go
package topology

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrRoomExists is returned when adding a room whose id is already present.
var ErrRoomExists = errors.New("room id already exists")

// ErrRoomNotFound is returned when a room id is absent from the topology.
var ErrRoomNotFound = errors.New("room not found in topology")

// ErrUnknownRoomType is returned when adding a room under a type the
// topology does not define.
var ErrUnknownRoomType = errors.New("unknown room type")

// Room is the static identity of a room as declared in house_topology.yaml.
type Room struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Floor int    `yaml:"floor" json:"floor"`
}

// Topology is the house description: room type → declared rooms. The room
// type doubles as the key for per-type default target temperatures.
type Topology struct {
	Rooms map[string][]Room `yaml:"rooms" json:"rooms"`
}

// Load parses the topology YAML file at path.
func Load(path string) (*Topology, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology %s: %w", path, err)
	}
	var t Topology
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse topology %s: %w", path, err)
	}
	if t.Rooms == nil {
		t.Rooms = map[string][]Room{}
	}
	return &t, nil
}

// Save writes the topology back to path. Mutating endpoints persist before
// the state store is re-registered so a crash never loses an accepted edit.
func (t *Topology) Save(path string) error {
	raw, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode topology: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write topology %s: %w", path, err)
	}
	return nil
}

// Find returns the room with the given id and the type it is filed under.
func (t *Topology) Find(id string) (Room, string, bool) {
	for roomType, rooms := range t.Rooms {
		for _, r := range rooms {
			if r.ID == id {
				return r, roomType, true
			}
		}
	}
	return Room{}, "", false
}

// AddRoom appends a room under an existing room type, rejecting duplicate
// ids across all types.
func (t *Topology) AddRoom(roomType string, room Room) error {
	if _, ok := t.Rooms[roomType]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoomType, roomType)
	}
	if _, _, ok := t.Find(room.ID); ok {
		return fmt.Errorf("%w: %s", ErrRoomExists, room.ID)
	}
	t.Rooms[roomType] = append(t.Rooms[roomType], room)
	return nil
}

// UpdateRoom changes the name and/or floor of an existing room. Nil fields
// are left untouched.
func (t *Topology) UpdateRoom(id string, name *string, floor *int) error {
	for roomType, rooms := range t.Rooms {
		for i, r := range rooms {
			if r.ID != id {
				continue
			}
			if name != nil {
				r.Name = *name
			}
			if floor != nil {
				r.Floor = *floor
			}
			t.Rooms[roomType][i] = r
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
}

// DeleteRoom removes a room by id.
func (t *Topology) DeleteRoom(id string) error {
	for roomType, rooms := range t.Rooms {
		for i, r := range rooms {
			if r.ID != id {
				continue
			}
			t.Rooms[roomType] = append(rooms[:i:i], rooms[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
}

// RoomCount returns the total number of declared rooms.
func (t *Topology) RoomCount() int {
	n := 0
	for _, rooms := range t.Rooms {
		n += len(rooms)
	}
	return n
}

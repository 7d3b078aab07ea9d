// v1
// internal/store/store_test.go
package store

import (
	"errors"
	"sync"
	"testing"

	"github.com/maxmcoste/home-controller/internal/topology"
)

func sampleTopology() *topology.Topology {
	return &topology.Topology{Rooms: map[string][]topology.Room{
		"bedroom": {
			{ID: "room1", Name: "Master Bedroom", Floor: 1},
			{ID: "room2", Name: "Guest Bedroom", Floor: 1},
		},
		"kitchen": {
			{ID: "room3", Name: "Kitchen", Floor: 0},
		},
	}}
}

func newRegistered(t *testing.T) *Store {
	t.Helper()
	s := New(15, 30)
	defaults := map[string]float64{"bedroom": 19, "kitchen": 21}
	overrides := map[string]float64{"room2": 17.5}
	if err := s.Register(sampleTopology(), defaults, overrides); err != nil {
		t.Fatalf("register: %v", err)
	}
	return s
}

func TestRegisterAppliesDefaultsAndOverrides(t *testing.T) {
	s := newRegistered(t)
	if s.Len() != 3 {
		t.Fatalf("expected 3 rooms, got %d", s.Len())
	}
	r1, _ := s.Get("room1")
	if r1.Target != 19 || r1.Type != "bedroom" || r1.Floor != 1 {
		t.Fatalf("unexpected room1 state: %+v", r1)
	}
	r2, _ := s.Get("room2")
	if r2.Target != 17.5 {
		t.Fatalf("override ignored, target %.1f", r2.Target)
	}
	if r1.Current != nil || r1.HeaterOn {
		t.Fatalf("fresh room should have no reading and heater off: %+v", r1)
	}
}

func TestRegisterFailsOnMissingDefault(t *testing.T) {
	s := New(15, 30)
	err := s.Register(sampleTopology(), map[string]float64{"bedroom": 19}, nil)
	if !errors.Is(err, ErrMissingDefaultTarget) {
		t.Fatalf("expected ErrMissingDefaultTarget, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("failed register must not partially populate the store, got %d rooms", s.Len())
	}
}

func TestRegisterReplacesWholesale(t *testing.T) {
	s := newRegistered(t)
	if err := s.ReportTemperature("room1", 18.2); err != nil {
		t.Fatalf("report: %v", err)
	}

	smaller := &topology.Topology{Rooms: map[string][]topology.Room{
		"bedroom": {{ID: "room1", Name: "Master Bedroom", Floor: 1}},
	}}
	if err := s.Register(smaller, map[string]float64{"bedroom": 20}, nil); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected full replacement, got %d rooms", s.Len())
	}
	r1, _ := s.Get("room1")
	if r1.Current != nil {
		t.Fatal("re-registration must drop in-flight readings")
	}
	if r1.Target != 20 {
		t.Fatalf("re-registration kept stale target %.1f", r1.Target)
	}
}

func TestReportTemperatureUnknownRoom(t *testing.T) {
	s := newRegistered(t)
	err := s.ReportTemperature("room9", 20)
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	for _, r := range s.Snapshot() {
		if r.Current != nil {
			t.Fatalf("rejected report mutated the store: %+v", r)
		}
	}
}

func TestSetTargetValidationAndOldValue(t *testing.T) {
	s := newRegistered(t)

	old, err := s.SetTarget("room3", 17)
	if err != nil {
		t.Fatalf("set target: %v", err)
	}
	if old != 21 {
		t.Fatalf("expected old value 21, got %.1f", old)
	}

	if _, err := s.SetTarget("room3", 35); !errors.Is(err, ErrTargetOutOfRange) {
		t.Fatalf("expected ErrTargetOutOfRange, got %v", err)
	}
	r3, _ := s.Get("room3")
	if r3.Target != 17 {
		t.Fatalf("rejected set changed the target to %.1f", r3.Target)
	}

	if _, err := s.SetTarget("room9", 20); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	s := newRegistered(t)
	if err := s.ReportTemperature("room1", 16.5); err != nil {
		t.Fatalf("report: %v", err)
	}
	snap := s.Snapshot()
	for i := range snap {
		if snap[i].Current != nil {
			*snap[i].Current = 99
		}
		snap[i].Target = 99
	}
	r1, _ := s.Get("room1")
	if *r1.Current != 16.5 || r1.Target == 99 {
		t.Fatalf("snapshot mutation leaked into the store: %+v", r1)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	s := newRegistered(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(v float64) {
			defer wg.Done()
			if err := s.ReportTemperature("room1", v); err != nil {
				t.Errorf("report: %v", err)
			}
		}(18 + float64(i%4))
		go func(v float64) {
			defer wg.Done()
			if _, err := s.SetTarget("room2", v); err != nil {
				t.Errorf("set target: %v", err)
			}
		}(16 + float64(i%10))
		go func() {
			defer wg.Done()
			if len(s.Snapshot()) != 3 {
				t.Error("snapshot saw a partial store")
			}
		}()
	}
	wg.Wait()
}

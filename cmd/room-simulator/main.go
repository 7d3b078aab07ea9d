// v2
// cmd/room-simulator/main.go
// room-simulator plays the part of the physical devices: one temperature
// sensor and one heater per room in the house topology. Temperatures follow
// a simple thermal model (drift toward the outdoor temperature, heat gain
// while the heater is on) plus noise, so the control loop has something
// realistic to fight.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/maxmcoste/home-controller/internal/topology"
)

type simRoom struct {
	mu          sync.Mutex
	temperature float64
	heaterOn    bool
}

type simulator struct {
	log     *slog.Logger
	outdoor float64

	mu    sync.RWMutex
	rooms map[string]*simRoom
}

func newSimulator(topo *topology.Topology, outdoor float64, log *slog.Logger) *simulator {
	s := &simulator{
		log:     log.With(slog.String("component", "simulator")),
		outdoor: outdoor,
		rooms:   map[string]*simRoom{},
	}
	for _, list := range topo.Rooms {
		for _, r := range list {
			// start somewhere plausible between outdoor and comfortable
			s.rooms[r.ID] = &simRoom{temperature: 16 + rand.Float64()*6}
		}
	}
	return s
}

// step advances every room by one simulation interval.
func (s *simulator) step() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, room := range s.rooms {
		room.mu.Lock()
		// leak toward outdoor, heater pushes back harder
		drift := (s.outdoor - room.temperature) * 0.02
		if room.heaterOn {
			drift += 0.25
		}
		room.temperature += drift + (rand.Float64()-0.5)*0.1
		temp, on := room.temperature, room.heaterOn
		room.mu.Unlock()
		s.log.Debug("room stepped", "room", id, "temperature_c", temp, "heater_on", on)
	}
}

func (s *simulator) room(id string) (*simRoom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

func (s *simulator) getTemperature(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["roomID"]
	room, ok := s.room(id)
	if !ok {
		http.Error(w, "unknown room", http.StatusNotFound)
		return
	}
	room.mu.Lock()
	temp := room.temperature
	room.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"room_id":     id,
		"temperature": temp,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *simulator) postHeater(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["roomID"]
	room, ok := s.room(id)
	if !ok {
		http.Error(w, "unknown room", http.StatusNotFound)
		return
	}
	var body struct {
		Status *bool `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == nil {
		http.Error(w, "body must be {\"status\": <bool>}", http.StatusBadRequest)
		return
	}

	room.mu.Lock()
	room.heaterOn = *body.Status
	room.mu.Unlock()
	s.log.Info("heater command", "room", id, "on", *body.Status)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "room_id": id, "status": *body.Status})
}

func main() {
	topoPath := flag.String("topology", "./house_topology.yaml", "path to house_topology.yaml")
	addr := flag.String("addr", ":9000", "listen address")
	outdoor := flag.Float64("outdoor", 8, "outdoor temperature in °C")
	interval := flag.Duration("interval", 5*time.Second, "simulation step interval")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	topo, err := topology.Load(*topoPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "room-simulator: %v\n", err)
		os.Exit(1)
	}
	sim := newSimulator(topo, *outdoor, log)

	go func() {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		for range ticker.C {
			sim.step()
		}
	}()

	r := mux.NewRouter()
	r.HandleFunc("/room/{roomID}/temperature", sim.getTemperature).Methods("GET")
	r.HandleFunc("/room/{roomID}/heater", sim.postHeater).Methods("POST")

	log.Info("room-simulator listening", "addr", *addr, "rooms", topo.RoomCount(), "outdoor_c", *outdoor)
	if err := http.ListenAndServe(*addr, handlers.LoggingHandler(os.Stdout, r)); err != nil {
		fmt.Fprintf(os.Stderr, "room-simulator: %v\n", err)
		os.Exit(1)
	}
}

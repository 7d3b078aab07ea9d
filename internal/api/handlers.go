// v3
// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/maxmcoste/home-controller/internal/actions"
	"github.com/maxmcoste/home-controller/internal/metrics"
	"github.com/maxmcoste/home-controller/internal/store"
	"github.com/maxmcoste/home-controller/internal/topology"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func roomView(r store.RoomState) map[string]any {
	view := map[string]any{
		"name":                r.Name,
		"type":                r.Type,
		"floor":               r.Floor,
		"target_temperature":  r.Target,
		"heater_status":       r.HeaterOn,
		"current_temperature": nil,
	}
	if r.Current != nil {
		view["current_temperature"] = *r.Current
	}
	return view
}

func (s *Server) getRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "Home Temperature Control System",
		"version":     "1.0.0",
		"description": "API for monitoring and controlling home temperature",
		"status":      "running",
		"endpoints": map[string]string{
			"all_rooms":      "/rooms",
			"room_by_id":     "/room/{room_id}",
			"rooms_by_floor": "/rooms/by-floor/{floor}",
			"rooms_by_type":  "/rooms/by-type/{room_type}",
			"house_topology": "/topology",
			"metrics":        "/metrics",
		},
	})
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rooms":      s.store.Len(),
		"controller": s.ctrl.Stats(),
	})
}

func (s *Server) getRooms(w http.ResponseWriter, _ *http.Request) {
	out := map[string]any{}
	for _, r := range s.store.Snapshot() {
		out[r.ID] = roomView(r)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["roomID"]
	state, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Room not found")
		return
	}
	writeJSON(w, http.StatusOK, roomView(state))
}

func (s *Server) getRoomsByFloor(w http.ResponseWriter, r *http.Request) {
	floor, err := strconv.Atoi(mux.Vars(r)["floor"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Floor must be an integer")
		return
	}
	out := map[string]any{}
	for _, room := range s.store.Snapshot() {
		if room.Floor == floor {
			out[room.ID] = roomView(room)
		}
	}
	if len(out) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No rooms found on floor %d", floor))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getRoomsByType(w http.ResponseWriter, r *http.Request) {
	roomType := mux.Vars(r)["roomType"]
	out := map[string]any{}
	for _, room := range s.store.Snapshot() {
		if room.Type == roomType {
			out[room.ID] = roomView(room)
		}
	}
	if len(out) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No rooms found of type %s", roomType))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) putTarget(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["roomID"]
	var body struct {
		Temperature *float64 `json:"temperature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Temperature == nil {
		writeError(w, http.StatusBadRequest, "Body must be {\"temperature\": <number>}")
		return
	}

	old, err := s.store.SetTarget(id, *body.Temperature)
	switch {
	case errors.Is(err, store.ErrRoomNotFound):
		s.log.Warn("target set for unknown room", "room", id)
		writeError(w, http.StatusNotFound, "Room not found")
		return
	case errors.Is(err, store.ErrTargetOutOfRange):
		min, max := s.store.Range()
		s.log.Warn("target rejected", "room", id, "value", *body.Temperature)
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Temperature must be between %.0f and %.0f°C", min, max))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Info("target changed", "room", id, "old_c", old, "new_c", *body.Temperature)
	s.rec.Record(r.Context(), actions.TemperatureChange(id, old, *body.Temperature, "manual"))
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id":         id,
		"new_temperature": *body.Temperature,
		"old_temperature": old,
	})
}

func (s *Server) postTemperature(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["roomID"]
	var body struct {
		Temperature *float64 `json:"temperature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Temperature == nil {
		writeError(w, http.StatusBadRequest, "Body must be {\"temperature\": <number>}")
		return
	}

	if err := s.store.ReportTemperature(id, *body.Temperature); err != nil {
		writeError(w, http.StatusNotFound, "Room not found")
		return
	}
	metrics.TemperatureReportsTotal.Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id":     id,
		"temperature": *body.Temperature,
	})
}

func (s *Server) getTopology(w http.ResponseWriter, _ *http.Request) {
	topo, err := topology.Load(s.cfg.TopologyPath)
	if err != nil {
		s.log.Error("topology load failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, topo)
}

// mutateTopology loads the topology file, applies fn, persists the result
// and rebuilds the whole state store from it. Serialized so concurrent
// edits cannot interleave their read-modify-write cycles.
func (s *Server) mutateTopology(fn func(*topology.Topology) error) (int, error) {
	s.topoMu.Lock()
	defer s.topoMu.Unlock()

	topo, err := topology.Load(s.cfg.TopologyPath)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	if err := fn(topo); err != nil {
		switch {
		case errors.Is(err, topology.ErrRoomNotFound):
			return http.StatusNotFound, err
		case errors.Is(err, topology.ErrRoomExists), errors.Is(err, topology.ErrUnknownRoomType):
			return http.StatusBadRequest, err
		default:
			return http.StatusInternalServerError, err
		}
	}
	if err := topo.Save(s.cfg.TopologyPath); err != nil {
		return http.StatusInternalServerError, err
	}
	if err := s.store.Register(topo, s.cfg.DefaultTemperatures, s.cfg.TargetOverrides()); err != nil {
		return http.StatusInternalServerError, err
	}
	metrics.RoomsRegistered.Set(float64(s.store.Len()))
	return http.StatusOK, nil
}

func (s *Server) postRoom(w http.ResponseWriter, r *http.Request) {
	roomType := mux.Vars(r)["roomType"]
	var room topology.Room
	if err := json.NewDecoder(r.Body).Decode(&room); err != nil || room.ID == "" || room.Name == "" {
		writeError(w, http.StatusBadRequest, "Body must be {\"id\", \"name\", \"floor\"}")
		return
	}

	status, err := s.mutateTopology(func(t *topology.Topology) error {
		return t.AddRoom(roomType, room)
	})
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	s.rec.Record(r.Context(), actions.UserInteraction("room_added", room.ID, true,
		map[string]any{"room_type": roomType, "name": room.Name}))
	writeJSON(w, http.StatusOK, map[string]any{"message": "Room added successfully", "room": room})
}

func (s *Server) putRoom(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["roomID"]
	var body struct {
		Name  *string `json:"name"`
		Floor *int    `json:"floor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	status, err := s.mutateTopology(func(t *topology.Topology) error {
		return t.UpdateRoom(id, body.Name, body.Floor)
	})
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	s.rec.Record(r.Context(), actions.UserInteraction("room_updated", id, true, nil))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Room updated successfully"})
}

func (s *Server) deleteRoom(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["roomID"]
	status, err := s.mutateTopology(func(t *topology.Topology) error {
		return t.DeleteRoom(id)
	})
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	s.rec.Record(r.Context(), actions.UserInteraction("room_deleted", id, true, nil))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Room deleted successfully"})
}

func (s *Server) postControl(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	if action != "stop" && action != "restart" {
		writeError(w, http.StatusNotFound, "Unknown control action")
		return
	}

	var body struct {
		Token     string `json:"token"`
		Timestamp string `json:"timestamp"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	// every failure is the same 403: callers cannot learn which check failed
	if !s.auth.Validate(body.Token, body.Timestamp) {
		metrics.AuthRejectionsTotal.Inc()
		s.rec.Record(r.Context(), actions.UserInteraction("control_"+action, "", false, nil))
		writeError(w, http.StatusForbidden, "Invalid control token")
		return
	}

	s.rec.Record(r.Context(), actions.UserInteraction("control_"+action, "", true, nil))
	switch action {
	case "stop":
		s.log.Info("authenticated stop command accepted")
		s.life.RequestStop()
	case "restart":
		s.log.Info("authenticated restart command accepted")
		s.life.RequestRestart()
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("%s signal accepted", action)})
}

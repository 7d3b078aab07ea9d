// v2
// internal/api/handlers_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/maxmcoste/home-controller/internal/actions"
	"github.com/maxmcoste/home-controller/internal/auth"
	"github.com/maxmcoste/home-controller/internal/config"
	"github.com/maxmcoste/home-controller/internal/control"
	"github.com/maxmcoste/home-controller/internal/store"
	"github.com/maxmcoste/home-controller/internal/topology"
)

type stubLifecycle struct {
	stops    int
	restarts int
}

func (l *stubLifecycle) RequestStop()    { l.stops++ }
func (l *stubLifecycle) RequestRestart() { l.restarts++ }

type nopActuator struct{}

func (nopActuator) SetHeater(context.Context, string, bool) error { return nil }

const testTopologyYAML = `
rooms:
  bedroom:
    - id: room1
      name: Master Bedroom
      floor: 1
  kitchen:
    - id: room3
      name: Kitchen
      floor: 0
`

func newTestServer(t *testing.T) (*Server, *stubLifecycle) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	topoPath := filepath.Join(t.TempDir(), "house_topology.yaml")
	if err := os.WriteFile(topoPath, []byte(testTopologyYAML), 0o644); err != nil {
		t.Fatalf("write topology: %v", err)
	}

	cfg := config.Defaults()
	cfg.TopologyPath = topoPath
	cfg.DefaultTemperatures = map[string]float64{"bedroom": 19, "kitchen": 21}
	cfg.API.ControlPIN = "130376"

	topo, err := topology.Load(topoPath)
	if err != nil {
		t.Fatalf("load topology: %v", err)
	}
	st := store.New(cfg.MinAllowedTemperature, cfg.MaxAllowedTemperature)
	if err := st.Register(topo, cfg.DefaultTemperatures, nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctrl := control.New(st, control.Options{Actuator: nopActuator{}}, log)
	a := auth.New(cfg.API.ControlPIN, cfg.AuthWindow(), log)
	life := &stubLifecycle{}
	return New(cfg, st, ctrl, a, actions.Nop{}, life, log), life
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestGetRoomsListsRegisteredRooms(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/rooms", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body map[string]map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(body))
	}
	if body["room1"]["target_temperature"] != 19.0 {
		t.Fatalf("unexpected room1 view: %v", body["room1"])
	}
	if body["room1"]["current_temperature"] != nil {
		t.Fatalf("expected null current before first report, got %v", body["room1"]["current_temperature"])
	}
}

func TestGetRoomNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/room/room9", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPutTargetHappyPathAndValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPut, "/room/room3/target", map[string]float64{"temperature": 17})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body["old_temperature"] != 21.0 {
		t.Fatalf("expected old value 21, got %v", body["old_temperature"])
	}

	rec = doJSON(t, s, http.MethodPut, "/room/room3/target", map[string]float64{"temperature": 35})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range, got %d", rec.Code)
	}
	state, _ := s.store.Get("room3")
	if state.Target != 17 {
		t.Fatalf("rejected set must not change target, got %.1f", state.Target)
	}

	rec = doJSON(t, s, http.MethodPut, "/room/room9/target", map[string]float64{"temperature": 20})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown room, got %d", rec.Code)
	}
}

func TestPostTemperatureReport(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/room/room1/temperature", map[string]float64{"temperature": 18.3})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	state, _ := s.store.Get("room1")
	if state.Current == nil || *state.Current != 18.3 {
		t.Fatalf("report not stored: %+v", state)
	}
	if state.HeaterOn {
		t.Fatal("report must not touch heater status")
	}

	rec = doJSON(t, s, http.MethodPost, "/room/room9/temperature", map[string]float64{"temperature": 18.3})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown room, got %d", rec.Code)
	}
}

func TestTopologyAddRoomReRegistersStore(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/topology/rooms/kitchen",
		map[string]any{"id": "room4", "name": "Pantry", "floor": 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if s.store.Len() != 3 {
		t.Fatalf("store not rebuilt, %d rooms", s.store.Len())
	}
	state, ok := s.store.Get("room4")
	if !ok || state.Target != 21 {
		t.Fatalf("new room missing or wrong target: %+v", state)
	}

	// duplicate id rejected
	rec = doJSON(t, s, http.MethodPost, "/topology/rooms/kitchen",
		map[string]any{"id": "room1", "name": "Clone", "floor": 1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate id, got %d", rec.Code)
	}
}

func TestTopologyDeleteRoom(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodDelete, "/topology/rooms/room1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if _, ok := s.store.Get("room1"); ok {
		t.Fatal("deleted room still registered")
	}

	rec = doJSON(t, s, http.MethodDelete, "/topology/rooms/room1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing room, got %d", rec.Code)
	}
}

func TestControlStopRequiresValidToken(t *testing.T) {
	s, life := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/control/stop",
		map[string]string{"token": "bogus", "timestamp": "not-a-number"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if life.stops != 0 {
		t.Fatal("rejected command must not reach the lifecycle")
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	token := auth.GenerateToken("130376", ts)
	rec = doJSON(t, s, http.MethodPost, "/control/stop", map[string]string{"token": token, "timestamp": ts})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if life.stops != 1 {
		t.Fatalf("expected one stop request, got %d", life.stops)
	}

	// replay of the same token is rejected with the same uniform status
	rec = doJSON(t, s, http.MethodPost, "/control/stop", map[string]string{"token": token, "timestamp": ts})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on replay, got %d", rec.Code)
	}
	if life.stops != 1 {
		t.Fatal("replayed command must not reach the lifecycle")
	}
}

func TestControlRestart(t *testing.T) {
	s, life := newTestServer(t)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	token := auth.GenerateToken("130376", ts)
	rec := doJSON(t, s, http.MethodPost, "/control/restart", map[string]string{"token": token, "timestamp": ts})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if life.restarts != 1 {
		t.Fatalf("expected one restart request, got %d", life.restarts)
	}
}

func TestRoomsByFloorAndType(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/rooms/by-floor/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var byFloor map[string]any
	_ = json.NewDecoder(rec.Body).Decode(&byFloor)
	if len(byFloor) != 1 {
		t.Fatalf("expected 1 room on floor 1, got %d", len(byFloor))
	}

	rec = doJSON(t, s, http.MethodGet, "/rooms/by-floor/7", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for empty floor, got %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/rooms/by-type/kitchen", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, "/rooms/by-type/garage", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown type, got %d", rec.Code)
	}
}

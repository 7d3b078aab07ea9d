// v2
// internal/device/http.go
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/maxmcoste/home-controller/internal/breaker"
)

// HTTP talks to room devices over the configured URL patterns. Every remote
// endpoint gets its own circuit breaker so one dead device fast-fails
// instead of burning the full timeout on every tick.
type HTTP struct {
	sensorPattern string
	heaterPattern string
	client        *http.Client
	log           *slog.Logger

	mu       sync.Mutex
	breakers map[string]*breaker.Breaker
}

// NewHTTP builds the HTTP device client. timeout bounds each request on top
// of the per-call context.
func NewHTTP(sensorPattern, heaterPattern string, timeout time.Duration, log *slog.Logger) *HTTP {
	return &HTTP{
		sensorPattern: sensorPattern,
		heaterPattern: heaterPattern,
		client:        &http.Client{Timeout: timeout},
		log:           log.With(slog.String("component", "device_http")),
		breakers:      map[string]*breaker.Breaker{},
	}
}

func (h *HTTP) breakerFor(url string) *breaker.Breaker {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.breakers[url]
	if !ok {
		b = breaker.New(url, breaker.Config{}, h.log)
		h.breakers[url] = b
	}
	return b
}

// Read fetches the current temperature from the room's sensor endpoint.
func (h *HTTP) Read(ctx context.Context, roomID string) (float64, error) {
	url := expandPattern(h.sensorPattern, roomID)
	var reading struct {
		Temperature float64 `json:"temperature"`
	}
	err := h.breakerFor(url).Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := h.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&reading)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: room %s: %w", ErrSensor, roomID, err)
	}
	return reading.Temperature, nil
}

// SetHeater posts the desired heater status to the room's heater endpoint.
// A 2xx response with success=false counts as a failure: the device refused.
func (h *HTTP) SetHeater(ctx context.Context, roomID string, on bool) error {
	url := expandPattern(h.heaterPattern, roomID)
	payload, err := json.Marshal(map[string]bool{"status": on})
	if err != nil {
		return fmt.Errorf("%w: room %s: %w", ErrActuator, roomID, err)
	}
	err = h.breakerFor(url).Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := h.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		var ack struct {
			Success bool `json:"success"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
			return err
		}
		if !ack.Success {
			return fmt.Errorf("device reported success=false")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: room %s: %w", ErrActuator, roomID, err)
	}
	return nil
}

// v2
// internal/actions/actions.go
// Package actions is the structured action ledger: every operator-visible
// event (temperature changes, heater operations, control commands, system
// events) becomes one JSON record routed to the configured sinks.
package actions

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
)

// Type classifies an action record.
type Type string

const (
	TypeTemperatureChange Type = "temperature_change"
	TypeHeaterOperation   Type = "heater_operation"
	TypeSystemEvent       Type = "system_event"
	TypeUserInteraction   Type = "user_interaction"
	TypeAPIRequest        Type = "api_request"
	TypeError             Type = "error"
)

// Record is one ledger entry. Data carries action-specific fields.
type Record struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      Type           `json:"action_type"`
	RoomID    string         `json:"room_id,omitempty"`
	User      string         `json:"user,omitempty"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Hostname  string         `json:"hostname,omitempty"`
	PID       int            `json:"process_id,omitempty"`
}

// Recorder is implemented by every ledger sink. Record must not block the
// control loop beyond its own I/O; failures are the sink's problem to log.
type Recorder interface {
	Record(ctx context.Context, rec Record)
}

var hostname, _ = os.Hostname()

// NewRecord stamps a record with id, time and process metadata.
func NewRecord(t Type, roomID string, success bool, data map[string]any) Record {
	return Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      t,
		RoomID:    roomID,
		Success:   success,
		Data:      data,
		Hostname:  hostname,
		PID:       os.Getpid(),
	}
}

// HeaterOperation builds the record for a committed or failed heater switch.
func HeaterOperation(roomID string, on bool, current, target float64, success bool) Record {
	status := "OFF"
	if on {
		status = "ON"
	}
	return NewRecord(TypeHeaterOperation, roomID, success, map[string]any{
		"heater_status":       status,
		"current_temperature": current,
		"target_temperature":  target,
	})
}

// TemperatureChange builds the record for a target change or a report.
func TemperatureChange(roomID string, oldTemp, newTemp float64, source string) Record {
	return NewRecord(TypeTemperatureChange, roomID, true, map[string]any{
		"old_temperature": oldTemp,
		"new_temperature": newTemp,
		"source":          source,
	})
}

// SystemEvent builds the record for lifecycle events (startup, shutdown,
// topology reload).
func SystemEvent(event string, success bool, details map[string]any) Record {
	data := map[string]any{"event": event}
	for k, v := range details {
		data[k] = v
	}
	return NewRecord(TypeSystemEvent, "", success, data)
}

// UserInteraction builds the record for an operator-initiated action.
func UserInteraction(action, roomID string, success bool, details map[string]any) Record {
	data := map[string]any{"action": action}
	for k, v := range details {
		data[k] = v
	}
	return NewRecord(TypeUserInteraction, roomID, success, data)
}

// Nop discards every record; used in tests and when no sink is configured.
type Nop struct{}

func (Nop) Record(context.Context, Record) {}

// Multi fans a record out to several sinks.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, rec Record) {
	for _, r := range m {
		r.Record(ctx, rec)
	}
}

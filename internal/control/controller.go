// v4
// internal/control/controller.go
// Package control runs the periodic temperature control loop: read room
// state, decide heat/no-heat per room, command actuators, and commit the
// outcome back to the store.
package control

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maxmcoste/home-controller/internal/actions"
	"github.com/maxmcoste/home-controller/internal/metrics"
	"github.com/maxmcoste/home-controller/internal/store"
)

// Sensor reads the current temperature of a room. Optional: when absent the
// controller relies entirely on externally pushed reports.
type Sensor interface {
	Read(ctx context.Context, roomID string) (float64, error)
}

// Actuator switches a room heater. A nil error is the acknowledgment that
// lets the controller commit the new status.
type Actuator interface {
	SetHeater(ctx context.Context, roomID string, on bool) error
}

// Stats are the counters exposed on the /status endpoint.
type Stats struct {
	Ticks            int64     `json:"ticks"`
	RoomsSkipped     int64     `json:"roomsSkipped"`
	Transitions      int64     `json:"transitions"`
	ActuatorFailures int64     `json:"actuatorFailures"`
	LastTick         time.Time `json:"lastTick,omitempty"`
}

// Options wires a Controller.
type Options struct {
	Interval  time.Duration // tick period; floored to 1s
	Deadband  float64       // °C; 0 means strict less-than thresholding
	IOTimeout time.Duration // bound for one sensor or actuator call
	Sensor    Sensor        // optional polling source
	Actuator  Actuator
	Recorder  actions.Recorder
}

// Controller owns the control loop. It is handed the store by reference; no
// package-level state exists, so tests can run several controllers side by
// side.
type Controller struct {
	store     *store.Store
	sensor    Sensor
	actuator  Actuator
	rec       actions.Recorder
	interval  time.Duration
	deadband  float64
	ioTimeout time.Duration
	log       *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// New builds a controller around the shared store.
func New(st *store.Store, opts Options, log *slog.Logger) *Controller {
	if opts.Interval < time.Second {
		opts.Interval = time.Second
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = 5 * time.Second
	}
	if opts.Recorder == nil {
		opts.Recorder = actions.Nop{}
	}
	return &Controller{
		store:     st,
		sensor:    opts.Sensor,
		actuator:  opts.Actuator,
		rec:       opts.Recorder,
		interval:  opts.Interval,
		deadband:  opts.Deadband,
		ioTimeout: opts.IOTimeout,
		log:       log.With(slog.String("component", "controller")),
	}
}

// Run executes ticks on the configured period until ctx is cancelled. Ticks
// run synchronously on this goroutine and the ticker drops intervals that
// elapse while one is still in flight, so ticks never overlap and a missed
// period is skipped rather than queued.
func (c *Controller) Run(ctx context.Context) {
	c.log.Info("control loop starting", "interval", c.interval.String(), "deadband_c", c.deadband)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("control loop exiting")
			return
		case <-ticker.C:
			c.Tick(ctx)
			// the ticker buffers one period; drop it if it elapsed while
			// the tick was running so a long tick is skipped, not queued
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

// Tick performs one evaluate-and-actuate pass over all rooms. Exported so
// tests and the status surface can drive the loop without real time.
func (c *Controller) Tick(ctx context.Context) {
	if c.sensor != nil {
		c.poll(ctx)
	}

	// Decisions work on a snapshot: the store lock is never held across
	// actuator I/O, so reports and target changes proceed during the tick.
	rooms := c.store.Snapshot()
	for _, room := range rooms {
		if ctx.Err() != nil {
			return
		}
		c.evaluate(ctx, room)
	}

	heatersOn := 0
	for _, room := range c.store.Snapshot() {
		if room.HeaterOn {
			heatersOn++
		}
	}
	metrics.HeatersOn.Set(float64(heatersOn))
	metrics.TicksTotal.Inc()

	c.mu.Lock()
	c.stats.Ticks++
	c.stats.LastTick = time.Now().UTC()
	c.mu.Unlock()
}

func (c *Controller) poll(ctx context.Context) {
	for _, room := range c.store.Snapshot() {
		if ctx.Err() != nil {
			return
		}
		rctx, cancel := context.WithTimeout(ctx, c.ioTimeout)
		value, err := c.sensor.Read(rctx, room.ID)
		cancel()
		if err != nil {
			c.log.Warn("sensor read failed", "room", room.ID, "error", err)
			continue
		}
		if err := c.store.ReportTemperature(room.ID, value); err != nil {
			// room removed between snapshot and report; next tick sees the new set
			c.log.Debug("reading dropped", "room", room.ID, "error", err)
		}
	}
}

func (c *Controller) evaluate(ctx context.Context, room store.RoomState) {
	if room.Current == nil {
		c.log.Debug("no reading yet, deferring control", "room", room.ID)
		metrics.RoomsSkippedTotal.Inc()
		c.mu.Lock()
		c.stats.RoomsSkipped++
		c.mu.Unlock()
		return
	}

	current := *room.Current
	should := shouldHeat(current, room.Target, c.deadband, room.HeaterOn)
	if should == room.HeaterOn {
		// equality against the committed status is the de-dup that bounds
		// actuator traffic to state transitions
		return
	}

	actx, cancel := context.WithTimeout(ctx, c.ioTimeout)
	err := c.actuator.SetHeater(actx, room.ID, should)
	cancel()
	if err != nil {
		c.log.Error("actuator notify failed, status unchanged", "room", room.ID, "wanted_on", should, "error", err)
		metrics.ActuatorCallsTotal.WithLabelValues("failure").Inc()
		c.rec.Record(ctx, actions.HeaterOperation(room.ID, should, current, room.Target, false))
		c.mu.Lock()
		c.stats.ActuatorFailures++
		c.mu.Unlock()
		return
	}

	if err := c.store.CommitHeater(room.ID, should); err != nil {
		c.log.Warn("commit after actuation failed", "room", room.ID, "error", err)
		return
	}
	c.log.Info("heater switched", "room", room.ID, "on", should,
		"current_c", current, "target_c", room.Target)
	metrics.ActuatorCallsTotal.WithLabelValues("success").Inc()
	c.rec.Record(ctx, actions.HeaterOperation(room.ID, should, current, room.Target, true))
	c.mu.Lock()
	c.stats.Transitions++
	c.mu.Unlock()
}

// Stats returns a copy of the loop counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// shouldHeat applies the thresholding rule. With a zero band this is the
// strict current < target comparison (equal means off). A positive band
// keeps the previous state while the reading sits inside
// [target-band, target+band), which suppresses chattering near the target.
func shouldHeat(current, target, band float64, prev bool) bool {
	switch {
	case current < target-band:
		return true
	case current >= target+band:
		return false
	default:
		return prev
	}
}

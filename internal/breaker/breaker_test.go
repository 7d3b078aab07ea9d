// v0
// internal/breaker/breaker_test.go
package breaker

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func newTestBreaker(t *testing.T) (*Breaker, *time.Time) {
	t.Helper()
	now := time.Date(2025, 1, 20, 8, 0, 0, 0, time.UTC)
	b := New("test", Config{FailureThreshold: 2, Cooldown: 10 * time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	b.now = func() time.Time { return now }
	return b, &now
}

func fail(b *Breaker) error { return b.Do(func() error { return errBoom }) }
func succeed(b *Breaker) error {
	return b.Do(func() error { return nil })
}

func TestOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(t)
	if err := fail(b); !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped call error, got %v", err)
	}
	if b.State() != Closed {
		t.Fatal("one failure must not open the breaker")
	}
	_ = fail(b)
	if b.State() != Open {
		t.Fatal("breaker should open at the threshold")
	}
	if err := succeed(b); !errors.Is(err, ErrOpen) {
		t.Fatalf("open breaker must fast-fail, got %v", err)
	}
}

func TestProbeClosesAfterCooldown(t *testing.T) {
	b, now := newTestBreaker(t)
	_ = fail(b)
	_ = fail(b)

	*now = now.Add(11 * time.Second)
	if err := succeed(b); err != nil {
		t.Fatalf("probe after cooldown should run, got %v", err)
	}
	if b.State() != Closed {
		t.Fatalf("successful probe should close, state %v", b.State())
	}
}

func TestFailedProbeReopens(t *testing.T) {
	b, now := newTestBreaker(t)
	_ = fail(b)
	_ = fail(b)

	*now = now.Add(11 * time.Second)
	if err := fail(b); !errors.Is(err, errBoom) {
		t.Fatalf("probe should run the call, got %v", err)
	}
	if b.State() != Open {
		t.Fatal("failed probe must reopen the breaker")
	}
	if err := succeed(b); !errors.Is(err, ErrOpen) {
		t.Fatalf("reopened breaker must fast-fail, got %v", err)
	}
}

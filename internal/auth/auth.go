// v2
// internal/auth/auth.go
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// GenerateToken derives the control token for a timestamp: hex
// HMAC-SHA256 keyed by the secret over "secret:timestamp". Clients build
// their requests with this; the validator recomputes it.
func GenerateToken(secret, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(secret + ":" + timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticator validates time-boxed single-use tokens for privileged
// control commands. Every failure mode collapses to false so the caller's
// response cannot be used as an oracle; the log line carries the real cause.
type Authenticator struct {
	secret string
	window time.Duration
	log    *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	used map[string]time.Time
}

// New builds an authenticator. An empty secret permanently disables
// validation (fail closed).
func New(secret string, window time.Duration, log *slog.Logger) *Authenticator {
	return &Authenticator{
		secret: secret,
		window: window,
		log:    log.With(slog.String("component", "auth")),
		now:    time.Now,
		used:   map[string]time.Time{},
	}
}

// Enabled reports whether a control secret is configured at all, so the
// transport can describe the privileged surface as unavailable.
func (a *Authenticator) Enabled() bool {
	return a.secret != ""
}

// Generate returns the expected token for a timestamp using the configured
// secret.
func (a *Authenticator) Generate(timestamp string) string {
	return GenerateToken(a.secret, timestamp)
}

// Validate checks a (token, timestamp) pair. The order matters: the replay
// cache is consulted before the token is recomputed so a replayed valid
// token inside the window is still rejected, and the final comparison is
// constant time. On success the token is marked used inside the same
// critical section that re-checks the cache, so of two concurrent calls
// presenting the same token at most one can win. Entries older than the
// window are purged lazily on each call, an O(n) cost acceptable at this
// scale.
func (a *Authenticator) Validate(token, timestamp string) bool {
	if a.secret == "" {
		a.log.Warn("control command rejected", "reason", "no control secret configured")
		return false
	}

	now := a.now()

	a.mu.Lock()
	for t, seen := range a.used {
		if now.Sub(seen) > a.window {
			delete(a.used, t)
		}
	}
	_, replayed := a.used[token]
	a.mu.Unlock()
	if replayed {
		a.log.Warn("control command rejected", "reason", "token replay")
		return false
	}

	ts, err := strconv.ParseFloat(timestamp, 64)
	if err != nil {
		a.log.Warn("control command rejected", "reason", "malformed timestamp")
		return false
	}
	skew := now.Sub(time.Unix(int64(ts), 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > a.window {
		a.log.Warn("control command rejected", "reason", "timestamp outside window", "skew", skew.String())
		return false
	}

	expected := GenerateToken(a.secret, timestamp)
	if !hmac.Equal([]byte(token), []byte(expected)) {
		a.log.Warn("control command rejected", "reason", "token mismatch")
		return false
	}

	// check-and-mark must be atomic: a concurrent call with the same token
	// may have passed the early replay check while this one was computing
	a.mu.Lock()
	_, replayed = a.used[token]
	if !replayed {
		a.used[token] = now
	}
	a.mu.Unlock()
	if replayed {
		a.log.Warn("control command rejected", "reason", "token replay")
		return false
	}
	return true
}

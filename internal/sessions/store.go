// Package sessions implements SessionStore (spec C4): a durable, bounded,
// per-(user,room) message log with context assembly and TTL sweeping.
package sessions

import (
	"context"
	"time"

	"github.com/secops-bot/engine/internal/models"
)

// Store is the SessionStore capability. Implementations must serialise
// operations per session key; independent keys may proceed concurrently.
type Store interface {
	// Append adds a message to the session, creating it if absent, and
	// evicts the oldest message(s) if the session would exceed MaxMessages.
	Append(ctx context.Context, key string, msg models.Message) error

	// Context returns the session's messages concatenated into a single
	// prompt prefix, truncated from the front to stay under MaxContextChars
	// without splitting a message. Returns "" if the session is absent.
	Context(ctx context.Context, key string) (string, error)

	// Delete removes the session, returning whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// SweepExpired deletes sessions whose LastTouchedAt is older than ttl
	// relative to now, returning the count removed.
	SweepExpired(ctx context.Context, now time.Time, ttl time.Duration) (int, error)
}

package sessions

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/secops-bot/engine/internal/models"
)

// MemoryStore is an in-memory Store implementation for tests and local runs.
// Each session key owns its own mutex-free slice guarded by the store-wide
// lock; clones are returned so callers can't mutate stored state.
type MemoryStore struct {
	mu              sync.Mutex
	sessions        map[string]*models.Session
	maxMessages     int
	maxContextChars int
}

// NewMemoryStore builds a MemoryStore bounded by maxMessages (0 = default
// 30) and maxContextChars (0 = default 4000).
func NewMemoryStore(maxMessages, maxContextChars int) *MemoryStore {
	if maxMessages <= 0 {
		maxMessages = 30
	}
	if maxContextChars <= 0 {
		maxContextChars = 4000
	}
	return &MemoryStore{
		sessions:        make(map[string]*models.Session),
		maxMessages:     maxMessages,
		maxContextChars: maxContextChars,
	}
}

func (m *MemoryStore) Append(ctx context.Context, key string, msg models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	sess, ok := m.sessions[key]
	if !ok {
		sess = &models.Session{Key: key, CreatedAt: now}
		m.sessions[key] = sess
	}
	sess.Messages = append(sess.Messages, msg)
	if len(sess.Messages) > m.maxMessages {
		excess := len(sess.Messages) - m.maxMessages
		sess.Messages = append([]models.Message{}, sess.Messages[excess:]...)
	}
	sess.LastTouchedAt = now
	return nil
}

func (m *MemoryStore) Context(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[key]
	if !ok || len(sess.Messages) == 0 {
		return "", nil
	}
	return buildContext(sess.Messages, m.maxContextChars), nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.sessions[key]
	delete(m.sessions, key)
	return ok, nil
}

func (m *MemoryStore) SweepExpired(ctx context.Context, now time.Time, ttl time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, sess := range m.sessions {
		if now.Sub(sess.LastTouchedAt) > ttl {
			delete(m.sessions, key)
			removed++
		}
	}
	return removed, nil
}

// buildContext concatenates messages into a single prompt prefix, dropping
// whole messages from the front until the remainder fits maxChars. It never
// splits a message: the first included message always starts at its own
// boundary.
func buildContext(messages []models.Message, maxChars int) string {
	var lines []string
	for _, msg := range messages {
		lines = append(lines, string(msg.Role)+": "+msg.Content)
	}

	for len(lines) > 0 {
		joined := strings.Join(lines, "\n")
		if len(joined) <= maxChars {
			return joined
		}
		lines = lines[1:]
	}
	return ""
}

// Package recovery implements ErrorRecovery (spec C5): per-tool-class
// retry policy, rolling error counts with hourly auto-reset, an
// availability gate, and context-aware fallback text. The retry mechanics
// (exponential backoff, context-aware sleep) follow the teacher's
// internal/retry package; the exact policy constants, thresholds, and
// fallback strings follow the original Python error_recovery.py.
package recovery

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/secops-bot/engine/internal/models"
	"github.com/secops-bot/engine/internal/observability"
)

// Policy is the retry policy for one tool class.
type Policy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64
}

// defaultPolicies mirrors error_recovery.py's retry_config verbatim.
var defaultPolicies = map[models.ToolClass]Policy{
	models.ToolClassEDR:       {MaxRetries: 2, InitialDelay: time.Second, BackoffFactor: 2.0},
	models.ToolClassWeather:   {MaxRetries: 3, InitialDelay: 500 * time.Millisecond, BackoffFactor: 1.5},
	models.ToolClassDocSearch: {MaxRetries: 1, InitialDelay: 500 * time.Millisecond, BackoffFactor: 1.0},
	models.ToolClassDefault:   {MaxRetries: 2, InitialDelay: time.Second, BackoffFactor: 2.0},
}

// thresholds mirrors is_tool_available's hardcoded per-class thresholds.
var thresholds = map[models.ToolClass]int{
	models.ToolClassEDR:     5,
	models.ToolClassWeather: 10,
}

const defaultThreshold = 8
const highRateWarningAt = 10

// fallbackResponses mirrors error_recovery.py's fallback_responses verbatim.
var fallbackResponses = map[string]string{
	"crowdstrike_device_status":  "⚠️ Unable to retrieve device status at this time. Please check CrowdStrike Falcon console directly or try again later.",
	"crowdstrike_device_details": "⚠️ Unable to retrieve device details at this time. Please check CrowdStrike Falcon console directly for device information.",
	"weather":                    "⚠️ Weather information is temporarily unavailable. Please check a reliable weather service directly.",
	"document_search":            "⚠️ Document search is temporarily unavailable. Please refer to your local SOC documentation or contact your security team.",
	"tipper":                     "⚠️ Tipper lookup is temporarily unavailable. Please check the ticketing system directly.",
	"contacts":                   "⚠️ Contacts lookup is temporarily unavailable. Please refer to the escalation paths document directly.",
	"general":                    "⚠️ This service is temporarily unavailable. Please try again later or contact support if the issue persists.",
}

type state struct {
	errorCount  int
	lastResetAt time.Time
}

// Manager is the process-wide ErrorRecovery singleton. One Manager should
// be constructed in main and injected into the Dispatcher.
type Manager struct {
	mu            sync.Mutex
	states        map[models.ToolClass]*state
	resetInterval time.Duration
	log           *slog.Logger
	Metrics       *observability.Metrics // optional; nil disables recording
}

// New constructs a Manager with the given reset interval (default 1h).
func New(resetInterval time.Duration, log *slog.Logger) *Manager {
	if resetInterval <= 0 {
		resetInterval = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		states:        make(map[models.ToolClass]*state),
		resetInterval: resetInterval,
		log:           log.With("component", "recovery"),
	}
}

func (m *Manager) stateFor(class models.ToolClass) *state {
	s, ok := m.states[class]
	if !ok {
		s = &state{lastResetAt: time.Now()}
		m.states[class] = s
	}
	return s
}

func (m *Manager) maybeReset(s *state, now time.Time) {
	if now.Sub(s.lastResetAt) > m.resetInterval {
		s.errorCount = 0
		s.lastResetAt = now
	}
}

func policyFor(class models.ToolClass) Policy {
	if p, ok := defaultPolicies[class]; ok {
		return p
	}
	return defaultPolicies[models.ToolClassDefault]
}

func thresholdFor(class models.ToolClass) int {
	if t, ok := thresholds[class]; ok {
		return t
	}
	return defaultThreshold
}

// Run invokes op, retrying up to the class's MaxRetries with exponential
// backoff. Success resets the class's error count; terminal failure
// increments it. ctx cancellation aborts mid-backoff.
func (m *Manager) Run(ctx context.Context, class models.ToolClass, op func(ctx context.Context) (string, error)) (string, error) {
	policy := policyFor(class)
	var lastErr error
	delay := policy.InitialDelay

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		result, err := op(ctx)
		if err == nil {
			m.recordSuccess(class)
			return result, nil
		}
		lastErr = err
		m.recordError(class, err)

		if attempt < policy.MaxRetries {
			sleep := time.Duration(float64(delay))
			m.log.Warn("tool attempt failed, retrying",
				"class", class, "attempt", attempt+1, "delay_s", sleep.Seconds(), "error", err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(sleep):
			}
			delay = time.Duration(math.Round(float64(delay) * policy.BackoffFactor))
		} else {
			m.log.Error("tool failed after all retries", "class", class, "attempts", policy.MaxRetries+1, "error", err)
		}
	}
	return "", lastErr
}

func (m *Manager) recordSuccess(class models.ToolClass) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateFor(class)
	m.maybeReset(s, time.Now())
	s.errorCount = 0
}

func (m *Manager) recordError(class models.ToolClass, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	s := m.stateFor(class)
	m.maybeReset(s, now)
	s.errorCount++
	if s.errorCount > highRateWarningAt {
		m.log.Warn("high error rate", "class", class, "count", s.errorCount)
	}
	if m.Metrics != nil {
		m.Metrics.RecordError("recovery", string(class))
	}
}

// Available reports whether class has not exceeded its error threshold
// within the current reset window.
func (m *Manager) Available(class models.ToolClass) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateFor(class)
	m.maybeReset(s, time.Now())
	available := s.errorCount <= thresholdFor(class)
	if m.Metrics != nil {
		m.Metrics.SetCircuitOpen(string(class), !available)
	}
	return available
}

// Fallback returns the fixed fallback text for class, optionally refined by
// a context hint (e.g. "status" vs "details" for EDR).
func (m *Manager) Fallback(class models.ToolClass, contextHint string) string {
	hint := strings.ToLower(contextHint)
	if class == models.ToolClassEDR {
		switch {
		case strings.Contains(hint, "status") || strings.Contains(hint, "contain"):
			return fallbackResponses["crowdstrike_device_status"]
		case strings.Contains(hint, "detail") || strings.Contains(hint, "info"):
			return fallbackResponses["crowdstrike_device_details"]
		}
	}
	if msg, ok := fallbackResponses[string(class)]; ok {
		return msg
	}
	return fallbackResponses["general"]
}

// Health is the snapshot returned by Health(): per-class error counts,
// availability, and the last reset timestamp.
type Health struct {
	Counts       map[models.ToolClass]int
	Availability map[models.ToolClass]bool
	LastReset    time.Time
}

// HealthSnapshot mirrors get_health_status.
func (m *Manager) HealthSnapshot() Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	counts := make(map[models.ToolClass]int)
	availability := make(map[models.ToolClass]bool)
	var lastReset time.Time
	for _, class := range []models.ToolClass{models.ToolClassEDR, models.ToolClassWeather, models.ToolClassDocSearch} {
		s := m.stateFor(class)
		m.maybeReset(s, now)
		counts[class] = s.errorCount
		availability[class] = s.errorCount <= thresholdFor(class)
		if s.lastResetAt.After(lastReset) {
			lastReset = s.lastResetAt
		}
	}
	return Health{Counts: counts, Availability: availability, LastReset: lastReset}
}

// ErrUnavailable is returned by Run callers (via the tool loop) when a
// class has been gated off by Available.
var ErrUnavailable = errors.New("recovery: tool class unavailable")

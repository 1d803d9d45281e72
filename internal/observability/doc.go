// Package observability provides metrics and structured logging for the
// dispatch engine.
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track
// dispatch latency by route, LLM request latency and token usage, tool
// execution outcomes, per-node workflow duration, error counts by
// component, and the active session gauge.
//
//	metrics := observability.NewMetrics()
//	start := time.Now()
//	// ... dispatch ...
//	metrics.RecordDispatch("workflow", "ok", time.Since(start).Seconds())
//
// # Logging
//
// Logging is built on log/slog with request/session correlation via
// context and redaction of sensitive fields (API keys, tokens, passwords)
// before they reach a sink.
//
//	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	ctx = observability.AddSessionID(ctx, sessionKey)
//	logger.Info(ctx, "dispatched", "route", "workflow", "kind", "ioc_investigation")
package observability

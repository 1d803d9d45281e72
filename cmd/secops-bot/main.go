// Package main provides the CLI entry point for the secops-bot dispatch
// engine: a SecOps chat-bot orchestration service that routes incoming
// chat messages to fast-path handlers, a tool-calling LLM loop, or one of
// two fixed investigation workflows. Grounded on the teacher's cmd/nexus
// cobra-based CLI shape, trimmed to the subcommands this spec names.
//
// Usage:
//
//	secops-bot serve --config secops-bot.yaml
//	secops-bot doctor
//	secops-bot sessions sweep
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/secops-bot/engine/internal/chatadapter"
	chatdiscord "github.com/secops-bot/engine/internal/chatadapter/discord"
	chatslack "github.com/secops-bot/engine/internal/chatadapter/slack"
	"github.com/secops-bot/engine/internal/config"
	"github.com/secops-bot/engine/internal/dispatch"
	"github.com/secops-bot/engine/internal/llm"
	"github.com/secops-bot/engine/internal/llm/anthropicprovider"
	"github.com/secops-bot/engine/internal/llm/openaiprovider"
	"github.com/secops-bot/engine/internal/observability"
	"github.com/secops-bot/engine/internal/recovery"
	"github.com/secops-bot/engine/internal/retriever"
	"github.com/secops-bot/engine/internal/router"
	"github.com/secops-bot/engine/internal/sessions"
	"github.com/secops-bot/engine/internal/toolloop"
	"github.com/secops-bot/engine/internal/toolregistry"
	"github.com/secops-bot/engine/internal/toolsimpl"
	"github.com/secops-bot/engine/internal/workflow"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var configPath string

func buildRootCmd() *cobra.Command {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "secops-bot",
		Short: "SecOps chat-bot dispatch engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "secops-bot.yaml", "path to the YAML config file")
	root.AddCommand(buildServeCmd(), buildDoctorCmd(), buildSessionsCmd())
	return root
}

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dispatch engine against a chat transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func buildDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and dependency health without serving traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context())
		},
	}
}

func buildSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sessions", Short: "Session store maintenance"}
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Run one TTL sweep of expired sessions and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsSweep(cmd.Context())
		},
	})
	return cmd
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	return observability.NewLogger(observability.LogConfig{Level: cfg.Level, Format: cfg.Format}).Slog()
}

func openSessionStore(cfg config.SessionConfig) (sessions.Store, error) {
	if cfg.SQLitePath == "" {
		return sessions.NewMemoryStore(cfg.MaxMessages, cfg.MaxContextChars), nil
	}
	return sessions.OpenSQLiteStore(cfg.SQLitePath, cfg.MaxMessages, cfg.MaxContextChars)
}

func buildLLMClient(cfg config.LLMConfig) (llm.Client, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	switch cfg.Provider {
	case "anthropic":
		return anthropicprovider.New(apiKey, cfg.Model, cfg.Timeout), nil
	case "openai", "":
		return openaiprovider.New(apiKey, cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Logging)

	store, err := openSessionStore(cfg.Session)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}

	llmClient, err := buildLLMClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("build llm client: %w", err)
	}

	registry := toolregistry.New()
	if err := registerTools(registry, cfg.Retriever); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}
	registry.Seal()

	metrics := observability.NewMetrics()

	rec := recovery.New(cfg.Recovery.ResetInterval, log)
	rec.Metrics = metrics
	loop := toolloop.New(llmClient, registry, rec)
	loop.Metrics = metrics
	r := router.New(cfg.Router.BotNameAliases, internalDomainSet(cfg.Router.CompanyDomains))

	d := dispatch.New(r, store, loop, workflow.IOCSources{Recovery: rec, Metrics: metrics}, workflow.IncidentSources{Recovery: rec, Metrics: metrics}, internalDomainSet(cfg.Router.CompanyDomains), cfg.Session.SessionTTL, cfg.Session.SweepInterval, log)
	d.Metrics = metrics
	if cfg.Router.AzdoBaseURL != "" {
		d.Tipper = toolsimpl.NewTipper(cfg.Router.AzdoBaseURL)
	}
	if cfg.Retriever.ContactsManifestPath != "" {
		contactsStore, err := retriever.LoadManifest(cfg.Retriever.ContactsManifestPath)
		if err != nil {
			return fmt.Errorf("load contacts manifest: %w", err)
		}
		d.Contacts = toolsimpl.NewContacts(contactsStore)
	}
	d.FalconApprovedRooms = toSet(cfg.Router.FalconApprovedRooms)

	scheduler := dispatch.NewScheduler(log)
	if err := scheduler.AddSessionSweep(store, cfg.Session.SessionTTL, cfg.Session.SweepInterval); err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}
	if err := scheduler.AddRecoveryHealthLog(rec, cfg.Recovery.ResetInterval); err != nil {
		return fmt.Errorf("schedule recovery health log: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop(context.Background())

	go serveMetrics(cfg.Server.MetricsPort, log)

	transport, err := buildTransport(cfg.Server.Transport)
	if err != nil {
		return fmt.Errorf("build chat transport: %w", err)
	}
	adapter := chatadapter.New(transport, d, chatadapter.Filter{
		ApprovedRooms:   toSet(cfg.Router.ApprovedRooms),
		ApprovedDomains: toSet(cfg.Router.ApprovedDomains),
	}, chatadapter.Config{
		ThinkingInterval: time.Duration(cfg.Chat.ThinkingIntervalSeconds) * time.Second,
		MaxThinkingEdits: cfg.Chat.MaxThinkingEdits,
		MaxMessageChars:  cfg.Chat.MaxMessageChars,
	}, log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if listener, ok := transport.(chatadapter.Listener); ok {
		go func() {
			if err := listener.Listen(ctx, adapter.HandleEvent); err != nil && ctx.Err() == nil {
				log.Error("secops-bot: transport listener stopped", "error", err)
			}
		}()
	} else {
		log.Warn("secops-bot: transport has no event listener; HandleEvent must be driven externally", "transport", cfg.Server.Transport)
	}

	log.Info("secops-bot: serving", "transport", cfg.Server.Transport, "metrics_port", cfg.Server.MetricsPort)

	<-ctx.Done()
	log.Info("secops-bot: shutting down")
	return nil
}

// registerTools wires the document_search tool when a retriever manifest
// is configured; deployment-specific SecOps tools (EDR, VT, AbuseIPDB,
// Shodan, QRadar, RecordedFuture) are registered the same way by a
// deployment's own init code before Seal.
func registerTools(registry *toolregistry.Registry, cfg config.RetrieverConfig) error {
	if cfg.ManifestPath == "" {
		return nil
	}
	store, err := retriever.LoadManifest(cfg.ManifestPath)
	if err != nil {
		return err
	}
	return registry.Register(toolsimpl.NewDocSearch(store))
}

func buildTransport(kind string) (chatadapter.Transport, error) {
	switch kind {
	case "discord":
		return chatdiscord.New(os.Getenv("DISCORD_BOT_TOKEN"))
	case "slack", "":
		if appToken := os.Getenv("SLACK_APP_TOKEN"); appToken != "" {
			return chatslack.NewWithSocketMode(os.Getenv("SLACK_BOT_TOKEN"), appToken), nil
		}
		return chatslack.New(os.Getenv("SLACK_BOT_TOKEN")), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
}

func serveMetrics(port int, log *slog.Logger) {
	if port <= 0 {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("secops-bot: metrics server stopped", "error", err)
	}
}

func runDoctor(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("config:   FAIL (%v)\n", err)
		return err
	}
	fmt.Println("config:   OK")

	store, err := openSessionStore(cfg.Session)
	if err != nil {
		fmt.Printf("sessions: FAIL (%v)\n", err)
		return err
	}
	if _, err := store.SweepExpired(ctx, time.Now(), cfg.Session.SessionTTL); err != nil {
		fmt.Printf("sessions: FAIL (%v)\n", err)
		return err
	}
	fmt.Println("sessions: OK")

	if _, err := buildLLMClient(cfg.LLM); err != nil {
		fmt.Printf("llm:      FAIL (%v)\n", err)
		return err
	}
	fmt.Printf("llm:      OK (provider=%s model=%s)\n", cfg.LLM.Provider, cfg.LLM.Model)

	rec := recovery.New(cfg.Recovery.ResetInterval, slog.Default())
	health := rec.HealthSnapshot()
	fmt.Printf("recovery: OK (last_reset=%s)\n", health.LastReset.Format(time.RFC3339))
	return nil
}

func runSessionsSweep(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store, err := openSessionStore(cfg.Session)
	if err != nil {
		return err
	}
	n, err := store.SweepExpired(ctx, time.Now(), cfg.Session.SessionTTL)
	if err != nil {
		return err
	}
	fmt.Printf("swept %d expired session(s)\n", n)
	return nil
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	out := make(map[string]bool, len(items))
	for _, i := range items {
		out[i] = true
	}
	return out
}

func internalDomainSet(companyDomains []string) map[string]bool {
	return toSet(companyDomains)
}

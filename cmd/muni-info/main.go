package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/muni-info/backend/internal/channel"
	"github.com/muni-info/backend/internal/config"
	"github.com/muni-info/backend/internal/conversation"
	"github.com/muni-info/backend/internal/geocode"
	httpapi "github.com/muni-info/backend/internal/http"
	"github.com/muni-info/backend/internal/notify"
	"github.com/muni-info/backend/internal/routing"
	"github.com/muni-info/backend/internal/session"
	"github.com/muni-info/backend/internal/store"
	"github.com/muni-info/backend/internal/triage"
)

const version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "muni-info",
	Short: "muni-info - multi-channel municipal complaint service",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server, webhooks and channels",
	RunE:  runServe,
}

var classifyCmd = &cobra.Command{
	Use:   "classify [text]",
	Short: "Run the complaint classifier on text and print the result",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, classifyCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "muni-info").Logger()

	ctx := context.Background()

	var complaints store.ComplaintStore
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		complaints = pg
		logger.Info().Msg("using postgres complaint store")
	} else {
		complaints = store.NewMemory()
		logger.Info().Msg("DATABASE_URL not set, using in-memory complaint store")
	}

	sessions := session.NewStore(cfg.SessionTTL)
	registry := routing.NewRegistry(routing.DefaultDepartments(), routing.DefaultStaff(), logger)
	complaintRouter := routing.NewEngine(registry, logger)

	resolver := &geocode.FallbackResolver{
		Primary: &geocode.MapItResolver{
			BaseURL: cfg.MapItBaseURL,
			Client:  &http.Client{Timeout: cfg.MapItTimeout},
		},
		Fallback: geocode.NewSeedResolver(),
		Logger:   logger,
	}

	dispatcher := notify.NewDispatcher(logger)

	engine := conversation.NewEngine(
		sessions,
		triage.New(),
		complaintRouter,
		complaints,
		resolver,
		dispatcher,
		logger,
		cfg.DefaultLanguage,
	)

	if cfg.TelegramBotToken != "" {
		tg, err := channel.NewTelegramChannel(cfg.TelegramBotToken, cfg.TelegramPollTimeout, engine, logger)
		if err != nil {
			return fmt.Errorf("telegram channel: %w", err)
		}
		if err := tg.Start(ctx); err != nil {
			return fmt.Errorf("start telegram channel: %w", err)
		}
		defer tg.Stop()
		dispatcher.Register("telegram", tg)
	}

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.SessionSweepCron, func() {
		if n := sessions.CleanupExpired(); n > 0 {
			logger.Info().Int("expired", n).Int("active", sessions.Len()).Msg("session sweep")
		}
	}); err != nil {
		return fmt.Errorf("sweep schedule %q: %w", cfg.SessionSweepCron, err)
	}
	if _, err := sweeper.AddFunc("@daily", func() {
		for _, d := range registry.DepartmentStatusList() {
			logger.Info().
				Str("department", d.Code).
				Int("load", d.CurrentLoad).
				Float64("load_percent", d.LoadPercent).
				Msg("department load")
		}
	}); err != nil {
		return fmt.Errorf("snapshot schedule: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	router := httpapi.Router(cfg, complaints, engine, registry, complaintRouter, dispatcher, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	cls := triage.New().Classify(strings.Join(args, " "), "")
	b, err := json.MarshalIndent(cls, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

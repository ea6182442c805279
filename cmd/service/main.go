package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	wis "wis-backend"
	"wis-backend/internal/bus"
	"wis-backend/internal/sessions"
	"wis-backend/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(getenv("LOG_LEVEL", "info"))}))
	port := getenv("PORT", "8080")
	ctx := context.Background()

	catalog, profile, err := loadThresholds(getenv("THRESHOLDS_PATH", ""), getenv("THRESHOLD_PROFILE", wis.ProfileStandard))
	if err != nil {
		logger.Error("invalid threshold configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	plant := wis.PlantSpec{
		DesignFlow: getenvFloat("DESIGN_FLOW", wis.DefaultDesignFlow),
		TankVolume: getenvFloat("TANK_VOLUME", wis.DefaultTankVolume),
	}
	if err := wis.ValidatePlant(plant); err != nil {
		logger.Error("invalid plant configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	history, err := openHistory(ctx, logger)
	if err != nil {
		logger.Error("failed to open history", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer history.Close()

	var store sessions.Store = sessions.NewMemoryStore()
	if dsn := getenv("DATABASE_URL", ""); dsn != "" {
		pgStore, err := sessions.NewPostgresStore(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to session db", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pgStore.Close()
		store = pgStore
	}
	gate, err := sessions.NewGate(getenv("ACCESS_SECRET_HASH", ""), store)
	if err != nil {
		logger.Error("invalid ACCESS_SECRET_HASH", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if !gate.Enabled() {
		logger.Warn("access gate disabled: ACCESS_SECRET_HASH not set")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler := &Handler{
		Gate:       gate,
		Sessions:   gate.Resolver(),
		History:    history,
		Thresholds: catalog,
		Profile:    profile,
		Plant:      plant,
		Metrics:    telemetry.NewMetrics(registry),
		Logger:     logger,
	}
	if natsURL := getenv("NATS_URL", ""); natsURL != "" {
		publisher, err := bus.NewPublisher(natsURL)
		if err != nil {
			logger.Warn("event publishing disabled", slog.String("error", err.Error()))
		} else {
			defer publisher.Close()
			handler.Bus = publisher
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	handler.RegisterRoutes(r)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	shutdownErr := make(chan error, 1)
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr <- server.Shutdown(ctx)
	}()

	logger.Info("wis service listening", slog.String("port", port), slog.String("thresholdProfile", profile))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.String("error", err.Error()))
		return
	}

	if err := <-shutdownErr; err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}
}

func loadThresholds(path, profile string) (wis.ThresholdCatalog, string, error) {
	catalog := wis.DefaultCatalog()
	if strings.TrimSpace(path) != "" {
		loaded, err := wis.LoadThresholds(path)
		if err != nil {
			return nil, "", err
		}
		catalog = loaded
	}
	if _, err := catalog.Lookup(profile); err != nil {
		return nil, "", err
	}
	return catalog, profile, nil
}

// openHistory opens the CSV history and, when HISTORY_SQL_TYPE is set, mirrors
// every record into that database as well.
func openHistory(ctx context.Context, logger *slog.Logger) (wis.HistoryStore, error) {
	primary := wis.NewCSVHistoryStore(getenv("HISTORY_PATH", wis.DefaultHistoryPath))
	sqlType := getenv("HISTORY_SQL_TYPE", "")
	if sqlType == "" {
		return primary, nil
	}
	store, err := wis.OpenHistoryStore(ctx, wis.StoreConfig{
		Type:     sqlType,
		Host:     getenv("HISTORY_SQL_HOST", "localhost"),
		Port:     getenvInt("HISTORY_SQL_PORT", 0),
		User:     getenv("HISTORY_SQL_USER", ""),
		Password: getenv("HISTORY_SQL_PASSWORD", ""),
		Database: getenv("HISTORY_SQL_DATABASE", ""),
		SSLMode:  getenv("HISTORY_SQL_SSLMODE", ""),
		Table:    getenv("HISTORY_SQL_TABLE", wis.DefaultHistoryTable),
	})
	if err != nil {
		return nil, err
	}
	mirror, ok := store.(*wis.SQLHistoryStore)
	if !ok {
		store.Close()
		return nil, errors.New("HISTORY_SQL_TYPE must name a sql database")
	}
	logger.Info("history mirror enabled", slog.String("type", sqlType))
	return &wis.MirroredHistoryStore{Primary: primary, Mirrors: []wis.HistoryStore{mirror}}, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(val); err == nil {
		return parsed
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if parsed, err := strconv.ParseFloat(val, 64); err == nil {
		return parsed
	}
	return fallback
}

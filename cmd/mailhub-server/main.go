package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/modkit/mailhub/internal/config"
	"github.com/modkit/mailhub/internal/db"
	"github.com/modkit/mailhub/internal/httpapi"
	"github.com/modkit/mailhub/internal/mailbox/device"
	"github.com/modkit/mailhub/internal/mailbox/service"
	sqlitestore "github.com/modkit/mailhub/internal/mailbox/store/sqlite"
	"github.com/modkit/mailhub/internal/ws"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().
		Timestamp().Str("service", "mailhub-server").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer conn.Close()

	writer := db.NewWorker(conn)
	defer writer.Close()

	eventStore := sqlitestore.NewEventStore(conn, writer, logger)

	// Devices
	if err := os.MkdirAll(cfg.CaptureDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("create capture dir")
	}
	sensor := device.NewContactSensor("door sensor", cfg.SensorPath, logger)
	light := device.NewLight("capture light", cfg.LightPath, logger)
	camera := device.NewCamera("door camera", cfg.CaptureDir, cfg.Hardware, light, logger)
	devices := device.NewRegistry(sensor, light, camera)

	// Hub and services
	registry := ws.NewRegistry(logger)
	protocol := service.NewProtocol(eventStore, devices, cfg.AccessPIN, logger)
	watchdog := service.NewWatchdog(sensor, camera, eventStore, registry,
		service.WatchdogConfig{Interval: cfg.PollInterval}, logger)
	watchdog.Start(ctx)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:   logger,
		Addr:     cfg.HTTPAddr,
		Registry: registry,
		Handler:  protocol,
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()

	watchdog.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

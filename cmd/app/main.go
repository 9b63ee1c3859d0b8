package main

import (
	"DentoScan/internal/config"
	"DentoScan/pkg/log"
	"context"
	"github.com/joho/godotenv"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Warnf("No .env file loaded, using process environment: %v", err)
	}

	validator := config.NewValidator()
	appConfig, err := config.LoadAppConfig(validator)
	if err != nil {
		logger.Fatal(err)
	}

	fiberApp := config.NewFiber(logger, appConfig)

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithAppConfig(appConfig),
		config.WithDatabase(),
		config.WithRedisCache(),
		config.WithStorage(),
		config.WithDetector(),
		config.WithReportGenerator(),
		config.WithDICOMConverter(),
		config.WithMiddleware(),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	if err := server.RegisterHandler(); err != nil {
		logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server.StartCleaner(ctx)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Infof("Server started on port %s", appConfig.Port)

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}

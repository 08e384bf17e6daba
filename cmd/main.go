package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/eresh-mittal/ImageProc/config"
	"github.com/eresh-mittal/ImageProc/internal/app"
	"github.com/eresh-mittal/ImageProc/internal/db"
	log "github.com/eresh-mittal/ImageProc/internal/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("Failed to load .env file: %v", err)
	}

	log.InitializeAndConfigure()
	cfg := config.Load()

	sslEnabled := cfg.DB.SSLEnabled
	database, err := db.New(db.Options{
		Driver:     cfg.DB.Driver,
		Host:       cfg.DB.Host,
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		DBName:     cfg.DB.Name,
		Port:       cfg.DB.Port,
		SSLEnabled: &sslEnabled,
		Path:       cfg.DB.Path,
		LogLevel:   logger.Warn,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	application, err := app.New(cfg, database)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go application.Start(ctx, &wg)

	go func() {
		<-ctx.Done()
		log.Info("Shutting down server...")
		if err := application.Fiber.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Errorf("Server shutdown failed: %v", err)
		}
	}()

	log.Infof("Server starting on port %s", cfg.Port)
	if err := application.Fiber.Listen(":" + cfg.Port); err != nil {
		log.Errorf("Server stopped: %v", err)
	}

	// Stop the worker even when Listen failed on its own
	stop()
	wg.Wait()
	log.Info("Shutdown complete")
}

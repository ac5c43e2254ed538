package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"fieldservice-backend/config"
	"fieldservice-backend/internal/api"
	"fieldservice-backend/internal/auth"
	"fieldservice-backend/internal/db"
	"fieldservice-backend/internal/gateway"
	"fieldservice-backend/internal/journal"
	"fieldservice-backend/internal/lifecycle"
	"fieldservice-backend/internal/metrics"
	"fieldservice-backend/internal/normalize"
	"fieldservice-backend/internal/notify"
	"fieldservice-backend/internal/store"
	"fieldservice-backend/internal/transport"
)

func main() {
	logger := log.New(os.Stdout, "fieldsvc ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := metrics.NewCollector()

	authCtx := auth.NewContext(auth.Session{
		TechCode:   cfg.Session.TechCode,
		Token:      cfg.Session.Token,
		CompanyRef: cfg.Session.CompanyRef,
	})

	jobStore := store.New(collector)
	engine := lifecycle.New(jobStore, collector)
	normalizer := normalize.New(normalize.DefaultDedupeCapacity, collector)

	actionGateway := gateway.New(gateway.Config{
		BaseURL:     cfg.Upstream.RestBaseURL,
		Headers:     cfg.Upstream.Headers,
		Timeout:     cfg.Upstream.RequestTimeout,
		CategoryTTL: time.Duration(cfg.Upstream.CategoryTTLSeconds) * time.Second,
	}, authCtx, engine, jobStore, collector)

	session := transport.NewSession(transport.Config{
		StreamURL: cfg.Upstream.StreamURL,
		Headers:   cfg.Upstream.Headers,
		Backoff:   cfg.Upstream.Backoff,
	}, authCtx, collector, func(state transport.State, err error) {
		if err != nil {
			logger.Printf("push stream %s: %v", state, err)
		} else {
			logger.Printf("push stream %s", state)
		}
	})

	// Inbound pipeline: raw frame -> normalizer -> lifecycle engine -> store.
	session.OnFrame(func(frame []byte) {
		if ev, ok := normalizer.Normalize(frame); ok {
			engine.ApplyEvent(ev)
		}
	})

	// Store observers: transition journal and web push announcements.
	transitionJournal := journal.New(gormDB)
	jobStore.Subscribe(transitionJournal.Listener())

	workerPool := notify.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions)
	workerPool.Start(ctx)
	jobStore.Subscribe(workerPool.Listener())

	// An authorization rejection anywhere tears the session down; the UI
	// sees it through the connection state and re-authenticates.
	authCtx.OnUnauthorized(func() {
		logger.Println("session expired, closing push stream")
		session.Close()
	})

	if err := session.Open(ctx); err != nil {
		logger.Fatalf("failed to open push stream: %v", err)
	}

	// Cold start: populate the working set before serving the UI. A failed
	// fetch is not fatal; live events and manual refresh heal the gap.
	if count, err := actionGateway.FetchWorkingSet(ctx); err != nil {
		logger.Printf("initial working-set fetch failed: %v", err)
	} else {
		logger.Printf("initial working-set fetch loaded %d jobs", count)
	}

	handler := api.NewHandler(jobStore, actionGateway, session, transitionJournal, gormDB, &webpushOptions)
	router := api.NewRouter(handler, collector.Handler(), &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	session.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/dcbradley/netblast/config"
	"github.com/dcbradley/netblast/core"
	"github.com/dcbradley/netblast/db"
	"github.com/dcbradley/netblast/handlers"
	"github.com/dcbradley/netblast/metrics"
	"github.com/dcbradley/netblast/middleware"
	"github.com/dcbradley/netblast/services/connections"
	"github.com/dcbradley/netblast/services/flows"
	"github.com/dcbradley/netblast/services/liveness"
	"github.com/dcbradley/netblast/services/txmanager"
	"github.com/dcbradley/netblast/services/workers"
	"github.com/dcbradley/netblast/usecases/broker"
)

func main() {
	if err := run(); err != nil {
		log.Printf("❌ Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	alertMiddleware := middleware.NewErrorAlertMiddleware(middleware.AlertConfig{
		WebhookURL:  cfg.AlertConfig.WebhookURL,
		Environment: cfg.Environment,
		AppName:     "netblast",
	})

	dbConn, err := db.NewConnection(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := db.RunMigrations(dbConn, cfg.DatabaseDriver, cfg.DatabaseURL, cfg.DatabaseSchema); err != nil {
		return err
	}

	// Repositories share the one connection pool
	workersRepo := db.NewSQLWorkersRepository(dbConn, cfg.DatabaseSchema)
	connectionsRepo := db.NewSQLConnectionsRepository(dbConn, cfg.DatabaseSchema)
	flowsRepo := db.NewSQLFlowsRepository(dbConn, cfg.DatabaseSchema)

	policy := liveness.NewPolicy(cfg.LivenessWindow)
	txManager := txmanager.NewTransactionManager(dbConn)
	workersService := workers.NewWorkersService(workersRepo, core.NewCredentialSource(), core.Now)
	connectionsService := connections.NewConnectionsService(connectionsRepo, policy, core.Now)
	flowsService := flows.NewFlowsService(flowsRepo, core.Now)

	brokerUseCase := broker.NewBrokerUseCase(
		workersService,
		connectionsService,
		flowsService,
		txManager,
		policy,
		cfg.ServerCommand,
		core.Now,
	)
	brokerHandler := handlers.NewBrokerHTTPHandler(brokerUseCase)

	router := mux.NewRouter()
	router.Use(middleware.RemoteAddrMiddleware(cfg.TrustProxyHeaders))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			log.Printf("❌ Failed to write health check response: %v", err)
		}
	}).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(metrics.NewRegistry(), promhttp.HandlerOpts{})).Methods("GET")

	brokerHandler.SetupEndpoints(router)

	// Release servers whose client went quiet without reporting
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go brokerUseCase.RunReaper(reaperCtx, cfg.ReaperInterval, func(task func() error) error {
		return alertMiddleware.WrapBackgroundTask("ReapStaleConnections", task)()
	})

	allowedOrigins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           alertMiddleware.HTTPMiddleware(c.Handler(router)),
		ReadHeaderTimeout: 30 * time.Second,
	}

	return handleGracefulShutdown(server, alertMiddleware)
}

func handleGracefulShutdown(server *http.Server, alerts *middleware.ErrorAlertMiddleware) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("✅ Listening on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
		log.Printf("🛑 Shutdown signal received, cleaning up...")
	case err := <-serverErr:
		log.Printf("❌ Server error: %v", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Server shutdown error: %v", err)
		return err
	}
	alerts.Wait()

	log.Printf("✅ Server stopped gracefully")
	return nil
}

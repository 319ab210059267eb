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

	"github.com/xiaot623/gogo/agentbuilder/internal/adapter/errortrack"
	"github.com/xiaot623/gogo/agentbuilder/internal/adapter/flows"
	supervisorapi "github.com/xiaot623/gogo/agentbuilder/internal/adapter/supervisor"
	"github.com/xiaot623/gogo/agentbuilder/internal/adapter/tracestream"
	"github.com/xiaot623/gogo/agentbuilder/internal/config"
	"github.com/xiaot623/gogo/agentbuilder/internal/hub"
	"github.com/xiaot623/gogo/agentbuilder/internal/repository"
	"github.com/xiaot623/gogo/agentbuilder/internal/service"
	"github.com/xiaot623/gogo/agentbuilder/internal/supervisor"
	"github.com/xiaot623/gogo/agentbuilder/internal/trace"
	server "github.com/xiaot623/gogo/agentbuilder/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting agent builder preview service...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Flows API: %s", cfg.FlowsAPIBaseURL)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Anomalies go to the log and to the store
	reporter := errortrack.Multi{errortrack.LogReporter{}, errortrack.NewStoreReporter(db)}

	// Load presentation profiles
	profiles, err := trace.LoadProfiles(cfg.TraceProfilesFile)
	if err != nil {
		log.Fatalf("Failed to load trace profiles: %v", err)
	}

	// Initialize simulator client
	simulator := flows.NewClient(cfg.FlowsAPIBaseURL, cfg.FlowsAPIToken, cfg.SimulateTimeout)

	// Initialize supervisor loader
	var loader *supervisor.Loader
	if cfg.SupervisorAPIBaseURL != "" {
		profile, _ := profiles.Get(trace.ProfileSupervisor)
		client := supervisorapi.NewClient(cfg.SupervisorAPIBaseURL, cfg.SupervisorAPIToken, cfg.ProjectUUID, cfg.SimulateTimeout)
		loader = supervisor.NewLoader(client, trace.NewClassifier(profile, reporter))
		log.Printf("Supervisor API: %s", cfg.SupervisorAPIBaseURL)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize hub
	streamHub := hub.NewHub()
	go streamHub.Run(ctx)

	// Initialize service
	svc := service.New(db, simulator, streamHub, cfg, profiles, reporter, loader)

	// Consume upstream traces
	if cfg.TraceStreamURL != "" {
		consumer := tracestream.NewConsumer(cfg.TraceStreamURL, svc.HandleTraceFrame)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("ERROR: trace stream stopped: %v", err)
			}
		}()
		log.Printf("Trace stream: %s", cfg.TraceStreamURL)
	}

	// Create Echo server
	e := server.NewServer(svc, streamHub, cfg)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down preview service...")
	stop()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Preview service stopped")
}

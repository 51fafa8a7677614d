package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	fsmadapter "github.com/viczenith/estatecore/internal/adapter/fsm"
	handler "github.com/viczenith/estatecore/internal/adapter/http"
	otelsetup "github.com/viczenith/estatecore/internal/adapter/otel"
	riveradapter "github.com/viczenith/estatecore/internal/adapter/river"
	"github.com/viczenith/estatecore/internal/adapter/sqlite"
	"github.com/viczenith/estatecore/internal/app"
)

func main() {
	port := envOrDefault("PORT", "8080")
	dbPath := envOrDefault("DATABASE_PATH", "estatecore.db")

	sweepInterval, err := time.ParseDuration(envOrDefault("SWEEP_INTERVAL", "6h"))
	if err != nil {
		log.Fatalf("invalid SWEEP_INTERVAL: %v", err)
	}

	ctx := context.Background()

	// --- Observability ---
	providers, err := otelsetup.Setup(ctx, otelsetup.ConfigFromEnv())
	if err != nil {
		log.Fatalf("otel: %v", err)
	}

	// --- Adapters (out) ---
	db, err := otelsetup.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	repo, err := sqlite.NewFromDB(db)
	if err != nil {
		log.Fatalf("migrations: %v", err)
	}
	defer repo.Close()

	tracedRepo := otelsetup.NewTracingRepository(repo)

	publisher := riveradapter.NewPublisher()
	tracedPublisher := otelsetup.NewTracingPublisher(publisher)

	// --- Application ---
	engine := app.NewEngine(tracedRepo, tracedPublisher, fsmadapter.New())
	sweeper := app.NewSweeper(tracedRepo, engine, tracedPublisher)
	svc := app.NewTenantService(tracedRepo, tracedPublisher)
	resolver := app.NewResolver(tracedRepo)
	sequences := app.NewSequenceAllocator(sqlite.NewSequenceStore(db))

	// --- Job queue ---
	// The sweep worker closes over the engine, and the engine publishes
	// through the River client, so the publisher binds after setup.
	riverClient, err := riveradapter.Setup(ctx, db, sweeper.Sweep, sweepInterval)
	if err != nil {
		log.Fatalf("river: %v", err)
	}
	publisher.Bind(riverClient)

	if err := riverClient.Start(ctx); err != nil {
		log.Fatalf("river start: %v", err)
	}

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(otelchi.Middleware("estatecore", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("estatecore", "0.1.0"))
	handler.Register(api, svc, engine)

	// Tenant-scoped routes sit behind the resolution middleware. Their
	// huma instance serves no docs of its own; the public one does.
	router.Group(func(gr chi.Router) {
		gr.Use(handler.ResolveTenant(resolver))
		scopedCfg := huma.DefaultConfig("estatecore", "0.1.0")
		scopedCfg.OpenAPIPath = ""
		scopedCfg.DocsPath = ""
		scopedCfg.SchemasPath = ""
		scopedAPI := humachi.New(gr, scopedCfg)
		handler.RegisterTenantScoped(scopedAPI, sequences)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("estatecore listening on :%s", port)
		log.Printf("API docs: http://localhost:%s/docs", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-done
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		log.Printf("river stop: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}

	log.Println("stopped")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

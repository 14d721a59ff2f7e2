package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/saturnino-fabrica-de-software/chamada/internal/api"
	"github.com/saturnino-fabrica-de-software/chamada/internal/app"
	"github.com/saturnino-fabrica-de-software/chamada/internal/audit"
	"github.com/saturnino-fabrica-de-software/chamada/internal/camera"
	"github.com/saturnino-fabrica-de-software/chamada/internal/config"
	"github.com/saturnino-fabrica-de-software/chamada/internal/cooldown"
	"github.com/saturnino-fabrica-de-software/chamada/internal/face"
	"github.com/saturnino-fabrica-de-software/chamada/internal/frame"
	"github.com/saturnino-fabrica-de-software/chamada/internal/identity"
	"github.com/saturnino-fabrica-de-software/chamada/internal/matching"
	"github.com/saturnino-fabrica-de-software/chamada/internal/metrics"
	"github.com/saturnino-fabrica-de-software/chamada/internal/quality"
	"github.com/saturnino-fabrica-de-software/chamada/internal/service"
	"github.com/saturnino-fabrica-de-software/chamada/internal/webhook"
	"github.com/saturnino-fabrica-de-software/chamada/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env é opcional
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting Chamada API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("store", cfg.StoreBackend),
		slog.String("camera", cfg.CameraSource),
		slog.String("embedder", cfg.Embedder),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	defer st.Close()

	embedder, err := face.NewEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(reg)

	// Identidades: carrega e reembeda registros sem embedding
	store := identity.NewStore(st.Identities)
	reconciler := identity.NewReconciler(store, st.Identities, st.Images, embedder, cfg.Upsample, logger)
	report, err := reconciler.Reconcile(ctx)
	if err != nil {
		// sem embedder ainda dá para servir o que já tem embedding
		logger.Warn("identity reconciliation aborted, loading stored embeddings only", slog.Any("error", err))
		if err := store.Load(ctx); err != nil {
			return fmt.Errorf("failed to load identities: %w", err)
		}
	} else {
		logger.Info("identities loaded",
			slog.Int("total", report.Total),
			slog.Int("reembedded", len(report.Reembedded)),
			slog.Int("dropped", len(report.Dropped)),
		)
	}

	ledger := cooldown.NewLedger(cfg.Cooldown())
	attendanceService := service.NewAttendanceService(st.Attendance)
	if cfg.SeedCooldown {
		n, err := attendanceService.SeedCooldown(ctx, ledger, time.Now())
		if err != nil {
			logger.Warn("failed to seed cooldown from journal", slog.Any("error", err))
		} else {
			logger.Info("cooldown seeded from journal", slog.Int("entries", n))
		}
	}

	// Camera (o Acquirer fecha a fonte ao parar)
	source, err := camera.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	slot := frame.NewSlot()
	acquirer := frame.NewAcquirer(source, slot, app.AcquirerConfig(cfg), logger)
	acquirer.SetObserver(recorder)

	hub := ws.NewHub(logger)
	publisher := service.Publishers{hub}
	if cfg.AuditLog {
		publisher = append(publisher, audit.NewPublisher(audit.NewSlogLogger(logger), "api"))
	}
	var notifier *webhook.Notifier
	if cfg.WebhookURL != "" {
		whCfg := webhook.DefaultConfig(cfg.WebhookURL)
		whCfg.Secret = cfg.WebhookSecret
		whCfg.Events = ws.ParseEventTypes(cfg.WebhookEvents)
		whCfg.Timeout = cfg.WebhookTimeout
		whCfg.MaxAttempts = cfg.WebhookMaxAttempts
		notifier = webhook.NewNotifier(whCfg, logger)
		publisher = append(publisher, notifier)
	}
	gate := quality.NewGate(cfg.MinFaceSize, cfg.MinSharpness)
	lock := service.NewIdentityLock()

	loop := service.NewCaptureLoop(
		slot, embedder, gate,
		matching.NewEngine(cfg.DistThreshold, cfg.Margin),
		ledger, store, st.Attendance, lock,
		app.CaptureLoopConfig(cfg), logger,
	).WithMetrics(recorder).WithPublisher(publisher)

	enroller := service.NewEnroller(
		slot, embedder, gate, store, st.Identities, st.Images, lock,
		app.EnrollmentConfig(cfg), logger,
	).WithMetrics(recorder).WithPublisher(publisher)

	identityService := service.NewIdentityService(st.Identities, st.Images, store, lock, logger).
		WithLedger(ledger).
		WithPublisher(publisher)

	aggregator := metrics.NewAggregator(recorder, metrics.Sources{
		Identities:      func() int { return store.Snapshot().Len() },
		FramesDropped:   func() uint64 { return slot.Stats().Dropped },
		CooldownEntries: ledger.Len,
	}, logger, 5*time.Second)

	workers := []func(context.Context){hub.Run, acquirer.Run, loop.Run, aggregator.Start}
	if notifier != nil {
		workers = append(workers, notifier.Run)
	}

	workersCtx, cancelWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, worker := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(workersCtx)
		}()
	}

	deps := &api.Dependencies{
		Enrollment:  enroller,
		Identities:  identityService,
		Attendance:  attendanceService,
		Annotations: loop,
		Frames:      slot,
		Camera:      acquirer,
		Hub:         hub,
		Store:       st.Pinger,
		Gatherer:    reg,
	}

	// Setup router
	router := api.NewRouter(logger, deps)
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		serveErr = fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	cancelWorkers()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("workers did not stop in time")
	}

	logger.Info("server stopped")
	return serveErr
}

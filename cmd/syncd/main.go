package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/navicare/facility-sync/internal/adapter/chromedp_crawler"
	"github.com/navicare/facility-sync/internal/adapter/cortico"
	"github.com/navicare/facility-sync/internal/adapter/postgres"
	redis_adapter "github.com/navicare/facility-sync/internal/adapter/redis"
	"github.com/navicare/facility-sync/internal/delivery/http/handler"
	"github.com/navicare/facility-sync/internal/delivery/http/router"
	"github.com/navicare/facility-sync/internal/entity"
	"github.com/navicare/facility-sync/internal/usecase"
	"github.com/navicare/facility-sync/pkg/config"
	"github.com/navicare/facility-sync/pkg/logger"
	"github.com/navicare/facility-sync/pkg/metrics"
	"github.com/navicare/facility-sync/pkg/retry"
)

func main() {
	mode := flag.String("mode", "full", "run mode: full | single | availability | range | segment | enrich | reconcile")
	page := flag.Int("page", 0, "page to process in single mode")
	start := flag.Int("start", 0, "first page in range mode")
	end := flag.Int("end", 0, "last page in range mode")
	segment := flag.Int("segment", -1, "segment index in segment mode; -1 derives it from the weekday")
	category := flag.String("category", "clinic", "upstream category for single/range mode: clinic | pharmacy | lab")
	segmented := flag.Bool("segmented", false, "reconcile against segment checkpoints instead of the full-mode one")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(2)
	}

	logger.Init(os.Stdout, logger.ParseLevel(cfg.LogLevel))
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		slog.Error("Startup failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	statusServer := app.startStatusServer(cfg.ServerPort)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = statusServer.Shutdown(shutdownCtx)
	}()

	if err := app.run(ctx, runFlags{
		mode:      *mode,
		page:      *page,
		start:     *start,
		end:       *end,
		segment:   *segment,
		category:  *category,
		segmented: *segmented,
	}); err != nil {
		if errors.Is(err, usecase.ErrAlreadyRunning) {
			slog.Warn("Another run holds the lock, nothing to do", "mode", *mode)
			os.Exit(3)
		}
		slog.Error("Run failed", "mode", *mode, "error", err)
		os.Exit(1)
	}
}

type runFlags struct {
	mode      string
	page      int
	start     int
	end       int
	segment   int
	category  string
	segmented bool
}

// app wires the adapters and use cases for one invocation.
type app struct {
	db  *pgxpool.Pool
	rdb *redis.Client

	batches     *postgres.BatchRepoImpl
	facilities  *postgres.FacilityRepoImpl
	obs         *postgres.ObservationRepoImpl
	states      *postgres.CrawlStateRepoImpl
	failedPages *postgres.FailedPageRepoImpl
	lock        *redis_adapter.RunLockImpl

	engineCfg  usecase.EngineConfig
	sources    map[entity.FacilityType]*cortico.Client
	reconciler usecase.Reconciler
	enricher   usecase.Enricher
	status     usecase.StatusProvider
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	slog.Info("PostgreSQL connection pool established")

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("Redis connection established")

	retryOpts := retry.Options{
		MaxAttempts: cfg.MaxRetries,
		InitialWait: cfg.RetryBaseWait(),
		MaxWait:     cfg.RetryMaxWait(),
		Jitter:      true,
	}

	a := &app{
		db:          db,
		rdb:         rdb,
		batches:     postgres.NewBatchRepo(db),
		facilities:  postgres.NewFacilityRepo(db),
		obs:         postgres.NewObservationRepo(db),
		states:      postgres.NewCrawlStateRepo(db),
		failedPages: postgres.NewFailedPageRepo(db),
		lock:        redis_adapter.NewRunLock(rdb),
		engineCfg: usecase.EngineConfig{
			BatchSize:      cfg.BatchSize,
			MaxConcurrency: cfg.MaxConcurrency,
			RequestDelay:   cfg.RequestDelay(),
			Retry:          retryOpts,
			SegmentSize:    cfg.SegmentSize,
			LockTTL:        cfg.RunLockTTL(),
		},
		sources: map[entity.FacilityType]*cortico.Client{
			entity.FacilityTypeClinic:   cortico.NewClient(cfg.ClinicAPIURL, entity.FacilityTypeClinic, cfg.HTTPTimeout(), retryOpts),
			entity.FacilityTypePharmacy: cortico.NewClient(cfg.PharmacyAPIURL, entity.FacilityTypePharmacy, cfg.HTTPTimeout(), retryOpts),
			entity.FacilityTypeLab:      cortico.NewClient(cfg.LabAPIURL, entity.FacilityTypeLab, cfg.HTTPTimeout(), retryOpts),
		},
	}

	a.reconciler = usecase.NewReconcileUseCase(a.facilities, a.obs, a.states, usecase.ReconcileConfig{
		SegmentCount: cfg.SegmentCount,
		HardDelete:   cfg.RetireHard,
		Retention:    time.Duration(cfg.RetentionDays) * 24 * time.Hour,
	})

	renderer, err := chromedp_crawler.NewWebsiteRenderer(cfg.MaxConcurrency, cfg.PageLoadTimeout())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create website renderer: %w", err)
	}
	a.enricher = usecase.NewEnrichUseCase(a.facilities, renderer, usecase.EnrichConfig{
		Limit:          cfg.EnrichLimit,
		StaleAfter:     time.Duration(cfg.EnrichStaleDays) * 24 * time.Hour,
		MaxConcurrency: cfg.MaxConcurrency,
		RequestDelay:   cfg.RequestDelay(),
	})

	a.status = usecase.NewStatusUseCase(a.states, a.facilities, a.obs,
		redis_adapter.NewStatsCache(rdb), 30*time.Second)

	return a, nil
}

func (a *app) Close() {
	a.db.Close()
	if err := a.rdb.Close(); err != nil {
		slog.Warn("Failed to close Redis client", "error", err)
	}
}

func (a *app) startStatusServer(port string) *http.Server {
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router.New(handler.NewHandler(a.status)),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		slog.Info("Status server listening", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Status server failed", "port", port, "error", err)
		}
	}()
	return server
}

func (a *app) syncer(category entity.FacilityType) usecase.Syncer {
	return usecase.NewSyncUseCase(a.sources[category], a.batches, a.states, a.failedPages, a.lock, a.engineCfg)
}

func (a *app) run(ctx context.Context, flags runFlags) error {
	switch flags.mode {
	case "full":
		return a.runFull(ctx)
	case "availability":
		return a.runAvailability(ctx)
	case "segment":
		return a.runSegment(ctx, flags.segment)
	case "single":
		if flags.page <= 0 {
			return fmt.Errorf("single mode requires -page")
		}
		return a.runExplicitRange(ctx, flags.category, flags.page, flags.page)
	case "range":
		if flags.start <= 0 || flags.end < flags.start {
			return fmt.Errorf("range mode requires -start and -end with start <= end")
		}
		return a.runExplicitRange(ctx, flags.category, flags.start, flags.end)
	case "enrich":
		result, err := a.enricher.Run(ctx)
		if err != nil {
			return err
		}
		if result.Failed > 0 {
			return fmt.Errorf("%d of %d websites failed to enrich", result.Failed, result.Processed+result.Failed)
		}
		return nil
	case "reconcile":
		return a.runReconcile(ctx, flags.segmented)
	default:
		return fmt.Errorf("unknown mode %q", flags.mode)
	}
}

// runFull refreshes every category. The clinic crawl is the large one
// and checkpoints for resume; the pharmacy and lab sets are small
// enough to redo from scratch on interruption. Reconciliation runs only
// when all three finished, otherwise unvisited facilities would be
// retired by mistake.
func (a *app) runFull(ctx context.Context) error {
	summary, err := a.syncer(entity.FacilityTypeClinic).Run(ctx, usecase.RunOptions{
		Mode:       entity.ModeFull,
		Checkpoint: true,
	})
	logSummary("clinic", summary)
	if err != nil {
		return err
	}

	for _, category := range []entity.FacilityType{entity.FacilityTypePharmacy, entity.FacilityTypeLab} {
		if err := a.runWholeCategory(ctx, category); err != nil {
			return err
		}
	}

	result, err := a.reconciler.Run(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation: %w", err)
	}
	slog.Info("Reconciliation finished", "retired", result.FacilitiesRetired, "pruned", result.ObservationsPruned)
	return nil
}

// runAvailability refreshes availability snapshots for clinics and
// pharmacies. Labs carry no availability data upstream.
func (a *app) runAvailability(ctx context.Context) error {
	summary, err := a.syncer(entity.FacilityTypeClinic).Run(ctx, usecase.RunOptions{
		Mode:       entity.ModeAvailability,
		Checkpoint: true,
	})
	logSummary("clinic", summary)
	if err != nil {
		return err
	}

	count, err := a.sources[entity.FacilityTypePharmacy].PageCount(ctx)
	if err != nil {
		return fmt.Errorf("discover pharmacy page count: %w", err)
	}
	if count == 0 {
		return nil
	}
	summary, err = a.syncer(entity.FacilityTypePharmacy).Run(ctx, usecase.RunOptions{
		Mode:      entity.ModeAvailability,
		StartPage: 1,
		EndPage:   count,
	})
	logSummary("pharmacy", summary)
	return err
}

// runSegment processes one slice of the clinic page space. With no
// explicit index the weekday picks the segment, so a daily schedule
// walks all seven across a week.
func (a *app) runSegment(ctx context.Context, segment int) error {
	if segment < 0 {
		segment = int(time.Now().UTC().Weekday()+6) % 7 // Monday = 0
		slog.Info("Derived segment from weekday", "segment", segment)
	}

	summary, err := a.syncer(entity.FacilityTypeClinic).Run(ctx, usecase.RunOptions{
		Mode:       entity.ModeSegment,
		Segment:    segment,
		Checkpoint: true,
	})
	logSummary("clinic", summary)
	if err != nil {
		return err
	}

	// The last segment to finish triggers reconciliation; the rest see
	// an incomplete crawl and skip it.
	result, err := a.reconciler.RunSegmented(ctx)
	if errors.Is(err, usecase.ErrCrawlIncomplete) {
		slog.Info("Reconciliation deferred", "reason", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reconciliation: %w", err)
	}
	slog.Info("Reconciliation finished", "retired", result.FacilitiesRetired, "pruned", result.ObservationsPruned)
	return nil
}

func (a *app) runExplicitRange(ctx context.Context, category string, start, end int) error {
	facilityType := entity.FacilityType(category)
	if _, ok := a.sources[facilityType]; !ok {
		return fmt.Errorf("unknown category %q", category)
	}
	summary, err := a.syncer(facilityType).Run(ctx, usecase.RunOptions{
		Mode:      entity.ModeFull,
		StartPage: start,
		EndPage:   end,
	})
	logSummary(category, summary)
	return err
}

func (a *app) runReconcile(ctx context.Context, segmented bool) error {
	var result *usecase.ReconcileResult
	var err error
	if segmented {
		result, err = a.reconciler.RunSegmented(ctx)
	} else {
		result, err = a.reconciler.Run(ctx)
	}
	if err != nil {
		return err
	}
	slog.Info("Reconciliation finished", "retired", result.FacilitiesRetired, "pruned", result.ObservationsPruned)
	return nil
}

// runWholeCategory syncs a category's full page span without a
// checkpoint. Used for the small pharmacy and lab sets.
func (a *app) runWholeCategory(ctx context.Context, category entity.FacilityType) error {
	count, err := a.sources[category].PageCount(ctx)
	if err != nil {
		return fmt.Errorf("discover %s page count: %w", category, err)
	}
	if count == 0 {
		slog.Info("Nothing to sync for category", "category", category)
		return nil
	}
	summary, err := a.syncer(category).Run(ctx, usecase.RunOptions{
		Mode:      entity.ModeFull,
		StartPage: 1,
		EndPage:   count,
	})
	logSummary(string(category), summary)
	return err
}

func logSummary(label string, summary *entity.RunSummary) {
	if summary == nil {
		return
	}
	slog.Info("Run summary",
		"category", label,
		"mode", summary.Mode,
		"segment", summary.Segment,
		"range", fmt.Sprintf("%d-%d", summary.StartPage, summary.EndPage),
		"watermark", summary.Watermark,
		"pages_processed", summary.PagesProcessed,
		"pages_failed", summary.PagesFailed,
		"facilities_written", summary.FacilitiesWritten,
		"observations_written", summary.ObservationsWritten,
		"records_skipped", summary.RecordsSkipped,
		"completed", summary.Completed,
	)
}

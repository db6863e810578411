// Command coursecraft designs project-based-learning courses by
// coordinating five LLM-backed specialist agents through a phased workflow.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"coursecraft/internal/adapter/cache"
	"coursecraft/internal/adapter/export"
	"coursecraft/internal/adapter/llm"
	"coursecraft/internal/adapter/store"
	"coursecraft/internal/domain"
	"coursecraft/internal/infra/config"
	"coursecraft/internal/infra/logger"
	"coursecraft/internal/infra/tracer"
	"coursecraft/internal/usecase/eventbus"
	"coursecraft/internal/usecase/orchestrator"
	"coursecraft/internal/usecase/router"
	"coursecraft/internal/usecase/scheduling"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "config.yaml", "path to config file")
		topic      = flag.String("topic", "", "course topic")
		audience   = flag.String("audience", "general learners", "target audience")
		duration   = flag.String("duration", "4 weeks", "course duration")
		goals      = flag.String("goals", "", "comma-separated learning goals")
		reqFile    = flag.String("requirements", "", "JSON file with full course requirements")
		mode       = flag.String("mode", "", "workflow mode override (full_course, quick_design, iteration, custom)")
		stream     = flag.Bool("stream", false, "print phase progress while running")
		showMetric = flag.Bool("metrics", false, "print run metrics after completion")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *mode != "" {
		cfg.Workflow.Mode = *mode
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	requirements, err := buildRequirements(*reqFile, *topic, *audience, *duration, *goals)
	if err != nil {
		return err
	}

	registry, err := llm.BuildRegistry(cfg.LLM, log)
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}

	bus := eventbus.New(log)
	defer bus.Close()

	routerOpts := []router.Option{router.WithEventBus(bus)}
	var responseCache *cache.ResponseCache
	if cfg.Cache.Enabled {
		responseCache = cache.New(cfg.Cache.Size, cfg.Cache.TTL, log)
		routerOpts = append(routerOpts, router.WithCache(responseCache))
	}

	var runStore domain.RunStore
	if cfg.Store.Enabled {
		s, err := store.NewSQLiteRunStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open run store: %w", err)
		}
		defer s.Close()
		runStore = s
		routerOpts = append(routerOpts, router.WithStore(s))
	}

	modelRouter := router.New(registry, router.Config{
		DefaultModel:   cfg.Router.DefaultModel,
		MaxTokens:      cfg.Router.MaxTokens,
		Temperature:    cfg.Router.Temperature,
		RequestTimeout: cfg.Router.RequestTimeout,
		RatePerSecond:  cfg.Router.RatePerSecond,
		RateBurst:      cfg.Router.RateBurst,
		CacheTTL:       cfg.Cache.TTL,
	}, log, routerOpts...)

	engineOpts := []orchestrator.Option{
		orchestrator.WithEventBus(bus),
		orchestrator.WithMetricsSource(modelRouter),
		orchestrator.WithQualityChecker(orchestrator.HeuristicChecker{}),
		orchestrator.WithExporters(buildExporters(cfg.Export, log)...),
	}
	if runStore != nil {
		engineOpts = append(engineOpts, orchestrator.WithStore(runStore))
	}

	engine, err := orchestrator.New(orchestrator.Config{
		Mode:             orchestrator.Mode(cfg.Workflow.Mode),
		MaxIterations:    cfg.Workflow.MaxIterations,
		QualityThreshold: cfg.Workflow.QualityThreshold,
		PhaseTimeout:     cfg.Workflow.PhaseTimeout,
	}, modelRouter, log, engineOpts...)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	if cfg.Scheduler.Enabled {
		sched := scheduling.NewScheduler(log)
		sched.RegisterAction(scheduling.ActionMetricsSnapshot,
			scheduling.MetricsSnapshotAction(engine, bus))
		if responseCache != nil {
			sched.RegisterAction(scheduling.ActionCacheStats,
				scheduling.CacheStatsAction(responseCache, log))
			if err := sched.AddTask(scheduling.Task{
				Name: "cache-stats", Schedule: cfg.Scheduler.MetricsSchedule,
				Action: scheduling.ActionCacheStats,
			}); err != nil {
				return err
			}
		}
		if err := sched.AddTask(scheduling.Task{
			Name: "metrics-snapshot", Schedule: cfg.Scheduler.MetricsSchedule,
			Action: scheduling.ActionMetricsSnapshot,
		}); err != nil {
			return err
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	var bundle *domain.DeliverablesBundle
	if *stream {
		bundle, err = runStreaming(ctx, engine, requirements)
	} else {
		bundle, err = engine.DesignCourse(ctx, requirements)
	}
	if err != nil {
		return err
	}

	if err := printBundle(bundle); err != nil {
		return err
	}
	if *showMetric {
		if err := printJSON(engine.Metrics()); err != nil {
			return err
		}
	}
	return nil
}

func runStreaming(ctx context.Context, engine *orchestrator.Engine, requirements domain.CourseRequirements) (*domain.DeliverablesBundle, error) {
	for update := range engine.DesignCourseStream(ctx, requirements) {
		switch update.Type {
		case "progress":
			fmt.Printf("[%5.1f%%] %s\n", update.Progress, update.Phase)
		case "completed":
			return update.Bundle, nil
		case "error":
			return nil, fmt.Errorf("course design failed: %s", update.Error)
		}
	}
	return nil, ctx.Err()
}

func buildRequirements(reqFile, topic, audience, duration, goals string) (domain.CourseRequirements, error) {
	if reqFile != "" {
		raw, err := os.ReadFile(reqFile)
		if err != nil {
			return nil, fmt.Errorf("read requirements file: %w", err)
		}
		var req domain.CourseRequirements
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("parse requirements file: %w", err)
		}
		return req, nil
	}
	if topic == "" {
		return nil, fmt.Errorf("either -topic or -requirements is required")
	}
	req := domain.CourseRequirements{
		"topic":    topic,
		"audience": audience,
		"duration": duration,
	}
	if goals != "" {
		var list []any
		for _, g := range strings.Split(goals, ",") {
			if g = strings.TrimSpace(g); g != "" {
				list = append(list, g)
			}
		}
		req["goals"] = list
	}
	return req, nil
}

func buildExporters(cfg config.ExportConfig, log *slog.Logger) []domain.Exporter {
	var out []domain.Exporter
	for _, format := range cfg.Formats {
		switch domain.ExportFormat(format) {
		case domain.ExportJSON:
			out = append(out, export.NewJSONExporter(cfg.Dir, log))
		case domain.ExportHTML:
			out = append(out, export.NewHTMLExporter(cfg.Dir, log))
		default:
			log.Warn("unsupported export format", "format", format)
		}
	}
	return out
}

func printBundle(bundle *domain.DeliverablesBundle) error {
	fmt.Printf("course designed: session %s, %d modules, %d materials, quality %.2f\n",
		bundle.Metadata.SessionID, bundle.Content.TotalModules,
		bundle.Materials.TotalResources, bundle.Metadata.QualityScore)
	return printJSON(bundle)
}

func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

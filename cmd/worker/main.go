package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/aprovia/aprovia-backend/internal/ai/prompts"
	"github.com/aprovia/aprovia-backend/internal/data/db"
	contestrepos "github.com/aprovia/aprovia-backend/internal/data/repos/contests"
	jobrepos "github.com/aprovia/aprovia-backend/internal/data/repos/jobs"
	studyrepos "github.com/aprovia/aprovia-backend/internal/data/repos/study"
	"github.com/aprovia/aprovia-backend/internal/jobs/pipeline/edict_process"
	"github.com/aprovia/aprovia-backend/internal/jobs/pipeline/plan_generate"
	"github.com/aprovia/aprovia-backend/internal/jobs/runtime"
	"github.com/aprovia/aprovia-backend/internal/jobs/worker"
	studymod "github.com/aprovia/aprovia-backend/internal/modules/study"
	"github.com/aprovia/aprovia-backend/internal/observability"
	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
	"github.com/aprovia/aprovia-backend/internal/platform/envutil"
	"github.com/aprovia/aprovia-backend/internal/platform/gcp"
	"github.com/aprovia/aprovia-backend/internal/platform/gemini"
	"github.com/aprovia/aprovia-backend/internal/realtime"
)

func main() {
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "aprovia-worker",
		Environment: envutil.Str("APP_ENV", "development"),
		Version:     envutil.Str("APP_VERSION", "dev"),
	})
	defer func() { _ = shutdownOtel(context.Background()) }()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := pg.AutoMigrate(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := pg.DB()

	if m := observability.Init(log); m != nil {
		m.StartServer(ctx, log, envutil.Str("METRICS_ADDR", ":9090"))
		m.StartPostgresCollector(ctx, log, thePG)
		m.StartJobQueueCollector(ctx, log, thePG)
		m.StartRedisCollector(ctx, log, envutil.Str("REDIS_ADDR", ""))
	}

	notify := realtime.NewNotifier(log)

	aiClient, err := gemini.NewClient(log)
	if err != nil {
		log.Fatal("Gemini client init failed", "error", err)
	}
	planClient := aiClient
	if planModel := envutil.Str("GEMINI_PLAN_MODEL", ""); planModel != "" {
		planClient = gemini.WithModel(aiClient, planModel)
	}
	prompts.RegisterAll()

	bucket, err := gcp.NewBucketService(ctx, log)
	if err != nil {
		log.Fatal("Bucket service init failed", "error", err)
	}

	jobRunRepo := jobrepos.NewJobRunRepo(thePG, log)
	contestRepo := contestrepos.NewContestRepo(thePG, log)
	userContestRepo := studyrepos.NewUserContestRepo(thePG, log)
	topicProgressRepo := studyrepos.NewTopicProgressRepo(thePG, log)
	roadmapRepo := studyrepos.NewRoadmapRepo(thePG, log)

	collector := studymod.NewCollector(log, userContestRepo, topicProgressRepo, contestRepo)
	planner := studymod.NewPlanner(log, planClient, roadmapRepo)

	registry := runtime.NewRegistry()
	if err := registry.Register(edict_process.New(log, aiClient, bucket, contestRepo)); err != nil {
		log.Fatal("Register edict_process failed", "error", err)
	}
	if err := registry.Register(plan_generate.New(log, collector, planner)); err != nil {
		log.Fatal("Register plan_generate failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.NewWorker(thePG, log, jobRunRepo, registry, notify).Start(gctx)
		<-gctx.Done()
		return gctx.Err()
	})

	log.Info("Worker started",
		"job_types", []string{"edict_process", "plan_generate"},
	)
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error("Worker stopped", "error", err)
		os.Exit(1)
	}
	log.Info("Worker shut down cleanly")
}

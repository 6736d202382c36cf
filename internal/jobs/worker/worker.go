package worker

import (
	"context"
	"time"

	"gorm.io/gorm"

	jobrepos "github.com/aprovia/aprovia-backend/internal/data/repos/jobs"
	"github.com/aprovia/aprovia-backend/internal/jobs/runtime"
	"github.com/aprovia/aprovia-backend/internal/observability"
	"github.com/aprovia/aprovia-backend/internal/pkg/dbctx"
	"github.com/aprovia/aprovia-backend/internal/pkg/httpx"
	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
	"github.com/aprovia/aprovia-backend/internal/platform/envutil"
	"github.com/aprovia/aprovia-backend/internal/realtime"
)

const claimBackoff = 2 * time.Second

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     jobrepos.JobRunRepo
	registry *runtime.Registry
	notify   realtime.JobNotifier
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo jobrepos.JobRunRepo, registry *runtime.Registry, notify realtime.JobNotifier) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
	}
}

func (w *Worker) Start(ctx context.Context) {
	concurrency := envutil.Int("WORKER_CONCURRENCY", 4)
	if concurrency < 1 {
		concurrency = 1
	}
	w.log.Info("Starting job worker pool", "concurrency", concurrency)

	for i := 0; i < concurrency; i++ {
		workerID := i + 1
		go w.runLoop(ctx, workerID)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	maxAttempts := envutil.Int("WORKER_MAX_ATTEMPTS", 5)
	retryDelay := time.Duration(envutil.Int("WORKER_RETRY_DELAY_SECONDS", 30)) * time.Second
	staleRunning := time.Duration(envutil.Int("WORKER_STALE_RUNNING_MINUTES", 30)) * time.Minute

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, maxAttempts, retryDelay, staleRunning)
			if err != nil {
				w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
				// Jittered backoff so the pool does not retry a broken
				// claim query in lockstep.
				select {
				case <-ctx.Done():
				case <-time.After(httpx.JitterSleep(claimBackoff)):
				}
				continue
			}
			if job == nil {
				continue
			}

			h, ok := w.registry.Get(job.JobType)
			jc := runtime.NewContext(ctx, w.db, job, w.repo, w.notify)

			if !ok {
				w.log.Warn("No handler registered for job_type",
					"worker_id", workerID,
					"job_type", job.JobType,
					"job_id", job.ID,
				)
				jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
				continue
			}

			start := time.Now()
			func() {
				defer func() {
					if r := recover(); r != nil {
						w.log.Error("Job handler panic",
							"worker_id", workerID,
							"job_id", job.ID,
							"job_type", job.JobType,
							"panic", r,
						)
						jc.Fail("panic", errFromRecover(r))
					}
				}()

				if runErr := h.Run(jc); runErr != nil {
					// Most pipelines call jc.Fail themselves; this is a safety net.
					jc.Fail("run", runErr)
				}
			}()
			if m := observability.Current(); m != nil {
				m.ObserveJob(job.JobType, job.Status, time.Since(start))
			}
		}
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string {
	return "no handler registered for job_type=" + e.JobType
}

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return "panic: unexpected error" }

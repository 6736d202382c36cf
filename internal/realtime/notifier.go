package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	types "github.com/aprovia/aprovia-backend/internal/domain"
	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
	"github.com/aprovia/aprovia-backend/internal/platform/envutil"
)

const (
	EventJobCreated  = "job_created"
	EventJobProgress = "job_progress"
	EventJobFailed   = "job_failed"
	EventJobDone     = "job_done"
)

// JobNotifier pushes job lifecycle events to whatever frontend transport is
// subscribed to the user's channel.
type JobNotifier interface {
	JobCreated(userID uuid.UUID, job *types.JobRun)
	JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string)
	JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string)
	JobDone(userID uuid.UUID, job *types.JobRun)
}

type redisNotifier struct {
	log *logger.Logger
	rdb *redis.Client
}

// NewNotifier builds a redis pub/sub notifier from REDIS_ADDR. With no
// address configured it degrades to a no-op, so the worker runs without
// redis in development.
func NewNotifier(log *logger.Logger) JobNotifier {
	addr := envutil.Str("REDIS_ADDR", "")
	if addr == "" {
		log.Warn("REDIS_ADDR not set, job notifications disabled")
		return NopNotifier{}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: envutil.Str("REDIS_PASSWORD", ""),
		DB:       envutil.Int("REDIS_DB", 0),
	})
	return &redisNotifier{
		log: log.With("service", "JobNotifier"),
		rdb: rdb,
	}
}

func Channel(userID uuid.UUID) string {
	return "jobs:user:" + userID.String()
}

func (n *redisNotifier) publish(userID uuid.UUID, event string, data map[string]any) {
	if userID == uuid.Nil {
		return
	}
	data["event"] = event
	data["at"] = time.Now().UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(data)
	if err != nil {
		n.log.Warn("notification marshal failed", "event", event, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.rdb.Publish(ctx, Channel(userID), payload).Err(); err != nil {
		n.log.Warn("notification publish failed", "event", event, "error", err)
	}
}

func (n *redisNotifier) JobCreated(userID uuid.UUID, job *types.JobRun) {
	if job == nil {
		return
	}
	n.publish(userID, EventJobCreated, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"status":   job.Status,
	})
}

func (n *redisNotifier) JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string) {
	if job == nil {
		return
	}
	n.publish(userID, EventJobProgress, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"progress": progress,
		"message":  message,
	})
}

func (n *redisNotifier) JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string) {
	if job == nil {
		return
	}
	n.publish(userID, EventJobFailed, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"error":    errorMessage,
	})
}

func (n *redisNotifier) JobDone(userID uuid.UUID, job *types.JobRun) {
	if job == nil {
		return
	}
	n.publish(userID, EventJobDone, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"status":   "succeeded",
	})
}

// NopNotifier drops all events.
type NopNotifier struct{}

func (NopNotifier) JobCreated(uuid.UUID, *types.JobRun)                       {}
func (NopNotifier) JobProgress(uuid.UUID, *types.JobRun, string, int, string) {}
func (NopNotifier) JobFailed(uuid.UUID, *types.JobRun, string, string)        {}
func (NopNotifier) JobDone(uuid.UUID, *types.JobRun)                          {}

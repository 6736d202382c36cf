package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	jobrepos "github.com/aprovia/aprovia-backend/internal/data/repos/jobs"
	types "github.com/aprovia/aprovia-backend/internal/domain"
	"github.com/aprovia/aprovia-backend/internal/pkg/dbctx"
	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
	"github.com/aprovia/aprovia-backend/internal/platform/ctxutil"
	"github.com/aprovia/aprovia-backend/internal/realtime"
)

type JobService interface {
	// Enqueue creates a queued job_run unless a runnable run for the same
	// entity and job type already exists; the second return reports whether a
	// new row was created.
	Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, bool, error)
	EnqueueEdictProcess(dbc dbctx.Context, ownerUserID uuid.UUID, contestID uuid.UUID) (*types.JobRun, bool, error)
	EnqueuePlanGenerate(dbc dbctx.Context, ownerUserID uuid.UUID, userContestID uuid.UUID) (*types.JobRun, bool, error)
	GetByID(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error)
	GetLatestForEntity(dbc dbctx.Context, ownerUserID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error)
}

type jobService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   jobrepos.JobRunRepo
	notify realtime.JobNotifier
}

func NewJobService(db *gorm.DB, baseLog *logger.Logger, repo jobrepos.JobRunRepo, notify realtime.JobNotifier) JobService {
	return &jobService{
		db:     db,
		log:    baseLog.With("service", "JobService"),
		repo:   repo,
		notify: notify,
	}
}

func (s *jobService) Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, bool, error) {
	if ownerUserID == uuid.Nil {
		return nil, false, fmt.Errorf("missing owner_user_id")
	}
	if jobType == "" {
		return nil, false, fmt.Errorf("missing job_type")
	}

	if entityID != nil && *entityID != uuid.Nil {
		has, err := s.repo.HasRunnableForEntity(dbc, ownerUserID, entityType, *entityID, jobType)
		if err != nil {
			return nil, false, fmt.Errorf("check runnable: %w", err)
		}
		if has {
			existing, err := s.repo.GetLatestByEntity(dbc, ownerUserID, entityType, *entityID, jobType)
			if err != nil {
				return nil, false, err
			}
			s.log.Info("enqueue skipped, runnable job exists",
				"job_type", jobType,
				"entity_type", entityType,
				"entity_id", entityID,
			)
			return existing, false, nil
		}
	}

	if payload == nil {
		payload = map[string]any{}
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		if td.TraceID != "" {
			if _, ok := payload["trace_id"]; !ok {
				payload["trace_id"] = td.TraceID
			}
		}
		if td.RequestID != "" {
			if _, ok := payload["request_id"]; !ok {
				payload["request_id"] = td.RequestID
			}
		}
	}
	b, _ := json.Marshal(payload)

	now := time.Now()
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      "queued",
		Stage:       "queued",
		Progress:    0,
		Attempts:    0,
		Payload:     datatypes.JSON(b),
		Result:      datatypes.JSON([]byte(`{}`)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.repo.Create(dbc, []*types.JobRun{job}); err != nil {
		return nil, false, fmt.Errorf("create job: %w", err)
	}

	if s.notify != nil {
		s.notify.JobCreated(ownerUserID, job)
	}
	s.log.Info("job enqueued",
		"job_run_id", job.ID,
		"job_type", jobType,
		"entity_type", entityType,
		"entity_id", entityID,
	)
	return job, true, nil
}

func (s *jobService) EnqueueEdictProcess(dbc dbctx.Context, ownerUserID uuid.UUID, contestID uuid.UUID) (*types.JobRun, bool, error) {
	if contestID == uuid.Nil {
		return nil, false, fmt.Errorf("missing contest_id")
	}
	entityID := contestID
	return s.Enqueue(dbc, ownerUserID, "edict_process", "contest", &entityID, map[string]any{
		"contest_id": contestID.String(),
	})
}

func (s *jobService) EnqueuePlanGenerate(dbc dbctx.Context, ownerUserID uuid.UUID, userContestID uuid.UUID) (*types.JobRun, bool, error) {
	if userContestID == uuid.Nil {
		return nil, false, fmt.Errorf("missing user_contest_id")
	}
	entityID := userContestID
	return s.Enqueue(dbc, ownerUserID, "plan_generate", "user_contest", &entityID, map[string]any{
		"user_contest_id": userContestID.String(),
	})
}

func (s *jobService) GetByID(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	return s.repo.GetByID(dbc, jobID)
}

func (s *jobService) GetLatestForEntity(dbc dbctx.Context, ownerUserID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	return s.repo.GetLatestByEntity(dbc, ownerUserID, entityType, entityID, jobType)
}

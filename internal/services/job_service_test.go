package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/aprovia/aprovia-backend/internal/domain"
	"github.com/aprovia/aprovia-backend/internal/pkg/dbctx"
	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
	"github.com/aprovia/aprovia-backend/internal/platform/ctxutil"
	"github.com/aprovia/aprovia-backend/internal/realtime"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// fakeJobRunRepo keeps job rows in memory; runnable means queued or running.
type fakeJobRunRepo struct {
	rows []*types.JobRun
}

func (r *fakeJobRunRepo) Create(_ dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	r.rows = append(r.rows, jobs...)
	return jobs, nil
}

func (r *fakeJobRunRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	for _, row := range r.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fakeJobRunRepo) GetLatestByEntity(_ dbctx.Context, ownerUserID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	for i := len(r.rows) - 1; i >= 0; i-- {
		row := r.rows[i]
		if row.OwnerUserID == ownerUserID && row.EntityType == entityType && row.EntityID != nil && *row.EntityID == entityID && row.JobType == jobType {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fakeJobRunRepo) ClaimNextRunnable(dbctx.Context, int, time.Duration, time.Duration) (*types.JobRun, error) {
	return nil, nil
}

func (r *fakeJobRunRepo) UpdateFields(dbctx.Context, uuid.UUID, map[string]interface{}) error {
	return nil
}

func (r *fakeJobRunRepo) UpdateFieldsUnlessStatus(dbctx.Context, uuid.UUID, []string, map[string]interface{}) (bool, error) {
	return true, nil
}

func (r *fakeJobRunRepo) Heartbeat(dbctx.Context, uuid.UUID) error { return nil }

func (r *fakeJobRunRepo) HasRunnableForEntity(_ dbctx.Context, ownerUserID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (bool, error) {
	for _, row := range r.rows {
		if row.OwnerUserID == ownerUserID && row.EntityType == entityType && row.EntityID != nil && *row.EntityID == entityID && row.JobType == jobType &&
			(row.Status == "queued" || row.Status == "running") {
			return true, nil
		}
	}
	return false, nil
}

func TestEnqueueEdictProcessIsIdempotent(t *testing.T) {
	repo := &fakeJobRunRepo{}
	svc := NewJobService(nil, testLogger(t), repo, realtime.NopNotifier{})
	dbc := dbctx.Context{Ctx: context.Background()}

	ownerID := uuid.New()
	contestID := uuid.New()

	first, created, err := svc.EnqueueEdictProcess(dbc, ownerID, contestID)
	if err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if !created {
		t.Fatal("first enqueue should create a row")
	}
	if first.Status != "queued" || first.JobType != "edict_process" {
		t.Fatalf("job = %+v", first)
	}

	second, created, err := svc.EnqueueEdictProcess(dbc, ownerID, contestID)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if created {
		t.Fatal("second enqueue should reuse the runnable row")
	}
	if second.ID != first.ID {
		t.Fatal("second enqueue should return the existing job")
	}
	if len(repo.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(repo.rows))
	}
}

func TestEnqueueAfterTerminalStatusCreatesNewRow(t *testing.T) {
	repo := &fakeJobRunRepo{}
	svc := NewJobService(nil, testLogger(t), repo, realtime.NopNotifier{})
	dbc := dbctx.Context{Ctx: context.Background()}

	ownerID := uuid.New()
	userContestID := uuid.New()

	first, _, err := svc.EnqueuePlanGenerate(dbc, ownerID, userContestID)
	if err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	first.Status = "succeeded"

	_, created, err := svc.EnqueuePlanGenerate(dbc, ownerID, userContestID)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if !created {
		t.Fatal("a finished job should not block a new enqueue")
	}
	if len(repo.rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(repo.rows))
	}
}

func TestEnqueuePropagatesTraceData(t *testing.T) {
	repo := &fakeJobRunRepo{}
	svc := NewJobService(nil, testLogger(t), repo, realtime.NopNotifier{})

	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{
		TraceID:   "trace-123",
		RequestID: "req-456",
	})
	job, _, err := svc.EnqueueEdictProcess(dbctx.Context{Ctx: ctx}, uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	payload := string(job.Payload)
	for _, needle := range []string{"trace-123", "req-456", "contest_id"} {
		if !strings.Contains(payload, needle) {
			t.Fatalf("payload missing %q: %s", needle, payload)
		}
	}
}

package contests

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aprovia/aprovia-backend/internal/ai/prompts"
	"github.com/aprovia/aprovia-backend/internal/ai/retry"
	contestrepos "github.com/aprovia/aprovia-backend/internal/data/repos/contests"
	types "github.com/aprovia/aprovia-backend/internal/domain"
	"github.com/aprovia/aprovia-backend/internal/observability"
	"github.com/aprovia/aprovia-backend/internal/pkg/dbctx"
	apperrors "github.com/aprovia/aprovia-backend/internal/pkg/errors"
	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
	"github.com/aprovia/aprovia-backend/internal/platform/gcp"
	"github.com/aprovia/aprovia-backend/internal/platform/gemini"
)

// Processor runs the full edital pipeline: download the PDF, extract the
// contest structure, refine the categorization, cross-check the refinement
// against the raw extraction, and persist the curriculum.
type Processor struct {
	log      *logger.Logger
	client   gemini.Client
	bucket   gcp.BucketService
	contests contestrepos.ContestRepo
}

func NewProcessor(baseLog *logger.Logger, client gemini.Client, bucket gcp.BucketService, contests contestrepos.ContestRepo) *Processor {
	return &Processor{
		log:      baseLog.With("processor", "edict"),
		client:   client,
		bucket:   bucket,
		contests: contests,
	}
}

func (p *Processor) Process(ctx context.Context, contestID uuid.UUID) (string, error) {
	log := p.log.With("contest_id", contestID)
	dbc := dbctx.Context{Ctx: ctx}

	contest, err := p.contests.GetByID(dbc, contestID)
	if err != nil {
		return "", fmt.Errorf("load contest: %w", err)
	}
	if contest.Status == types.ContestStatusPending {
		if err := p.contests.UpdateFields(dbc, contestID, map[string]interface{}{
			"status": types.ContestStatusProcessing,
		}); err != nil {
			return "", fmt.Errorf("mark processing: %w", err)
		}
	}

	summary, err := p.run(ctx, dbc, log, contest)
	if err != nil {
		_ = p.contests.UpdateFields(dbc, contestID, map[string]interface{}{
			"status":       types.ContestStatusFailed,
			"error_detail": err.Error(),
		})
		return "", err
	}
	return summary, nil
}

func (p *Processor) run(ctx context.Context, dbc dbctx.Context, log *logger.Logger, contest *types.Contest) (string, error) {
	key := p.bucket.KeyFromURL(contest.FileURL)
	start := time.Now()
	pdf, err := p.bucket.Download(ctx, key)
	if err != nil {
		return "", fmt.Errorf("download edital: %w", err)
	}
	if len(pdf) == 0 {
		return "", apperrors.Preconditionf("edital PDF is empty: %s", key)
	}
	log.Info("edital downloaded", "key", key, "size_bytes", len(pdf), "ms", time.Since(start).Milliseconds())

	// One orchestrator for both stages: refinement sees the full extraction
	// transcript, corrections included.
	orch := retry.NewOrchestrator(log, p.client)

	raw, err := p.extract(ctx, orch, pdf)
	if err != nil {
		return "", err
	}
	refined, err := p.refine(ctx, orch, raw)
	if err != nil {
		return "", err
	}

	final := refined
	missing, invented := diffTopicSets(raw, refined)
	if len(missing) > 0 || len(invented) > 0 {
		// The refinement may only regroup. When it changed the topic set we
		// keep the raw extraction, never retry, never fail.
		log.Warn("refinement changed the topic set, falling back to raw extraction",
			"missing", missing,
			"invented", invented,
		)
		final = raw
	}

	if err := p.persist(dbc, contest.ID, final); err != nil {
		return "", fmt.Errorf("persist curriculum: %w", err)
	}
	if err := p.contests.UpdateFields(dbc, contest.ID, map[string]interface{}{
		"name":            final.ContestName,
		"examining_board": final.ExaminingBoard,
		"exam_date":       final.ParsedExamDate(),
		"status":          types.ContestStatusCompleted,
		"error_detail":    "",
	}); err != nil {
		return "", fmt.Errorf("mark completed: %w", err)
	}

	log.Info("edital processing completed",
		"roles", len(final.ContestRoles),
		"topics", final.TopicCount(),
	)
	return fmt.Sprintf("contest %s processed: %d roles, %d topics",
		contest.ID, len(final.ContestRoles), final.TopicCount()), nil
}

func (p *Processor) extract(ctx context.Context, orch *retry.Orchestrator, pdf []byte) (EdictExtraction, error) {
	prompt, err := prompts.Build(prompts.PromptEdictExtraction, prompts.Input{})
	if err != nil {
		return EdictExtraction{}, err
	}
	start := time.Now()
	out, err := retry.Run(ctx, orch, retry.Stage[EdictExtraction]{
		Name:   "edict_extraction",
		Prompt: prompt,
		Parts: []gemini.Part{
			{Inline: &gemini.Blob{MIMEType: "application/pdf", Data: pdf}},
		},
	})
	observeStage("edict_process", "extract", err, start)
	return out, err
}

func (p *Processor) refine(ctx context.Context, orch *retry.Orchestrator, raw EdictExtraction) (EdictExtraction, error) {
	extractedJSON, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return EdictExtraction{}, err
	}
	prompt, err := prompts.Build(prompts.PromptSubjectRefinement, prompts.Input{
		ExtractedJSON: string(extractedJSON),
	})
	if err != nil {
		return EdictExtraction{}, err
	}
	start := time.Now()
	out, err := retry.Run(ctx, orch, retry.Stage[EdictExtraction]{
		Name:   "subject_refinement",
		Prompt: prompt,
	})
	observeStage("edict_process", "refine", err, start)
	return out, err
}

func (p *Processor) persist(dbc dbctx.Context, contestID uuid.UUID, data EdictExtraction) error {
	roles := make([]contestrepos.CurriculumRole, 0, len(data.ContestRoles))
	for _, role := range data.ContestRoles {
		cr := contestrepos.CurriculumRole{JobTitle: role.JobTitle}
		for _, s := range role.ExamComposition {
			cr.Structures = append(cr.Structures, contestrepos.CurriculumStructure{
				LevelName:         s.LevelName,
				LevelType:         s.LevelType,
				NumberOfQuestions: s.NumberOfQuestions,
				WeightPerQuestion: s.WeightPerQuestion,
			})
		}
		for _, t := range role.ProgrammaticContent {
			topicGroup := ""
			if t.TopicGroup != nil {
				topicGroup = *t.TopicGroup
			}
			cr.Topics = append(cr.Topics, contestrepos.CurriculumTopic{
				ExamModule: t.ExamModule,
				Subject:    t.Subject,
				TopicGroup: topicGroup,
				Topic:      t.Topic,
			})
		}
		roles = append(roles, cr)
	}
	return p.contests.ReplaceCurriculum(dbc, contestID, roles)
}

func observeStage(pipeline, stage string, err error, start time.Time) {
	m := observability.Current()
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.ObservePipelineStage(pipeline, stage, status, time.Since(start))
}

package study

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aprovia/aprovia-backend/internal/ai/prompts"
	"github.com/aprovia/aprovia-backend/internal/ai/retry"
	studyrepos "github.com/aprovia/aprovia-backend/internal/data/repos/study"
	"github.com/aprovia/aprovia-backend/internal/observability"
	"github.com/aprovia/aprovia-backend/internal/pkg/dbctx"
	apperrors "github.com/aprovia/aprovia-backend/internal/pkg/errors"
	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
	"github.com/aprovia/aprovia-backend/internal/platform/gemini"
)

// Planner turns collected plan input into a persisted session roadmap via
// two validated model stages: per-topic analysis, then plan organization.
type Planner struct {
	log      *logger.Logger
	client   gemini.Client
	roadmaps studyrepos.RoadmapRepo
}

func NewPlanner(baseLog *logger.Logger, client gemini.Client, roadmaps studyrepos.RoadmapRepo) *Planner {
	return &Planner{
		log:      baseLog.With("planner", "study"),
		client:   client,
		roadmaps: roadmaps,
	}
}

func (p *Planner) Generate(ctx context.Context, in PlanInput) (string, error) {
	if in.TotalSessions <= 0 {
		return "", apperrors.Preconditionf("no study sessions available before the exam")
	}
	if len(in.Topics) == 0 {
		return "", apperrors.Preconditionf("the contest role has no syllabus topics")
	}
	log := p.log.With("user_contest_id", in.UserContestID)

	analysis, err := p.analyze(ctx, log, in)
	if err != nil {
		return "", err
	}
	plan, err := p.organize(ctx, log, in, analysis)
	if err != nil {
		return "", err
	}

	sessions, err := p.toSessions(in, plan)
	if err != nil {
		return "", err
	}
	dbc := dbctx.Context{Ctx: ctx}
	if err := p.roadmaps.ReplacePlan(dbc, in.UserContestID, sessions); err != nil {
		return "", fmt.Errorf("persist roadmap: %w", err)
	}

	log.Info("study plan generated",
		"sessions", len(sessions),
		"budget", in.TotalSessions,
		"topics", len(in.Topics),
	)
	return fmt.Sprintf("study plan for %s generated: %d sessions covering %d topics",
		in.UserContestID, len(sessions), len(in.Topics)), nil
}

func (p *Planner) analyze(ctx context.Context, log *logger.Logger, in PlanInput) (TopicAnalysis, error) {
	topicsJSON, err := json.MarshalIndent(in.Topics, "", "  ")
	if err != nil {
		return TopicAnalysis{}, err
	}
	prompt, err := prompts.Build(prompts.PromptTopicAnalysis, prompts.Input{
		TopicsJSON: string(topicsJSON),
	})
	if err != nil {
		return TopicAnalysis{}, err
	}

	orch := retry.NewOrchestrator(log, p.client)
	start := time.Now()
	out, err := retry.Run(ctx, orch, retry.Stage[TopicAnalysis]{
		Name:   "topic_analysis",
		Prompt: prompt,
		Rules: []retry.Rule[TopicAnalysis]{
			TopicIDCompleteness(in.TopicIDs()),
			SessionEstimateRange(),
			PriorityDiversity(),
		},
	})
	observeStage("plan_generate", "analyze", err, start)
	return out, err
}

// organize runs on a fresh conversation seeded only with the serialized
// analysis. The raw analysis transcript, corrections included, stays behind.
func (p *Planner) organize(ctx context.Context, log *logger.Logger, in PlanInput, analysis TopicAnalysis) (StudyPlan, error) {
	analyzedJSON, err := json.MarshalIndent(analysis.AnalyzedTopics, "", "  ")
	if err != nil {
		return StudyPlan{}, err
	}
	prompt, err := prompts.Build(prompts.PromptPlanOrganization, prompts.Input{
		TotalSessions:      in.TotalSessions,
		AnalyzedTopicsJSON: string(analyzedJSON),
	})
	if err != nil {
		return StudyPlan{}, err
	}

	orch := retry.NewOrchestrator(log, p.client)
	start := time.Now()
	out, err := retry.Run(ctx, orch, retry.Stage[StudyPlan]{
		Name:   "plan_organization",
		Prompt: prompt,
		Rules: []retry.Rule[StudyPlan]{
			SessionCountCeiling(in.TotalSessions),
			PlannedTopicCompleteness(in.TopicIDs()),
		},
	})
	observeStage("plan_generate", "organize", err, start)
	return out, err
}

func (p *Planner) toSessions(in PlanInput, plan StudyPlan) ([]studyrepos.PlanSession, error) {
	sessions := make([]studyrepos.PlanSession, 0, len(plan.Roadmap))
	for _, s := range plan.Roadmap {
		out := studyrepos.PlanSession{
			SessionNumber:  s.SessionNumber,
			Summary:        s.Summary,
			PriorityLevel:  s.PriorityLevel,
			PriorityReason: s.PriorityReason,
		}
		for _, id := range s.TopicIDs {
			rowID, ok := in.RowIDs[id]
			if !ok {
				// Validated plans never reach here; the check guards the
				// mapping against a stale RowIDs table.
				return nil, fmt.Errorf("session %d references unknown topic id %d", s.SessionNumber, id)
			}
			out.TopicIDs = append(out.TopicIDs, rowID)
		}
		sessions = append(sessions, out)
	}
	return sessions, nil
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

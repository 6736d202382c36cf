package study

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	contestrepos "github.com/aprovia/aprovia-backend/internal/data/repos/contests"
	studyrepos "github.com/aprovia/aprovia-backend/internal/data/repos/study"
	types "github.com/aprovia/aprovia-backend/internal/domain"
	"github.com/aprovia/aprovia-backend/internal/pkg/dbctx"
	apperrors "github.com/aprovia/aprovia-backend/internal/pkg/errors"
	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
	"github.com/aprovia/aprovia-backend/internal/platform/envutil"
)

const defaultSessionsPerDay = 2

// Collector assembles the model-ready input of a plan generation run:
// the role's syllabus joined with the user's proficiency, effective subject
// weights from the exam composition, and the session budget until the exam.
type Collector struct {
	log            *logger.Logger
	userContests   studyrepos.UserContestRepo
	progress       studyrepos.TopicProgressRepo
	contests       contestrepos.ContestRepo
	sessionsPerDay int
}

func NewCollector(
	baseLog *logger.Logger,
	userContests studyrepos.UserContestRepo,
	progress studyrepos.TopicProgressRepo,
	contests contestrepos.ContestRepo,
) *Collector {
	return &Collector{
		log:            baseLog.With("collector", "plan"),
		userContests:   userContests,
		progress:       progress,
		contests:       contests,
		sessionsPerDay: envutil.Int("SESSIONS_PER_DAY", defaultSessionsPerDay),
	}
}

func (c *Collector) Collect(ctx context.Context, userContestID uuid.UUID) (PlanInput, error) {
	dbc := dbctx.Context{Ctx: ctx}

	uc, err := c.userContests.GetByID(dbc, userContestID)
	if err != nil {
		return PlanInput{}, fmt.Errorf("load user contest: %w", err)
	}

	total, err := c.sessionBudget(uc.ExamDate)
	if err != nil {
		return PlanInput{}, err
	}

	topics, err := c.contests.ListRoleTopics(dbc, uc.ContestRoleID)
	if err != nil {
		return PlanInput{}, fmt.Errorf("list role topics: %w", err)
	}
	structures, err := c.contests.ListRoleStructures(dbc, uc.ContestRoleID)
	if err != nil {
		return PlanInput{}, fmt.Errorf("list role structures: %w", err)
	}
	proficiency, err := c.progress.MapByUserContest(dbc, userContestID)
	if err != nil {
		return PlanInput{}, fmt.Errorf("load topic progress: %w", err)
	}

	weights := newWeightIndex(structures)
	in := PlanInput{
		UserContestID: userContestID,
		TotalSessions: total,
		RowIDs:        make(map[int]uuid.UUID, len(topics)),
	}
	for i, topic := range topics {
		id := i + 1
		in.RowIDs[id] = topic.ID
		in.Topics = append(in.Topics, PlanTopic{
			TopicID:       id,
			ExamModule:    topic.ExamModule,
			Subject:       topic.Subject,
			TopicName:     topic.Topic,
			Proficiency:   proficiency[topic.ID],
			SubjectWeight: weights.lookup(topic.Subject, topic.ExamModule),
			RowID:         topic.ID,
		})
	}

	c.log.Info("plan input collected",
		"user_contest_id", userContestID,
		"topics", len(in.Topics),
		"total_sessions", in.TotalSessions,
	)
	return in, nil
}

func (c *Collector) sessionBudget(examDate *time.Time) (int, error) {
	if examDate == nil {
		return 0, apperrors.Preconditionf("user contest has no exam date")
	}
	today := time.Now().Truncate(24 * time.Hour)
	days := int(examDate.Sub(today).Hours() / 24)
	if days <= 0 {
		return 0, apperrors.Preconditionf("exam date %s is not in the future", examDate.Format("2006-01-02"))
	}
	return days * c.sessionsPerDay, nil
}

// weightIndex resolves a topic's effective weight from the role's exam
// composition. A SUBJECT-level entry matching the topic's subject wins over a
// MODULE-level entry matching the topic's module; unmatched topics weigh 1.0.
type weightIndex struct {
	bySubject map[string]float64
	byModule  map[string]float64
}

func newWeightIndex(structures []*types.ExamStructure) weightIndex {
	idx := weightIndex{
		bySubject: map[string]float64{},
		byModule:  map[string]float64{},
	}
	for _, s := range structures {
		w := effectiveWeight(s)
		if w <= 0 {
			continue
		}
		switch s.LevelType {
		case types.LevelTypeSubject:
			idx.bySubject[s.LevelName] = w
		case types.LevelTypeModule:
			idx.byModule[s.LevelName] = w
		}
	}
	return idx
}

func (idx weightIndex) lookup(subject, module string) float64 {
	if w, ok := idx.bySubject[subject]; ok {
		return w
	}
	if w, ok := idx.byModule[module]; ok {
		return w
	}
	return 1.0
}

// effectiveWeight is questions times per-question weight, with missing
// numbers treated as zero. Rows without a positive product carry no weight
// information, so they are skipped and their topics take the 1.0 default.
func effectiveWeight(s *types.ExamStructure) float64 {
	if s.NumberOfQuestions == nil || s.WeightPerQuestion == nil {
		return 0
	}
	return float64(*s.NumberOfQuestions) * *s.WeightPerQuestion
}

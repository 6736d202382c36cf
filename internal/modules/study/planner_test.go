package study

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/aprovia/aprovia-backend/internal/ai/prompts"
	studyrepos "github.com/aprovia/aprovia-backend/internal/data/repos/study"
	types "github.com/aprovia/aprovia-backend/internal/domain"
	"github.com/aprovia/aprovia-backend/internal/pkg/dbctx"
	apperrors "github.com/aprovia/aprovia-backend/internal/pkg/errors"
	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
	"github.com/aprovia/aprovia-backend/internal/platform/gemini"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// scriptClient replays canned JSON responses and keeps a snapshot of the
// conversation passed to each call.
type scriptClient struct {
	responses []string
	histories [][]gemini.Message
}

func (c *scriptClient) GenerateStructured(_ context.Context, _ string, history []gemini.Message, _ string, _ map[string]any) (json.RawMessage, error) {
	snapshot := make([]gemini.Message, len(history))
	copy(snapshot, history)
	c.histories = append(c.histories, snapshot)
	if len(c.histories) > len(c.responses) {
		return nil, errors.New("script exhausted")
	}
	return json.RawMessage(c.responses[len(c.histories)-1]), nil
}

func (c *scriptClient) calls() int { return len(c.histories) }

type fakeRoadmapRepo struct {
	replaced [][]studyrepos.PlanSession
}

func (r *fakeRoadmapRepo) ReplacePlan(_ dbctx.Context, _ uuid.UUID, sessions []studyrepos.PlanSession) error {
	r.replaced = append(r.replaced, sessions)
	return nil
}

func (r *fakeRoadmapRepo) ListByUserContest(dbctx.Context, uuid.UUID) ([]*types.RoadmapSession, error) {
	return nil, nil
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func planInput(t *testing.T, totalSessions int, topicNames ...string) PlanInput {
	t.Helper()
	in := PlanInput{
		UserContestID: uuid.New(),
		TotalSessions: totalSessions,
		RowIDs:        map[int]uuid.UUID{},
	}
	for i, name := range topicNames {
		id := i + 1
		rowID := uuid.New()
		in.RowIDs[id] = rowID
		in.Topics = append(in.Topics, PlanTopic{
			TopicID:       id,
			ExamModule:    "Conhecimentos Básicos",
			Subject:       "Língua Portuguesa",
			TopicName:     name,
			Proficiency:   0.3,
			SubjectWeight: 10,
			RowID:         rowID,
		})
	}
	return in
}

func validAnalysis() TopicAnalysis {
	return TopicAnalysis{AnalyzedTopics: []AnalyzedTopic{
		{TopicID: 1, PriorityLevel: "Alta Prioridade", EstimatedSessions: 2, PrerequisiteTopicIDs: []int{}},
		{TopicID: 2, PriorityLevel: "Baixa Prioridade", EstimatedSessions: 1, PrerequisiteTopicIDs: []int{1}},
	}}
}

func validPlan() StudyPlan {
	return StudyPlan{Roadmap: []PlanSessionData{
		{SessionNumber: 1, TopicIDs: []int{1}, Summary: "Crase", PriorityLevel: "Alta Prioridade", PriorityReason: "baixa proficiência"},
		{SessionNumber: 2, TopicIDs: []int{2}, Summary: "Regência", PriorityLevel: "Baixa Prioridade", PriorityReason: "pré-requisito coberto"},
	}}
}

func TestGeneratePersistsMappedPlan(t *testing.T) {
	prompts.RegisterAll()

	in := planInput(t, 4, "Crase", "Regência")
	client := &scriptClient{responses: []string{
		mustJSON(t, validAnalysis()),
		mustJSON(t, validPlan()),
	}}
	repo := &fakeRoadmapRepo{}

	p := NewPlanner(testLogger(t), client, repo)
	summary, err := p.Generate(context.Background(), in)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if summary == "" {
		t.Fatal("expected a summary")
	}
	if client.calls() != 2 {
		t.Fatalf("model calls = %d, want 2", client.calls())
	}

	if len(repo.replaced) != 1 {
		t.Fatalf("ReplacePlan calls = %d, want 1", len(repo.replaced))
	}
	sessions := repo.replaced[0]
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	if sessions[0].TopicIDs[0] != in.RowIDs[1] || sessions[1].TopicIDs[0] != in.RowIDs[2] {
		t.Fatal("compact topic ids were not mapped back to row uuids")
	}

	// The organization stage starts a fresh conversation: its first call sees
	// exactly one user turn, with no analysis transcript behind it.
	second := client.histories[1]
	if len(second) != 1 || second[0].Role != gemini.RoleUser {
		t.Fatalf("organization history = %d turns, want a single user turn", len(second))
	}
	if !strings.Contains(second[0].Parts[0].Text, `"priority_level"`) {
		t.Fatal("organization prompt should embed the serialized analysis")
	}
}

func TestGenerateCorrectionNamesMissingTopicIDs(t *testing.T) {
	prompts.RegisterAll()

	in := planInput(t, 4, "Crase", "Regência")
	incomplete := StudyPlan{Roadmap: []PlanSessionData{
		{SessionNumber: 1, TopicIDs: []int{1}, Summary: "Crase", PriorityLevel: "Alta Prioridade", PriorityReason: "peso alto"},
	}}
	client := &scriptClient{responses: []string{
		mustJSON(t, validAnalysis()),
		mustJSON(t, incomplete),
		mustJSON(t, validPlan()),
	}}
	repo := &fakeRoadmapRepo{}

	p := NewPlanner(testLogger(t), client, repo)
	if _, err := p.Generate(context.Background(), in); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if client.calls() != 3 {
		t.Fatalf("model calls = %d, want 3 (one rejection)", client.calls())
	}

	// The retry call carries a correction turn naming the uncovered topic id
	// and echoing the rejected response.
	third := client.histories[2]
	last := third[len(third)-1]
	if last.Role != gemini.RoleUser {
		t.Fatalf("last turn role = %s, want user", last.Role)
	}
	text := last.Parts[0].Text
	if !strings.Contains(text, "topic_id 2") {
		t.Fatalf("correction should name the missing topic id, got:\n%s", text)
	}
	if !strings.Contains(text, `"session_number"`) {
		t.Fatal("correction should echo the rejected response")
	}
}

func TestGenerateCorrectsOutOfRangeEstimate(t *testing.T) {
	prompts.RegisterAll()

	in := planInput(t, 4, "Crase", "Regência")
	overEstimated := TopicAnalysis{AnalyzedTopics: []AnalyzedTopic{
		{TopicID: 1, PriorityLevel: "Alta Prioridade", EstimatedSessions: 2, PrerequisiteTopicIDs: []int{}},
		{TopicID: 2, PriorityLevel: "Baixa Prioridade", EstimatedSessions: 15, PrerequisiteTopicIDs: []int{1}},
	}}
	client := &scriptClient{responses: []string{
		mustJSON(t, overEstimated),
		mustJSON(t, validAnalysis()),
		mustJSON(t, validPlan()),
	}}
	repo := &fakeRoadmapRepo{}

	p := NewPlanner(testLogger(t), client, repo)
	if _, err := p.Generate(context.Background(), in); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if client.calls() != 3 {
		t.Fatalf("model calls = %d, want 3 (one analysis rejection)", client.calls())
	}

	second := client.histories[1]
	last := second[len(second)-1]
	if last.Role != gemini.RoleUser {
		t.Fatalf("last turn role = %s, want user", last.Role)
	}
	text := last.Parts[0].Text
	if !strings.Contains(text, "topic_id 2") || !strings.Contains(text, "15") {
		t.Fatalf("correction should name the topic and the rejected estimate, got:\n%s", text)
	}

	if len(repo.replaced) != 1 {
		t.Fatalf("ReplacePlan calls = %d, want 1", len(repo.replaced))
	}
}

func TestGeneratePreconditionsSkipModelCalls(t *testing.T) {
	prompts.RegisterAll()

	client := &scriptClient{}
	p := NewPlanner(testLogger(t), client, &fakeRoadmapRepo{})

	noBudget := planInput(t, 0, "Crase")
	if _, err := p.Generate(context.Background(), noBudget); !apperrors.IsPrecondition(err) {
		t.Fatalf("zero budget: expected a precondition error, got %v", err)
	}

	noTopics := planInput(t, 4)
	if _, err := p.Generate(context.Background(), noTopics); !apperrors.IsPrecondition(err) {
		t.Fatalf("no topics: expected a precondition error, got %v", err)
	}

	if client.calls() != 0 {
		t.Fatalf("model calls = %d, want 0", client.calls())
	}
}

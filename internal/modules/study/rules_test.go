package study

import (
	"strings"
	"testing"
)

func analysisOf(topics ...AnalyzedTopic) TopicAnalysis {
	return TopicAnalysis{AnalyzedTopics: topics}
}

func TestTopicIDCompleteness(t *testing.T) {
	rule := TopicIDCompleteness([]int{1, 2, 3})

	clean := analysisOf(
		AnalyzedTopic{TopicID: 1, PriorityLevel: "Alta Prioridade", EstimatedSessions: 2},
		AnalyzedTopic{TopicID: 2, PriorityLevel: "Baixa Prioridade", EstimatedSessions: 1},
		AnalyzedTopic{TopicID: 3, PriorityLevel: "Média Prioridade", EstimatedSessions: 3},
	)
	if vs := rule.Check(clean); len(vs) != 0 {
		t.Fatalf("expected no violations, got %v", vs)
	}

	// Missing id 3, invented id 9, id 1 duplicated.
	broken := analysisOf(
		AnalyzedTopic{TopicID: 1},
		AnalyzedTopic{TopicID: 1},
		AnalyzedTopic{TopicID: 2},
		AnalyzedTopic{TopicID: 9},
	)
	vs := rule.Check(broken)
	if len(vs) != 3 {
		t.Fatalf("violations = %d, want 3: %v", len(vs), vs)
	}
	all := ""
	for _, v := range vs {
		all += v.Message + "\n"
	}
	for _, needle := range []string{"topic_id 9", "topic_id 3", "topic_id 1"} {
		if !strings.Contains(all, needle) {
			t.Fatalf("violations should mention %q, got:\n%s", needle, all)
		}
	}
}

func TestSessionEstimateRange(t *testing.T) {
	rule := SessionEstimateRange()

	ok := analysisOf(
		AnalyzedTopic{TopicID: 1, EstimatedSessions: 1},
		AnalyzedTopic{TopicID: 2, EstimatedSessions: 10},
	)
	if vs := rule.Check(ok); len(vs) != 0 {
		t.Fatalf("boundary estimates should pass, got %v", vs)
	}

	bad := analysisOf(
		AnalyzedTopic{TopicID: 1, EstimatedSessions: 0},
		AnalyzedTopic{TopicID: 2, EstimatedSessions: 11},
		AnalyzedTopic{TopicID: 3, EstimatedSessions: 5},
	)
	vs := rule.Check(bad)
	if len(vs) != 2 {
		t.Fatalf("violations = %d, want 2: %v", len(vs), vs)
	}
}

func TestPriorityDiversity(t *testing.T) {
	rule := PriorityDiversity()

	single := analysisOf(AnalyzedTopic{TopicID: 1, PriorityLevel: "Alta Prioridade"})
	if vs := rule.Check(single); len(vs) != 0 {
		t.Fatalf("a single topic needs no diversity, got %v", vs)
	}

	uniform := analysisOf(
		AnalyzedTopic{TopicID: 1, PriorityLevel: "Alta Prioridade"},
		AnalyzedTopic{TopicID: 2, PriorityLevel: "Alta Prioridade"},
	)
	if vs := rule.Check(uniform); len(vs) != 1 {
		t.Fatalf("uniform priorities should violate, got %v", vs)
	}

	mixed := analysisOf(
		AnalyzedTopic{TopicID: 1, PriorityLevel: "Alta Prioridade"},
		AnalyzedTopic{TopicID: 2, PriorityLevel: "Baixa Prioridade"},
	)
	if vs := rule.Check(mixed); len(vs) != 0 {
		t.Fatalf("mixed priorities should pass, got %v", vs)
	}
}

func TestSessionCountCeiling(t *testing.T) {
	rule := SessionCountCeiling(2)

	within := StudyPlan{Roadmap: []PlanSessionData{
		{SessionNumber: 1, TopicIDs: []int{1}},
		{SessionNumber: 2, TopicIDs: []int{2}},
	}}
	if vs := rule.Check(within); len(vs) != 0 {
		t.Fatalf("plan at the budget should pass, got %v", vs)
	}

	over := StudyPlan{Roadmap: []PlanSessionData{
		{SessionNumber: 1}, {SessionNumber: 2}, {SessionNumber: 3},
	}}
	vs := rule.Check(over)
	if len(vs) != 1 {
		t.Fatalf("over-budget plan should violate once, got %v", vs)
	}
	if !strings.Contains(vs[0].Message, "3") || !strings.Contains(vs[0].Message, "2") {
		t.Fatalf("violation should state actual and budget counts, got %q", vs[0].Message)
	}
}

func TestPlannedTopicCompleteness(t *testing.T) {
	rule := PlannedTopicCompleteness([]int{1, 2, 3})

	complete := StudyPlan{Roadmap: []PlanSessionData{
		{SessionNumber: 1, TopicIDs: []int{1, 3}},
		{SessionNumber: 2, TopicIDs: []int{2}},
	}}
	if vs := rule.Check(complete); len(vs) != 0 {
		t.Fatalf("complete plan should pass, got %v", vs)
	}

	broken := StudyPlan{Roadmap: []PlanSessionData{
		{SessionNumber: 1, TopicIDs: []int{1, 7}},
	}}
	vs := rule.Check(broken)
	if len(vs) != 3 {
		t.Fatalf("violations = %d, want 3 (ids 2 and 3 uncovered, id 7 invented): %v", len(vs), vs)
	}
}

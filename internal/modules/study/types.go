package study

import "github.com/google/uuid"

// PlanTopic is one syllabus topic as the model sees it: a compact numeric id
// plus the signals that drive prioritization. The owning row id stays out of
// the serialized form.
type PlanTopic struct {
	TopicID       int     `json:"topic_id"`
	ExamModule    string  `json:"exam_module"`
	Subject       string  `json:"subject"`
	TopicName     string  `json:"topic_name"`
	Proficiency   float64 `json:"proficiency"`
	SubjectWeight float64 `json:"subject_weight"`

	RowID uuid.UUID `json:"-"`
}

// PlanInput is the collected, model-ready input of a plan generation run.
type PlanInput struct {
	UserContestID uuid.UUID
	TotalSessions int
	Topics        []PlanTopic

	// RowIDs maps the compact topic ids back to programmatic content rows.
	RowIDs map[int]uuid.UUID
}

func (in PlanInput) TopicIDs() []int {
	ids := make([]int, 0, len(in.Topics))
	for _, t := range in.Topics {
		ids = append(ids, t.TopicID)
	}
	return ids
}

// TopicAnalysis is the decoded output of the per-topic analysis stage.
type TopicAnalysis struct {
	AnalyzedTopics []AnalyzedTopic `json:"analyzed_topics"`
}

type AnalyzedTopic struct {
	TopicID              int    `json:"topic_id"`
	PriorityLevel        string `json:"priority_level"`
	EstimatedSessions    int    `json:"estimated_sessions"`
	PrerequisiteTopicIDs []int  `json:"prerequisite_topic_ids"`
}

// StudyPlan is the decoded output of the plan organization stage.
type StudyPlan struct {
	Roadmap []PlanSessionData `json:"roadmap"`
}

type PlanSessionData struct {
	SessionNumber  int    `json:"session_number"`
	TopicIDs       []int  `json:"topic_ids"`
	Summary        string `json:"summary"`
	PriorityLevel  string `json:"priority_level"`
	PriorityReason string `json:"priority_reason"`
}

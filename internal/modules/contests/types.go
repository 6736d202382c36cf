package contests

import (
	"strings"
	"time"
)

// EdictExtraction mirrors the structured output of the edict_extraction and
// subject_refinement prompts.
type EdictExtraction struct {
	ContestName    string            `json:"contest_name"`
	ExaminingBoard string            `json:"examining_board"`
	ExamDate       *string           `json:"exam_date"`
	ContestRoles   []ContestRoleData `json:"contest_roles"`
}

type ContestRoleData struct {
	JobTitle            string              `json:"job_title"`
	ExamComposition     []ExamStructureData `json:"exam_composition"`
	ProgrammaticContent []TopicData         `json:"programmatic_content"`
}

type ExamStructureData struct {
	LevelName         string   `json:"level_name"`
	LevelType         string   `json:"level_type"`
	NumberOfQuestions *int     `json:"number_of_questions"`
	WeightPerQuestion *float64 `json:"weight_per_question"`
}

type TopicData struct {
	ExamModule string  `json:"exam_module"`
	Subject    string  `json:"subject"`
	Topic      string  `json:"topic"`
	TopicGroup *string `json:"topic_group,omitempty"`
}

// ParsedExamDate returns the exam date as a time, or nil when absent or not
// in AAAA-MM-DD form.
func (e EdictExtraction) ParsedExamDate() *time.Time {
	if e.ExamDate == nil {
		return nil
	}
	raw := strings.TrimSpace(*e.ExamDate)
	if raw == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &t
}

func (e EdictExtraction) TopicCount() int {
	n := 0
	for _, role := range e.ContestRoles {
		n += len(role.ProgrammaticContent)
	}
	return n
}

package contests

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Contest is one published edital under processing. FileURL points at the
// uploaded PDF in the bucket.
type Contest struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`

	Name           string     `gorm:"column:name;not null" json:"name"`
	ExaminingBoard string     `gorm:"column:examining_board" json:"examining_board,omitempty"`
	ExamDate       *time.Time `gorm:"column:exam_date" json:"exam_date,omitempty"`
	FileURL        string     `gorm:"column:file_url;not null" json:"file_url"`

	Status      string `gorm:"column:status;not null;default:'pending';index" json:"status"`
	ErrorDetail string `gorm:"column:error_detail" json:"error_detail,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Contest) TableName() string { return "contest" }

// ContestRole is one cargo offered by the contest.
type ContestRole struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ContestID uuid.UUID `gorm:"type:uuid;not null;index" json:"contest_id"`
	JobTitle  string    `gorm:"column:job_title;not null" json:"job_title"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ContestRole) TableName() string { return "contest_role" }

const (
	LevelTypeModule  = "MODULE"
	LevelTypeSubject = "SUBJECT"
)

// ExamStructure is one scored grouping of the exam for a role: either a
// module or a subject, with question count and per-question weight when the
// edital states them.
type ExamStructure struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ContestRoleID uuid.UUID `gorm:"type:uuid;not null;index" json:"contest_role_id"`

	LevelName         string   `gorm:"column:level_name;not null" json:"level_name"`
	LevelType         string   `gorm:"column:level_type;not null" json:"level_type"`
	NumberOfQuestions *int     `gorm:"column:number_of_questions" json:"number_of_questions,omitempty"`
	WeightPerQuestion *float64 `gorm:"column:weight_per_question" json:"weight_per_question,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ExamStructure) TableName() string { return "exam_structure" }

// ProgrammaticContent is one syllabus topic of a role.
type ProgrammaticContent struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ContestRoleID uuid.UUID `gorm:"type:uuid;not null;index" json:"contest_role_id"`

	ExamModule string `gorm:"column:exam_module;not null" json:"exam_module"`
	Subject    string `gorm:"column:subject;not null;index" json:"subject"`
	TopicGroup string `gorm:"column:topic_group" json:"topic_group,omitempty"`
	Topic      string `gorm:"column:topic;not null" json:"topic"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ProgrammaticContent) TableName() string { return "programmatic_content" }

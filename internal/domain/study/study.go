package study

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserContest is one user's enrollment in a contest role; study plans hang
// off this row.
type UserContest struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	ContestID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"contest_id"`
	ContestRoleID uuid.UUID  `gorm:"type:uuid;not null;index" json:"contest_role_id"`
	ExamDate      *time.Time `gorm:"column:exam_date" json:"exam_date,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UserContest) TableName() string { return "user_contest" }

// UserTopicProgress holds the user's self-assessed or measured proficiency
// (0.0 to 1.0) on one syllabus topic.
type UserTopicProgress struct {
	ID                    uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserContestID         uuid.UUID `gorm:"type:uuid;not null;index:idx_topic_progress_owner" json:"user_contest_id"`
	ProgrammaticContentID uuid.UUID `gorm:"type:uuid;not null;index" json:"programmatic_content_id"`
	Proficiency           float64   `gorm:"column:proficiency;not null;default:0" json:"proficiency"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UserTopicProgress) TableName() string { return "user_topic_progress" }

// RoadmapSession is one ordered focus session of a generated study plan.
type RoadmapSession struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserContestID uuid.UUID `gorm:"type:uuid;not null;index:idx_roadmap_owner" json:"user_contest_id"`

	SessionNumber  int    `gorm:"column:session_number;not null" json:"session_number"`
	Summary        string `gorm:"column:summary;type:text" json:"summary,omitempty"`
	PriorityLevel  string `gorm:"column:priority_level" json:"priority_level,omitempty"`
	PriorityReason string `gorm:"column:priority_reason;type:text" json:"priority_reason,omitempty"`

	Topics []RoadmapSessionTopic `gorm:"constraint:OnDelete:CASCADE;foreignKey:RoadmapSessionID;references:ID" json:"topics,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (RoadmapSession) TableName() string { return "roadmap_session" }

// RoadmapSessionTopic joins a session to the syllabus topics it covers.
// Grouped sessions carry more than one row.
type RoadmapSessionTopic struct {
	ID                    uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RoadmapSessionID      uuid.UUID `gorm:"type:uuid;not null;index" json:"roadmap_session_id"`
	ProgrammaticContentID uuid.UUID `gorm:"type:uuid;not null;index" json:"programmatic_content_id"`
	SortIndex             int       `gorm:"column:sort_index;not null;default:0" json:"sort_index"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (RoadmapSessionTopic) TableName() string { return "roadmap_session_topic" }

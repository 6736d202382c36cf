package domain

import (
	"github.com/aprovia/aprovia-backend/internal/domain/contests"
	"github.com/aprovia/aprovia-backend/internal/domain/jobs"
	"github.com/aprovia/aprovia-backend/internal/domain/study"
	"github.com/aprovia/aprovia-backend/internal/domain/users"
)

type (
	User = users.User

	Contest             = contests.Contest
	ContestRole         = contests.ContestRole
	ExamStructure       = contests.ExamStructure
	ProgrammaticContent = contests.ProgrammaticContent

	UserContest         = study.UserContest
	UserTopicProgress   = study.UserTopicProgress
	RoadmapSession      = study.RoadmapSession
	RoadmapSessionTopic = study.RoadmapSessionTopic

	JobRun = jobs.JobRun
)

const (
	ContestStatusPending    = contests.StatusPending
	ContestStatusProcessing = contests.StatusProcessing
	ContestStatusCompleted  = contests.StatusCompleted
	ContestStatusFailed     = contests.StatusFailed

	LevelTypeModule  = contests.LevelTypeModule
	LevelTypeSubject = contests.LevelTypeSubject
)

// AllModels is the automigrate set, ordered parents before children.
func AllModels() []any {
	return []any{
		&User{},
		&Contest{},
		&ContestRole{},
		&ExamStructure{},
		&ProgrammaticContent{},
		&UserContest{},
		&UserTopicProgress{},
		&RoadmapSession{},
		&RoadmapSessionTopic{},
		&JobRun{},
	}
}

package study

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aprovia/aprovia-backend/internal/domain"
	"github.com/aprovia/aprovia-backend/internal/pkg/dbctx"
	apperrors "github.com/aprovia/aprovia-backend/internal/pkg/errors"
	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
)

type UserContestRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.UserContest, error)
}

type userContestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserContestRepo(db *gorm.DB, baseLog *logger.Logger) UserContestRepo {
	return &userContestRepo{db: db, log: baseLog.With("repo", "UserContestRepo")}
}

func (r *userContestRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.UserContest, error) {
	if id == uuid.Nil {
		return nil, apperrors.ErrInvalidArgument
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var uc types.UserContest
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&uc).Error
	if err != nil {
		return nil, err
	}
	if uc.ID == uuid.Nil {
		return nil, apperrors.ErrNotFound
	}
	return &uc, nil
}

type TopicProgressRepo interface {
	// MapByUserContest returns proficiency keyed by programmatic content id.
	// Topics the user never touched are simply absent.
	MapByUserContest(dbc dbctx.Context, userContestID uuid.UUID) (map[uuid.UUID]float64, error)
}

type topicProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopicProgressRepo(db *gorm.DB, baseLog *logger.Logger) TopicProgressRepo {
	return &topicProgressRepo{db: db, log: baseLog.With("repo", "TopicProgressRepo")}
}

func (r *topicProgressRepo) MapByUserContest(dbc dbctx.Context, userContestID uuid.UUID) (map[uuid.UUID]float64, error) {
	out := map[uuid.UUID]float64{}
	if userContestID == uuid.Nil {
		return out, nil
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.UserTopicProgress
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_contest_id = ?", userContestID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProgrammaticContentID] = row.Proficiency
	}
	return out, nil
}

// PlanSession is one roadmap session to persist, with its covered topics in
// study order.
type PlanSession struct {
	SessionNumber  int
	Summary        string
	PriorityLevel  string
	PriorityReason string
	TopicIDs       []uuid.UUID
}

type RoadmapRepo interface {
	// ReplacePlan atomically swaps the user-contest's roadmap for the given
	// sessions. Regenerating a plan never leaves sessions from the previous
	// run behind.
	ReplacePlan(dbc dbctx.Context, userContestID uuid.UUID, sessions []PlanSession) error
	ListByUserContest(dbc dbctx.Context, userContestID uuid.UUID) ([]*types.RoadmapSession, error)
}

type roadmapRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRoadmapRepo(db *gorm.DB, baseLog *logger.Logger) RoadmapRepo {
	return &roadmapRepo{db: db, log: baseLog.With("repo", "RoadmapRepo")}
}

func (r *roadmapRepo) ReplacePlan(dbc dbctx.Context, userContestID uuid.UUID, sessions []PlanSession) error {
	if userContestID == uuid.Nil {
		return apperrors.ErrInvalidArgument
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		var oldSessionIDs []uuid.UUID
		if err := tx.Model(&types.RoadmapSession{}).
			Where("user_contest_id = ?", userContestID).
			Pluck("id", &oldSessionIDs).Error; err != nil {
			return err
		}
		if len(oldSessionIDs) > 0 {
			if err := tx.Unscoped().
				Where("roadmap_session_id IN ?", oldSessionIDs).
				Delete(&types.RoadmapSessionTopic{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().
				Where("user_contest_id = ?", userContestID).
				Delete(&types.RoadmapSession{}).Error; err != nil {
				return err
			}
		}

		for _, s := range sessions {
			row := &types.RoadmapSession{
				UserContestID:  userContestID,
				SessionNumber:  s.SessionNumber,
				Summary:        s.Summary,
				PriorityLevel:  s.PriorityLevel,
				PriorityReason: s.PriorityReason,
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
			if len(s.TopicIDs) == 0 {
				continue
			}
			links := make([]*types.RoadmapSessionTopic, 0, len(s.TopicIDs))
			for i, topicID := range s.TopicIDs {
				links = append(links, &types.RoadmapSessionTopic{
					RoadmapSessionID:      row.ID,
					ProgrammaticContentID: topicID,
					SortIndex:             i,
				})
			}
			if err := tx.Create(&links).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *roadmapRepo) ListByUserContest(dbc dbctx.Context, userContestID uuid.UUID) ([]*types.RoadmapSession, error) {
	var out []*types.RoadmapSession
	if userContestID == uuid.Nil {
		return out, nil
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).
		Preload("Topics", func(db *gorm.DB) *gorm.DB { return db.Order("sort_index ASC") }).
		Where("user_contest_id = ?", userContestID).
		Order("session_number ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

package contests

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aprovia/aprovia-backend/internal/domain"
	"github.com/aprovia/aprovia-backend/internal/pkg/dbctx"
	apperrors "github.com/aprovia/aprovia-backend/internal/pkg/errors"
	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
)

// CurriculumStructure is one scored grouping to persist for a role.
type CurriculumStructure struct {
	LevelName         string
	LevelType         string
	NumberOfQuestions *int
	WeightPerQuestion *float64
}

// CurriculumTopic is one syllabus topic to persist for a role.
type CurriculumTopic struct {
	ExamModule string
	Subject    string
	TopicGroup string
	Topic      string
}

// CurriculumRole is a role with its full exam composition and syllabus.
type CurriculumRole struct {
	JobTitle   string
	Structures []CurriculumStructure
	Topics     []CurriculumTopic
}

type ContestRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Contest, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// ReplaceCurriculum atomically replaces every role, exam structure and
	// syllabus topic under the contest. Re-running with the same data leaves
	// an equivalent state.
	ReplaceCurriculum(dbc dbctx.Context, contestID uuid.UUID, roles []CurriculumRole) error
	ListRoles(dbc dbctx.Context, contestID uuid.UUID) ([]*types.ContestRole, error)
	ListRoleStructures(dbc dbctx.Context, roleID uuid.UUID) ([]*types.ExamStructure, error)
	ListRoleTopics(dbc dbctx.Context, roleID uuid.UUID) ([]*types.ProgrammaticContent, error)
}

type contestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContestRepo(db *gorm.DB, baseLog *logger.Logger) ContestRepo {
	return &contestRepo{
		db:  db,
		log: baseLog.With("repo", "ContestRepo"),
	}
}

func (r *contestRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *contestRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Contest, error) {
	if id == uuid.Nil {
		return nil, apperrors.ErrInvalidArgument
	}
	var contest types.Contest
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&contest).Error
	if err != nil {
		return nil, err
	}
	if contest.ID == uuid.Nil {
		return nil, apperrors.ErrNotFound
	}
	return &contest, nil
}

func (r *contestRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return apperrors.ErrInvalidArgument
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.Contest{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *contestRepo) ReplaceCurriculum(dbc dbctx.Context, contestID uuid.UUID, roles []CurriculumRole) error {
	if contestID == uuid.Nil {
		return apperrors.ErrInvalidArgument
	}
	return r.handle(dbc).WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		var existingRoleIDs []uuid.UUID
		if err := tx.Model(&types.ContestRole{}).
			Where("contest_id = ?", contestID).
			Pluck("id", &existingRoleIDs).Error; err != nil {
			return err
		}
		if len(existingRoleIDs) > 0 {
			if err := tx.Unscoped().
				Where("contest_role_id IN ?", existingRoleIDs).
				Delete(&types.ProgrammaticContent{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().
				Where("contest_role_id IN ?", existingRoleIDs).
				Delete(&types.ExamStructure{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().
				Where("contest_id = ?", contestID).
				Delete(&types.ContestRole{}).Error; err != nil {
				return err
			}
		}

		for _, role := range roles {
			row := &types.ContestRole{ContestID: contestID, JobTitle: role.JobTitle}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
			if len(role.Structures) > 0 {
				structures := make([]*types.ExamStructure, 0, len(role.Structures))
				for _, s := range role.Structures {
					structures = append(structures, &types.ExamStructure{
						ContestRoleID:     row.ID,
						LevelName:         s.LevelName,
						LevelType:         s.LevelType,
						NumberOfQuestions: s.NumberOfQuestions,
						WeightPerQuestion: s.WeightPerQuestion,
					})
				}
				if err := tx.Create(&structures).Error; err != nil {
					return err
				}
			}
			if len(role.Topics) > 0 {
				topics := make([]*types.ProgrammaticContent, 0, len(role.Topics))
				for _, t := range role.Topics {
					topics = append(topics, &types.ProgrammaticContent{
						ContestRoleID: row.ID,
						ExamModule:    t.ExamModule,
						Subject:       t.Subject,
						TopicGroup:    t.TopicGroup,
						Topic:         t.Topic,
					})
				}
				if err := tx.Create(&topics).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (r *contestRepo) ListRoles(dbc dbctx.Context, contestID uuid.UUID) ([]*types.ContestRole, error) {
	var out []*types.ContestRole
	if contestID == uuid.Nil {
		return out, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("contest_id = ?", contestID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contestRepo) ListRoleStructures(dbc dbctx.Context, roleID uuid.UUID) ([]*types.ExamStructure, error) {
	var out []*types.ExamStructure
	if roleID == uuid.Nil {
		return out, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("contest_role_id = ?", roleID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contestRepo) ListRoleTopics(dbc dbctx.Context, roleID uuid.UUID) ([]*types.ProgrammaticContent, error) {
	var out []*types.ProgrammaticContent
	if roleID == uuid.Nil {
		return out, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("contest_role_id = ?", roleID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-interview-api/internal/models"
)

// InterviewSetRepository persists interview sets and their question snapshots.
type InterviewSetRepository interface {
	Create(ctx context.Context, set *models.QuestionSet) error
	GetByID(ctx context.Context, id string) (models.QuestionSet, error)
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.QuestionSet, int64, error)
	TransitionStatus(ctx context.Context, id, from, to string, completedAt *time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

type interviewSetRepository struct {
	db *gorm.DB
}

// NewInterviewSetRepository constructs an interview set repository.
func NewInterviewSetRepository(db *gorm.DB) InterviewSetRepository {
	return &interviewSetRepository{db: db}
}

func (r *interviewSetRepository) Create(ctx context.Context, set *models.QuestionSet) error {
	return r.db.WithContext(ctx).Create(set).Error
}

func (r *interviewSetRepository) GetByID(ctx context.Context, id string) (models.QuestionSet, error) {
	var set models.QuestionSet
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&set, "id = ?", id).Error
	return set, err
}

func (r *interviewSetRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.QuestionSet, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.QuestionSet{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if pageSize > 0 {
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	var sets []models.QuestionSet
	if err := query.Order("created_at DESC").Find(&sets).Error; err != nil {
		return nil, 0, err
	}
	return sets, total, nil
}

// TransitionStatus moves the set from one status to another only if it is still in the
// expected status. It reports whether this call performed the transition.
func (r *interviewSetRepository) TransitionStatus(ctx context.Context, id, from, to string, completedAt *time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to, "updated_at": time.Now().UTC()}
	if completedAt != nil {
		updates["completed_at"] = *completedAt
	}
	result := r.db.WithContext(ctx).Model(&models.QuestionSet{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Delete removes the set along with its questions, answers, evaluations and summaries.
func (r *interviewSetRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		notes := tx.Model(&models.AnswerNote{}).Select("id").Where("set_id = ?", id)
		if err := tx.Where("answer_note_id IN (?)", notes).Delete(&models.Evaluation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("answer_note_id IN (?)", notes).Delete(&models.FollowUpQuestion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("set_id = ?", id).Delete(&models.AnswerNote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("set_id = ?", id).Delete(&models.InterviewSummary{}).Error; err != nil {
			return err
		}
		if err := tx.Where("set_id = ?", id).Delete(&models.SetQuestion{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.QuestionSet{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

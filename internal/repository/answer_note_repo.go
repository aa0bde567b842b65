package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-interview-api/internal/models"
)

// ErrFollowUpAlreadyAnswered is returned when a follow-up answer would be overwritten.
var ErrFollowUpAlreadyAnswered = errors.New("follow-up already answered")

// ErrNoteFrozen is returned when a note that already has an evaluation would be edited.
var ErrNoteFrozen = errors.New("answer note has evaluations")

// AnswerNoteUpdate carries the editable note fields. Nil fields are left untouched.
type AnswerNoteUpdate struct {
	Title          *string
	FirstFeedback  *string
	SecondFeedback *string
	FinalAnswer    *string
}

// AnswerNoteFilter narrows answer note listings.
type AnswerNoteFilter struct {
	UserID     string
	QuestionID string
	Page       int
	PageSize   int
}

// AnswerNoteRepository persists answer notes and their follow-up questions.
type AnswerNoteRepository interface {
	Create(ctx context.Context, note *models.AnswerNote) error
	GetByID(ctx context.Context, id string) (models.AnswerNote, error)
	List(ctx context.Context, filter AnswerNoteFilter) ([]models.AnswerNote, int64, error)
	ListBySet(ctx context.Context, setID string) ([]models.AnswerNote, error)
	ExistsAtPosition(ctx context.Context, setID string, position int) (bool, error)
	Update(ctx context.Context, id string, update AnswerNoteUpdate) error
	Delete(ctx context.Context, id string) error
	CreateFollowUp(ctx context.Context, followUp *models.FollowUpQuestion) error
	GetFollowUp(ctx context.Context, noteID, followUpID string) (models.FollowUpQuestion, error)
	AnswerFollowUp(ctx context.Context, followUpID, answer string, answeredAt time.Time) error
}

type answerNoteRepository struct {
	db *gorm.DB
}

// NewAnswerNoteRepository constructs an answer note repository.
func NewAnswerNoteRepository(db *gorm.DB) AnswerNoteRepository {
	return &answerNoteRepository{db: db}
}

func (r *answerNoteRepository) Create(ctx context.Context, note *models.AnswerNote) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *answerNoteRepository) GetByID(ctx context.Context, id string) (models.AnswerNote, error) {
	var note models.AnswerNote
	err := r.withChildren(r.db.WithContext(ctx)).First(&note, "id = ?", id).Error
	return note, err
}

func (r *answerNoteRepository) List(ctx context.Context, filter AnswerNoteFilter) ([]models.AnswerNote, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AnswerNote{}).Where("user_id = ?", filter.UserID)
	if filter.QuestionID != "" {
		query = query.Where("question_id = ?", filter.QuestionID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var notes []models.AnswerNote
	if err := query.Order("created_at DESC").Find(&notes).Error; err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

func (r *answerNoteRepository) ListBySet(ctx context.Context, setID string) ([]models.AnswerNote, error) {
	var notes []models.AnswerNote
	err := r.withChildren(r.db.WithContext(ctx)).
		Where("set_id = ?", setID).
		Order("position ASC").
		Find(&notes).Error
	return notes, err
}

func (r *answerNoteRepository) ExistsAtPosition(ctx context.Context, setID string, position int) (bool, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.AnswerNote{}).
		Where("set_id = ? AND position = ?", setID, position).
		Count(&total).Error
	return total > 0, err
}

// Update applies the edit only while the note has no evaluation.
func (r *answerNoteRepository) Update(ctx context.Context, id string, update AnswerNoteUpdate) error {
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if update.Title != nil {
		updates["title"] = *update.Title
	}
	if update.FirstFeedback != nil {
		updates["first_feedback"] = *update.FirstFeedback
	}
	if update.SecondFeedback != nil {
		updates["second_feedback"] = *update.SecondFeedback
	}
	if update.FinalAnswer != nil {
		updates["final_answer"] = *update.FinalAnswer
	}

	evaluated := r.db.Model(&models.Evaluation{}).Select("1").Where("answer_note_id = ?", id)
	result := r.db.WithContext(ctx).Model(&models.AnswerNote{}).
		Where("id = ?", id).
		Where("NOT EXISTS (?)", evaluated).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.AnswerNote{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return ErrNoteFrozen
	}
	return nil
}

func (r *answerNoteRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("answer_note_id = ?", id).Delete(&models.Evaluation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("answer_note_id = ?", id).Delete(&models.FollowUpQuestion{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.AnswerNote{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *answerNoteRepository) CreateFollowUp(ctx context.Context, followUp *models.FollowUpQuestion) error {
	return r.db.WithContext(ctx).Create(followUp).Error
}

func (r *answerNoteRepository) GetFollowUp(ctx context.Context, noteID, followUpID string) (models.FollowUpQuestion, error) {
	var followUp models.FollowUpQuestion
	err := r.db.WithContext(ctx).
		Where("id = ? AND answer_note_id = ?", followUpID, noteID).
		First(&followUp).Error
	return followUp, err
}

// AnswerFollowUp stores the answer only if none was recorded before.
func (r *answerNoteRepository) AnswerFollowUp(ctx context.Context, followUpID, answer string, answeredAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.FollowUpQuestion{}).
		Where("id = ? AND answer IS NULL", followUpID).
		Updates(map[string]interface{}{"answer": answer, "answered_at": answeredAt})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFollowUpAlreadyAnswered
	}
	return nil
}

func (r *answerNoteRepository) withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("FollowUps", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Evaluations", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		})
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-interview-api/internal/models"
)

// EvaluationRepository stores evaluations and interview summaries. Both are append only.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *models.Evaluation) error
	CreateBatch(ctx context.Context, evaluations []*models.Evaluation) error
	GetByID(ctx context.Context, noteID, id string) (models.Evaluation, error)
	ListByNote(ctx context.Context, noteID string) ([]models.Evaluation, error)
	CreateSummary(ctx context.Context, summary *models.InterviewSummary) error
	LatestSummary(ctx context.Context, setID string) (models.InterviewSummary, error)
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository constructs an evaluation repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

// CreateBatch stores several evaluations in one transaction; either all rows land or none.
func (r *evaluationRepository) CreateBatch(ctx context.Context, evaluations []*models.Evaluation) error {
	if len(evaluations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, evaluation := range evaluations {
			if err := tx.Create(evaluation).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *evaluationRepository) GetByID(ctx context.Context, noteID, id string) (models.Evaluation, error) {
	var evaluation models.Evaluation
	err := r.db.WithContext(ctx).
		Where("id = ? AND answer_note_id = ?", id, noteID).
		First(&evaluation).Error
	return evaluation, err
}

func (r *evaluationRepository) ListByNote(ctx context.Context, noteID string) ([]models.Evaluation, error) {
	var evaluations []models.Evaluation
	err := r.db.WithContext(ctx).
		Where("answer_note_id = ?", noteID).
		Order("created_at ASC").
		Find(&evaluations).Error
	return evaluations, err
}

func (r *evaluationRepository) CreateSummary(ctx context.Context, summary *models.InterviewSummary) error {
	return r.db.WithContext(ctx).Create(summary).Error
}

func (r *evaluationRepository) LatestSummary(ctx context.Context, setID string) (models.InterviewSummary, error) {
	var summary models.InterviewSummary
	err := r.db.WithContext(ctx).
		Where("set_id = ?", setID).
		Order("created_at DESC").
		First(&summary).Error
	return summary, err
}

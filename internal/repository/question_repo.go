package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-interview-api/internal/models"
)

// QuestionFilter narrows question bank queries.
type QuestionFilter struct {
	Category string
	JobType  string
	Level    string
	Search   string
	Page     int
	PageSize int
}

// QuestionRepository manages the interview question bank.
type QuestionRepository interface {
	List(ctx context.Context, filter QuestionFilter) ([]models.Question, int64, error)
	ListCandidates(ctx context.Context, category, jobType string, limit int) ([]models.Question, error)
	GetByID(ctx context.Context, id string) (models.Question, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, question *models.Question) error
	CreateBatch(ctx context.Context, questions []models.Question) error
	Update(ctx context.Context, question *models.Question) error
	Delete(ctx context.Context, id string) error
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository constructs a question repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) List(ctx context.Context, filter QuestionFilter) ([]models.Question, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Question{})

	if category := strings.TrimSpace(strings.ToLower(filter.Category)); category != "" {
		query = query.Where("category = ?", category)
	}
	if jobType := strings.TrimSpace(strings.ToLower(filter.JobType)); jobType != "" {
		query = query.Where("job_type = ?", jobType)
	}
	if level := strings.TrimSpace(strings.ToLower(filter.Level)); level != "" {
		query = query.Where("level = ?", level)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(text) LIKE ?", pattern)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var questions []models.Question
	if err := query.Order("created_at ASC").Order("id ASC").Find(&questions).Error; err != nil {
		return nil, 0, err
	}

	return questions, total, nil
}

func (r *questionRepository) ListCandidates(ctx context.Context, category, jobType string, limit int) ([]models.Question, error) {
	query := r.db.WithContext(ctx).Where("category = ?", category)
	if jobType != "" {
		query = query.Where("job_type = ?", jobType)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var questions []models.Question
	if err := query.Order("id ASC").Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepository) GetByID(ctx context.Context, id string) (models.Question, error) {
	var question models.Question
	err := r.db.WithContext(ctx).First(&question, "id = ?", id).Error
	return question, err
}

func (r *questionRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Question{}).Count(&total).Error
	return total, err
}

func (r *questionRepository) Create(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Create(question).Error
}

func (r *questionRepository) CreateBatch(ctx context.Context, questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&questions).Error
}

func (r *questionRepository) Update(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Save(question).Error
}

func (r *questionRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Question{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

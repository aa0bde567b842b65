package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Question categories.
const (
	QuestionCategoryCommon    = "common"
	QuestionCategoryJob       = "job"
	QuestionCategoryForeigner = "foreigner"
)

// Job types a question or interview set can target.
const (
	JobTypeIT        = "it"
	JobTypeMarketing = "marketing"
)

// Seniority levels.
const (
	LevelIntern      = "intern"
	LevelEntry       = "entry"
	LevelExperienced = "experienced"
)

// Question is an entry of the interview question bank.
type Question struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Text        string    `gorm:"type:text;not null" json:"question"`
	Category    string    `gorm:"size:32;not null;index" json:"category"`
	JobType     string    `gorm:"size:32;index" json:"job_type,omitempty"`
	Level       string    `gorm:"size:32" json:"level,omitempty"`
	ModelAnswer string    `gorm:"type:text" json:"model_answer,omitempty"`
	Reasoning   string    `gorm:"type:text" json:"reasoning,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when none was provided.
func (q *Question) BeforeCreate(*gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

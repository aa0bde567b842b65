package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Interview set lifecycle states.
const (
	SetStatusInProgress        = "in_progress"
	SetStatusPendingEvaluation = "pending_evaluation"
	SetStatusEvaluating        = "evaluating"
	SetStatusCompleted         = "completed"
)

// QuestionSet is one mock interview session owned by a user.
type QuestionSet struct {
	ID          string        `gorm:"primaryKey;size:36" json:"id"`
	UserID      string        `gorm:"size:64;not null;index" json:"user_id"`
	Title       string        `gorm:"size:255;not null" json:"title"`
	JobType     string        `gorm:"size:32;not null" json:"job_type"`
	Level       string        `gorm:"size:32;not null" json:"level"`
	Status      string        `gorm:"size:32;not null" json:"status"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Questions   []SetQuestion `gorm:"foreignKey:SetID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions,omitempty"`
}

// BeforeCreate assigns a UUID when none was provided.
func (s *QuestionSet) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// IsCompleted reports whether the comprehensive evaluation has been stored.
func (s QuestionSet) IsCompleted() bool {
	return s.Status == SetStatusCompleted
}

// QuestionAt returns the set question at the 1-based position.
func (s QuestionSet) QuestionAt(position int) (SetQuestion, bool) {
	for _, question := range s.Questions {
		if question.Position == position {
			return question, true
		}
	}
	return SetQuestion{}, false
}

// SetQuestion snapshots a bank question at a fixed position inside a set.
type SetQuestion struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	SetID       string `gorm:"size:36;not null;uniqueIndex:idx_set_position" json:"-"`
	QuestionID  string `gorm:"size:36;not null" json:"question_id"`
	Position    int    `gorm:"not null;uniqueIndex:idx_set_position" json:"position"`
	Text        string `gorm:"type:text;not null" json:"question"`
	Category    string `gorm:"size:32;not null" json:"category"`
	Level       string `gorm:"size:32" json:"level,omitempty"`
	ModelAnswer string `gorm:"type:text" json:"-"`
}

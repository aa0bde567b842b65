package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AnswerNote stores a user's answer to a question, optionally inside an interview set.
type AnswerNote struct {
	ID          string  `gorm:"primaryKey;size:36" json:"id"`
	UserID      string  `gorm:"size:64;not null;index" json:"user_id"`
	QuestionID  string  `gorm:"size:36;not null" json:"question_id"`
	SetID       *string `gorm:"size:36;uniqueIndex:idx_note_set_position" json:"set_id,omitempty"`
	Position    *int    `gorm:"uniqueIndex:idx_note_set_position" json:"position,omitempty"`
	Question    string  `gorm:"type:text;not null" json:"question"`
	Category    string  `gorm:"size:32" json:"category,omitempty"`
	Level       string  `gorm:"size:32" json:"level,omitempty"`
	ModelAnswer string  `gorm:"type:text" json:"-"`
	Answer      string  `gorm:"type:text;not null" json:"answer"`
	Title       string  `gorm:"size:255" json:"title,omitempty"`
	// Refinement trail written by the user before the note is evaluated.
	FirstFeedback  *string            `gorm:"type:text" json:"first_feedback,omitempty"`
	SecondFeedback *string            `gorm:"type:text" json:"second_feedback,omitempty"`
	FinalAnswer    *string            `gorm:"type:text" json:"final_answer,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	FollowUps      []FollowUpQuestion `gorm:"foreignKey:AnswerNoteID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"follow_ups,omitempty"`
	Evaluations    []Evaluation       `gorm:"foreignKey:AnswerNoteID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"evaluations,omitempty"`
}

// BeforeCreate assigns a UUID when none was provided.
func (n *AnswerNote) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// HasPendingFollowUp reports whether a generated follow-up is still unanswered.
func (n AnswerNote) HasPendingFollowUp() bool {
	for _, followUp := range n.FollowUps {
		if !followUp.IsAnswered() {
			return true
		}
	}
	return false
}

// EvaluatedAnswer is the text sent to the evaluator: the refined final answer when present.
func (n AnswerNote) EvaluatedAnswer() string {
	if n.FinalAnswer != nil && *n.FinalAnswer != "" {
		return *n.FinalAnswer
	}
	return n.Answer
}

// FollowUpQuestion is a probing question generated from an answer note.
type FollowUpQuestion struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	AnswerNoteID string     `gorm:"size:36;not null;index" json:"answer_note_id"`
	Question     string     `gorm:"type:text;not null" json:"question"`
	Rationale    string     `gorm:"type:text" json:"rationale"`
	Answer       *string    `gorm:"type:text" json:"answer,omitempty"`
	AnsweredAt   *time.Time `json:"answered_at,omitempty"`
	Model        string     `gorm:"size:128" json:"model"`
	CreatedAt    time.Time  `json:"created_at"`
}

// BeforeCreate assigns a UUID when none was provided.
func (f *FollowUpQuestion) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// IsAnswered reports whether the follow-up already carries an answer.
func (f FollowUpQuestion) IsAnswered() bool {
	return f.Answer != nil
}

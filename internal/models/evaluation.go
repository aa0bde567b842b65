package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Evaluation is an immutable AI assessment of one answer note.
type Evaluation struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	AnswerNoteID   string         `gorm:"size:36;not null;index" json:"answer_note_id"`
	UserID         string         `gorm:"size:64;not null" json:"user_id"`
	Score          float64        `gorm:"not null" json:"score"`
	Feedback       string         `gorm:"type:text" json:"feedback"`
	Strengths      datatypes.JSON `json:"strengths"`
	Weaknesses     datatypes.JSON `json:"weaknesses"`
	CategoryScores datatypes.JSON `json:"category_scores"`
	Model          string         `gorm:"size:128" json:"model"`
	CreatedAt      time.Time      `json:"created_at"`
}

// BeforeCreate assigns a UUID when none was provided.
func (e *Evaluation) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// InterviewSummary is the comprehensive assessment of a completed interview set.
type InterviewSummary struct {
	ID               string         `gorm:"primaryKey;size:36" json:"id"`
	SetID            string         `gorm:"size:36;not null;index" json:"set_id"`
	UserID           string         `gorm:"size:64;not null" json:"user_id"`
	OverallScore     float64        `json:"overall_score"`
	CategoryAverages datatypes.JSON `json:"category_averages"`
	Recommendation   string         `gorm:"type:text" json:"recommendation"`
	FocusAreas       datatypes.JSON `json:"focus_areas"`
	AnswerCount      int            `json:"answer_count"`
	Model            string         `gorm:"size:128" json:"model"`
	CreatedAt        time.Time      `json:"created_at"`
}

// BeforeCreate assigns a UUID when none was provided.
func (s *InterviewSummary) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// EncodeJSON marshals a value for a JSON column, falling back to null.
func EncodeJSON(value interface{}) datatypes.JSON {
	raw, err := json.Marshal(value)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(raw)
}

// DecodeStrings reads a JSON string array column.
func DecodeStrings(raw datatypes.JSON) []string {
	values := []string{}
	if len(raw) == 0 {
		return values
	}
	if err := json.Unmarshal(raw, &values); err != nil || values == nil {
		return []string{}
	}
	return values
}

// DecodeScores reads a JSON object of numeric scores.
func DecodeScores(raw datatypes.JSON) map[string]float64 {
	values := map[string]float64{}
	if len(raw) == 0 {
		return values
	}
	if err := json.Unmarshal(raw, &values); err != nil || values == nil {
		return map[string]float64{}
	}
	return values
}

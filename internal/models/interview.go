package models

import (
	"time"

	"github.com/lib/pq"
)

type InterviewStatus string

const (
	StatusInProgress InterviewStatus = "in_progress"
	StatusCompleted  InterviewStatus = "completed"
	StatusTerminated InterviewStatus = "terminated"
)

// Terminal reports whether no further answers are accepted.
func (s InterviewStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusTerminated
}

type Interview struct {
	ID     string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID string          `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	Status InterviewStatus `gorm:"column:status;type:text" json:"status"`

	// Running cross-question gaze violation total. Monotonic within one
	// interview; a new interview starts from zero.
	TotalGazeViolations int `gorm:"column:total_gaze_violations;type:integer" json:"total_gaze_violations"`

	StartedAt   time.Time  `gorm:"column:started_at;type:timestamptz" json:"started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at;type:timestamptz" json:"completed_at,omitempty"`

	Questions []Question `gorm:"foreignKey:InterviewID" json:"questions,omitempty"`
}

func (Interview) TableName() string { return "interviews" }

// Question is immutable once generated for an interview.
type Question struct {
	ID            string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InterviewID   string `gorm:"column:interview_id;type:uuid;index:idx_questions_interview_number,unique" json:"interview_id"`
	QuestionNumber int   `gorm:"column:question_number;type:integer;index:idx_questions_interview_number,unique" json:"question_number"`

	QuestionText    string         `gorm:"column:question_text;type:text" json:"question_text"`
	ReferenceAnswer string         `gorm:"column:reference_answer;type:text" json:"reference_answer"`
	ExpectedKeywords pq.StringArray `gorm:"column:expected_keywords;type:text[]" json:"expected_keywords"`
	DifficultyLevel string         `gorm:"column:difficulty_level;type:text" json:"difficulty_level"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Question) TableName() string { return "questions" }

package models

import (
	"time"

	"gorm.io/datatypes"
)

// Feedback is at most one per interview; regeneration overwrites the existing
// row in place (upsert keyed by interview_id) rather than inserting a second.
type Feedback struct {
	ID          string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InterviewID string `gorm:"column:interview_id;type:uuid;uniqueIndex" json:"interview_id"`

	OverallScore float64 `gorm:"column:overall_score;type:double precision" json:"overall_score"`
	ContentScore float64 `gorm:"column:content_score;type:double precision" json:"content_score"`
	AudioScore   float64 `gorm:"column:audio_score;type:double precision" json:"audio_score"`
	VideoScore   float64 `gorm:"column:video_score;type:double precision" json:"video_score"`

	// Newline-delimited statement lists.
	Strengths       string `gorm:"column:strengths;type:text" json:"strengths"`
	Weaknesses      string `gorm:"column:weaknesses;type:text" json:"weaknesses"`
	Recommendations string `gorm:"column:recommendations;type:text" json:"recommendations"`
	OverallComment  string `gorm:"column:overall_comment;type:text" json:"overall_comment"`

	// Denormalized per-question snapshot captured at generation time.
	QuestionWiseAnalysis datatypes.JSON `gorm:"column:question_wise_analysis;type:jsonb" json:"question_wise_analysis"`

	GeneratedAt time.Time `gorm:"column:generated_at;type:timestamptz" json:"generated_at"`
}

func (Feedback) TableName() string { return "feedbacks" }

// QuestionAnalysis is one row of the denormalized per-question snapshot.
type QuestionAnalysis struct {
	QuestionNumber  int      `json:"question_number"`
	QuestionText    string   `json:"question_text"`
	UserAnswer      string   `json:"user_answer"`
	KeywordMatch    float64  `json:"keyword_match"`
	Sentiment       string   `json:"sentiment"`
	Grammar         float64  `json:"grammar"`
	EyeContact      float64  `json:"eye_contact"`
	MatchedKeywords []string `json:"matched_keywords"`
}

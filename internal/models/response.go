package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Response holds the scored answer for one (interview, question) pair.
// Write-once: created on first successful submission, never mutated.
type Response struct {
	ID          string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InterviewID string `gorm:"column:interview_id;type:uuid;index:idx_responses_interview_question,unique" json:"interview_id"`
	QuestionID  string `gorm:"column:question_id;type:uuid;index:idx_responses_interview_question,unique" json:"question_id"`

	Transcript string `gorm:"column:transcript;type:text" json:"transcript"`

	// Text analysis. Fallback flags distinguish a computed value from a
	// neutral default substituted after an analyzer failure.
	SentimentScore    float64 `gorm:"column:sentiment_score;type:double precision" json:"sentiment_score"`
	SentimentLabel    string  `gorm:"column:sentiment_label;type:text" json:"sentiment_label"`
	SentimentFallback bool    `gorm:"column:sentiment_fallback" json:"sentiment_fallback"`

	GrammarScore    float64 `gorm:"column:grammar_score;type:double precision" json:"grammar_score"`
	GrammarFallback bool    `gorm:"column:grammar_fallback" json:"grammar_fallback"`

	KeywordMatchScore  float64        `gorm:"column:keyword_match_score;type:double precision" json:"keyword_match_score"`
	MatchedKeywords    pq.StringArray `gorm:"column:matched_keywords;type:text[]" json:"matched_keywords"`
	SemanticSimilarity *float64       `gorm:"column:semantic_similarity;type:double precision" json:"semantic_similarity,omitempty"`
	ContentFallback    bool           `gorm:"column:content_fallback" json:"content_fallback"`

	// Video analysis; absent when no frames were captured for this answer.
	EyeContactScore   *float64       `gorm:"column:eye_contact_score;type:double precision" json:"eye_contact_score,omitempty"`
	FaceDetectionRate *float64       `gorm:"column:face_detection_rate;type:double precision" json:"face_detection_rate,omitempty"`
	GazeViolations    int            `gorm:"column:gaze_violations;type:integer" json:"gaze_violations"`
	ViolationDetails  datatypes.JSON `gorm:"column:violation_details;type:jsonb" json:"violation_details,omitempty"`

	TranscriptEmbedding *pgvector.Vector `gorm:"column:transcript_embedding;type:vector(768)" json:"-"`

	// GCS object key of the raw answer audio, when audit upload is configured.
	AudioPath string `gorm:"column:audio_path;type:text" json:"audio_path,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Response) TableName() string { return "responses" }

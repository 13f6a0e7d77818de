package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CaptureBurst is the audit record of one continuous frame-capture burst,
// kept in Mongo with a TTL so abandoned bursts age out on their own.
type CaptureBurst struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	InterviewID    string             `bson:"interview_id" json:"interview_id"`
	QuestionNumber int                `bson:"question_number" json:"question_number"`

	Status string `bson:"status" json:"status"` // capturing|analyzed|discarded

	TotalFrames           int     `bson:"total_frames" json:"total_frames"`
	FramesWithFace        int     `bson:"frames_with_face" json:"frames_with_face"`
	FaceDetectionRate     float64 `bson:"face_detection_rate" json:"face_detection_rate"`
	FramesLookingAtCamera int     `bson:"frames_looking_at_camera" json:"frames_looking_at_camera"`
	EyeContactScore       float64 `bson:"eye_contact_score" json:"eye_contact_score"`
	GazeViolations        int     `bson:"gaze_violations" json:"gaze_violations"`

	// Bounded sample; the count above is authoritative.
	ViolationDetails []BurstViolation `bson:"violation_details,omitempty" json:"violation_details,omitempty"`

	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}

type BurstViolation struct {
	FrameNumber int       `bson:"frame_number" json:"frame_number"`
	Timestamp   time.Time `bson:"timestamp" json:"timestamp"`
}

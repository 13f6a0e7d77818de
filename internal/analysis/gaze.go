package analysis

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prepstage/intervue/internal/providers/vision"
)

const (
	// Gaze ratios inside this band around dead-center count as looking at
	// the camera.
	gazeTolerance = 0.3

	// The violation count is authoritative; the detail list is a bounded
	// sample kept for display and audit.
	maxViolationDetails = 10
)

// Frame is one captured video frame: encoded image bytes plus the capture
// metadata the analyzers need.
type Frame struct {
	Index      int
	Width      int
	Height     int
	Image      []byte
	CapturedAt time.Time
}

type FrameResult struct {
	FaceDetected    bool
	LookingAtCamera bool
	HorizontalGaze  float64
	VerticalGaze    float64
	CapturedAt      time.Time
}

type Violation struct {
	FrameNumber int       `json:"frame_number"`
	Timestamp   time.Time `json:"timestamp"`
}

type BatchResult struct {
	TotalFrames           int         `json:"total_frames"`
	FramesWithFace        int         `json:"frames_with_face"`
	FaceDetectionRate     float64     `json:"face_detection_rate"`
	FramesLookingAtCamera int         `json:"frames_looking_at_camera"`
	EyeContactScore       float64     `json:"eye_contact_score"`
	GazeViolations        int         `json:"gaze_violations"`
	ViolationDetails      []Violation `json:"violation_details"`
}

// GazeAnalyzer scores frames for face presence and gaze-on-camera. It is
// stateless across calls; batch aggregation covers one capture burst only.
type GazeAnalyzer struct {
	detector vision.FaceDetector
	log      *logrus.Logger
}

func NewGazeAnalyzer(d vision.FaceDetector, log *logrus.Logger) *GazeAnalyzer {
	if log == nil {
		log = logrus.New()
	}
	return &GazeAnalyzer{detector: d, log: log}
}

func (a *GazeAnalyzer) AnalyzeFrame(ctx context.Context, f Frame) FrameResult {
	out := FrameResult{CapturedAt: f.CapturedAt}

	if len(f.Image) == 0 {
		return out
	}

	landmarks, err := a.detector.Detect(ctx, f.Image, f.Width, f.Height)
	if err != nil {
		// Detector trouble reads as "no face": the frame drops out of the
		// eye-contact denominator instead of failing the batch.
		a.log.WithError(err).WithField("frame", f.Index).Warn("face detection failed")
		return out
	}
	if landmarks == nil {
		return out
	}

	out.FaceDetected = true

	eye := landmarks.LeftEye
	if eye == nil {
		eye = landmarks.RightEye
	}
	if eye == nil || len(eye.Iris) == 0 {
		return out
	}

	h, v, ok := gazeRatios(eye)
	if !ok {
		return out
	}

	out.HorizontalGaze = round2(h)
	out.VerticalGaze = round2(v)
	out.LookingAtCamera = math.Abs(h) < gazeTolerance && math.Abs(v) < gazeTolerance
	return out
}

// gazeRatios maps the iris centroid into the eye's corner span: 0 at
// eye-center, ±1 at full excursion.
func gazeRatios(eye *vision.EyeLandmarks) (horizontal, vertical float64, ok bool) {
	var cx, cy float64
	for _, p := range eye.Iris {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(eye.Iris))
	cy /= float64(len(eye.Iris))

	width := eye.RightCorner.X - eye.LeftCorner.X
	if width == 0 {
		return 0, 0, false
	}

	horizontal = ((cx-eye.LeftCorner.X)/width - 0.5) * 2
	vertical = (cy - 0.5) * 2
	return horizontal, vertical, true
}

func (a *GazeAnalyzer) AnalyzeBatch(ctx context.Context, frames []Frame) BatchResult {
	out := BatchResult{
		TotalFrames:      len(frames),
		ViolationDetails: []Violation{},
	}
	if len(frames) == 0 {
		return out
	}

	for _, f := range frames {
		r := a.AnalyzeFrame(ctx, f)
		if !r.FaceDetected {
			continue
		}

		out.FramesWithFace++
		if r.LookingAtCamera {
			out.FramesLookingAtCamera++
			continue
		}

		out.GazeViolations++
		if len(out.ViolationDetails) < maxViolationDetails {
			out.ViolationDetails = append(out.ViolationDetails, Violation{
				FrameNumber: f.Index,
				Timestamp:   r.CapturedAt,
			})
		}
	}

	out.FaceDetectionRate = round2(float64(out.FramesWithFace) / float64(out.TotalFrames) * 100)
	if out.FramesWithFace > 0 {
		out.EyeContactScore = round2(float64(out.FramesLookingAtCamera) / float64(out.FramesWithFace) * 100)
	}
	return out
}

package vision

import "context"

// Point is a 2D landmark position normalized to [0, 1] within the frame.
type Point struct {
	X float64
	Y float64
}

// EyeLandmarks carries the iris cluster and horizontal corner span of one eye.
type EyeLandmarks struct {
	Iris        []Point
	LeftCorner  Point
	RightCorner Point
}

type FaceLandmarks struct {
	LeftEye  *EyeLandmarks
	RightEye *EyeLandmarks
}

// FaceDetector locates facial landmarks in a single frame. A nil result with
// a nil error means no face was found.
type FaceDetector interface {
	Detect(ctx context.Context, image []byte, width, height int) (*FaceLandmarks, error)
	Close() error
}

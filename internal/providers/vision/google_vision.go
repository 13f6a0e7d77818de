package vision

import (
	"bytes"
	"context"

	gcvision "cloud.google.com/go/vision/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
)

// GoogleFaceDetector maps Cloud Vision face annotations onto the normalized
// landmark set the gaze analyzer needs. Vision reports pixel positions, so the
// caller's frame dimensions are used to normalize.
type GoogleFaceDetector struct {
	client *gcvision.ImageAnnotatorClient
}

func NewGoogleFaceDetector(ctx context.Context) (*GoogleFaceDetector, error) {
	c, err := gcvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleFaceDetector{client: c}, nil
}

func (d *GoogleFaceDetector) Close() error { return d.client.Close() }

func (d *GoogleFaceDetector) Detect(ctx context.Context, image []byte, width, height int) (*FaceLandmarks, error) {
	if width <= 0 || height <= 0 || len(image) == 0 {
		return nil, nil
	}

	img, err := gcvision.NewImageFromReader(bytes.NewReader(image))
	if err != nil {
		return nil, err
	}

	faces, err := d.client.DetectFaces(ctx, img, nil, 1)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, nil
	}

	marks := map[visionpb.FaceAnnotation_Landmark_Type]*visionpb.Position{}
	for _, l := range faces[0].Landmarks {
		if l.Position != nil {
			marks[l.Type] = l.Position
		}
	}

	norm := func(p *visionpb.Position) Point {
		return Point{
			X: float64(p.X) / float64(width),
			Y: float64(p.Y) / float64(height),
		}
	}

	eye := func(pupil, left, right visionpb.FaceAnnotation_Landmark_Type) *EyeLandmarks {
		pp, pok := marks[pupil]
		lp, lok := marks[left]
		rp, rok := marks[right]
		if !pok || !lok || !rok {
			return nil
		}
		return &EyeLandmarks{
			// Vision exposes a single pupil point; the analyzer treats it as
			// a one-element iris cluster.
			Iris:        []Point{norm(pp)},
			LeftCorner:  norm(lp),
			RightCorner: norm(rp),
		}
	}

	out := &FaceLandmarks{
		LeftEye: eye(
			visionpb.FaceAnnotation_Landmark_LEFT_EYE_PUPIL,
			visionpb.FaceAnnotation_Landmark_LEFT_EYE_LEFT_CORNER,
			visionpb.FaceAnnotation_Landmark_LEFT_EYE_RIGHT_CORNER,
		),
		RightEye: eye(
			visionpb.FaceAnnotation_Landmark_RIGHT_EYE_PUPIL,
			visionpb.FaceAnnotation_Landmark_RIGHT_EYE_LEFT_CORNER,
			visionpb.FaceAnnotation_Landmark_RIGHT_EYE_RIGHT_CORNER,
		),
	}

	if out.LeftEye == nil && out.RightEye == nil {
		// A face box without usable eye landmarks still counts as a face.
		return &FaceLandmarks{}, nil
	}
	return out, nil
}

// Package facefilter rejects detections that produce unreliable embeddings:
// degenerate boxes, faces touching the image border, and side profiles.
package facefilter

import (
	"image"
	"iter"
	"math"

	"github.com/kozaktomas/face-recognizer/internal/detector"
)

// Options control the filtering thresholds.
type Options struct {
	// EdgeMarginRatio is the fraction of image width/height treated as an
	// unreliable border zone. Boxes touching or crossing it are rejected.
	EdgeMarginRatio float64

	// ProfileThreshold is the maximum nose-to-eye-midpoint asymmetry ratio.
	// Values strictly above it indicate a side profile.
	ProfileThreshold float64
}

// Candidate is a detection that survived filtering, with its crop rectangle
// clamped to the image bounds.
type Candidate struct {
	Index int // position in the original detection order
	Rect  image.Rectangle
	Face  detector.Face
}

// Filter yields the detections that survive quality filtering, lazily and in
// original detection order. The sequence is finite and has no side effects.
func Filter(faces []detector.Face, imgWidth, imgHeight int, opts Options) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for i, face := range faces {
			rect, ok := admit(face, imgWidth, imgHeight, opts)
			if !ok {
				continue
			}
			if !yield(Candidate{Index: i, Rect: rect, Face: face}) {
				return
			}
		}
	}
}

// admit applies all rejection rules to a single detection.
func admit(face detector.Face, imgWidth, imgHeight int, opts Options) (image.Rectangle, bool) {
	if len(face.BBox) != 4 || imgWidth <= 0 || imgHeight <= 0 {
		return image.Rectangle{}, false
	}

	x1, y1, x2, y2 := face.BBox[0], face.BBox[1], face.BBox[2], face.BBox[3]
	if x2-x1 <= 0 || y2-y1 <= 0 {
		return image.Rectangle{}, false
	}

	// Faces cut off at frame edges produce unreliable embeddings. A box that
	// exactly touches the margin counts as inside the border zone.
	marginX := float64(imgWidth) * opts.EdgeMarginRatio
	marginY := float64(imgHeight) * opts.EdgeMarginRatio
	if x1 <= marginX || y1 <= marginY ||
		x2 >= float64(imgWidth)-marginX || y2 >= float64(imgHeight)-marginY {
		return image.Rectangle{}, false
	}

	if face.Landmarks != nil && isProfile(face.Landmarks, opts.ProfileThreshold) {
		return image.Rectangle{}, false
	}

	rect := image.Rect(int(x1), int(y1), int(math.Ceil(x2)), int(math.Ceil(y2)))
	rect = rect.Intersect(image.Rect(0, 0, imgWidth, imgHeight))
	if rect.Empty() {
		return image.Rectangle{}, false
	}
	return rect, true
}

// isProfile reports whether the landmarks indicate a side profile. A strongly
// asymmetric nose-to-eye-midpoint offset means the face is turned away from
// the camera. Zero eye distance is treated as maximally asymmetric.
func isProfile(lm *detector.Landmarks, threshold float64) bool {
	eyeDistance := math.Hypot(lm.LeftEye.X-lm.RightEye.X, lm.LeftEye.Y-lm.RightEye.Y)
	if eyeDistance == 0 {
		return true
	}
	eyeMidX := (lm.LeftEye.X + lm.RightEye.X) / 2.0
	asymmetry := math.Abs(eyeMidX-lm.Nose.X) / eyeDistance
	return asymmetry > threshold
}

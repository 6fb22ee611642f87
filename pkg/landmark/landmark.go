// Package landmark defines the body, face and hand landmark sets produced
// by a detection backend for a single frame.
//
// Detection itself is delegated to an external model. Backends live in
// subpackages: yunet (OpenCV face detector, face only) and holistic
// (an external worker process returning all four categories).
package landmark

// Point is a landmark position. X and Y are normalized to the frame (0-1),
// Z is the model's relative depth and may be zero.
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility,omitempty"`
}

// Set is the landmark collection for one anatomical region.
// A nil or empty Set means the region was not detected.
type Set []Point

// Present reports whether the set holds any landmarks.
func (s Set) Present() bool {
	return len(s) > 0
}

// Category names a landmark region.
type Category string

const (
	Face      Category = "face"
	Pose      Category = "pose"
	LeftHand  Category = "left_hand"
	RightHand Category = "right_hand"
)

// Categories lists every region in drawing order.
var Categories = []Category{Face, Pose, LeftHand, RightHand}

// Result holds the four independently optional landmark sets for a frame.
type Result struct {
	Face      Set `json:"face,omitempty"`
	Pose      Set `json:"pose,omitempty"`
	LeftHand  Set `json:"left_hand,omitempty"`
	RightHand Set `json:"right_hand,omitempty"`
}

// Get returns the set for a category.
func (r Result) Get(c Category) Set {
	switch c {
	case Face:
		return r.Face
	case Pose:
		return r.Pose
	case LeftHand:
		return r.LeftHand
	case RightHand:
		return r.RightHand
	}
	return nil
}

// Empty reports whether nothing was detected at all.
func (r Result) Empty() bool {
	return !r.Face.Present() && !r.Pose.Present() &&
		!r.LeftHand.Present() && !r.RightHand.Present()
}

// Config holds the thresholds a backend is initialized with.
type Config struct {
	MinDetectionConfidence float64
	MinTrackingConfidence  float64
}

// DefaultConfig returns the fixed thresholds used by motioncam.
func DefaultConfig() Config {
	return Config{
		MinDetectionConfidence: 0.5,
		MinTrackingConfidence:  0.5,
	}
}

// Validate checks that both thresholds are within 0-1.
func (c Config) Validate() error {
	if c.MinDetectionConfidence < 0 || c.MinDetectionConfidence > 1 {
		return ErrInvalidThreshold
	}
	if c.MinTrackingConfidence < 0 || c.MinTrackingConfidence > 1 {
		return ErrInvalidThreshold
	}
	return nil
}

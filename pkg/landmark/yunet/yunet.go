// Package yunet is a face-only landmark backend built on OpenCV's
// FaceDetectorYN. Pose and hand sets are always absent.
package yunet

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/teslashibe/go-motioncam/pkg/landmark"
	"gocv.io/x/gocv"
)

const backendName = "yunet"

// Config holds detector configuration.
type Config struct {
	ModelPath   string  // Path to ONNX model
	NMSThresh   float64 // Non-maximum suppression threshold
	TopK        int     // Candidates kept before NMS
	InputWidth  int     // Initial model input width
	InputHeight int     // Initial model input height

	landmark.Config
}

// DefaultConfig returns production defaults for YuNet.
func DefaultConfig() Config {
	return Config{
		ModelPath:   "models/face_detection_yunet.onnx",
		NMSThresh:   0.3,
		TopK:        5000,
		InputWidth:  320,
		InputHeight: 320,
		Config:      landmark.DefaultConfig(),
	}
}

// Detector finds faces and reports their five keypoints as the face set.
type Detector struct {
	detector gocv.FaceDetectorYN
	config   Config
	mu       sync.Mutex // Protects inference
	closed   bool
}

// New creates a detector. The model file must exist.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, landmark.WrapError(backendName, err)
	}
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, landmark.WrapError(backendName, fmt.Errorf("%w: %s", landmark.ErrModelNotFound, cfg.ModelPath))
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"", // No config file needed for ONNX
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.MinDetectionConfidence),
		float32(cfg.NMSThresh),
		cfg.TopK,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &Detector{
		detector: detector,
		config:   cfg,
	}, nil
}

// Detect runs the face detector on a BGR frame.
func (d *Detector) Detect(frame gocv.Mat) (landmark.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return landmark.Result{}, landmark.WrapError(backendName, landmark.ErrWorkerClosed)
	}
	if frame.Empty() {
		return landmark.Result{}, landmark.WrapError(backendName, fmt.Errorf("empty image"))
	}

	imgW := float64(frame.Cols())
	imgH := float64(frame.Rows())

	d.detector.SetInputSize(image.Pt(frame.Cols(), frame.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()

	d.detector.Detect(frame, &faces)

	return landmark.Result{Face: parseFaces(faces, imgW, imgH)}, nil
}

// parseFaces converts YuNet output rows into one face set.
// Row layout (15 columns): 0-3 box, 4-13 five keypoints (x,y), 14 score.
// Keypoints of every face above threshold are concatenated.
func parseFaces(faces gocv.Mat, imgW, imgH float64) landmark.Set {
	var set landmark.Set
	for r := 0; r < faces.Rows(); r++ {
		score := float64(faces.GetFloatAt(r, 14))
		for k := 0; k < 5; k++ {
			x := float64(faces.GetFloatAt(r, 4+k*2))
			y := float64(faces.GetFloatAt(r, 5+k*2))
			set = append(set, landmark.Point{
				X:          x / imgW,
				Y:          y / imgH,
				Visibility: score,
			})
		}
	}
	return set
}

// Close releases the detector resources.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.detector.Close()
	return nil
}

// Package pipeline runs the per-frame loop behind the video stream:
// read, mirror, detect, evaluate motion, draw, record, encode, emit.
//
// Frames are processed strictly one at a time in capture order. The loop
// ends when the source stops producing frames, when a stage fails, or when
// its context is cancelled (the client went away).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-motioncam/pkg/landmark"
	"github.com/teslashibe/go-motioncam/pkg/stream"
	"gocv.io/x/gocv"
)

// ErrBusy is returned when a second stream is started while one is running.
var ErrBusy = errors.New("pipeline: stream already running")

// Source produces camera frames. Read returns false when no frame is available.
type Source interface {
	Read(dst *gocv.Mat) bool
}

// Detector finds landmarks in a frame.
type Detector interface {
	Detect(frame gocv.Mat) (landmark.Result, error)
	Close() error
}

// DetectorFactory creates the detector used for one stream.
type DetectorFactory func() (Detector, error)

// Policy decides whether a frame is alerting.
type Policy interface {
	Evaluate(detectionEnabled bool, r landmark.Result) bool
	Disable()
}

// Renderer draws the overlay onto the annotated frame.
type Renderer interface {
	Draw(img *gocv.Mat, r landmark.Result, alerting bool)
}

// Recorder persists annotated frames while recording is enabled.
type Recorder interface {
	Update(enabled bool, frame gocv.Mat) error
}

// Encoder turns an annotated frame into JPEG bytes.
type Encoder interface {
	Encode(frame gocv.Mat) ([]byte, error)
}

// Controls exposes the runtime toggles, read once per frame.
type Controls interface {
	DetectionEnabled() bool
	RecordingEnabled() bool
}

// Config wires the loop stages together.
type Config struct {
	Source      Source
	NewDetector DetectorFactory
	Policy      Policy
	Renderer    Renderer
	Recorder    Recorder
	Encoder     Encoder
	Controls    Controls
	Logger      *slog.Logger
}

func (c Config) validate() error {
	switch {
	case c.Source == nil:
		return errors.New("pipeline: source required")
	case c.NewDetector == nil:
		return errors.New("pipeline: detector factory required")
	case c.Policy == nil:
		return errors.New("pipeline: policy required")
	case c.Renderer == nil:
		return errors.New("pipeline: renderer required")
	case c.Recorder == nil:
		return errors.New("pipeline: recorder required")
	case c.Encoder == nil:
		return errors.New("pipeline: encoder required")
	case c.Controls == nil:
		return errors.New("pipeline: controls required")
	}
	return nil
}

// Stats describes the running or last finished stream.
type Stats struct {
	Session   string    `json:"session,omitempty"`
	Streaming bool      `json:"streaming"`
	Frames    int64     `json:"frames"`
	StartedAt time.Time `json:"started_at"`
}

// Loop owns the camera for the lifetime of one stream at a time.
type Loop struct {
	config Config
	logger *slog.Logger

	running atomic.Bool

	// finished is replaced for every stream and closed when it ends.
	finishedMu sync.Mutex
	finished   chan struct{}

	statsMu sync.RWMutex
	stats   Stats
}

// New creates a loop.
func New(cfg Config) (*Loop, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		config: cfg,
		logger: cfg.Logger.With("component", "pipeline"),
	}, nil
}

// Stats returns a copy of the stream statistics.
func (l *Loop) Stats() Stats {
	l.statsMu.RLock()
	defer l.statsMu.RUnlock()
	return l.stats
}

// Streaming reports whether a stream is running.
func (l *Loop) Streaming() bool {
	return l.running.Load()
}

// Run processes frames until the source is exhausted, a stage fails or ctx
// is done. Each encoded frame is passed to emit as one multipart part.
// A nil return means the source ran out of frames or ctx was cancelled.
func (l *Loop) Run(ctx context.Context, emit func(part []byte) error) error {
	if !l.acquire() {
		return ErrBusy
	}
	return l.run(ctx, emit)
}

// Wait blocks until no stream is running or ctx is done.
func (l *Loop) Wait(ctx context.Context) error {
	l.finishedMu.Lock()
	finished := l.finished
	l.finishedMu.Unlock()

	if finished == nil {
		return nil
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire claims the camera for a new stream.
func (l *Loop) acquire() bool {
	if !l.running.CompareAndSwap(false, true) {
		return false
	}
	l.finishedMu.Lock()
	l.finished = make(chan struct{})
	l.finishedMu.Unlock()
	return true
}

// run expects the loop to be acquired and releases it on return.
func (l *Loop) run(ctx context.Context, emit func(part []byte) error) error {
	l.finishedMu.Lock()
	finished := l.finished
	l.finishedMu.Unlock()
	defer func() {
		l.running.Store(false)
		close(finished)
	}()

	session := uuid.NewString()
	logger := l.logger.With("session", session)

	l.statsMu.Lock()
	l.stats = Stats{Session: session, Streaming: true, StartedAt: time.Now()}
	l.statsMu.Unlock()
	defer func() {
		l.statsMu.Lock()
		l.stats.Streaming = false
		l.statsMu.Unlock()
	}()

	detector, err := l.config.NewDetector()
	if err != nil {
		return fmt.Errorf("init detector: %w", err)
	}
	defer detector.Close()

	// A stream that ends must not leave the alarm looping.
	defer l.config.Policy.Disable()

	raw := gocv.NewMat()
	defer raw.Close()
	annotated := gocv.NewMat()
	defer annotated.Close()

	logger.Info("stream started")
	for {
		if err := ctx.Err(); err != nil {
			logger.Info("stream cancelled", "frames", l.Stats().Frames)
			return nil
		}

		if ok := l.config.Source.Read(&raw); !ok || raw.Empty() {
			logger.Info("capture exhausted", "frames", l.Stats().Frames)
			return nil
		}

		if err := l.processFrame(&raw, &annotated, detector, emit); err != nil {
			if ctx.Err() != nil {
				logger.Info("stream cancelled", "frames", l.Stats().Frames)
				return nil
			}
			logger.Warn("stream ended", "error", err, "frames", l.Stats().Frames)
			return err
		}

		l.statsMu.Lock()
		l.stats.Frames++
		l.statsMu.Unlock()
	}
}

// processFrame runs every stage on one frame. raw is left untouched
// after the mirror step; all drawing happens on annotated.
func (l *Loop) processFrame(raw, annotated *gocv.Mat, detector Detector, emit func([]byte) error) error {
	gocv.Flip(*raw, annotated, 1)

	result, err := detector.Detect(*annotated)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}

	alerting := l.config.Policy.Evaluate(l.config.Controls.DetectionEnabled(), result)

	l.config.Renderer.Draw(annotated, result, alerting)

	if err := l.config.Recorder.Update(l.config.Controls.RecordingEnabled(), *annotated); err != nil {
		return fmt.Errorf("record: %w", err)
	}

	jpeg, err := l.config.Encoder.Encode(*annotated)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	if err := emit(stream.Part(jpeg)); err != nil {
		return fmt.Errorf("emit: %w", err)
	}
	return nil
}

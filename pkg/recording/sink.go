// Package recording writes annotated frames to video files while recording
// is enabled.
//
// A writer is opened lazily on the first enabled frame and closed on the
// first disabled frame. File names use whole Unix seconds, so two files
// opened within the same second share a name and the later one overwrites
// the earlier. The writer keeps the dimensions of the frame that opened it.
package recording

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Fixed output parameters.
const (
	Codec     = "XVID"
	FrameRate = 20.0
	Extension = ".avi"
)

// ErrOpen is returned when a video file cannot be opened.
var ErrOpen = errors.New("recording: open writer")

// Writer appends frames to one video file.
type Writer interface {
	Write(frame gocv.Mat) error
	Close() error
}

// Opener creates a Writer for a path with fixed codec, rate and size.
type Opener interface {
	Open(path, codec string, fps float64, width, height int) (Writer, error)
}

// GocvOpener opens OpenCV video writers.
type GocvOpener struct{}

// Open implements Opener.
func (GocvOpener) Open(path, codec string, fps float64, width, height int) (Writer, error) {
	w, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, err
	}
	if !w.IsOpened() {
		w.Close()
		return nil, fmt.Errorf("writer not opened: %s", path)
	}
	return w, nil
}

// Config holds sink configuration.
type Config struct {
	Dir    string
	Opener Opener
	Now    func() time.Time
	Logger *slog.Logger

	// OnOpen and OnClose are called with the file path.
	OnOpen  func(path string)
	OnClose func(path string, frames int)
}

// DefaultConfig writes to ./Recording with OpenCV.
func DefaultConfig() Config {
	return Config{
		Dir:    "Recording",
		Opener: GocvOpener{},
		Now:    time.Now,
		Logger: slog.Default(),
	}
}

// EnsureDir creates the recording directory if it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create recording dir: %w", err)
	}
	return nil
}

// FileName returns the file name used for a recording started at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("recording_%d%s", t.Unix(), Extension)
}

// Sink holds at most one open writer.
type Sink struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	writer Writer
	path   string
	frames int
}

// NewSink creates a sink. Dir must already exist.
func NewSink(cfg Config) *Sink {
	if cfg.Opener == nil {
		cfg.Opener = GocvOpener{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Sink{
		config: cfg,
		logger: cfg.Logger.With("component", "recording"),
	}
}

// Update applies one annotated frame under the current recording flag.
func (s *Sink) Update(enabled bool, frame gocv.Mat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !enabled {
		return s.closeLocked()
	}

	if s.writer == nil {
		path := filepath.Join(s.config.Dir, FileName(s.config.Now()))
		w, err := s.config.Opener.Open(path, Codec, FrameRate, frame.Cols(), frame.Rows())
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
		}
		s.writer = w
		s.path = path
		s.frames = 0
		s.logger.Info("recording started", "path", path, "width", frame.Cols(), "height", frame.Rows())
		if s.config.OnOpen != nil {
			s.config.OnOpen(path)
		}
	}

	if err := s.writer.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	s.frames++
	return nil
}

// Path returns the open file path, or "" when not recording.
func (s *Sink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Recording reports whether a writer is open.
func (s *Sink) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer != nil
}

// Close releases any open writer.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Sink) closeLocked() error {
	if s.writer == nil {
		return nil
	}

	err := s.writer.Close()
	path, frames := s.path, s.frames
	s.writer = nil
	s.path = ""
	s.frames = 0

	s.logger.Info("recording stopped", "path", path, "frames", frames)
	if s.config.OnClose != nil {
		s.config.OnClose(path, frames)
	}
	if err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

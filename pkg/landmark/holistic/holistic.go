// Package holistic runs an external holistic landmark model as a worker
// process and exchanges one JSON line per frame with it.
//
// Request (stdin, one line):
//
//	{"seq": 1, "width": 640, "height": 480, "image": "<base64 JPEG>"}
//
// Response (stdout, one line):
//
//	{"seq": 1, "face": [...], "pose": [...], "left_hand": [...], "right_hand": [...]}
//
// Each landmark list holds {"x","y","z","visibility"} objects normalized to
// the frame, or is omitted/null when the region was not found. A non-empty
// "error" field fails the frame. The worker receives the confidence
// thresholds as --min-detection-confidence and --min-tracking-confidence.
//
// No worker ships with motioncam. Any program speaking this protocol works;
// a MediaPipe Holistic loop reading stdin is the usual choice. Without one,
// run the yunet backend, which reports faces only: hands and pose are never
// detected, so only a visible face raises the alert.
package holistic

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-motioncam/pkg/landmark"
	"gocv.io/x/gocv"
)

const backendName = "holistic"

// maxLineSize bounds a single worker response (468 face points dominate).
const maxLineSize = 4 * 1024 * 1024

// Config holds worker configuration.
type Config struct {
	// Command is the worker executable followed by its arguments.
	Command []string

	// JPEGQuality is used when handing frames to the worker.
	JPEGQuality int

	// StopTimeout bounds how long Close waits for the worker to exit.
	StopTimeout time.Duration

	Logger *slog.Logger

	landmark.Config
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Command:     []string{"python3", "holistic_worker.py"},
		JPEGQuality: 90,
		StopTimeout: 2 * time.Second,
		Logger:      slog.Default(),
		Config:      landmark.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.Command) == 0 || strings.TrimSpace(c.Command[0]) == "" {
		return errors.New("holistic: worker command required")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.New("holistic: jpeg quality must be between 1 and 100")
	}
	return c.Config.Validate()
}

type request struct {
	Seq    uint64 `json:"seq"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Image  string `json:"image"`
}

type response struct {
	Seq uint64 `json:"seq"`
	landmark.Result
	Error string `json:"error,omitempty"`
}

// Detector talks to one worker process. Calls are serialized.
type Detector struct {
	config Config
	logger *slog.Logger

	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	stdin  io.WriteCloser
	stdout *bufio.Scanner
	seq    uint64
	closed bool
}

// Start spawns the worker process.
func Start(ctx context.Context, cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, landmark.WrapError(backendName, err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	args := append([]string{}, cfg.Command[1:]...)
	args = append(args,
		"--min-detection-confidence", strconv.FormatFloat(cfg.MinDetectionConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(cfg.MinTrackingConfidence, 'f', -1, 64),
	)

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, cfg.Command[0], args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, landmark.WrapError(backendName, fmt.Errorf("stdin pipe: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, landmark.WrapError(backendName, fmt.Errorf("stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, landmark.WrapError(backendName, fmt.Errorf("stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, landmark.WrapError(backendName, fmt.Errorf("start worker: %w", err))
	}

	d := newDetector(cfg, stdin, stdout)
	d.cmd = cmd
	d.cancel = cancel
	d.done = make(chan struct{})

	go d.logStderr(stderr)
	go d.wait()

	d.logger.Info("holistic worker started", "pid", cmd.Process.Pid, "command", cfg.Command[0])
	return d, nil
}

func newDetector(cfg Config, stdin io.WriteCloser, stdout io.Reader) *Detector {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Detector{
		config: cfg,
		logger: logger.With("backend", backendName),
		stdin:  stdin,
		stdout: scanner,
	}
}

// Detect sends the frame to the worker and waits for its landmarks.
func (d *Detector) Detect(frame gocv.Mat) (landmark.Result, error) {
	if frame.Empty() {
		return landmark.Result{}, landmark.WrapError(backendName, errors.New("empty image"))
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{int(gocv.IMWriteJpegQuality), d.config.JPEGQuality})
	if err != nil {
		return landmark.Result{}, landmark.WrapError(backendName, fmt.Errorf("encode frame: %w", err))
	}
	defer buf.Close()

	return d.detectJPEG(buf.GetBytes(), frame.Cols(), frame.Rows())
}

func (d *Detector) detectJPEG(jpeg []byte, width, height int) (landmark.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return landmark.Result{}, landmark.WrapError(backendName, landmark.ErrWorkerClosed)
	}

	d.seq++
	req := request{
		Seq:    d.seq,
		Width:  width,
		Height: height,
		Image:  base64.StdEncoding.EncodeToString(jpeg),
	}
	line, err := json.Marshal(req)
	if err != nil {
		return landmark.Result{}, landmark.WrapError(backendName, err)
	}
	line = append(line, '\n')

	if _, err := d.stdin.Write(line); err != nil {
		return landmark.Result{}, landmark.WrapError(backendName, fmt.Errorf("%w: write: %v", landmark.ErrWorkerClosed, err))
	}

	if !d.stdout.Scan() {
		if err := d.stdout.Err(); err != nil {
			return landmark.Result{}, landmark.WrapError(backendName, fmt.Errorf("%w: read: %v", landmark.ErrWorkerClosed, err))
		}
		return landmark.Result{}, landmark.WrapError(backendName, landmark.ErrWorkerClosed)
	}

	var resp response
	if err := json.Unmarshal(d.stdout.Bytes(), &resp); err != nil {
		return landmark.Result{}, landmark.WrapError(backendName, fmt.Errorf("decode response: %w", err))
	}
	if resp.Error != "" {
		return landmark.Result{}, landmark.WrapError(backendName, errors.New(resp.Error))
	}
	if resp.Seq != d.seq {
		return landmark.Result{}, landmark.WrapError(backendName, fmt.Errorf("response seq %d, want %d", resp.Seq, d.seq))
	}

	return resp.Result, nil
}

// Close stops the worker. Closing stdin asks it to exit; it is killed
// after StopTimeout.
func (d *Detector) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	err := d.stdin.Close()
	d.mu.Unlock()

	if d.done == nil {
		return err
	}

	select {
	case <-d.done:
	case <-time.After(d.config.StopTimeout):
		d.logger.Warn("holistic worker did not exit, killing")
		d.cancel()
		<-d.done
	}
	d.cancel()
	return nil
}

func (d *Detector) wait() {
	defer close(d.done)
	err := d.cmd.Wait()

	d.mu.Lock()
	closing := d.closed
	d.mu.Unlock()

	if err != nil && !closing {
		d.logger.Error("holistic worker exited", "error", err)
		return
	}
	d.logger.Debug("holistic worker exited")
}

func (d *Detector) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "ERROR"), strings.Contains(line, "CRITICAL"):
			d.logger.Error("worker", "line", line)
		case strings.Contains(line, "WARN"):
			d.logger.Warn("worker", "line", line)
		default:
			d.logger.Debug("worker", "line", line)
		}
	}
}

package camera

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// Capture owns an open capture device.
type Capture struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	vc     *gocv.VideoCapture
	closed bool
}

// Open validates cfg and opens the device it names.
func Open(cfg Config, logger *slog.Logger) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		vc  *gocv.VideoCapture
		err error
	)
	if id, ok := cfg.DeviceIndex(); ok {
		vc, err = gocv.OpenVideoCapture(id)
	} else {
		vc, err = gocv.OpenVideoCapture(cfg.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrOpen, cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w %q", ErrOpen, cfg.Device)
	}

	if cfg.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.Framerate > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	}

	logger = logger.With("component", "camera")
	logger.Info("capture opened",
		"device", cfg.Device,
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)),
		"fps", vc.Get(gocv.VideoCaptureFPS),
	)

	return &Capture{config: cfg, logger: logger, vc: vc}, nil
}

// Config returns the settings the capture was opened with.
func (c *Capture) Config() Config {
	return c.config
}

// Read grabs the next frame into dst. It returns false when the device
// stops producing frames or the capture is closed.
func (c *Capture) Read(dst *gocv.Mat) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if ok := c.vc.Read(dst); !ok {
		c.logger.Debug("read failed", "device", c.config.Device)
		return false
	}
	return true
}

// Close releases the device. Safe to call more than once.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Info("capture released", "device", c.config.Device)
	return c.vc.Close()
}

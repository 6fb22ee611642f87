package camera

import "errors"

var (
	// ErrOpen is returned when the capture device cannot be opened.
	ErrOpen = errors.New("camera: cannot open capture device")

	// ErrInvalidConfig is returned for out-of-range settings.
	ErrInvalidConfig = errors.New("camera: invalid config")

	// ErrClosed is returned by operations on a released capture.
	ErrClosed = errors.New("camera: capture closed")
)

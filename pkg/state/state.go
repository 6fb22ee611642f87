// Package state holds the process-wide toggles shared by the stream loop
// and the control endpoints.
package state

import "sync/atomic"

// Flags is the shared toggle set. All methods are safe for concurrent use;
// a toggle racing a read resolves as last-write-wins.
type Flags struct {
	detection atomic.Bool
	recording atomic.Bool
}

// New creates the flag set with the given initial values.
func New(detection, recording bool) *Flags {
	f := &Flags{}
	f.detection.Store(detection)
	f.recording.Store(recording)
	return f
}

// DetectionEnabled reports whether motion detection runs on each frame.
func (f *Flags) DetectionEnabled() bool {
	return f.detection.Load()
}

// RecordingEnabled reports whether annotated frames are written to disk.
func (f *Flags) RecordingEnabled() bool {
	return f.recording.Load()
}

// ToggleDetection flips DetectionEnabled and returns the new value.
func (f *Flags) ToggleDetection() bool {
	return toggle(&f.detection)
}

// ToggleRecording flips RecordingEnabled and returns the new value.
func (f *Flags) ToggleRecording() bool {
	return toggle(&f.recording)
}

// Snapshot is a point-in-time copy of the flags.
type Snapshot struct {
	DetectionEnabled bool `json:"motion_detection_enabled"`
	RecordingEnabled bool `json:"recording_enabled"`
}

// Snapshot returns the current values.
func (f *Flags) Snapshot() Snapshot {
	return Snapshot{
		DetectionEnabled: f.detection.Load(),
		RecordingEnabled: f.recording.Load(),
	}
}

func toggle(b *atomic.Bool) bool {
	for {
		old := b.Load()
		if b.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

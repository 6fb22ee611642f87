package state

import (
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		detection bool
		recording bool
	}{
		{"both off", false, false},
		{"detection only", true, false},
		{"recording only", false, true},
		{"both on", true, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := New(tc.detection, tc.recording)
			if f.DetectionEnabled() != tc.detection {
				t.Errorf("DetectionEnabled: got %v, want %v", f.DetectionEnabled(), tc.detection)
			}
			if f.RecordingEnabled() != tc.recording {
				t.Errorf("RecordingEnabled: got %v, want %v", f.RecordingEnabled(), tc.recording)
			}
		})
	}
}

func TestToggleAlternates(t *testing.T) {
	f := New(false, false)

	want := []bool{true, false, true, false}
	for i, w := range want {
		if got := f.ToggleDetection(); got != w {
			t.Errorf("ToggleDetection #%d: got %v, want %v", i+1, got, w)
		}
		if got := f.ToggleRecording(); got != w {
			t.Errorf("ToggleRecording #%d: got %v, want %v", i+1, got, w)
		}
	}
}

func TestToggleIndependent(t *testing.T) {
	f := New(true, false)

	f.ToggleRecording()
	if !f.DetectionEnabled() {
		t.Error("toggling recording changed detection")
	}

	f.ToggleDetection()
	if !f.RecordingEnabled() {
		t.Error("toggling detection changed recording")
	}
}

func TestToggleConcurrent(t *testing.T) {
	f := New(false, false)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.ToggleDetection()
		}()
	}
	wg.Wait()

	// An even number of flips lands back where it started.
	if f.DetectionEnabled() {
		t.Error("expected detection off after 100 toggles")
	}
}

func TestSnapshot(t *testing.T) {
	f := New(true, false)
	snap := f.Snapshot()
	if !snap.DetectionEnabled || snap.RecordingEnabled {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

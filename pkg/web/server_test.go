package web

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-motioncam/internal/log"
	"github.com/teslashibe/go-motioncam/pkg/hub"
	"github.com/teslashibe/go-motioncam/pkg/landmark"
	"github.com/teslashibe/go-motioncam/pkg/motion"
	"github.com/teslashibe/go-motioncam/pkg/pipeline"
	"github.com/teslashibe/go-motioncam/pkg/state"
	"gocv.io/x/gocv"
)

// frameSource yields n black frames; n < 0 never runs out.
type frameSource struct {
	mu   sync.Mutex
	n    int
	read int
}

func (s *frameSource) Read(dst *gocv.Mat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.n >= 0 && s.read >= s.n {
		return false
	}
	s.read++
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 16, 16, gocv.MatTypeCV8UC3)
	m.CopyTo(dst)
	m.Close()
	if s.n < 0 {
		time.Sleep(time.Millisecond)
	}
	return true
}

type nopDetector struct{}

func (nopDetector) Detect(gocv.Mat) (landmark.Result, error) { return landmark.Result{}, nil }
func (nopDetector) Close() error                               { return nil }

type nopRenderer struct{}

func (nopRenderer) Draw(*gocv.Mat, landmark.Result, bool) {}

type fakeRecorder struct {
	mu     sync.Mutex
	open   bool
	frames int
}

func (r *fakeRecorder) Update(enabled bool, frame gocv.Mat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = enabled
	if enabled {
		r.frames++
	}
	return nil
}

func (r *fakeRecorder) Path() string {
	return "Recording/recording_1700000000.avi"
}

func (r *fakeRecorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

type fixedEncoder struct{}

func (fixedEncoder) Encode(gocv.Mat) ([]byte, error) { return []byte("JPEG"), nil }

type spyAlarm struct {
	mu            sync.Mutex
	starts, stops int
}

func (a *spyAlarm) Start() error { a.mu.Lock(); a.starts++; a.mu.Unlock(); return nil }
func (a *spyAlarm) Stop() error  { a.mu.Lock(); a.stops++; a.mu.Unlock(); return nil }

type fixture struct {
	server   *Server
	flags    *state.Flags
	policy   *motion.Policy
	alarm    *spyAlarm
	loop     *pipeline.Loop
	recorder *fakeRecorder
	hub      *hub.Hub
}

func newFixture(t *testing.T, frames int, flags *state.Flags) *fixture {
	t.Helper()

	f := &fixture{
		flags:    flags,
		alarm:    &spyAlarm{},
		recorder: &fakeRecorder{},
		hub:      hub.New(log.Discard()),
	}
	f.policy = motion.NewPolicy(f.alarm, log.Discard())

	loop, err := pipeline.New(pipeline.Config{
		Source:      &frameSource{n: frames},
		NewDetector: func() (pipeline.Detector, error) { return nopDetector{}, nil },
		Policy:      f.policy,
		Renderer:    nopRenderer{},
		Recorder:    f.recorder,
		Encoder:     fixedEncoder{},
		Controls:    flags,
		Logger:      log.Discard(),
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	f.loop = loop

	ctx, cancel := context.WithCancel(context.Background())
	go f.hub.Run(ctx)
	t.Cleanup(cancel)

	f.server, err = NewServer(Config{
		Flags:    flags,
		Stream:   loop,
		Alert:    f.policy,
		Recorder: f.recorder,
		Hub:      f.hub,
		Version:  "test",
		Logger:   log.Discard(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return f
}

func decode(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func TestToggleMotionDetection_ForcesAlertOff(t *testing.T) {
	f := newFixture(t, 0, state.New(false, false))
	app := f.server.App()

	resp, err := app.Test(httptest.NewRequest("POST", "/toggle_motion_detection", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if got := decode(t, resp.Body); got["motion_detection_enabled"] != true {
		t.Errorf("first toggle: got %v, want true", got)
	}

	// A face shows up while detection is on.
	f.policy.Evaluate(f.flags.DetectionEnabled(), landmark.Result{Face: landmark.Set{{X: 0.5, Y: 0.5}}})
	if !f.policy.Alerting() {
		t.Fatal("policy should be alerting")
	}

	resp, err = app.Test(httptest.NewRequest("POST", "/toggle_motion_detection", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if got := decode(t, resp.Body); got["motion_detection_enabled"] != false {
		t.Errorf("second toggle: got %v, want false", got)
	}

	if f.policy.Alerting() {
		t.Error("disabling detection should force the alert off")
	}
	if f.alarm.stops != 1 {
		t.Errorf("alarm stops: got %d, want 1", f.alarm.stops)
	}
}

func TestToggleRecording(t *testing.T) {
	f := newFixture(t, 0, state.New(true, false))
	app := f.server.App()

	for i, want := range []bool{true, false, true} {
		resp, err := app.Test(httptest.NewRequest("POST", "/toggle_recording", nil))
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if got := decode(t, resp.Body); got["recording_enabled"] != want {
			t.Errorf("toggle %d: got %v, want %v", i, got, want)
		}
	}
}

func TestToggle_RejectsGet(t *testing.T) {
	f := newFixture(t, 0, state.New(true, false))

	resp, err := f.server.App().Test(httptest.NewRequest("GET", "/toggle_recording", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 405 {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
	if f.flags.RecordingEnabled() {
		t.Error("GET must not toggle")
	}
}

func TestIndex(t *testing.T) {
	f := newFixture(t, 0, state.New(true, false))

	resp, err := f.server.App().Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type: %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `<img src="/video_feed"`) {
		t.Error("page should embed the video feed")
	}
}

func TestVideoFeed_StreamsUntilCaptureEnds(t *testing.T) {
	f := newFixture(t, 5, state.New(true, true))

	resp, err := f.server.App().Test(httptest.NewRequest("GET", "/video_feed", nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" {
		t.Fatalf("content type: %q (%v)", resp.Header.Get("Content-Type"), err)
	}

	mr := multipart.NewReader(resp.Body, params["boundary"])
	parts := 0
	for {
		p, err := mr.NextPart()
		if err != nil {
			break
		}
		body, _ := io.ReadAll(p)
		if string(body) != "JPEG" || p.Header.Get("Content-Type") != "image/jpeg" {
			t.Errorf("part %d: %q %q", parts, body, p.Header.Get("Content-Type"))
		}
		parts++
	}
	if parts != 5 {
		t.Errorf("parts: got %d, want 5", parts)
	}
	if f.recorder.frames != 5 {
		t.Errorf("recorded frames: got %d, want 5", f.recorder.frames)
	}

	deadline := time.Now().Add(time.Second)
	for f.loop.Streaming() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if f.loop.Streaming() {
		t.Error("loop should release the camera after the stream ends")
	}
}

func TestVideoFeed_SecondClientConflict(t *testing.T) {
	f := newFixture(t, -1, state.New(true, false))

	feed, err := f.loop.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer feed.Stop()

	resp, err := f.server.App().Test(httptest.NewRequest("GET", "/video_feed", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 409 {
		t.Errorf("status: got %d, want 409", resp.StatusCode)
	}
}

func TestStatusAndHealth(t *testing.T) {
	f := newFixture(t, 0, state.New(true, false))
	app := f.server.App()

	app.Test(httptest.NewRequest("POST", "/toggle_recording", nil))
	frame := gocv.NewMat()
	defer frame.Close()
	f.recorder.Update(true, frame)

	resp, err := app.Test(httptest.NewRequest("GET", "/status", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.DetectionEnabled || !st.RecordingEnabled || st.Alerting || st.Streaming {
		t.Errorf("unexpected status: %+v", st)
	}
	if st.RecordingFile != f.recorder.Path() {
		t.Errorf("recording file: %q", st.RecordingFile)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if got := decode(t, resp.Body); got["status"] != "ok" || got["version"] != "test" {
		t.Errorf("health: %v", got)
	}
}

func TestStatusWS_SnapshotThenToggleEvents(t *testing.T) {
	f := newFixture(t, 0, state.New(true, false))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go f.server.Serve(ln)
	defer f.server.Shutdown(context.Background())

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/status", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	read := func() hub.Event {
		t.Helper()
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		var e hub.Event
		if err := ws.ReadJSON(&e); err != nil {
			t.Fatalf("read: %v", err)
		}
		return e
	}

	if e := read(); e.Type != hub.EventSnapshot {
		t.Fatalf("first event: %q", e.Type)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	f.server.App().Test(httptest.NewRequest("POST", "/toggle_motion_detection", nil))

	e := read()
	if e.Type != hub.EventDetectionToggled || e.Data["motion_detection_enabled"] != false {
		t.Errorf("event: %+v", e)
	}
}

func TestNewServer_RequiresDeps(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Error("expected error for empty config")
	}
}

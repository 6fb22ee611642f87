package config

import (
	"flag"
	"io"
	"reflect"
	"strings"
	"testing"
)

func mapEnv(m map[string]string) Getenv {
	return func(key string) string { return m[key] }
}

func load(t *testing.T, args []string, env map[string]string) (Settings, error) {
	t.Helper()
	fs := flag.NewFlagSet("motioncam", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return Load(fs, args, mapEnv(env))
}

func TestLoad_Defaults(t *testing.T) {
	s, err := load(t, nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if s.Port != 5000 || s.Addr() != ":5000" {
		t.Errorf("port: got %d (%s)", s.Port, s.Addr())
	}
	if s.Camera != "0" || s.RecordingDir != "Recording" || s.AlertSound != "sound.mp3" {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if !s.Detection {
		t.Error("detection should start enabled")
	}
	if s.Detector != DetectorYuNet {
		t.Errorf("detector: got %q", s.Detector)
	}
}

func TestLoad_Precedence(t *testing.T) {
	env := map[string]string{
		"PORT":             "8080",
		"CAMERA":           "rtsp://cam/stream",
		"RECORDING_DIR":    "/var/rec",
		"MOTION_DETECTION": "false",
	}

	s, err := load(t, []string{"-port", "9090"}, env)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Port != 9090 {
		t.Errorf("flag should win over env: port %d", s.Port)
	}
	if s.Camera != "rtsp://cam/stream" || s.RecordingDir != "/var/rec" {
		t.Errorf("env not applied: %+v", s)
	}
	if s.Detection {
		t.Error("MOTION_DETECTION=false should disable detection")
	}
}

func TestLoad_DebugRaisesLogLevel(t *testing.T) {
	s, err := load(t, []string{"-debug"}, map[string]string{"LOG_LEVEL": "warn"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.LogLevel != "debug" {
		t.Errorf("log level: got %q", s.LogLevel)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"port", []string{"-port", "0"}, "port"},
		{"detector", []string{"-detector", "dlib"}, "unknown detector"},
		{"player", []string{"-alert-player", " "}, "alert player"},
		{"worker", []string{"-detector", "holistic", "-worker", ""}, "worker"},
		{"recording dir", []string{"-recording-dir", ""}, "recording dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.args, nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSettings_CommandArgs(t *testing.T) {
	s := Settings{AlertPlayer: "mpv  --loop {sound}", WorkerCommand: "python3 worker.py --gpu"}
	if got := s.AlertPlayerArgs(); !reflect.DeepEqual(got, []string{"mpv", "--loop", "{sound}"}) {
		t.Errorf("AlertPlayerArgs: %v", got)
	}
	if got := s.WorkerArgs(); !reflect.DeepEqual(got, []string{"python3", "worker.py", "--gpu"}) {
		t.Errorf("WorkerArgs: %v", got)
	}
}

func TestEnv(t *testing.T) {
	env := NewEnv(mapEnv(map[string]string{"N": "12", "B": "yes", "S": "  v "}))

	if env.Int("N", 1) != 12 || env.Int("MISSING", 3) != 3 {
		t.Error("Int lookups wrong")
	}
	if !env.Bool("B", false) || !env.Bool("MISSING", true) {
		t.Error("Bool lookups wrong")
	}
	if env.String("S", "d") != "v" || env.String("MISSING", "d") != "d" {
		t.Error("String lookups wrong")
	}
	if err := env.Err(); err != nil {
		t.Errorf("Err: %v", err)
	}
}

func TestEnv_MalformedValues(t *testing.T) {
	env := NewEnv(mapEnv(map[string]string{"N": "80OO", "B": "maybe"}))

	if got := env.Int("N", 5); got != 5 {
		t.Errorf("Int: got %d, want default", got)
	}
	if got := env.Bool("B", true); !got {
		t.Error("Bool: want default")
	}

	err := env.Err()
	if err == nil {
		t.Fatal("expected error for malformed values")
	}
	for _, want := range []string{`N="80OO"`, `B="maybe"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestLoad_MalformedEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
		want string
	}{
		{"port", map[string]string{"PORT": "80OO"}, nil, "PORT"},
		{"bool", map[string]string{"MOTION_DETECTION": "sometimes"}, nil, "MOTION_DETECTION"},
		{"overridden by flag", map[string]string{"PORT": "x"}, []string{"-port", "8080"}, "PORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.args, tt.env)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}

package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

// Default settings.
const (
	DefaultPort         = 5000
	DefaultCamera       = "0"
	DefaultRecordingDir = "Recording"
	DefaultAlertSound   = "sound.mp3"
	DefaultAlertPlayer  = "ffplay -nodisp -loglevel quiet -loop 0 {sound}"
	DefaultDetector     = DetectorYuNet
	DefaultModelPath    = "models/face_detection_yunet.onnx"
	DefaultWorker       = "python3 holistic_worker.py"
)

// Detector backends.
const (
	DetectorYuNet    = "yunet"
	DetectorHolistic = "holistic"
)

// Settings is everything the motioncam command can be told at startup.
// Flags win over environment variables, which win over defaults.
type Settings struct {
	Port int

	Camera        string
	CameraPreset  string
	Width, Height int
	Quality       int

	RecordingDir string
	AlertSound   string
	AlertPlayer  string

	Detector      string
	ModelPath     string
	WorkerCommand string

	// Detection is the initial state of the motion detection toggle.
	Detection bool

	LogLevel string
	Debug    bool

	// Healthcheck probes a running instance and exits.
	Healthcheck bool
}

// Load parses args into Settings, using getenv for flag defaults.
// Malformed environment values are reported even when a flag overrides them.
func Load(fs *flag.FlagSet, args []string, getenv Getenv) (Settings, error) {
	var s Settings
	env := NewEnv(getenv)

	fs.IntVar(&s.Port, "port", env.Int("PORT", DefaultPort), "HTTP listen port (env PORT)")
	fs.StringVar(&s.Camera, "camera", env.String("CAMERA", DefaultCamera), "Camera index, file or stream URL (env CAMERA)")
	fs.StringVar(&s.CameraPreset, "camera-preset", env.String("CAMERA_PRESET", ""), "Capture preset: default, low, 720p, 1080p (env CAMERA_PRESET)")
	fs.IntVar(&s.Width, "width", env.Int("CAMERA_WIDTH", 0), "Capture width, 0 keeps the preset (env CAMERA_WIDTH)")
	fs.IntVar(&s.Height, "height", env.Int("CAMERA_HEIGHT", 0), "Capture height, 0 keeps the preset (env CAMERA_HEIGHT)")
	fs.IntVar(&s.Quality, "quality", env.Int("JPEG_QUALITY", 0), "Stream JPEG quality 1-100, 0 keeps the preset (env JPEG_QUALITY)")
	fs.StringVar(&s.RecordingDir, "recording-dir", env.String("RECORDING_DIR", DefaultRecordingDir), "Directory for recordings (env RECORDING_DIR)")
	fs.StringVar(&s.AlertSound, "alert-sound", env.String("ALERT_SOUND", DefaultAlertSound), "Alert sound file (env ALERT_SOUND)")
	fs.StringVar(&s.AlertPlayer, "alert-player", env.String("ALERT_PLAYER", DefaultAlertPlayer), "Looping player command, {sound} is replaced (env ALERT_PLAYER)")
	fs.StringVar(&s.Detector, "detector", env.String("DETECTOR", DefaultDetector), "Landmark backend: yunet (faces only), holistic (faces, hands, pose; needs a worker) (env DETECTOR)")
	fs.StringVar(&s.ModelPath, "model", env.String("YUNET_MODEL", DefaultModelPath), "YuNet ONNX model path (env YUNET_MODEL)")
	fs.StringVar(&s.WorkerCommand, "worker", env.String("HOLISTIC_WORKER", DefaultWorker), "Holistic worker command speaking the JSON line protocol; not bundled (env HOLISTIC_WORKER)")
	fs.BoolVar(&s.Detection, "detection", env.Bool("MOTION_DETECTION", true), "Start with motion detection enabled (env MOTION_DETECTION)")
	fs.StringVar(&s.LogLevel, "log-level", env.String("LOG_LEVEL", "info"), "Log level: debug, info, warn, error (env LOG_LEVEL)")
	fs.BoolVar(&s.Debug, "debug", env.Bool("DEBUG", false), "Enable debug logging and HTTP access logs (env DEBUG)")
	fs.BoolVar(&s.Healthcheck, "healthcheck", false, "Probe /health of a running instance and exit")

	if err := fs.Parse(args); err != nil {
		return Settings{}, err
	}
	if s.Debug {
		s.LogLevel = "debug"
	}
	if err := env.Err(); err != nil {
		return s, fmt.Errorf("environment: %w", err)
	}
	return s, s.Validate()
}

// Validate checks settings that no package-level Validate covers.
func (s Settings) Validate() error {
	var errs []error
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", s.Port))
	}
	switch s.Detector {
	case DetectorYuNet, DetectorHolistic:
	default:
		errs = append(errs, fmt.Errorf("unknown detector %q", s.Detector))
	}
	if strings.TrimSpace(s.RecordingDir) == "" {
		errs = append(errs, errors.New("recording dir must not be empty"))
	}
	if len(s.AlertPlayerArgs()) == 0 {
		errs = append(errs, errors.New("alert player command must not be empty"))
	}
	if s.Detector == DetectorHolistic && len(s.WorkerArgs()) == 0 {
		errs = append(errs, errors.New("holistic worker command must not be empty"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (s Settings) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// AlertPlayerArgs splits the player command on whitespace.
func (s Settings) AlertPlayerArgs() []string {
	return strings.Fields(s.AlertPlayer)
}

// WorkerArgs splits the worker command on whitespace.
func (s Settings) WorkerArgs() []string {
	return strings.Fields(s.WorkerCommand)
}

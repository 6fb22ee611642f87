// motioncam: webcam motion alarm served over HTTP.
// Streams the mirrored camera with landmark overlays as MJPEG, plays an
// alert sound while a face or hand is in view and records on demand.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-motioncam/internal/config"
	"github.com/teslashibe/go-motioncam/internal/httpc"
	"github.com/teslashibe/go-motioncam/internal/log"
	"github.com/teslashibe/go-motioncam/pkg/audio"
	"github.com/teslashibe/go-motioncam/pkg/camera"
	"github.com/teslashibe/go-motioncam/pkg/hub"
	"github.com/teslashibe/go-motioncam/pkg/landmark"
	"github.com/teslashibe/go-motioncam/pkg/landmark/holistic"
	"github.com/teslashibe/go-motioncam/pkg/landmark/yunet"
	"github.com/teslashibe/go-motioncam/pkg/motion"
	"github.com/teslashibe/go-motioncam/pkg/overlay"
	"github.com/teslashibe/go-motioncam/pkg/pipeline"
	"github.com/teslashibe/go-motioncam/pkg/recording"
	"github.com/teslashibe/go-motioncam/pkg/state"
	"github.com/teslashibe/go-motioncam/pkg/stream"
	"github.com/teslashibe/go-motioncam/pkg/web"
)

var version = "1.0.0"

func main() {
	settings, err := config.Load(flag.CommandLine, os.Args[1:], config.OSEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}

	if settings.Healthcheck {
		os.Exit(healthcheck(settings))
	}

	log.Init(settings.LogLevel)
	log.Info("motioncam starting", "version", version, "detector", settings.Detector)

	if err := run(settings); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
	log.Info("motioncam stopped")
}

// healthcheck probes a local instance; used as a container HEALTHCHECK.
func healthcheck(s config.Settings) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", s.Port)
	if err := httpc.CheckHealth(ctx, nil, url); err != nil {
		fmt.Fprintln(os.Stderr, "unhealthy:", err)
		return 1
	}
	return 0
}

func run(s config.Settings) error {
	logger := log.With("service", "motioncam")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Resources are acquired before the server starts; any failure here
	// aborts startup.
	if err := recording.EnsureDir(s.RecordingDir); err != nil {
		return err
	}

	player, err := audio.NewPlayer(audio.Config{
		SoundPath: s.AlertSound,
		Command:   s.AlertPlayerArgs(),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("alert sound: %w", err)
	}
	defer player.Close()

	camCfg, err := cameraConfig(s)
	if err != nil {
		return err
	}
	capture, err := camera.Open(camCfg, logger)
	if err != nil {
		return err
	}
	defer capture.Close()

	newDetector, err := detectorFactory(ctx, s)
	if err != nil {
		return err
	}

	events := hub.New(logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go events.Run(hubCtx)

	flags := state.New(s.Detection, false)

	policy := motion.NewPolicy(player, logger)
	policy.OnChange = func(st motion.State) {
		t := hub.EventAlertStopped
		if st == motion.Alerting {
			t = hub.EventAlertStarted
		}
		events.Publish(hub.NewEvent(t, nil))
	}
	defer policy.Disable()

	sink := recording.NewSink(recording.Config{
		Dir:    s.RecordingDir,
		Logger: logger,
		OnOpen: func(path string) {
			events.Publish(hub.NewEvent(hub.EventRecordingOpened, map[string]any{"path": path}))
		},
		OnClose: func(path string, frames int) {
			events.Publish(hub.NewEvent(hub.EventRecordingClosed, map[string]any{"path": path, "frames": frames}))
		},
	})
	defer sink.Close()

	loop, err := pipeline.New(pipeline.Config{
		Source:      capture,
		NewDetector: newDetector,
		Policy:      policy,
		Renderer:    overlay.NewRenderer(),
		Recorder:    sink,
		Encoder:     stream.NewEncoder(camCfg.Quality),
		Controls:    flags,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	server, err := web.NewServer(web.Config{
		Flags:    flags,
		Stream:   loop,
		Alert:    policy,
		Recorder: sink,
		Hub:      events,
		Version:  version,
		Debug:    s.Debug,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Listen(s.Addr())
	}()
	log.Info("open the stream", "url", fmt.Sprintf("http://localhost:%d/", s.Port))

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "error", err)
	}

	// The deferred closes below must not race a stream still using the
	// camera or the recording.
	if err := loop.Wait(shutdownCtx); err != nil {
		log.Warn("stream did not stop in time", "error", err)
	}
	return nil
}

// cameraConfig applies the preset, then explicit overrides.
func cameraConfig(s config.Settings) (camera.Config, error) {
	cfg := camera.DefaultConfig()
	if s.CameraPreset != "" {
		preset := camera.GetPreset(s.CameraPreset)
		if preset == nil {
			return camera.Config{}, fmt.Errorf("unknown camera preset %q (have %v)", s.CameraPreset, camera.PresetNames())
		}
		cfg = *preset
	}
	cfg.Device = s.Camera
	if s.Width > 0 {
		cfg.Width = s.Width
	}
	if s.Height > 0 {
		cfg.Height = s.Height
	}
	if s.Quality > 0 {
		cfg.Quality = s.Quality
	}
	return cfg, nil
}

// detectorFactory checks the backend can be created, then returns a
// factory the loop calls once per stream.
func detectorFactory(ctx context.Context, s config.Settings) (pipeline.DetectorFactory, error) {
	logger := log.L()

	switch s.Detector {
	case config.DetectorHolistic:
		cfg := holistic.DefaultConfig()
		cfg.Command = s.WorkerArgs()
		cfg.Logger = logger
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return func() (pipeline.Detector, error) {
			d, err := holistic.Start(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return d, nil
		}, nil

	default:
		cfg := yunet.DefaultConfig()
		cfg.ModelPath = s.ModelPath
		probe, err := yunet.New(cfg)
		if err != nil {
			if errors.Is(err, landmark.ErrModelNotFound) {
				return nil, fmt.Errorf("%w (download face_detection_yunet ONNX or pass -model)", err)
			}
			return nil, err
		}
		probe.Close()
		return func() (pipeline.Detector, error) {
			d, err := yunet.New(cfg)
			if err != nil {
				return nil, err
			}
			return d, nil
		}, nil
	}
}

package web

import (
	"bufio"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-motioncam/pkg/hub"
	"github.com/teslashibe/go-motioncam/pkg/pipeline"
	"github.com/teslashibe/go-motioncam/pkg/stream"
)

// Status is the GET /status body.
type Status struct {
	DetectionEnabled bool   `json:"motion_detection_enabled"`
	RecordingEnabled bool   `json:"recording_enabled"`
	Alerting         bool   `json:"alerting"`
	RecordingFile    string `json:"recording_file,omitempty"`
	Streaming        bool   `json:"streaming"`
	Session          string `json:"session,omitempty"`
	Frames           int64  `json:"frames"`
}

func (s *Server) status() Status {
	flags := s.config.Flags.Snapshot()
	stats := s.config.Stream.Stats()
	st := Status{
		DetectionEnabled: flags.DetectionEnabled,
		RecordingEnabled: flags.RecordingEnabled,
		Alerting:         s.config.Alert.Alerting(),
		Streaming:        stats.Streaming,
		Session:          stats.Session,
		Frames:           stats.Frames,
	}
	if s.config.Recorder.Recording() {
		st.RecordingFile = s.config.Recorder.Path()
	}
	return st
}

func (s *Server) publish(t hub.EventType, data map[string]any) {
	if s.config.Hub != nil {
		s.config.Hub.Publish(hub.NewEvent(t, data))
	}
}

// handleIndex serves the page embedding the stream.
func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.Send(s.index)
}

// handleVideoFeed runs the frame loop for as long as the client reads.
func (s *Server) handleVideoFeed(c *fiber.Ctx) error {
	feed, err := s.config.Stream.Start(s.ctx)
	if errors.Is(err, pipeline.ErrBusy) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "stream already running",
		})
	}
	if err != nil {
		return err
	}

	remote := c.IP()
	s.logger.Info("stream client connected", "remote", remote)
	s.publish(hub.EventStreamStarted, map[string]any{"remote": remote})

	c.Set(fiber.HeaderContentType, stream.ContentType)
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		// A failed write means the client left; Stop cancels the loop.
		defer func() {
			feed.Stop()
			stats := s.config.Stream.Stats()
			s.logger.Info("stream client disconnected", "remote", remote, "frames", stats.Frames)
			s.publish(hub.EventStreamEnded, map[string]any{
				"session": stats.Session,
				"frames":  stats.Frames,
			})
		}()

		for part := range feed.Parts() {
			if err := stream.WritePart(w, part); err != nil {
				return
			}
		}
		if err := feed.Err(); err != nil {
			s.logger.Warn("stream ended with error", "error", err)
		}
	})
	return nil
}

// handleToggleDetection flips motion detection. Turning it off silences a
// running alert right away instead of waiting for the next frame.
func (s *Server) handleToggleDetection(c *fiber.Ctx) error {
	enabled := s.config.Flags.ToggleDetection()
	if !enabled {
		s.config.Alert.Disable()
	}
	s.logger.Info("motion detection toggled", "enabled", enabled)
	s.publish(hub.EventDetectionToggled, map[string]any{"motion_detection_enabled": enabled})

	return c.JSON(fiber.Map{"motion_detection_enabled": enabled})
}

// handleToggleRecording flips recording. The writer itself opens or
// closes on the next frame.
func (s *Server) handleToggleRecording(c *fiber.Ctx) error {
	enabled := s.config.Flags.ToggleRecording()
	s.logger.Info("recording toggled", "enabled", enabled)
	s.publish(hub.EventRecordingToggled, map[string]any{"recording_enabled": enabled})

	return c.JSON(fiber.Map{"recording_enabled": enabled})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": s.config.Version,
	})
}

// handleStatusWS sends a snapshot, then every status event.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	snapshot, err := hub.NewJSONMessage(hub.NewEvent(hub.EventSnapshot, map[string]any{
		"status": s.status(),
	}))
	if err != nil {
		s.logger.Error("encode snapshot", "error", err)
		return
	}
	hub.NewClient(s.config.Hub, c, snapshot).Run()
}

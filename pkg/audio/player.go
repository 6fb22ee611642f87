// Package audio plays the alert sound by driving an external player process.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// SoundPlaceholder in Config.Command is replaced with the sound file path.
const SoundPlaceholder = "{sound}"

var (
	// ErrAssetNotFound is returned when the sound file is missing.
	ErrAssetNotFound = errors.New("audio: sound asset not found")

	// ErrPlayerNotFound is returned when the player executable is not on PATH.
	ErrPlayerNotFound = errors.New("audio: player executable not found")
)

// Config holds alert player configuration.
type Config struct {
	// SoundPath is the audio file looped while alerting.
	SoundPath string

	// Command is the player invocation. It must loop the file until killed.
	Command []string

	// StopTimeout bounds how long Stop waits for the player to exit.
	StopTimeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig loops sound.mp3 with ffplay.
func DefaultConfig() Config {
	return Config{
		SoundPath: "sound.mp3",
		Command: []string{
			"ffplay", "-nodisp", "-loglevel", "quiet", "-loop", "0", SoundPlaceholder,
		},
		StopTimeout: 2 * time.Second,
		Logger:      slog.Default(),
	}
}

// Player loops one sound file. It satisfies motion.Alarm.
type Player struct {
	config Config
	logger *slog.Logger

	// Callbacks
	OnPlaybackStart func()
	OnPlaybackEnd   func()

	mu      sync.Mutex
	cmd     *exec.Cmd
	exited  chan struct{}
	playing bool
}

// NewPlayer checks the sound asset and player executable.
func NewPlayer(cfg Config) (*Player, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 2 * time.Second
	}
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrPlayerNotFound)
	}
	if _, err := os.Stat(cfg.SoundPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, cfg.SoundPath)
	}
	if _, err := exec.LookPath(cfg.Command[0]); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, cfg.Command[0])
	}

	return &Player{
		config: cfg,
		logger: cfg.Logger.With("component", "audio"),
	}, nil
}

// Start begins looping the sound from its beginning. A sound that is
// already playing is restarted.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	args := make([]string, 0, len(p.config.Command)-1)
	for _, a := range p.config.Command[1:] {
		args = append(args, strings.ReplaceAll(a, SoundPlaceholder, p.config.SoundPath))
	}

	cmd := exec.Command(p.config.Command[0], args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}

	exited := make(chan struct{})
	go func() {
		cmd.Wait()
		close(exited)
	}()

	p.cmd = cmd
	p.exited = exited
	p.playing = true
	p.logger.Debug("alert sound started", "pid", cmd.Process.Pid)

	if p.OnPlaybackStart != nil {
		p.OnPlaybackStart()
	}
	return nil
}

// Stop silences the sound. It is safe to call when nothing is playing.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		return nil
	}
	p.stopLocked()

	if p.OnPlaybackEnd != nil {
		p.OnPlaybackEnd()
	}
	return nil
}

// stopLocked kills the player process (must hold mu).
func (p *Player) stopLocked() {
	if p.cmd == nil {
		p.playing = false
		return
	}

	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}

	select {
	case <-p.exited:
	case <-time.After(p.config.StopTimeout):
		p.logger.Warn("alert player did not exit after kill")
	}

	p.logger.Debug("alert sound stopped")
	p.cmd = nil
	p.exited = nil
	p.playing = false
}

// IsPlaying reports whether the player process is running.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		return false
	}
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Close stops any playback.
func (p *Player) Close() error {
	return p.Stop()
}

package device

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/modkit/mailhub/internal/mailbox/model"
)

// captureDuration is how long a door-open recording runs in hardware mode.
const captureDuration = 3 * time.Second

// Camera records a short video into the output directory when the door
// opens.  The capture file is named by the epoch second it started.  In
// hardware mode it shells out to raspivid; otherwise it writes a stub file
// so the rest of the pipeline behaves identically on a dev box.
//
// The light is raised for the duration of the capture and lowered after,
// even when the capture fails.
type Camera struct {
	name     string
	outDir   string
	hardware bool
	light    *Light
	logger   zerolog.Logger

	mu       sync.Mutex
	lastFile string
}

func NewCamera(name, outDir string, hardware bool, light *Light, logger zerolog.Logger) *Camera {
	return &Camera{
		name:     name,
		outDir:   outDir,
		hardware: hardware,
		light:    light,
		logger:   logger.With().Str("device", name).Logger(),
	}
}

func (c *Camera) Name() string           { return c.name }
func (c *Camera) Type() model.DeviceType { return model.DeviceCamera }

func (c *Camera) Connected() error {
	info, err := os.Stat(c.outDir)
	if err != nil {
		return newError(ErrIo, err, "capture dir %s: %v", c.outDir, err)
	}
	if !info.IsDir() {
		return newError(ErrIo, nil, "capture path %s is not a directory", c.outDir)
	}
	return nil
}

// Capture records one clip and returns its file name (relative to the
// output directory).  It blocks for the length of the recording.
func (c *Camera) Capture() (string, error) {
	if err := c.Connected(); err != nil {
		return "", err
	}

	if err := c.light.Set(true); err != nil {
		c.logger.Warn().Err(err).Msg("could not raise light for capture")
	}
	defer func() {
		if err := c.light.Set(false); err != nil {
			c.logger.Warn().Err(err).Msg("could not lower light after capture")
		}
	}()

	name := fmt.Sprintf("%d.h264", time.Now().Unix())
	path := filepath.Join(c.outDir, name)

	if c.hardware {
		ms := fmt.Sprintf("%d", captureDuration.Milliseconds())
		out, err := exec.Command("raspivid", "-t", ms, "-w", "800", "-h", "550", "-o", path).CombinedOutput()
		if err != nil {
			return "", newError(ErrImage, err, "raspivid: %v (%s)", err, out)
		}
	} else {
		if err := os.WriteFile(path, []byte("stub capture\n"), 0o644); err != nil {
			return "", newError(ErrIo, err, "write stub capture: %v", err)
		}
	}

	c.mu.Lock()
	c.lastFile = name
	c.mu.Unlock()

	c.logger.Info().Str("file", name).Msg("capture recorded")
	return name, nil
}

// Poll reports the most recent capture file.  Before the first capture
// there is nothing to report, and an empty file name would look like a real
// result to clients, so that case is an error.
func (c *Camera) Poll() (*model.Bundle, error) {
	if err := c.Connected(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFile == "" {
		return nil, newError(ErrImage, nil, "no capture recorded yet")
	}
	return model.CameraBundle(c.lastFile), nil
}

func (c *Camera) IsActive() (bool, error) { return false, nil }

func (c *Camera) OnActivate() error {
	_, err := c.Capture()
	return err
}

var _ Device = (*Camera)(nil)

package device

import (
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/modkit/mailhub/internal/mailbox/model"
)

// Light drives the capture light.  State is kept in memory; when a sysfs
// GPIO value path is configured the state is mirrored to it ("1"/"0"), which
// is all the relay board needs.
type Light struct {
	name   string
	path   string // optional sysfs value file; empty in dev
	logger zerolog.Logger

	mu sync.Mutex
	on bool
}

func NewLight(name, path string, logger zerolog.Logger) *Light {
	return &Light{
		name:   name,
		path:   path,
		logger: logger.With().Str("device", name).Logger(),
	}
}

func (l *Light) Name() string           { return l.name }
func (l *Light) Type() model.DeviceType { return model.DeviceLight }

func (l *Light) Connected() error {
	if l.path == "" {
		return nil
	}
	if _, err := os.Stat(l.path); err != nil {
		return newError(ErrNoConnection, err, "light gpio %s: %v", l.path, err)
	}
	return nil
}

func (l *Light) Set(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.path != "" {
		v := []byte("0")
		if on {
			v = []byte("1")
		}
		if err := os.WriteFile(l.path, v, 0o644); err != nil {
			return newError(ErrGpio, err, "write light gpio %s: %v", l.path, err)
		}
	}
	l.on = on
	l.logger.Debug().Bool("on", on).Msg("light set")
	return nil
}

func (l *Light) IsOn() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

func (l *Light) Poll() (*model.Bundle, error) {
	return model.LightBundle(l.IsOn()), nil
}

func (l *Light) IsActive() (bool, error) {
	return l.IsOn(), nil
}

func (l *Light) OnActivate() error { return nil }

var _ Device = (*Light)(nil)

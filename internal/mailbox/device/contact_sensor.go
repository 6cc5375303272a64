package device

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/modkit/mailhub/internal/mailbox/model"
)

// ContactSensor reads the door state from a one-character state file:
// "1" is open, "0" is closed.  In dev that file is ./sensor.txt, poked by
// hand or by tests; on hardware it points at the sysfs GPIO value file for
// the sensor pin (e.g. /sys/class/gpio/gpio18/value), which uses the same
// encoding.
type ContactSensor struct {
	name   string
	path   string
	logger zerolog.Logger
}

func NewContactSensor(name, path string, logger zerolog.Logger) *ContactSensor {
	return &ContactSensor{
		name:   name,
		path:   path,
		logger: logger.With().Str("device", name).Logger(),
	}
}

func (s *ContactSensor) Name() string           { return s.name }
func (s *ContactSensor) Type() model.DeviceType { return model.DeviceContactSensor }

func (s *ContactSensor) Connected() error {
	if _, err := os.Stat(s.path); err != nil {
		return newError(ErrNoConnection, err, "sensor state file %s: %v", s.path, err)
	}
	return nil
}

func (s *ContactSensor) Poll() (*model.Bundle, error) {
	open, err := s.read()
	if err != nil {
		return nil, err
	}
	return model.ContactSensorBundle(open), nil
}

func (s *ContactSensor) IsActive() (bool, error) {
	return s.read()
}

func (s *ContactSensor) OnActivate() error {
	s.logger.Debug().Msg("contact sensor opened")
	return nil
}

func (s *ContactSensor) read() (bool, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return false, newError(ErrIo, err, "read sensor state %s: %v", s.path, err)
	}
	switch strings.TrimSpace(string(b)) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, newError(ErrCommunicationError, nil,
			"sensor state %s holds %q, want 0 or 1", s.path, strings.TrimSpace(string(b)))
	}
}

var _ Device = (*ContactSensor)(nil)

package device

import "github.com/modkit/mailhub/internal/mailbox/model"

// Registry maps device types to the one device of that type.  It is built
// once at startup and read-only afterwards.
type Registry struct {
	devices map[model.DeviceType]Device
}

func NewRegistry(devices ...Device) *Registry {
	m := make(map[model.DeviceType]Device, len(devices))
	for _, d := range devices {
		m[d.Type()] = d
	}
	return &Registry{devices: m}
}

func (r *Registry) Get(t model.DeviceType) (Device, bool) {
	d, ok := r.devices[t]
	return d, ok
}

// Poll polls the device of the given type.  An unregistered type comes back
// as a DeviceNotFound error, which the protocol wraps into an error event
// like any other device failure.
func (r *Registry) Poll(t model.DeviceType) (*model.Bundle, error) {
	d, ok := r.devices[t]
	if !ok {
		return nil, newError(ErrDeviceNotFound, nil, "no device registered for type %q", string(t))
	}
	return d.Poll()
}

var _ Poller = (*Registry)(nil)

// Poller is the slice of Registry the protocol handler needs.
type Poller interface {
	Poll(t model.DeviceType) (*model.Bundle, error)
}

// Package model defines the event and bundle types shared by the watchdog,
// the websocket protocol and the event store.  Everything on the wire and
// everything in storage is one of these shapes.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind identifies what an event means.  Every kind is either incoming
// (client-originated) or outgoing (server-originated), never both.
type EventKind string

const (
	// Incoming kinds, accepted from subscribers.
	KindHealthCheck  EventKind = "HealthCheck"
	KindPollDevice   EventKind = "PollDevice"
	KindEventHistory EventKind = "EventHistory"
	KindPinCheck     EventKind = "PinCheck"
	KindMailStatus   EventKind = "MailStatus"

	// Outgoing kinds, only ever produced by the server.
	KindMailDelivered    EventKind = "MailDelivered"
	KindMailPickedUp     EventKind = "MailPickedUp"
	KindDoorOpened       EventKind = "DoorOpened"
	KindPollDeviceResult EventKind = "PollDeviceResult"
	KindPinResult        EventKind = "PinResult"
	KindError            EventKind = "Error"
)

// IsOutgoing reports whether the kind is server-originated.  Every kind is
// listed explicitly; a new kind that isn't classified here panics at first
// use instead of silently slipping through the inbound filter.
func (k EventKind) IsOutgoing() bool {
	switch k {
	case KindMailDelivered, KindMailPickedUp, KindDoorOpened,
		KindPollDeviceResult, KindPinResult, KindError:
		return true
	case KindHealthCheck, KindPollDevice, KindEventHistory,
		KindPinCheck, KindMailStatus:
		return false
	}
	panic(fmt.Sprintf("event kind %q has no direction", string(k)))
}

func (k EventKind) IsIncoming() bool {
	return !k.IsOutgoing()
}

// ParseEventKind validates a kind string, case-sensitive.
func ParseEventKind(s string) (EventKind, error) {
	switch k := EventKind(s); k {
	case KindHealthCheck, KindPollDevice, KindEventHistory, KindPinCheck,
		KindMailStatus, KindMailDelivered, KindMailPickedUp, KindDoorOpened,
		KindPollDeviceResult, KindPinResult, KindError:
		return k, nil
	}
	return "", &DecodeError{Field: "kind", Msg: fmt.Sprintf("unknown event kind %q", s)}
}

// DeviceType names a physical device.  It must round-trip exactly through
// its string form: the same values are used on the wire and in the events
// table.
type DeviceType string

const (
	DeviceCamera        DeviceType = "Camera"
	DeviceLight         DeviceType = "Light"
	DeviceContactSensor DeviceType = "ContactSensor"
)

// ParseDeviceType validates a device string, case-sensitive.
func ParseDeviceType(s string) (DeviceType, error) {
	switch d := DeviceType(s); d {
	case DeviceCamera, DeviceLight, DeviceContactSensor:
		return d, nil
	}
	return "", &DecodeError{Field: "device", Msg: fmt.Sprintf("unknown device type %q", s)}
}

// DeviceTypePtr is a convenience for call sites that pass an optional tag.
func DeviceTypePtr(d DeviceType) *DeviceType { return &d }

// DecodeError reports malformed wire or stored input.  It is a distinct
// type so callers can tell a bad frame from an I/O failure.
type DecodeError struct {
	Field string
	Msg   string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode %s: %s", e.Field, e.Msg)
	}
	return "decode: " + e.Msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Event is the atomic unit of notification, request and response.  One JSON
// object per frame:
//
//	{"kind": "...", "timestamp": 1693500000, "device": "...", "data": {...}}
//
// The timestamp is seconds since epoch and is always assigned server-side;
// the protocol handler overwrites whatever a client sent.
type Event struct {
	Kind      EventKind   `json:"kind"`
	Timestamp int64       `json:"timestamp"`
	Device    *DeviceType `json:"device,omitempty"`
	Data      *Bundle     `json:"data,omitempty"`
}

// NewEvent builds an event stamped with the current time.  It rejects a
// bundle whose variant disagrees with the device tag, so a ContactSensor
// reading can never be labelled as a Camera.
func NewEvent(kind EventKind, device *DeviceType, data *Bundle) (Event, error) {
	ev := Event{
		Kind:      kind,
		Timestamp: time.Now().Unix(),
		Device:    device,
		Data:      data,
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// ErrorEvent builds an outgoing Error event carrying a human-readable
// message.  Every failure path in the protocol answers with one of these.
func ErrorEvent(msg string) Event {
	return Event{
		Kind:      KindError,
		Timestamp: time.Now().Unix(),
		Data:      ErrorBundle(msg),
	}
}

// Validate checks the kind, the device tag, the bundle shape, and the
// agreement between bundle variant and device tag.
func (e Event) Validate() error {
	if _, err := ParseEventKind(string(e.Kind)); err != nil {
		return err
	}
	if e.Device != nil {
		if _, err := ParseDeviceType(string(*e.Device)); err != nil {
			return err
		}
	}
	if e.Data == nil {
		return nil
	}
	if err := e.Data.Validate(); err != nil {
		return err
	}
	if want := e.Data.ImpliedDevice(); want != nil && e.Device != nil && *e.Device != *want {
		return &DecodeError{
			Field: "data",
			Msg:   fmt.Sprintf("%s bundle tagged with device %q", e.Data.Variant(), string(*e.Device)),
		}
	}
	return nil
}

// Encode serializes the event to its wire frame.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses and validates a wire frame.  Malformed input comes
// back as a *DecodeError, never a panic.  The client-supplied timestamp is
// preserved here; the protocol handler restamps it before the event is
// trusted anywhere.
func DecodeEvent(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, &DecodeError{Msg: err.Error(), Err: err}
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

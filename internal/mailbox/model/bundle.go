package model

import "fmt"

// Bundle is the payload variant attached to an event, one shape per device
// or result kind.  On the wire it is externally tagged, e.g.
//
//	{"ContactSensor": {"open": true}}
//	{"PinCheck": {"pin": 6245}}
//
// Exactly one variant must be set.
type Bundle struct {
	ContactSensor *ContactSensorData `json:"ContactSensor,omitempty"`
	Camera        *CameraData        `json:"Camera,omitempty"`
	Light         *LightData         `json:"Light,omitempty"`
	Error         *ErrorData         `json:"Error,omitempty"`
	EventHistory  *EventHistoryData  `json:"EventHistory,omitempty"`
	PinCheck      *PinCheckData      `json:"PinCheck,omitempty"`
	PinResult     *PinResultData     `json:"PinResult,omitempty"`
}

// ContactSensorData reports the door state.
type ContactSensorData struct {
	Open bool `json:"open"`
}

// CameraData names a capture file under the configured output directory.
type CameraData struct {
	FileName string `json:"file_name"`
}

// LightData reports the light state.
type LightData struct {
	On bool `json:"on"`
}

// ErrorData carries a human-readable failure message.
type ErrorData struct {
	Msg string `json:"msg"`
}

// EventHistoryData wraps a full history replay.
type EventHistoryData struct {
	Events []Event `json:"events"`
}

// PinCheckData carries the access pin a client wants verified.
type PinCheckData struct {
	Pin int `json:"pin"`
}

// PinResultData answers a pin check.
type PinResultData struct {
	Authorized bool `json:"authorized"`
}

func ContactSensorBundle(open bool) *Bundle {
	return &Bundle{ContactSensor: &ContactSensorData{Open: open}}
}

func CameraBundle(fileName string) *Bundle {
	return &Bundle{Camera: &CameraData{FileName: fileName}}
}

func LightBundle(on bool) *Bundle {
	return &Bundle{Light: &LightData{On: on}}
}

func ErrorBundle(msg string) *Bundle {
	return &Bundle{Error: &ErrorData{Msg: msg}}
}

func HistoryBundle(events []Event) *Bundle {
	return &Bundle{EventHistory: &EventHistoryData{Events: events}}
}

func PinCheckBundle(pin int) *Bundle {
	return &Bundle{PinCheck: &PinCheckData{Pin: pin}}
}

func PinResultBundle(authorized bool) *Bundle {
	return &Bundle{PinResult: &PinResultData{Authorized: authorized}}
}

// Variant names the variant that is set, or "empty".
func (b *Bundle) Variant() string {
	switch {
	case b.ContactSensor != nil:
		return "ContactSensor"
	case b.Camera != nil:
		return "Camera"
	case b.Light != nil:
		return "Light"
	case b.Error != nil:
		return "Error"
	case b.EventHistory != nil:
		return "EventHistory"
	case b.PinCheck != nil:
		return "PinCheck"
	case b.PinResult != nil:
		return "PinResult"
	}
	return "empty"
}

// Validate rejects a bundle with zero or multiple variants set.
func (b *Bundle) Validate() error {
	n := 0
	for _, set := range []bool{
		b.ContactSensor != nil,
		b.Camera != nil,
		b.Light != nil,
		b.Error != nil,
		b.EventHistory != nil,
		b.PinCheck != nil,
		b.PinResult != nil,
	} {
		if set {
			n++
		}
	}
	if n != 1 {
		return &DecodeError{Field: "data", Msg: fmt.Sprintf("bundle must carry exactly one variant, got %d", n)}
	}
	return nil
}

// ImpliedDevice returns the device tag a variant is bound to, or nil for
// variants that any operation may produce (Error, EventHistory, pin data).
func (b *Bundle) ImpliedDevice() *DeviceType {
	switch {
	case b.ContactSensor != nil:
		return DeviceTypePtr(DeviceContactSensor)
	case b.Camera != nil:
		return DeviceTypePtr(DeviceCamera)
	case b.Light != nil:
		return DeviceTypePtr(DeviceLight)
	}
	return nil
}

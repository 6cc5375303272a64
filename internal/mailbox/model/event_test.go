package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modkit/mailhub/internal/mailbox/model"
)

func TestEventKind_Partition(t *testing.T) {
	outgoing := []model.EventKind{
		model.KindMailDelivered,
		model.KindMailPickedUp,
		model.KindDoorOpened,
		model.KindPollDeviceResult,
		model.KindPinResult,
		model.KindError,
	}
	incoming := []model.EventKind{
		model.KindHealthCheck,
		model.KindPollDevice,
		model.KindEventHistory,
		model.KindPinCheck,
		model.KindMailStatus,
	}

	for _, k := range outgoing {
		assert.True(t, k.IsOutgoing(), "%s should be outgoing", k)
		assert.False(t, k.IsIncoming(), "%s should not be incoming", k)
	}
	for _, k := range incoming {
		assert.True(t, k.IsIncoming(), "%s should be incoming", k)
		assert.False(t, k.IsOutgoing(), "%s should not be outgoing", k)
	}
}

func TestEventKind_UnclassifiedPanics(t *testing.T) {
	assert.Panics(t, func() {
		model.EventKind("Bogus").IsOutgoing()
	})
}

func TestNewEvent_StampsTimestamp(t *testing.T) {
	ev, err := model.NewEvent(model.KindHealthCheck, nil, nil)
	require.NoError(t, err)
	assert.NotZero(t, ev.Timestamp)
}

func TestNewEvent_RejectsMismatchedDeviceTag(t *testing.T) {
	// A ContactSensor reading labelled as a Camera must not construct.
	_, err := model.NewEvent(model.KindPollDeviceResult,
		model.DeviceTypePtr(model.DeviceCamera), model.ContactSensorBundle(true))
	require.Error(t, err)

	var decodeErr *model.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestNewEvent_AcceptsMatchingDeviceTag(t *testing.T) {
	ev, err := model.NewEvent(model.KindDoorOpened,
		model.DeviceTypePtr(model.DeviceContactSensor), model.ContactSensorBundle(true))
	require.NoError(t, err)
	require.NotNil(t, ev.Data)
	assert.True(t, ev.Data.ContactSensor.Open)
}

func TestEvent_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		ev   model.Event
	}{
		{
			name: "bare health check",
			ev:   model.Event{Kind: model.KindHealthCheck, Timestamp: 1693500000},
		},
		{
			name: "door opened with sensor bundle",
			ev: model.Event{
				Kind:      model.KindDoorOpened,
				Timestamp: 1693500001,
				Device:    model.DeviceTypePtr(model.DeviceContactSensor),
				Data:      model.ContactSensorBundle(true),
			},
		},
		{
			name: "camera result",
			ev: model.Event{
				Kind:      model.KindPollDeviceResult,
				Timestamp: 1693500002,
				Device:    model.DeviceTypePtr(model.DeviceCamera),
				Data:      model.CameraBundle("1693500002.h264"),
			},
		},
		{
			name: "pin check",
			ev: model.Event{
				Kind:      model.KindPinCheck,
				Timestamp: 1693500003,
				Data:      model.PinCheckBundle(6245),
			},
		},
		{
			name: "error",
			ev:   model.ErrorEvent("something broke"),
		},
		{
			name: "history with nested events",
			ev: model.Event{
				Kind:      model.KindEventHistory,
				Timestamp: 1693500004,
				Data: model.HistoryBundle([]model.Event{
					{Kind: model.KindMailDelivered, Timestamp: 100},
					{Kind: model.KindMailPickedUp, Timestamp: 200},
				}),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := tc.ev.Encode()
			require.NoError(t, err)

			back, err := model.DecodeEvent(raw)
			require.NoError(t, err)
			assert.Equal(t, tc.ev, back)
		})
	}
}

func TestDecodeEvent_WireShape(t *testing.T) {
	// The frame layout is part of the protocol contract; check it verbatim.
	ev := model.Event{
		Kind:      model.KindPinResult,
		Timestamp: 42,
		Data:      model.PinResultBundle(true),
	}
	raw, err := ev.Encode()
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"kind":"PinResult","timestamp":42,"data":{"PinResult":{"authorized":true}}}`,
		string(raw))
}

func TestDecodeEvent_Rejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{kind: nope`},
		{name: "unknown kind", raw: `{"kind":"Teleport","timestamp":1}`},
		{name: "unknown device", raw: `{"kind":"PollDevice","device":"Toaster"}`},
		{name: "empty bundle", raw: `{"kind":"PinCheck","data":{}}`},
		{
			name: "two variants",
			raw:  `{"kind":"PinCheck","data":{"PinCheck":{"pin":1},"Light":{"on":true}}}`,
		},
		{
			name: "mismatched device tag",
			raw:  `{"kind":"DoorOpened","device":"Camera","data":{"ContactSensor":{"open":true}}}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := model.DecodeEvent([]byte(tc.raw))
			require.Error(t, err)

			var decodeErr *model.DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestErrorEvent_Shape(t *testing.T) {
	ev := model.ErrorEvent("bad day")
	assert.Equal(t, model.KindError, ev.Kind)
	require.NotNil(t, ev.Data)
	require.NotNil(t, ev.Data.Error)
	assert.Equal(t, "bad day", ev.Data.Error.Msg)
	assert.NotZero(t, ev.Timestamp)
}

func TestBundle_Variant(t *testing.T) {
	assert.Equal(t, "ContactSensor", model.ContactSensorBundle(false).Variant())
	assert.Equal(t, "Camera", model.CameraBundle("f").Variant())
	assert.Equal(t, "Light", model.LightBundle(true).Variant())
	assert.Equal(t, "Error", model.ErrorBundle("e").Variant())
	assert.Equal(t, "EventHistory", model.HistoryBundle(nil).Variant())
	assert.Equal(t, "PinCheck", model.PinCheckBundle(1).Variant())
	assert.Equal(t, "PinResult", model.PinResultBundle(false).Variant())
	assert.Equal(t, "empty", (&model.Bundle{}).Variant())
}

func TestDeviceType_RoundTripsExactly(t *testing.T) {
	for _, s := range []string{"Camera", "Light", "ContactSensor"} {
		d, err := model.ParseDeviceType(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(d))
	}

	// Case matters.
	_, err := model.ParseDeviceType("camera")
	assert.Error(t, err)
}

func TestEvent_OmitsEmptyFields(t *testing.T) {
	raw, err := model.Event{Kind: model.KindHealthCheck, Timestamp: 7}.Encode()
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.NotContains(t, m, "device")
	assert.NotContains(t, m, "data")
}

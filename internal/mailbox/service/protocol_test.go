package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modkit/mailhub/internal/mailbox/device"
	"github.com/modkit/mailhub/internal/mailbox/model"
	"github.com/modkit/mailhub/internal/mailbox/service"
	"github.com/modkit/mailhub/internal/mailbox/store/memory"
)

const testPIN = 6245

func newTestProtocol(t *testing.T, sensor *fakeSensor) (*service.Protocol, *memory.EventStore) {
	t.Helper()
	st := memory.NewEventStore()
	reg := device.NewRegistry(sensor)
	return service.NewProtocol(st, reg, testPIN, zerolog.Nop()), st
}

func handle(t *testing.T, p *service.Protocol, raw string) model.Event {
	t.Helper()
	return p.Handle(context.Background(), []byte(raw))
}

func TestProtocol_HealthCheck(t *testing.T) {
	p, st := newTestProtocol(t, &fakeSensor{})

	resp := handle(t, p, `{"kind":"HealthCheck"}`)

	assert.Equal(t, model.KindHealthCheck, resp.Kind)
	assert.Nil(t, resp.Device)
	assert.Nil(t, resp.Data)
	assert.NotZero(t, resp.Timestamp)

	// The request itself lands in the log.
	events := st.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.KindHealthCheck, events[0].Kind)
}

func TestProtocol_RejectsInvalidUTF8(t *testing.T) {
	p, st := newTestProtocol(t, &fakeSensor{})

	resp := p.Handle(context.Background(), []byte{0xff, 0xfe, 0xfd})

	require.Equal(t, model.KindError, resp.Kind)
	require.NotNil(t, resp.Data.Error)
	assert.Contains(t, resp.Data.Error.Msg, "UTF-8")
	assert.Empty(t, st.Events())
}

func TestProtocol_RejectsMalformedJSON(t *testing.T) {
	p, st := newTestProtocol(t, &fakeSensor{})

	resp := handle(t, p, `{"kind":`)

	require.Equal(t, model.KindError, resp.Kind)
	assert.Contains(t, resp.Data.Error.Msg, "bad message")
	assert.Empty(t, st.Events())
}

func TestProtocol_RejectsOutgoingKinds(t *testing.T) {
	p, st := newTestProtocol(t, &fakeSensor{})

	// A client forging a server-only notification is turned away before
	// anything is persisted.
	for _, raw := range []string{
		`{"kind":"MailDelivered"}`,
		`{"kind":"MailPickedUp"}`,
		`{"kind":"PinResult","data":{"PinResult":{"authorized":true}}}`,
	} {
		resp := handle(t, p, raw)
		require.Equal(t, model.KindError, resp.Kind, "raw: %s", raw)
		assert.Contains(t, resp.Data.Error.Msg, "only sent by the server")
	}
	assert.Empty(t, st.Events())
}

func TestProtocol_RestampsClientTimestamp(t *testing.T) {
	p, st := newTestProtocol(t, &fakeSensor{})

	handle(t, p, `{"kind":"HealthCheck","timestamp":1}`)

	events := st.Events()
	require.Len(t, events, 1)
	assert.InDelta(t, time.Now().Unix(), events[0].Timestamp, 5)
}

func TestProtocol_PollDevice(t *testing.T) {
	sensor := &fakeSensor{open: true}
	p, _ := newTestProtocol(t, sensor)

	resp := handle(t, p, `{"kind":"PollDevice","device":"ContactSensor"}`)

	require.Equal(t, model.KindPollDeviceResult, resp.Kind)
	require.NotNil(t, resp.Device)
	assert.Equal(t, model.DeviceContactSensor, *resp.Device)
	require.NotNil(t, resp.Data.ContactSensor)
	assert.True(t, resp.Data.ContactSensor.Open)
}

func TestProtocol_PollDeviceRequiresDevice(t *testing.T) {
	p, _ := newTestProtocol(t, &fakeSensor{})

	resp := handle(t, p, `{"kind":"PollDevice"}`)

	require.Equal(t, model.KindError, resp.Kind)
	assert.Contains(t, resp.Data.Error.Msg, "provide a device")
}

func TestProtocol_PollDeviceUnregisteredType(t *testing.T) {
	p, _ := newTestProtocol(t, &fakeSensor{})

	resp := handle(t, p, `{"kind":"PollDevice","device":"Camera"}`)

	require.Equal(t, model.KindError, resp.Kind)
	assert.Contains(t, resp.Data.Error.Msg, "no device registered")
}

func TestProtocol_PinCheck(t *testing.T) {
	p, _ := newTestProtocol(t, &fakeSensor{})

	resp := handle(t, p, `{"kind":"PinCheck","data":{"PinCheck":{"pin":6245}}}`)
	require.Equal(t, model.KindPinResult, resp.Kind)
	require.NotNil(t, resp.Data.PinResult)
	assert.True(t, resp.Data.PinResult.Authorized)

	resp = handle(t, p, `{"kind":"PinCheck","data":{"PinCheck":{"pin":1111}}}`)
	require.Equal(t, model.KindPinResult, resp.Kind)
	assert.False(t, resp.Data.PinResult.Authorized)
}

func TestProtocol_PinCheckRequiresPin(t *testing.T) {
	p, _ := newTestProtocol(t, &fakeSensor{})

	resp := handle(t, p, `{"kind":"PinCheck"}`)

	require.Equal(t, model.KindError, resp.Kind)
	assert.Contains(t, resp.Data.Error.Msg, "requires a pin")
}

func TestProtocol_EventHistory(t *testing.T) {
	p, st := newTestProtocol(t, &fakeSensor{})

	seed := []model.Event{
		{Kind: model.KindDoorOpened, Timestamp: 100,
			Device: model.DeviceTypePtr(model.DeviceContactSensor),
			Data:   model.ContactSensorBundle(true)},
		{Kind: model.KindMailDelivered, Timestamp: 200},
	}
	for _, ev := range seed {
		require.NoError(t, st.WriteEvent(context.Background(), ev))
	}

	resp := handle(t, p, `{"kind":"EventHistory"}`)

	require.Equal(t, model.KindEventHistory, resp.Kind)
	require.NotNil(t, resp.Data.EventHistory)
	got := resp.Data.EventHistory.Events
	require.Len(t, got, 2, "the request itself is not part of the history")
	assert.Equal(t, model.KindDoorOpened, got[0].Kind)
	assert.Equal(t, model.KindMailDelivered, got[1].Kind)
}

func TestProtocol_MailStatusEmptyHistory(t *testing.T) {
	p, _ := newTestProtocol(t, &fakeSensor{})

	resp := handle(t, p, `{"kind":"MailStatus"}`)

	require.Equal(t, model.KindError, resp.Kind)
	assert.Contains(t, resp.Data.Error.Msg, "no mail status recorded yet")
}

func TestProtocol_MailStatusReturnsLatest(t *testing.T) {
	p, st := newTestProtocol(t, &fakeSensor{})

	for _, ev := range []model.Event{
		{Kind: model.KindMailDelivered, Timestamp: 300},
		{Kind: model.KindDoorOpened, Timestamp: 400,
			Device: model.DeviceTypePtr(model.DeviceContactSensor),
			Data:   model.ContactSensorBundle(false)},
	} {
		require.NoError(t, st.WriteEvent(context.Background(), ev))
	}

	resp := handle(t, p, `{"kind":"MailStatus"}`)

	// The newer door event does not mask the mail status.
	assert.Equal(t, model.KindMailDelivered, resp.Kind)
	assert.Equal(t, int64(300), resp.Timestamp)
}

func TestProtocol_StoreFailureAnswersWithError(t *testing.T) {
	reg := device.NewRegistry(&fakeSensor{})
	p := service.NewProtocol(failingStore{}, reg, testPIN, zerolog.Nop())

	resp := handle(t, p, `{"kind":"EventHistory"}`)
	require.Equal(t, model.KindError, resp.Kind)
	assert.Contains(t, resp.Data.Error.Msg, "could not read event history")

	resp = handle(t, p, `{"kind":"MailStatus"}`)
	require.Equal(t, model.KindError, resp.Kind)
	assert.Contains(t, resp.Data.Error.Msg, "could not read mail status")

	// A dead store does not take health checks down.
	resp = handle(t, p, `{"kind":"HealthCheck"}`)
	assert.Equal(t, model.KindHealthCheck, resp.Kind)
}

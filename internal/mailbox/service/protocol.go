package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/modkit/mailhub/internal/mailbox/device"
	"github.com/modkit/mailhub/internal/mailbox/model"
	"github.com/modkit/mailhub/internal/mailbox/store"
)

const wrongDirectionMsg = "this event kind is only sent by the server, not the client; try an incoming kind"

// Protocol classifies one inbound frame and answers it with exactly one
// event.  Every failure path returns a well-formed Error event; nothing a
// client sends can crash the connection.
type Protocol struct {
	store   store.EventStore
	devices device.Poller
	pin     int
	logger  zerolog.Logger
}

func NewProtocol(st store.EventStore, devices device.Poller, pin int, logger zerolog.Logger) *Protocol {
	return &Protocol{
		store:   st,
		devices: devices,
		pin:     pin,
		logger:  logger.With().Str("component", "protocol").Logger(),
	}
}

// Handle decodes, filters, persists and dispatches one inbound message.
func (p *Protocol) Handle(ctx context.Context, raw []byte) model.Event {
	if !utf8.Valid(raw) {
		return model.ErrorEvent("message is not valid UTF-8 text")
	}

	ev, err := model.DecodeEvent(raw)
	if err != nil {
		p.logger.Debug().Err(err).Msg("undecodable inbound message")
		return model.ErrorEvent(fmt.Sprintf("bad message: %v", err))
	}

	// Clients may only send incoming kinds; a forged MailDelivered stops here.
	if ev.Kind.IsOutgoing() {
		return model.ErrorEvent(wrongDirectionMsg)
	}

	// Never trust a client-supplied timestamp.
	ev.Timestamp = time.Now().Unix()

	if err := p.store.WriteEvent(ctx, ev); err != nil {
		p.logger.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("inbound event not recorded")
	}

	switch ev.Kind {
	case model.KindHealthCheck:
		return p.handleHealthCheck()
	case model.KindPollDevice:
		return p.handlePollDevice(ev)
	case model.KindPinCheck:
		return p.handlePinCheck(ev)
	case model.KindEventHistory:
		return p.handleHistory(ctx)
	case model.KindMailStatus:
		return p.handleMailStatus(ctx)
	}

	// The outgoing filter already ran, so reaching here means a new
	// incoming kind was added without a handler.
	panic(fmt.Sprintf("incoming event kind %q has no handler", string(ev.Kind)))
}

func (p *Protocol) handleHealthCheck() model.Event {
	resp, err := model.NewEvent(model.KindHealthCheck, nil, nil)
	if err != nil {
		return model.ErrorEvent(err.Error())
	}
	return resp
}

func (p *Protocol) handlePollDevice(ev model.Event) model.Event {
	if ev.Device == nil {
		return model.ErrorEvent(`provide a device to poll ("device": "Camera" for example)`)
	}

	bundle, err := p.devices.Poll(*ev.Device)
	if err != nil {
		return model.ErrorEvent(err.Error())
	}

	resp, err := model.NewEvent(model.KindPollDeviceResult, ev.Device, bundle)
	if err != nil {
		return model.ErrorEvent(err.Error())
	}
	return resp
}

func (p *Protocol) handlePinCheck(ev model.Event) model.Event {
	if ev.Data == nil || ev.Data.PinCheck == nil {
		return model.ErrorEvent(`PinCheck requires a pin ("data": {"PinCheck": {"pin": 1234}})`)
	}

	authorized := ev.Data.PinCheck.Pin == p.pin
	resp, err := model.NewEvent(model.KindPinResult, nil, model.PinResultBundle(authorized))
	if err != nil {
		return model.ErrorEvent(err.Error())
	}
	return resp
}

func (p *Protocol) handleHistory(ctx context.Context) model.Event {
	events, err := p.store.AllEvents(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("history read failed")
		return model.ErrorEvent(fmt.Sprintf("could not read event history: %v", err))
	}

	resp, err := model.NewEvent(model.KindEventHistory, nil, model.HistoryBundle(events))
	if err != nil {
		return model.ErrorEvent(err.Error())
	}
	return resp
}

func (p *Protocol) handleMailStatus(ctx context.Context) model.Event {
	last, err := p.store.LatestMailStatus(ctx)
	if errors.Is(err, store.ErrMailStatusNotFound) {
		return model.ErrorEvent("no mail status recorded yet")
	}
	if err != nil {
		p.logger.Error().Err(err).Msg("mail status read failed")
		return model.ErrorEvent(fmt.Sprintf("could not read mail status: %v", err))
	}
	return last
}

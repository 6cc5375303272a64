// Package service holds the mailbox logic: the watchdog loop that turns
// sensor transitions into events, and the protocol handler that answers
// subscriber requests.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/modkit/mailhub/internal/mailbox/device"
	"github.com/modkit/mailhub/internal/mailbox/model"
	"github.com/modkit/mailhub/internal/mailbox/store"
)

// Broadcaster is the slice of the ws registry the watchdog needs.
type Broadcaster interface {
	Broadcast(ev model.Event)
}

// Recorder is the slice of the camera the watchdog needs.
type Recorder interface {
	Capture() (string, error)
}

// Watchdog polls the contact sensor on a fixed tick, detects edge
// transitions, and derives the higher-level mail events.  Live delivery
// wins over durability everywhere: events are broadcast before they are
// persisted, and a failed write is logged, never fatal.
//
// Mail status is inferred, not observed: every open→close cycle alternates
// delivered/picked-up against the last persisted mail-status event, seeded
// to delivered when the log has none.
type Watchdog struct {
	sensor   device.Device
	camera   Recorder
	store    store.EventStore
	hub      Broadcaster
	interval time.Duration
	logger   zerolog.Logger

	// lastOpen is nil until the first successful poll; the initial door
	// state is read, not assumed, and emits no event.
	lastOpen *bool

	cancel context.CancelFunc
	done   chan struct{}
}

type WatchdogConfig struct {
	// Interval between sensor polls.  Defaults to one second.
	Interval time.Duration
}

func NewWatchdog(sensor device.Device, camera Recorder, st store.EventStore, hub Broadcaster, cfg WatchdogConfig, logger zerolog.Logger) *Watchdog {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	return &Watchdog{
		sensor:   sensor,
		camera:   camera,
		store:    st,
		hub:      hub,
		interval: interval,
		logger:   logger.With().Str("component", "watchdog").Logger(),
		done:     make(chan struct{}),
	}
}

// Start begins the polling loop in a background goroutine.  The loop exits
// when ctx is cancelled or Stop is called.
func (w *Watchdog) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
	w.logger.Info().Dur("interval", w.interval).Msg("watchdog started")
}

// Stop signals the loop to exit and waits for it to finish.
func (w *Watchdog) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	<-w.done
}

func (w *Watchdog) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick runs one polling cycle.  A sensor failure is treated as "no change
// detected"; nothing in here may take the loop down.
func (w *Watchdog) tick(ctx context.Context) {
	bundle, err := w.sensor.Poll()
	if err != nil {
		w.logger.Debug().Err(err).Msg("sensor poll failed, treating as no change")
		return
	}
	if bundle == nil || bundle.ContactSensor == nil {
		w.logger.Warn().Str("variant", bundle.Variant()).Msg("sensor returned a non-sensor bundle")
		return
	}
	open := bundle.ContactSensor.Open

	if w.lastOpen == nil {
		w.lastOpen = &open
		w.logger.Info().Bool("open", open).Msg("initial door state")
		return
	}
	if open == *w.lastOpen {
		return
	}
	*w.lastOpen = open

	// The presence notification goes out before anything that can block.
	doorEv, err := model.NewEvent(model.KindDoorOpened,
		model.DeviceTypePtr(model.DeviceContactSensor), model.ContactSensorBundle(open))
	if err != nil {
		w.logger.Error().Err(err).Msg("could not build door event")
		return
	}
	w.hub.Broadcast(doorEv)
	w.persist(ctx, doorEv)

	var queued []model.Event
	if open {
		queued = w.onOpened(queued)
	} else {
		queued = w.onClosed(ctx, queued)
	}

	for _, ev := range queued {
		w.hub.Broadcast(ev)
		w.persist(ctx, ev)
	}
}

// onOpened records a capture clip.  The capture blocks for the length of
// the recording; that delay is why DoorOpened was broadcast first.  A
// capture failure loses the clip, never the tick.
func (w *Watchdog) onOpened(queued []model.Event) []model.Event {
	if err := w.sensor.OnActivate(); err != nil {
		w.logger.Warn().Err(err).Msg("sensor on-activate failed")
	}

	file, err := w.camera.Capture()
	if err != nil {
		w.logger.Warn().Err(err).Msg("video capture failed")
		return queued
	}

	ev, err := model.NewEvent(model.KindPollDeviceResult,
		model.DeviceTypePtr(model.DeviceCamera), model.CameraBundle(file))
	if err != nil {
		w.logger.Error().Err(err).Msg("could not build capture event")
		return queued
	}
	return append(queued, ev)
}

// onClosed derives the next mail-status event by alternating against the
// latest persisted one.  A store failure skips the inference for this
// cycle; the door event already went out.
func (w *Watchdog) onClosed(ctx context.Context, queued []model.Event) []model.Event {
	kind := model.KindMailDelivered

	last, err := w.store.LatestMailStatus(ctx)
	switch {
	case errors.Is(err, store.ErrMailStatusNotFound):
		// Empty history seeds the alternation at delivered.
	case err != nil:
		w.logger.Warn().Err(err).Msg("could not read mail status, skipping inference this cycle")
		return queued
	case last.Kind == model.KindMailDelivered:
		kind = model.KindMailPickedUp
	}

	ev, err := model.NewEvent(kind, nil, nil)
	if err != nil {
		w.logger.Error().Err(err).Msg("could not build mail-status event")
		return queued
	}
	return append(queued, ev)
}

func (w *Watchdog) persist(ctx context.Context, ev model.Event) {
	if err := w.store.WriteEvent(ctx, ev); err != nil {
		w.logger.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("event not recorded")
	}
}

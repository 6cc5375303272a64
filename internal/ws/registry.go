// Package ws holds the subscriber registry and the websocket read/write
// pumps.  The registry is the only shared structure in the system that
// needs a lock.
package ws

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/modkit/mailhub/internal/mailbox/model"
)

// sendBuffer bounds each subscriber's outbound queue.  A stalled client
// loses frames (logged and skipped) instead of growing memory without
// bound or stalling the broadcast for everyone else.
const sendBuffer = 256

// Client is one registered subscriber.  Registration happens over HTTP
// before the websocket handshake, so the outbound channel starts nil and is
// attached once the transport is live.
type Client struct {
	ID   string
	send chan []byte
}

// Registry maps client ids to clients and fans events out to them.  It
// owns the clients: entries live from Register to Unregister.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Client
	logger  zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		logger:  logger.With().Str("component", "ws_registry").Logger(),
	}
}

// Register inserts a client with no attached channel.  Re-registering an
// existing id overwrites it, dropping any previously attached channel.
func (r *Registry) Register(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[id] = &Client{ID: id}
	r.logger.Info().Str("client_id", id).Int("clients", len(r.clients)).Msg("client registered")
}

// Registered reports whether the id has a registry entry.
func (r *Registry) Registered(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clients[id]
	return ok
}

// Attach gives the client its outbound channel once the transport handshake
// has completed.  From this point the client is eligible for broadcast.
// Returns false if the id was never registered.
func (r *Registry) Attach(id string) (chan []byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, false
	}
	c.send = make(chan []byte, sendBuffer)
	r.logger.Info().Str("client_id", id).Msg("client attached")
	return c.send, true
}

// Unregister removes the entry.  Calling it on an absent id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return
	}
	delete(r.clients, id)
	r.logger.Info().Str("client_id", id).Int("clients", len(r.clients)).Msg("client unregistered")
}

// Detach removes the entry only if send is still the attached channel.  A
// connection tearing down after its id was re-registered must not delete
// the fresh registrant out from under the new connection.
func (r *Registry) Detach(id string, send chan []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok || c.send != send {
		return
	}
	delete(r.clients, id)
	r.logger.Info().Str("client_id", id).Int("clients", len(r.clients)).Msg("client detached")
}

// Count returns the number of registered clients.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Broadcast serializes the event once and enqueues it on every attached
// client's channel.  A full or gone channel is logged and skipped; it never
// aborts delivery to the remaining clients.  Per-client order is preserved
// by the channel itself; no order is promised across clients.
func (r *Registry) Broadcast(ev model.Event) {
	data, err := ev.Encode()
	if err != nil {
		r.logger.Error().Err(err).Str("kind", string(ev.Kind)).Msg("could not encode broadcast event")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		if c.send == nil {
			continue
		}
		select {
		case c.send <- data:
			r.logger.Debug().Str("client_id", id).Str("kind", string(ev.Kind)).Msg("event enqueued")
		default:
			r.logger.Warn().Str("client_id", id).Str("kind", string(ev.Kind)).Msg("send queue full, frame dropped")
		}
	}
}

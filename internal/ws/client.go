package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/modkit/mailhub/internal/mailbox/model"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Ping period; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Inbound frames are small request events; 4 KiB is generous.
	maxMessageSize = 4096
)

// Handler answers one inbound frame with one response event.
type Handler interface {
	Handle(ctx context.Context, raw []byte) model.Event
}

// Serve runs one subscriber connection until it closes: it attaches the
// outbound channel, starts the forwarding task (write pump), then reads
// inbound frames, passing each to the handler and enqueueing the response
// on the client's own channel so responses and broadcasts stay in one FIFO.
// When the connection ends the client is detached, which removes the
// registry entry only if this connection still owns it.
func Serve(ctx context.Context, id string, conn *websocket.Conn, reg *Registry, h Handler, logger zerolog.Logger) {
	log := logger.With().Str("component", "ws_conn").Str("client_id", id).Logger()

	send, ok := reg.Attach(id)
	if !ok {
		log.Error().Msg("connection for unregistered client")
		_ = conn.Close()
		return
	}

	done := make(chan struct{})
	go writePump(conn, send, done, log)

	defer func() {
		reg.Detach(id, send)
		close(done)
		_ = conn.Close()
		log.Info().Msg("disconnected")
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("read error")
			}
			return
		}

		resp := h.Handle(ctx, raw)
		data, err := resp.Encode()
		if err != nil {
			log.Error().Err(err).Msg("could not encode response event")
			continue
		}

		select {
		case send <- data:
		default:
			log.Warn().Str("kind", string(resp.Kind)).Msg("send queue full, response dropped")
		}
	}
}

// writePump forwards the outbound channel to the transport and keeps the
// connection alive with pings.  It exits when the connection is done or a
// write fails; the read side notices via the broken connection.
func writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}, log zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nclime/roomcast/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// wsConn adapts a gorilla websocket to core.Conn. Writes go through a
// buffered send channel drained by writePump; reads happen on the
// owning session's goroutine.
type wsConn struct {
	conn         *websocket.Conn
	send         chan []byte
	writeTimeout time.Duration
	pingPeriod   time.Duration

	mu     sync.RWMutex
	closed bool
}

func newConn(conn *websocket.Conn, readLimit int64, sendBuffer int, writeTimeout, pingPeriod time.Duration) *wsConn {
	conn.SetReadLimit(readLimit)
	return &wsConn{
		conn:         conn,
		send:         make(chan []byte, sendBuffer),
		writeTimeout: writeTimeout,
		pingPeriod:   pingPeriod,
	}
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

// Close sends a close frame with the given code, then tears the socket
// down. Idempotent; also unblocks a pending ReadFrame.
func (c *wsConn) Close(code int, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	deadline := time.Now().Add(c.writeTimeout)
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = c.conn.Close()
}

var _ core.Conn = (*wsConn)(nil)

// writePump is the only writer of data frames on the socket. It drains
// the send channel and keeps the peer alive with pings.
func (c *wsConn) writePump(ctx context.Context, logger zerolog.Logger) {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				logger.Error().Err(err).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Error().Err(err).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.writeTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logger.Warn().Err(err).Msg("writePump ping error")
				return
			}
		}
	}
}

package ws

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nclime/roomcast/internal/core"
	"github.com/nclime/roomcast/internal/domain"
	"github.com/nclime/roomcast/internal/metrics"
)

// session is the per-connection actor. Its two duties run concurrently:
// the read loop (this goroutine) and outbound delivery (the transport's
// write side, fed through Deliver). Each duty is internally sequential;
// inbound frames are handled strictly in arrival order. The transport
// is the core.Conn capability, not a concrete socket type.
type session struct {
	id        string
	conn      core.Conn
	principal domain.Principal
	roomID    domain.RoomID
	group     string

	store  core.MessageStore
	bus    core.GroupBus
	logger zerolog.Logger
}

// core.GroupMember: the bus addresses this connection by id and hands
// it events to write out.
func (s *session) ID() string { return s.id }

func (s *session) Deliver(ev core.Event) {
	if err := s.conn.TrySend(ev.Payload); err != nil {
		s.logger.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("outbound frame dropped")
	}
}

// run relays frames until the peer disconnects or ctx ends. Teardown
// always leaves the group; a leave error is logged and swallowed so it
// can never block the close path.
func (s *session) run(ctx context.Context) {
	// Forced closure (server shutdown) unblocks the pending read by
	// closing the socket out from under it.
	stop := context.AfterFunc(ctx, func() {
		s.conn.Close(websocketCloseGoingAway, "server shutdown")
	})
	defer stop()

	defer func() {
		if err := s.bus.Leave(context.WithoutCancel(ctx), s.group, s); err != nil {
			s.logger.Warn().Err(err).Msg("group leave")
		}
		s.conn.Close(websocketCloseNormal, "")
		s.logger.Info().Msg("connection closed")
	}()

	for {
		data, err := s.conn.ReadFrame()
		if err != nil {
			s.logger.Debug().Err(err).Msg("read loop done")
			return
		}
		s.handleFrame(ctx, data)
	}
}

const (
	websocketCloseNormal    = 1000
	websocketCloseGoingAway = 1001
)

// handleFrame classifies one inbound frame. Frames with one of the
// four webrtc-* types are relayed as signals; everything else is a
// chat submission, whatever its type field says. All failure modes
// drop the frame and keep the connection active.
func (s *session) handleFrame(ctx context.Context, data []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		s.logger.Debug().Err(err).Msg("malformed frame dropped")
		metrics.FramesDropped.WithLabelValues("malformed").Inc()
		return
	}

	if domain.IsSignalKind(head.Type) {
		s.relaySignal(ctx, head.Type, data)
		return
	}
	s.submitChat(ctx, data)
}

// relaySignal republishes the envelope verbatim with senderId stamped
// to this connection's principal, overwriting whatever the client
// sent. Signals are never persisted.
func (s *session) relaySignal(ctx context.Context, kind string, data []byte) {
	var envelope map[string]any
	if err := json.Unmarshal(data, &envelope); err != nil {
		s.logger.Debug().Err(err).Msg("malformed signal dropped")
		metrics.FramesDropped.WithLabelValues("malformed").Inc()
		return
	}
	envelope["senderId"] = s.principal.ID

	payload, err := json.Marshal(envelope)
	if err != nil {
		s.logger.Error().Err(err).Msg("signal marshal")
		return
	}
	s.publish(ctx, core.Event{Kind: core.EventSignal, Payload: payload})
	metrics.SignalsRelayed.WithLabelValues(kind).Inc()
	s.logger.Debug().Str("kind", kind).Int("size", len(data)).Msg("signal relayed")
}

type chatEvent struct {
	ID        int64         `json:"id"`
	User      domain.Author `json:"user"`
	Content   string        `json:"content"`
	CreatedAt string        `json:"created_at"`
}

// submitChat persists the message, then publishes it; never the other
// way around. A failed append loses only this frame.
func (s *session) submitChat(ctx context.Context, data []byte) {
	var frame struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		s.logger.Debug().Err(err).Msg("malformed chat dropped")
		metrics.FramesDropped.WithLabelValues("malformed").Inc()
		return
	}

	content := strings.TrimSpace(frame.Content)
	if content == "" {
		metrics.FramesDropped.WithLabelValues("empty").Inc()
		return
	}

	msg, err := s.store.Append(ctx, s.roomID, s.principal.ID, content)
	if err != nil {
		s.logger.Error().Err(err).Msg("chat append failed, frame dropped")
		metrics.FramesDropped.WithLabelValues("persistence").Inc()
		return
	}
	metrics.MessagesStored.Inc()

	payload, err := json.Marshal(chatEvent{
		ID: msg.ID,
		User: domain.Author{
			ID:    s.principal.ID,
			Email: s.principal.Email,
			Name:  s.principal.Name,
		},
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt.Format("2006-01-02T15:04:05.999999Z07:00"),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("chat marshal")
		return
	}
	s.publish(ctx, core.Event{Kind: core.EventChat, Payload: payload})
	s.logger.Info().Int64("msg_id", msg.ID).Int("len", len(content)).Msg("chat stored")
}

// publish fans the event out. Failures are logged and swallowed: a
// chat message is already durable, a signal is ephemeral by contract.
func (s *session) publish(ctx context.Context, ev core.Event) {
	if err := s.bus.Publish(ctx, s.group, ev); err != nil {
		s.logger.Error().Err(err).Str("kind", string(ev.Kind)).Msg("publish failed, event lost")
		metrics.PublishFailures.Inc()
	}
}

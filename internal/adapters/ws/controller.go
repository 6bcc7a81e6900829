// Package ws is the connection gateway: one actor per websocket,
// owning the handshake, group membership and frame routing for that
// connection and nothing else.
package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nclime/roomcast/internal/config"
	"github.com/nclime/roomcast/internal/core"
	"github.com/nclime/roomcast/internal/domain"
	"github.com/nclime/roomcast/internal/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Auth  core.Authenticator
	Rooms core.RoomDirectory
	Store core.MessageStore
	Bus   core.GroupBus

	readLimit    int64
	sendBuffer   int
	writeTimeout time.Duration
	pingPeriod   time.Duration
}

func NewController(cfg *config.Config, auth core.Authenticator, rooms core.RoomDirectory, store core.MessageStore, bus core.GroupBus) *Controller {
	return &Controller{
		Auth:         auth,
		Rooms:        rooms,
		Store:        store,
		Bus:          bus,
		readLimit:    cfg.ReadLimit,
		sendBuffer:   cfg.SendBuffer,
		writeTimeout: cfg.WriteTimeout,
		pingPeriod:   cfg.PingPeriod,
	}
}

// HandleChat runs the full lifecycle of one connection on the calling
// goroutine: upgrade, authorize, subscribe, relay until disconnect.
// Blocking work (token validation, appends, publishes) only ever
// stalls this connection.
func (ctl *Controller) HandleChat(ctx context.Context, c *gin.Context) {
	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "gateway").Msg("ws upgrade")
		return
	}
	conn := newConn(sock, ctl.readLimit, ctl.sendBuffer, ctl.writeTimeout, ctl.pingPeriod)

	connID := uuid.NewString()
	logger := log.With().Str("module", "gateway").Str("conn", connID).Logger()

	// Authorizing. The authenticator maps every failure to an
	// anonymous principal; rejecting is this gateway's call.
	principal, err := ctl.Auth.Authenticate(ctx, c.Query("token"))
	if err != nil && !errors.Is(err, core.ErrAuthentication) {
		logger.Error().Err(err).Msg("authenticate")
	}
	if !principal.Authenticated {
		logger.Warn().Msg("reject unauthorized")
		metrics.HandshakesRejected.WithLabelValues("unauthorized").Inc()
		conn.Close(core.CloseUnauthorized, "unauthorized")
		return
	}
	logger = logger.With().Int64("user_id", int64(principal.ID)).Logger()

	roomID, err := strconv.ParseInt(c.Param("room"), 10, 64)
	var room domain.RoomRef
	if err == nil {
		room, err = ctl.Rooms.Lookup(ctx, domain.RoomID(roomID))
	}
	if err != nil || !room.IsActive {
		if err != nil && !errors.Is(err, core.ErrRoomNotFound) {
			logger.Error().Err(err).Msg("room lookup")
		}
		logger.Warn().Str("room", c.Param("room")).Msg("reject room_not_found")
		metrics.HandshakesRejected.WithLabelValues("room_not_found").Inc()
		conn.Close(core.CloseRoomNotFound, "room not found")
		return
	}
	logger = logger.With().Int64("room_id", int64(room.ID)).Logger()

	sess := &session{
		id:        connID,
		conn:      conn,
		principal: principal,
		roomID:    room.ID,
		group:     room.GroupKey(),
		store:     ctl.Store,
		bus:       ctl.Bus,
		logger:    logger,
	}

	if err := ctl.Bus.Join(ctx, sess.group, sess); err != nil {
		logger.Error().Err(err).Msg("group join")
		metrics.HandshakesRejected.WithLabelValues("bus_join").Inc()
		conn.Close(core.CloseInternalError, "internal error")
		return
	}

	logger.Info().Msg("connection active")
	metrics.ConnectionsOpen.Inc()
	runCtx := logger.WithContext(ctx)
	go conn.writePump(runCtx, logger)
	sess.run(runCtx)
	metrics.ConnectionsOpen.Dec()
}

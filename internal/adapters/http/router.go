// Package http wires the gin router: the websocket gateway route plus
// the small request/response surface (history, RTC config, health,
// metrics).
package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/nclime/roomcast/internal/adapters/ws"
	"github.com/nclime/roomcast/internal/config"
	"github.com/nclime/roomcast/internal/core"
)

// Pinger is what the health endpoint probes on the store and bus.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Auth  core.Authenticator
	Rooms core.RoomDirectory
	Store core.MessageStore
	Bus   core.GroupBus

	// Health probes; either may be nil.
	StoreHealth Pinger
	BusHealth   Pinger
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())

	r.GET("/healthz", healthHandler(deps))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	gateway := ws.NewController(cfg, deps.Auth, deps.Rooms, deps.Store, deps.Bus)
	r.GET("/ws/chat/:room", func(c *gin.Context) {
		gateway.HandleChat(ctx, c)
	})

	api := r.Group("/api")
	api.GET("/rooms/:room/messages", requireToken(deps.Auth), historyHandler(deps))
	api.GET("/webrtc/config", rtcConfigHandler(cfg))

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}

func healthHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := gin.H{"status": "ok"}
		status := 200
		if deps.StoreHealth != nil {
			if err := deps.StoreHealth.Ping(c.Request.Context()); err != nil {
				report["store"] = err.Error()
				status = 503
			}
		}
		if deps.BusHealth != nil {
			if err := deps.BusHealth.Ping(c.Request.Context()); err != nil {
				report["bus"] = err.Error()
				status = 503
			}
		}
		if status != 200 {
			report["status"] = "degraded"
		}
		c.JSON(status, report)
	}
}

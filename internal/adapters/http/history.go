package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nclime/roomcast/internal/core"
	"github.com/nclime/roomcast/internal/domain"
)

const (
	historyDefaultLimit = 50
	historyMaxLimit     = 200
)

type historyMessage struct {
	ID        int64         `json:"id"`
	User      domain.Author `json:"user"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"created_at"`
}

// historyHandler serves an ascending page of a room's messages.
// limit is clamped to [1, 200] (default 50); before is an exclusive
// created_at cursor for scrolling backwards.
func historyHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := zerolog.Ctx(c.Request.Context())

		roomID, err := strconv.ParseInt(c.Param("room"), 10, 64)
		if err != nil {
			c.JSON(404, gin.H{"detail": "Room not found."})
			return
		}
		room, err := deps.Rooms.Lookup(c.Request.Context(), domain.RoomID(roomID))
		if err != nil || !room.IsActive {
			if err != nil && !errors.Is(err, core.ErrRoomNotFound) {
				logger.Error().Err(err).Msg("room lookup")
			}
			c.JSON(404, gin.H{"detail": "Room not found."})
			return
		}

		limit := historyDefaultLimit
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = min(max(n, 1), historyMaxLimit)
			}
		}

		var before *time.Time
		if raw := c.Query("before"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(400, gin.H{"detail": `Invalid "before" timestamp.`})
				return
			}
			before = &t
		}

		page, err := deps.Store.List(c.Request.Context(), room.ID, limit, before)
		if err != nil {
			logger.Error().Err(err).Msg("history list")
			c.JSON(500, gin.H{"detail": "Internal error."})
			return
		}

		results := make([]historyMessage, 0, len(page))
		for _, m := range page {
			results = append(results, historyMessage{
				ID:        m.ID,
				User:      m.Author,
				Content:   m.Content,
				CreatedAt: m.CreatedAt,
			})
		}
		c.JSON(200, gin.H{"results": results})
	}
}

package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/guildboard/guildboard/model"
	"github.com/guildboard/guildboard/stats"
)

// StatsHandler serves guild participation statistics.
type StatsHandler struct {
	db    *gorm.DB
	stats *stats.Cache
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(db *gorm.DB, sc *stats.Cache) *StatsHandler {
	return &StatsHandler{db: db, stats: sc}
}

// GuildStats handles GET /api/guilds/:id/stats.
func (h *StatsHandler) GuildStats(c *gin.Context) {
	guildID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var guild model.Guild
	if err := h.db.First(&guild, guildID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "guild not found"})
		return
	}
	gs, err := h.stats.Get(c.Request.Context(), guildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gs)
}

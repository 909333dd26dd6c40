package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guildboard/guildboard/battle"
	"github.com/guildboard/guildboard/model"
	"github.com/guildboard/guildboard/stats"
)

// GuildHandler handles guild REST endpoints.
type GuildHandler struct {
	db     *gorm.DB
	agg    *stats.Aggregator
	logger *zap.Logger
}

// NewGuildHandler creates a new GuildHandler.
func NewGuildHandler(db *gorm.DB, agg *stats.Aggregator, logger *zap.Logger) *GuildHandler {
	return &GuildHandler{db: db, agg: agg, logger: logger}
}

type guildRequest struct {
	Name   string `json:"name"   binding:"required,min=2,max=64"`
	Server string `json:"server" binding:"max=32"`
	Tag    string `json:"tag"    binding:"max=16"`
	Notes  string `json:"notes"  binding:"max=2000"`
	Crest  string `json:"crest"  binding:"max=255"`
}

// Create handles POST /api/guilds.
func (h *GuildHandler) Create(c *gin.Context) {
	var req guildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	guild := model.Guild{
		Name:   req.Name,
		Server: req.Server,
		Tag:    req.Tag,
		Notes:  req.Notes,
		Crest:  req.Crest,
	}
	if err := h.db.Create(&guild).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "guild name already taken"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusCreated, guild)
}

// List handles GET /api/guilds.
func (h *GuildHandler) List(c *gin.Context) {
	var guilds []model.Guild
	if err := h.db.Order("name ASC").Find(&guilds).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"guilds": guilds})
}

// Detail handles GET /api/guilds/:id. The overview carries the legacy
// contribution summary (cap 200); the stats endpoint carries the current
// one.
func (h *GuildHandler) Detail(c *gin.Context) {
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

	var members []model.Member
	h.db.Where("guild_id = ?", guildID).Order("name ASC").Find(&members)

	contribution, err := h.agg.LegacyContribution(guildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"guild":        guild,
		"members":      members,
		"contribution": contribution,
	})
}

// Update handles PUT /api/guilds/:id.
func (h *GuildHandler) Update(c *gin.Context) {
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

	var req guildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	guild.Name = req.Name
	guild.Server = req.Server
	guild.Tag = req.Tag
	guild.Notes = req.Notes
	guild.Crest = req.Crest
	if err := h.db.Save(&guild).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "guild name already taken"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusOK, guild)
}

// Delete handles DELETE /api/guilds/:id. A guild with members is only
// deleted with ?force=1; deletion cascades to members, battles,
// participants and staged reports.
func (h *GuildHandler) Delete(c *gin.Context) {
	guildID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	force := c.Query("force") == "1"

	err := h.db.Transaction(func(tx *gorm.DB) error {
		var guild model.Guild
		if err := tx.First(&guild, guildID).Error; err != nil {
			return err
		}
		var memberCount int64
		if err := tx.Model(&model.Member{}).Where("guild_id = ?", guildID).
			Count(&memberCount).Error; err != nil {
			return err
		}
		if memberCount > 0 && !force {
			return errGuildHasMembers
		}
		if err := battle.DeleteAllForGuild(tx, guildID); err != nil {
			return err
		}
		if err := tx.Where("guild_id = ?", guildID).Delete(&model.Member{}).Error; err != nil {
			return err
		}
		if err := tx.Where("guild_id = ?", guildID).Delete(&model.InboxReport{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Guild{}, guildID).Error
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "guild not found"})
	case errors.Is(err, errGuildHasMembers):
		c.JSON(http.StatusConflict, gin.H{"error": "guild has members; pass force=1 to delete anyway"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		h.logger.Info("guild deleted", zap.Int64("guild_id", guildID))
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	}
}

var errGuildHasMembers = errors.New("guild has members")

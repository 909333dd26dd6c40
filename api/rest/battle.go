package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guildboard/guildboard/audit"
	"github.com/guildboard/guildboard/battle"
	mw "github.com/guildboard/guildboard/middleware"
	"github.com/guildboard/guildboard/model"
	"github.com/guildboard/guildboard/report"
	"github.com/guildboard/guildboard/stats"
)

// BattleHandler handles battle import and management endpoints.
type BattleHandler struct {
	db      *gorm.DB
	svc     *battle.Service
	stats   *stats.Cache
	auditor *audit.Service
	logger  *zap.Logger
}

// NewBattleHandler creates a new BattleHandler.
func NewBattleHandler(db *gorm.DB, svc *battle.Service, sc *stats.Cache, auditor *audit.Service, logger *zap.Logger) *BattleHandler {
	return &BattleHandler{db: db, svc: svc, stats: sc, auditor: auditor, logger: logger}
}

type importBattleRequest struct {
	Text string `json:"text" binding:"required"`
	Date string `json:"date" binding:"max=16"`
	Time string `json:"time" binding:"max=8"`
}

// Import handles POST /api/guilds/:id/battles. The body text may be either
// dialect; pasted reports should also supply date and time.
func (h *BattleHandler) Import(c *gin.Context) {
	started := time.Now()
	guildID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req importBattleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.svc.ImportText(guildID, req.Text, req.Date, req.Time)
	if err != nil {
		h.respondImportError(c, err)
		return
	}

	h.stats.Invalidate(c.Request.Context(), guildID)
	h.auditor.Log(audit.Entry{
		TraceID:    mw.GetTraceID(c),
		GuildID:    &guildID,
		Action:     "battle_import",
		Request:    gin.H{"date": b.Date, "time": b.Time},
		Response:   gin.H{"battle_id": b.ID, "type": b.Type, "opponent": b.Opponent},
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(started).Milliseconds()),
	})
	c.JSON(http.StatusCreated, b)
}

// respondImportError maps parse and dedup failures onto distinct messages
// so operators can tell exactly why a report was refused.
func (h *BattleHandler) respondImportError(c *gin.Context, err error) {
	var dup *battle.DuplicateError
	switch {
	case errors.As(err, &dup):
		var msg string
		switch dup.Reason {
		case battle.DupMessageID:
			msg = "report already imported (same message id)"
		case battle.DupHash:
			msg = "report already imported (identical text)"
		default:
			msg = "report already imported (same battle date, time, type and opponent)"
		}
		c.JSON(http.StatusConflict, gin.H{"error": msg, "battle_id": dup.ExistingID})
	case errors.Is(err, report.ErrEmpty):
		c.JSON(http.StatusBadRequest, gin.H{"error": "report text is empty"})
	case errors.Is(err, report.ErrUnknownHeadline):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unrecognized report headline"})
	case errors.Is(err, report.ErrBadHeader):
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed report header"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// List handles GET /api/guilds/:id/battles.
func (h *BattleHandler) List(c *gin.Context) {
	guildID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	q := h.db.Where("guild_id = ?", guildID).Order("date DESC, time DESC")
	if t := c.Query("type"); t != "" {
		q = q.Where("type = ?", t)
	}
	var battles []model.Battle
	if err := q.Find(&battles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"battles": battles})
}

// Detail handles GET /api/guilds/:id/battles/:bid with participants.
func (h *BattleHandler) Detail(c *gin.Context) {
	guildID, ok1 := paramID(c, "id")
	battleID, ok2 := paramID(c, "bid")
	if !ok1 || !ok2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var b model.Battle
	if err := h.db.Where("id = ? AND guild_id = ?", battleID, guildID).First(&b).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "battle not found"})
		return
	}
	var participants []model.Participant
	h.db.Where("battle_id = ?", battleID).Order("name ASC").Find(&participants)
	c.JSON(http.StatusOK, gin.H{"battle": b, "participants": participants})
}

// Delete handles DELETE /api/guilds/:id/battles/:bid.
func (h *BattleHandler) Delete(c *gin.Context) {
	guildID, ok1 := paramID(c, "id")
	battleID, ok2 := paramID(c, "bid")
	if !ok1 || !ok2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	err := h.svc.Delete(guildID, battleID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "battle not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		h.stats.Invalidate(c.Request.Context(), guildID)
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	}
}

package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guildboard/guildboard/battle"
	"github.com/guildboard/guildboard/inbox"
	"github.com/guildboard/guildboard/model"
	"github.com/guildboard/guildboard/report"
	"github.com/guildboard/guildboard/stats"
)

// InboxHandler handles the staged-report review flow.
type InboxHandler struct {
	svc    *inbox.Service
	stats  *stats.Cache
	logger *zap.Logger
}

// NewInboxHandler creates a new InboxHandler.
func NewInboxHandler(svc *inbox.Service, sc *stats.Cache, logger *zap.Logger) *InboxHandler {
	return &InboxHandler{svc: svc, stats: sc, logger: logger}
}

type submitInboxRequest struct {
	JobID    string `json:"job_id"    binding:"max=64"`
	FilePath string `json:"file_path" binding:"max=255"`
	Text     string `json:"text"      binding:"required"`
}

// Submit handles POST /api/guilds/:id/inbox. The fetch plumbing calls it
// with already-downloaded report text.
func (h *InboxHandler) Submit(c *gin.Context) {
	guildID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req submitInboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r, err := h.svc.Submit(guildID, req.JobID, req.FilePath, req.Text)
	switch {
	case errors.Is(err, report.ErrEmpty), errors.Is(err, report.ErrUnknownHeadline),
		errors.Is(err, report.ErrBadHeader):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusCreated, r)
	}
}

// List handles GET /api/guilds/:id/inbox?status=pending.
func (h *InboxHandler) List(c *gin.Context) {
	guildID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	status := model.InboxStatus(c.Query("status"))
	switch status {
	case "", model.InboxPending, model.InboxImported, model.InboxRejected:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	reports, err := h.svc.List(guildID, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// Import handles POST /api/inbox/:id/import.
func (h *InboxHandler) Import(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	b, err := h.svc.Import(id)
	var dup *battle.DuplicateError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
	case errors.Is(err, inbox.ErrNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "report already reviewed"})
	case errors.As(err, &dup):
		c.JSON(http.StatusConflict, gin.H{"error": dup.Error(), "battle_id": dup.ExistingID})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		h.stats.Invalidate(c.Request.Context(), b.GuildID)
		c.JSON(http.StatusCreated, b)
	}
}

// Reject handles POST /api/inbox/:id/reject.
func (h *InboxHandler) Reject(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"max=255"`
	}
	_ = c.ShouldBindJSON(&req)

	err := h.svc.Reject(id, req.Reason)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
	case errors.Is(err, inbox.ErrNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "report already reviewed"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "rejected"})
	}
}

// ImportAll handles POST /api/guilds/:id/inbox/import-all.
func (h *InboxHandler) ImportAll(c *gin.Context) {
	guildID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res, err := h.svc.ImportAll(guildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if res.Imported > 0 {
		h.stats.Invalidate(c.Request.Context(), guildID)
	}
	c.JSON(http.StatusOK, res)
}

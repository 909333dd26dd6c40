package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/guildboard/guildboard/audit"
	"github.com/guildboard/guildboard/identity"
	mw "github.com/guildboard/guildboard/middleware"
	"github.com/guildboard/guildboard/stats"
)

// RenameHandler handles player identity renames.
type RenameHandler struct {
	renamer *identity.Renamer
	stats   *stats.Cache
	auditor *audit.Service
	logger  *zap.Logger
}

// NewRenameHandler creates a new RenameHandler.
func NewRenameHandler(renamer *identity.Renamer, sc *stats.Cache, auditor *audit.Service, logger *zap.Logger) *RenameHandler {
	return &RenameHandler{renamer: renamer, stats: sc, auditor: auditor, logger: logger}
}

type renameRequest struct {
	OldName string `json:"old_name" binding:"required,max=64"`
	NewName string `json:"new_name" binding:"required,max=64"`
}

// Rename handles POST /api/guilds/:id/rename. Old and new name must be
// non-empty and distinct; the engine itself does not re-validate equality.
func (h *RenameHandler) Rename(c *gin.Context) {
	started := time.Now()
	guildID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	oldName := strings.TrimSpace(req.OldName)
	newName := strings.TrimSpace(req.NewName)
	if oldName == "" || newName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "old and new name must not be blank"})
		return
	}
	if oldName == newName {
		c.JSON(http.StatusBadRequest, gin.H{"error": "old and new name are identical"})
		return
	}

	res, err := h.renamer.Rename(guildID, oldName, newName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.stats.Invalidate(c.Request.Context(), guildID)
	h.auditor.Log(audit.Entry{
		TraceID:    mw.GetTraceID(c),
		GuildID:    &guildID,
		Action:     "rename",
		Request:    req,
		Response:   res,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(started).Milliseconds()),
	})
	c.JSON(http.StatusOK, res)
}

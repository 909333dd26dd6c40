package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/guildboard/guildboard/audit"
	mw "github.com/guildboard/guildboard/middleware"
	"github.com/guildboard/guildboard/roster"
	"github.com/guildboard/guildboard/stats"
)

// RosterHandler handles roster CSV uploads.
type RosterHandler struct {
	importer *roster.Importer
	stats    *stats.Cache
	auditor  *audit.Service
	logger   *zap.Logger
}

// NewRosterHandler creates a new RosterHandler.
func NewRosterHandler(importer *roster.Importer, sc *stats.Cache, auditor *audit.Service, logger *zap.Logger) *RosterHandler {
	return &RosterHandler{importer: importer, stats: sc, auditor: auditor, logger: logger}
}

// Upload handles POST /api/guilds/:id/roster. Accepts a multipart "file"
// part or the CSV as the raw request body.
func (h *RosterHandler) Upload(c *gin.Context) {
	started := time.Now()
	guildID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	src := c.Request.Body
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
			return
		}
		defer f.Close()
		src = f
	}

	res, err := h.importer.Import(guildID, src)
	switch {
	case errors.Is(err, roster.ErrEmptyFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is empty"})
		return
	case errors.Is(err, roster.ErrMissingNameColumn):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no name column recognized in CSV header"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.stats.Invalidate(c.Request.Context(), guildID)
	h.auditor.Log(audit.Entry{
		TraceID:    mw.GetTraceID(c),
		GuildID:    &guildID,
		Action:     "roster_import",
		Response:   res,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(started).Milliseconds()),
	})
	c.JSON(http.StatusOK, res)
}

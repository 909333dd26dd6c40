package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guildboard/guildboard/model"
	"github.com/guildboard/guildboard/scheduler"
)

// AdminHandler exposes operational endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	db     *gorm.DB
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(db *gorm.DB, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{db: db, sched: sched, logger: logger}
}

// Metrics returns row counts per table.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	counts := gin.H{}
	for name, m := range map[string]interface{}{
		"guilds":        &model.Guild{},
		"members":       &model.Member{},
		"battles":       &model.Battle{},
		"participants":  &model.Participant{},
		"inbox_reports": &model.InboxReport{},
		"audit_logs":    &model.AuditLog{},
	} {
		var n int64
		if err := h.db.Model(m).Count(&n).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		counts[name] = n
	}
	c.JSON(http.StatusOK, counts)
}

// ListSchedulerTasks returns the registered periodic tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tickers": h.sched.ListTickers()})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

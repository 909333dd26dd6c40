package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/guildboard/guildboard/identity"
	"github.com/guildboard/guildboard/model"
)

// MemberHandler handles roster member REST endpoints. Field updates are a
// closed set of typed operations rather than a generic column setter.
type MemberHandler struct {
	db *gorm.DB
}

// NewMemberHandler creates a new MemberHandler.
func NewMemberHandler(db *gorm.DB) *MemberHandler {
	return &MemberHandler{db: db}
}

// List handles GET /api/guilds/:id/members. ?active=1 filters to members
// that are neither fired nor left.
func (h *MemberHandler) List(c *gin.Context) {
	guildID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	q := h.db.Where("guild_id = ?", guildID).Order("name ASC")
	if c.Query("active") == "1" {
		q = q.Where("fired_at IS NULL AND left_at IS NULL")
	}
	var members []model.Member
	if err := q.Find(&members).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

type createMemberRequest struct {
	Name  string `json:"name"  binding:"required,min=1,max=64"`
	Level *int   `json:"level"`
	Rank  string `json:"rank"  binding:"omitempty,oneof=leader officer member other"`
	Notes string `json:"notes" binding:"max=2000"`
}

// Create handles POST /api/guilds/:id/members. A second active member with
// the same normalized name is a conflict.
func (h *MemberHandler) Create(c *gin.Context) {
	guildID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req createMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be blank"})
		return
	}
	rank := req.Rank
	if rank == "" {
		rank = model.RankMember
	}

	m := model.Member{
		GuildID:  guildID,
		Name:     name,
		NormName: identity.Normalize(name),
		Level:    req.Level,
		Rank:     rank,
		Notes:    req.Notes,
	}
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&model.Member{}).
			Where("guild_id = ? AND norm_name = ? AND fired_at IS NULL AND left_at IS NULL",
				guildID, m.NormName).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return errMemberExists
		}
		return tx.Create(&m).Error
	})
	switch {
	case err == errMemberExists:
		c.JSON(http.StatusConflict, gin.H{"error": "an active member with this name already exists"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusCreated, m)
	}
}

// SetNotes handles PUT /api/members/:id/notes.
func (h *MemberHandler) SetNotes(c *gin.Context) {
	var req struct {
		Notes string `json:"notes" binding:"max=2000"`
	}
	h.typedUpdate(c, &req, func(m *model.Member) {
		m.Notes = req.Notes
	})
}

// SetFiredAt handles PUT /api/members/:id/fired. A null date un-fires the
// member; setting one clears a left date, firing takes precedence.
func (h *MemberHandler) SetFiredAt(c *gin.Context) {
	var req struct {
		Date *string `json:"date" binding:"omitempty,max=16"`
	}
	h.typedUpdate(c, &req, func(m *model.Member) {
		m.FiredAt = req.Date
		if m.FiredAt != nil {
			m.LeftAt = nil
		}
	})
}

// SetLeftAt handles PUT /api/members/:id/left. Ignored while the member is
// fired; firing takes precedence.
func (h *MemberHandler) SetLeftAt(c *gin.Context) {
	var req struct {
		Date *string `json:"date" binding:"omitempty,max=16"`
	}
	h.typedUpdate(c, &req, func(m *model.Member) {
		if m.FiredAt == nil {
			m.LeftAt = req.Date
		}
	})
}

// typedUpdate binds the request, loads the member, applies the mutation and
// saves all inside one handler shape shared by the typed setters.
func (h *MemberHandler) typedUpdate(c *gin.Context, req interface{}, apply func(*model.Member)) {
	memberID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var m model.Member
	if err := h.db.First(&m, memberID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	apply(&m)
	if err := h.db.Save(&m).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, m)
}

// Delete handles DELETE /api/members/:id.
func (h *MemberHandler) Delete(c *gin.Context) {
	memberID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.Delete(&model.Member{}, memberID)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

var errMemberExists = errors.New("active member exists")

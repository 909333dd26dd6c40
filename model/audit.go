package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records one mutating operation (import, rename, delete, admin
// action) with its request and response payloads for later diagnosis.
type AuditLog struct {
	ID       int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID  string         `gorm:"size:64;index" json:"trace_id"`
	GuildID  *int64         `gorm:"index" json:"guild_id"`
	Action   string         `gorm:"size:64;index" json:"action"`
	Request  datatypes.JSON `json:"request"`
	Response datatypes.JSON `json:"response"`
	Error    string         `gorm:"size:255" json:"error"`
	IP       string         `gorm:"size:64" json:"ip"`

	DurationMs int       `json:"duration_ms"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

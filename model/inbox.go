package model

import "time"

// InboxStatus is the review state of a staged report. The only legal
// transitions are Pending→Imported and Pending→Rejected; inbox.Service
// enforces them.
type InboxStatus string

const (
	InboxPending  InboxStatus = "pending"
	InboxImported InboxStatus = "imported"
	InboxRejected InboxStatus = "rejected"
)

// InboxReport is a machine-fetched battle report staged for human review.
// Headline fields are extracted at submission time so reviewers can triage
// without opening the raw text.
type InboxReport struct {
	ID      int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	GuildID int64  `gorm:"index;not null" json:"guild_id"`
	JobID   string `gorm:"index;size:64" json:"job_id"`

	FilePath  string `gorm:"size:255" json:"file_path"`
	Date      string `gorm:"size:16" json:"date"`
	Time      string `gorm:"size:8" json:"time"`
	Type      string `gorm:"size:16" json:"type"`
	Opponent  string `gorm:"size:128" json:"opponent"`
	MessageID string `gorm:"size:64" json:"message_id"`

	RawText string      `gorm:"type:text" json:"-"`
	Status  InboxStatus `gorm:"size:16;default:pending;index" json:"status"`
	// BattleID links to the created battle once Status is imported.
	BattleID *int64 `json:"battle_id"`
	// Error records why a bulk import rejected this report.
	Error string `gorm:"size:255" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

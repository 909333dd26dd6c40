package model

import "time"

// Guild is the top-level tenant. Members and battles belong to exactly one
// guild; deleting a guild cascades to both.
type Guild struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Server    string    `gorm:"size:32" json:"server"`
	Tag       string    `gorm:"size:16" json:"tag"`
	Notes     string    `gorm:"type:text" json:"notes"`
	Crest     string    `gorm:"size:255" json:"crest"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

package model

import "time"

// Battle types.
const (
	BattleAttack  = "attack"
	BattleDefense = "defense"
	BattleRaid    = "raid"
)

// Battle is one imported battle report. A battle is a duplicate of an
// existing one when it matches on the natural key (guild, date, time, type,
// opponent), on ContentHash, or on MessageID; the import service rejects it
// on any of the three.
type Battle struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	GuildID  int64  `gorm:"index;not null" json:"guild_id"`
	Type     string `gorm:"size:16;not null" json:"type"`
	Opponent string `gorm:"size:128" json:"opponent"`
	// RaidID is the numeric raid identifier when the report carried one
	// (Opponent then holds the resolved stage name); 0 otherwise.
	RaidID int `json:"raid_id"`

	Date string `gorm:"size:16" json:"date"`
	Time string `gorm:"size:8" json:"time"`

	RawText     string `gorm:"type:text" json:"-"`
	ContentHash string `gorm:"index;size:64" json:"content_hash"`
	// MessageID is set for machine-fetched reports and is the strongest
	// dedup key; empty for pasted reports.
	MessageID string `gorm:"index;size:64" json:"message_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Participant records one player's presence or absence in one battle.
// Created together with its battle; only the rename engine rewrites it
// afterwards.
type Participant struct {
	ID       int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	BattleID int64 `gorm:"index;not null" json:"battle_id"`

	// Name is the display name exactly as it appeared in the report,
	// including any parenthetical server tag.
	Name     string `gorm:"size:64;not null" json:"name"`
	NormName string `gorm:"index;size:64;not null" json:"norm_name"`

	Level        int    `json:"level"`
	ServerTag    string `gorm:"size:16" json:"server_tag"`
	Participated bool   `json:"participated"`
}

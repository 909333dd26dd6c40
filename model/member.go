package model

import "time"

// Member ranks. Stored as strings so a roster export with an unknown rank
// still round-trips; ordering for stats listings lives in RankOrder.
const (
	RankLeader  = "leader"
	RankOfficer = "officer"
	RankMember  = "member"
	RankOther   = "other"
)

// RankOrder returns the sort weight of a rank (leader first). Unknown ranks
// sort last, together with RankOther.
func RankOrder(rank string) int {
	switch rank {
	case RankLeader:
		return 0
	case RankOfficer:
		return 1
	case RankMember:
		return 2
	default:
		return 3
	}
}

// Member is one roster entry of a guild. Date fields are stored as strings
// (ISO "2006-01-02" after import; legacy rows may still hold "02.01.2006")
// because roster exports carry free-form dates that must survive a
// re-export unchanged when they cannot be parsed.
//
// Invariant: at most one active member (FiredAt and LeftAt both nil) per
// guild with a given NormName. The roster importer and the rename engine
// are the only writers that could violate this and both guard against it.
type Member struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	GuildID  int64  `gorm:"index;not null" json:"guild_id"`
	Name     string `gorm:"size:64;not null" json:"name"`
	NormName string `gorm:"index;size:64;not null" json:"norm_name"`

	Level      *int    `json:"level"`
	Rank       string  `gorm:"size:16;default:member" json:"rank"`
	LastOnline *string `gorm:"size:16" json:"last_online"`
	JoinedAt   *string `gorm:"size:16" json:"joined_at"`

	Gold       *int64 `json:"gold"`
	Mentor     *int64 `json:"mentor"`
	KnightHall *int64 `json:"knight_hall"`
	GuildPet   *int64 `json:"guild_pet"`

	FiredAt *string `gorm:"size:16" json:"fired_at"`
	LeftAt  *string `gorm:"size:16" json:"left_at"`
	Notes   string  `gorm:"type:text" json:"notes"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Active reports whether the member is neither fired nor left.
func (m *Member) Active() bool {
	return m.FiredAt == nil && m.LeftAt == nil
}

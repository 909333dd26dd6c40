// Package battle persists parsed battle reports with duplicate detection.
package battle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guildboard/guildboard/identity"
	"github.com/guildboard/guildboard/model"
	"github.com/guildboard/guildboard/report"
)

// Duplicate reasons, surfaced so operators can tell how a rejected report
// matched an existing one.
const (
	DupNaturalKey = "natural_key"
	DupHash       = "hash"
	DupMessageID  = "message_id"
)

// DuplicateError rejects an import that matches an already stored battle.
type DuplicateError struct {
	Reason     string
	ExistingID int64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("battle: duplicate by %s of battle %d", e.Reason, e.ExistingID)
}

// Service imports, lists and deletes battles.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a battle Service using the wall clock.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger, now: time.Now}
}

// NewServiceWithClock creates a Service with an injected clock.
func NewServiceWithClock(db *gorm.DB, logger *zap.Logger, now func() time.Time) *Service {
	return &Service{db: db, logger: logger, now: now}
}

// ImportText parses raw report text and stores the battle with its
// participants atomically. Pasted reports carry no timestamp, so date and
// tm (both optional) override; when empty the fetched header values or the
// current clock are used. Returns a *DuplicateError when the battle matches
// an existing one by natural key, content hash or message id.
func (s *Service) ImportText(guildID int64, rawText, date, tm string) (*model.Battle, error) {
	rep, err := report.Parse(rawText)
	if err != nil {
		return nil, err
	}
	return s.importParsed(s.db, guildID, rep, rawText, date, tm)
}

// ImportParsedTx stores an already parsed report inside the given
// transaction; the inbox import flow uses it so the staging-row update and
// the battle insert commit together.
func (s *Service) ImportParsedTx(tx *gorm.DB, guildID int64, rep *report.Report, rawText string) (*model.Battle, error) {
	return s.importParsed(tx, guildID, rep, rawText, "", "")
}

func (s *Service) importParsed(db *gorm.DB, guildID int64, rep *report.Report, rawText, date, tm string) (*model.Battle, error) {
	if date == "" {
		date = rep.Date
	}
	if tm == "" {
		tm = rep.Time
	}
	if date == "" {
		date = s.now().Format("02.01.2006")
	}
	if tm == "" {
		tm = s.now().Format("15:04")
	}

	sum := sha256.Sum256([]byte(rawText))
	hash := hex.EncodeToString(sum[:])

	b := &model.Battle{
		GuildID:     guildID,
		Type:        rep.Type,
		Opponent:    rep.Opponent,
		RaidID:      rep.RaidID,
		Date:        date,
		Time:        tm,
		RawText:     rawText,
		ContentHash: hash,
		MessageID:   rep.MessageID,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := s.checkDuplicate(tx, b); err != nil {
			return err
		}
		if err := tx.Create(b).Error; err != nil {
			return err
		}
		for _, p := range rep.Participants {
			row := model.Participant{
				BattleID:     b.ID,
				Name:         p.Name,
				NormName:     identity.Normalize(p.Name),
				Level:        p.Level,
				ServerTag:    p.ServerTag,
				Participated: p.Participated,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("battle imported",
		zap.Int64("guild_id", guildID),
		zap.Int64("battle_id", b.ID),
		zap.String("type", b.Type),
		zap.String("opponent", b.Opponent),
		zap.Int("participants", len(rep.Participants)))
	return b, nil
}

// checkDuplicate runs the three dedup checks in order of strength inside
// the import transaction, so a racing identical import cannot slip between
// check and insert.
func (s *Service) checkDuplicate(tx *gorm.DB, b *model.Battle) error {
	var existing model.Battle

	if b.MessageID != "" {
		err := tx.Where("guild_id = ? AND message_id = ?", b.GuildID, b.MessageID).
			First(&existing).Error
		if err == nil {
			return &DuplicateError{Reason: DupMessageID, ExistingID: existing.ID}
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	err := tx.Where("guild_id = ? AND content_hash = ?", b.GuildID, b.ContentHash).
		First(&existing).Error
	if err == nil {
		return &DuplicateError{Reason: DupHash, ExistingID: existing.ID}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	err = tx.Where("guild_id = ? AND date = ? AND time = ? AND type = ? AND opponent = ?",
		b.GuildID, b.Date, b.Time, b.Type, b.Opponent).First(&existing).Error
	if err == nil {
		return &DuplicateError{Reason: DupNaturalKey, ExistingID: existing.ID}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

// Delete removes a battle and its participants atomically.
func (s *Service) Delete(guildID, battleID int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var b model.Battle
		if err := tx.Where("id = ? AND guild_id = ?", battleID, guildID).First(&b).Error; err != nil {
			return err
		}
		if err := tx.Where("battle_id = ?", battleID).Delete(&model.Participant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Battle{}, battleID).Error
	})
}

// DeleteAllForGuild removes every battle of a guild with its participants.
// Used by guild deletion.
func DeleteAllForGuild(tx *gorm.DB, guildID int64) error {
	battleIDs := tx.Model(&model.Battle{}).Select("id").Where("guild_id = ?", guildID)
	if err := tx.Where("battle_id IN (?)", battleIDs).Delete(&model.Participant{}).Error; err != nil {
		return err
	}
	return tx.Where("guild_id = ?", guildID).Delete(&model.Battle{}).Error
}

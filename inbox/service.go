// Package inbox stages machine-fetched battle reports for human review
// before they become battles.
package inbox

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guildboard/guildboard/battle"
	"github.com/guildboard/guildboard/model"
	"github.com/guildboard/guildboard/report"
)

// ErrNotPending is returned when an import or reject targets a report that
// already left the pending state. Imported and rejected are terminal.
var ErrNotPending = errors.New("inbox: report is not pending")

// BulkResult summarizes an import-all run.
type BulkResult struct {
	Imported int `json:"imported"`
	Rejected int `json:"rejected"`
}

// Service manages staged reports and their status transitions.
type Service struct {
	db      *gorm.DB
	battles *battle.Service
	logger  *zap.Logger
}

// NewService creates an inbox Service.
func NewService(db *gorm.DB, battles *battle.Service, logger *zap.Logger) *Service {
	return &Service{db: db, battles: battles, logger: logger}
}

// Submit parses the headline fields of fetched report text and stages it as
// pending. The text itself is kept verbatim for the later import.
func (s *Service) Submit(guildID int64, jobID, filePath, rawText string) (*model.InboxReport, error) {
	rep, err := report.Parse(rawText)
	if err != nil {
		return nil, err
	}
	r := &model.InboxReport{
		GuildID:   guildID,
		JobID:     jobID,
		FilePath:  filePath,
		Date:      rep.Date,
		Time:      rep.Time,
		Type:      rep.Type,
		Opponent:  rep.Opponent,
		MessageID: rep.MessageID,
		RawText:   rawText,
		Status:    model.InboxPending,
	}
	if err := s.db.Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// List returns a guild's staged reports, optionally filtered by status.
func (s *Service) List(guildID int64, status model.InboxStatus) ([]model.InboxReport, error) {
	q := s.db.Where("guild_id = ?", guildID).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []model.InboxReport
	return out, q.Find(&out).Error
}

// Import turns one pending report into a battle. The staging-row update and
// the battle insert commit in the same transaction, so a failed import
// leaves the report pending.
func (s *Service) Import(id int64) (*model.Battle, error) {
	var b *model.Battle
	err := s.db.Transaction(func(tx *gorm.DB) error {
		r, err := lockPending(tx, id)
		if err != nil {
			return err
		}
		rep, err := report.Parse(r.RawText)
		if err != nil {
			return err
		}
		b, err = s.battles.ImportParsedTx(tx, r.GuildID, rep, r.RawText)
		if err != nil {
			return err
		}
		return tx.Model(r).Updates(map[string]interface{}{
			"status":    model.InboxImported,
			"battle_id": b.ID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Reject marks one pending report as rejected.
func (s *Service) Reject(id int64, reason string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		r, err := lockPending(tx, id)
		if err != nil {
			return err
		}
		return tx.Model(r).Updates(map[string]interface{}{
			"status": model.InboxRejected,
			"error":  reason,
		}).Error
	})
}

// ImportAll imports every pending report of a guild. Duplicates are marked
// rejected with the dedup reason; other failures abort. Each report commits
// independently so one bad report does not roll back the rest.
func (s *Service) ImportAll(guildID int64) (BulkResult, error) {
	var pending []model.InboxReport
	if err := s.db.Where("guild_id = ? AND status = ?", guildID, model.InboxPending).
		Order("created_at ASC").Find(&pending).Error; err != nil {
		return BulkResult{}, err
	}

	var res BulkResult
	for _, r := range pending {
		_, err := s.Import(r.ID)
		if err == nil {
			res.Imported++
			continue
		}
		var dup *battle.DuplicateError
		if errors.As(err, &dup) {
			if rerr := s.Reject(r.ID, fmt.Sprintf("duplicate by %s", dup.Reason)); rerr != nil {
				return res, rerr
			}
			res.Rejected++
			continue
		}
		return res, err
	}
	s.logger.Info("inbox bulk import",
		zap.Int64("guild_id", guildID),
		zap.Int("imported", res.Imported),
		zap.Int("rejected", res.Rejected))
	return res, nil
}

// PurgeRejected deletes rejected reports older than the given number of
// days; the scheduler calls it periodically.
func (s *Service) PurgeRejected(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	res := s.db.Where("status = ? AND updated_at < ?", model.InboxRejected, cutoff).
		Delete(&model.InboxReport{})
	return res.RowsAffected, res.Error
}

// lockPending loads a report and verifies it is still pending.
func lockPending(tx *gorm.DB, id int64) (*model.InboxReport, error) {
	var r model.InboxReport
	if err := tx.First(&r, id).Error; err != nil {
		return nil, err
	}
	if r.Status != model.InboxPending {
		return nil, ErrNotPending
	}
	return &r, nil
}

package identity

import (
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guildboard/guildboard/model"
)

// RenameResult reports what a rename touched.
type RenameResult struct {
	UpdatedParticipants int64 `json:"updated_participants"`
	UpdatedMembers      int   `json:"updated_members"`
	DeletedMembers      int   `json:"deleted_members"`
}

// Renamer rewrites historical participant records and the roster entry of a
// guild when a player changes their display name.
type Renamer struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRenamer creates a Renamer.
func NewRenamer(db *gorm.DB, logger *zap.Logger) *Renamer {
	return &Renamer{db: db, logger: logger}
}

// Rename rewrites every participant row of the guild's battles whose
// normalized key matches oldName, then renames or merges the matching
// roster entries. The whole operation runs in one transaction. Renaming an
// identity with no matching records is a no-op success with zero counts.
//
// The caller must validate that oldName and newName are non-empty and
// distinct.
func (r *Renamer) Rename(guildID int64, oldName, newName string) (RenameResult, error) {
	oldNorm := Normalize(oldName)
	newNorm := Normalize(newName)
	newTag := ExtractTag(newName)

	var res RenameResult
	err := r.db.Transaction(func(tx *gorm.DB) error {
		// Set-based rewrite of all matching participants across the
		// guild's battles.
		battleIDs := tx.Model(&model.Battle{}).Select("id").Where("guild_id = ?", guildID)
		upd := tx.Model(&model.Participant{}).
			Where("norm_name = ? AND battle_id IN (?)", oldNorm, battleIDs).
			Updates(map[string]interface{}{
				"name":       newName,
				"norm_name":  newNorm,
				"server_tag": newTag,
			})
		if upd.Error != nil {
			return upd.Error
		}
		res.UpdatedParticipants = upd.RowsAffected

		// The merge strategy is decided once, up front: does an active
		// member already carry the new name?
		var existing int64
		if err := tx.Model(&model.Member{}).
			Where("guild_id = ? AND LOWER(name) = ? AND fired_at IS NULL AND left_at IS NULL",
				guildID, strings.ToLower(newName)).
			Count(&existing).Error; err != nil {
			return err
		}
		newExists := existing > 0

		// By invariant there is at most one active old-name member, but
		// stale rows from older imports may still match; handle them all
		// so the invariant holds afterwards.
		var stale []model.Member
		if err := tx.Where("guild_id = ? AND norm_name = ?", guildID, oldNorm).
			Find(&stale).Error; err != nil {
			return err
		}
		for _, m := range stale {
			if strings.EqualFold(m.Name, newName) {
				// Already carries the new name; this row is the
				// merge target, not a stale entry.
				newExists = true
				continue
			}
			if newExists {
				// Merging into an existing member drops any
				// member-level fields unique to this row; only the
				// participant history migrated above survives.
				if err := tx.Delete(&model.Member{}, m.ID).Error; err != nil {
					return err
				}
				res.DeletedMembers++
				continue
			}
			if err := tx.Model(&model.Member{}).Where("id = ?", m.ID).
				Updates(map[string]interface{}{
					"name":      newName,
					"norm_name": newNorm,
				}).Error; err != nil {
				return err
			}
			res.UpdatedMembers++
			newExists = true
		}
		return nil
	})
	if err != nil {
		return RenameResult{}, err
	}

	if res.DeletedMembers > 0 {
		r.logger.Warn("rename merged into existing member, dropped roster fields of old entry",
			zap.Int64("guild_id", guildID),
			zap.String("old_name", oldName),
			zap.String("new_name", newName),
			zap.Int("deleted_members", res.DeletedMembers))
	}
	r.logger.Info("rename applied",
		zap.Int64("guild_id", guildID),
		zap.String("old_name", oldName),
		zap.String("new_name", newName),
		zap.Int64("participants", res.UpdatedParticipants),
		zap.Int("members_renamed", res.UpdatedMembers),
		zap.Int("members_deleted", res.DeletedMembers))
	return res, nil
}

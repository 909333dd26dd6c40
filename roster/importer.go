// Package roster reconciles externally exported member rosters (CSV) with
// the persisted member records of a guild.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guildboard/guildboard/identity"
	"github.com/guildboard/guildboard/model"
)

// Import failures.
var (
	ErrEmptyFile         = errors.New("roster: empty file")
	ErrMissingNameColumn = errors.New("roster: no name column recognized")
)

// Result counts what one import run did.
type Result struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// Recognized roster columns.
const (
	colName        = "name"
	colRank        = "rank"
	colLevel       = "level"
	colLastOnline  = "last_online"
	colJoined      = "joined"
	colGold        = "gold"
	colMentor      = "mentor"
	colKnightHall  = "knight_hall"
	colGuildPet    = "guild_pet"
	colDaysOffline = "days_offline"
	colFired       = "fired"
	colLeft        = "left"
	colNotes       = "notes"
)

// headerSynonyms maps normalized header tokens (lowercased, punctuation
// stripped, umlauts transliterated) to column keys. The game exports German
// headers; tools re-exporting them sometimes anglicize.
var headerSynonyms = map[string]string{
	"name":          colName,
	"spielername":   colName,
	"mitglied":      colName,
	"member":        colName,
	"rang":          colRank,
	"rank":          colRank,
	"stufe":         colLevel,
	"level":         colLevel,
	"lvl":           colLevel,
	"zuletztonline": colLastOnline,
	"lastonline":    colLastOnline,
	"onlinezuletzt": colLastOnline,
	"beigetreten":   colJoined,
	"dabeiseit":     colJoined,
	"joined":        colJoined,
	"gold":          colGold,
	"goldspenden":   colGold,
	"schatzkammer":  colGold,
	"treasure":      colGold,
	"mentor":        colMentor,
	"mentorpunkte":  colMentor,
	"ausbilder":     colMentor,
	"ritterhalle":   colKnightHall,
	"knighthall":    colKnightHall,
	"gildentier":    colGuildPet,
	"gildenpet":     colGuildPet,
	"pet":           colGuildPet,
	"tageoffline":   colDaysOffline,
	"offlinetage":   colDaysOffline,
	"daysoffline":   colDaysOffline,
	"gefeuert":      colFired,
	"entlassen":     colFired,
	"fired":         colFired,
	"ausgetreten":   colLeft,
	"verlassen":     colLeft,
	"left":          colLeft,
	"notizen":       colNotes,
	"notiz":         colNotes,
	"notes":         colNotes,
	"bemerkung":     colNotes,
}

// Importer merges roster CSV exports into persisted member records.
type Importer struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewImporter creates an Importer using the wall clock.
func NewImporter(db *gorm.DB, logger *zap.Logger) *Importer {
	return &Importer{db: db, logger: logger, now: time.Now}
}

// NewImporterWithClock creates an Importer with an injected clock, used by
// tests and anything replaying historical exports.
func NewImporterWithClock(db *gorm.DB, logger *zap.Logger, now func() time.Time) *Importer {
	return &Importer{db: db, logger: logger, now: now}
}

// row is one parsed CSV data row; field pointers are nil when the column
// was absent from the file.
type row struct {
	name       string
	rank       *string
	level      *string
	lastOnline *string
	joined     *string
	gold       *string
	mentor     *string
	knightHall *string
	guildPet   *string
	fired      *string
	left       *string
	notes      *string
}

// Import parses the CSV and reconciles it against the guild's members in
// one transaction. Columns present in the file overwrite stored values
// outright (empty cell clears the field), except rank, notes, fired and
// left, where a non-empty CSV value wins and an empty one keeps the stored
// value. A fired date always clears the left date.
func (im *Importer) Import(guildID int64, r io.Reader) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("roster: read: %w", err)
	}
	rows, res, err := im.parseCSV(data)
	if err != nil {
		return Result{}, err
	}

	err = im.db.Transaction(func(tx *gorm.DB) error {
		for _, rw := range rows {
			updated, err := im.reconcileRow(tx, guildID, rw)
			if err != nil {
				return err
			}
			if updated {
				res.Updated++
			} else {
				res.Inserted++
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	im.logger.Info("roster imported",
		zap.Int64("guild_id", guildID),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// parseCSV reads the full file into rows, applying encoding normalization,
// delimiter detection, header matching and the per-row skip rules. The
// skipped count accumulates in the returned Result.
func (im *Importer) parseCSV(data []byte) ([]row, Result, error) {
	var res Result

	data = normalizeEncoding(data)
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, res, ErrEmptyFile
	}

	firstLine, _, _ := strings.Cut(text, "\n")
	delim := ','
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		delim = ';'
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, res, ErrEmptyFile
	}
	cols := make(map[int]string, len(header))
	hasName := false
	for i, h := range header {
		if key, ok := headerSynonyms[normalizeHeader(h)]; ok {
			cols[i] = key
			if key == colName {
				hasName = true
			}
		}
	}
	if !hasName {
		return nil, res, ErrMissingNameColumn
	}

	var rows []row
	seen := make(map[string]bool)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Structurally broken line; best-effort skip.
			res.Skipped++
			continue
		}
		rw := row{}
		for i, cell := range record {
			key, ok := cols[i]
			if !ok {
				continue
			}
			val := strings.TrimSpace(cell)
			switch key {
			case colName:
				rw.name = cleanName(val)
			case colRank:
				rw.rank = &val
			case colLevel:
				rw.level = &val
			case colLastOnline:
				rw.lastOnline = &val
			case colJoined:
				rw.joined = &val
			case colGold:
				rw.gold = &val
			case colMentor:
				rw.mentor = &val
			case colKnightHall:
				rw.knightHall = &val
			case colGuildPet:
				rw.guildPet = &val
			case colDaysOffline:
				// Only used to derive last-online when the export
				// lacks that column.
				if rw.lastOnline == nil && val != "" {
					if days, err := strconv.Atoi(val); err == nil {
						iso := im.now().AddDate(0, 0, -days).Format("2006-01-02")
						rw.lastOnline = &iso
					}
				}
			case colFired:
				rw.fired = &val
			case colLeft:
				rw.left = &val
			case colNotes:
				rw.notes = &val
			}
		}
		if rw.name == "" {
			res.Skipped++
			continue
		}
		lower := strings.ToLower(rw.name)
		if seen[lower] {
			res.Skipped++
			continue
		}
		seen[lower] = true
		rows = append(rows, rw)
	}
	return rows, res, nil
}

// reconcileRow inserts or updates one member. Returns true when an existing
// member was updated.
func (im *Importer) reconcileRow(tx *gorm.DB, guildID int64, rw row) (bool, error) {
	var existing model.Member
	err := tx.Where("guild_id = ? AND name = ?", guildID, rw.name).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		m := model.Member{
			GuildID:  guildID,
			Name:     rw.name,
			NormName: identity.Normalize(rw.name),
			Rank:     model.RankMember,
		}
		applyOverwrite(&m, rw)
		applyKeepOld(&m, rw)
		enforceFiredPrecedence(&m)
		return false, tx.Create(&m).Error
	case err != nil:
		return false, err
	}

	applyOverwrite(&existing, rw)
	applyKeepOld(&existing, rw)
	enforceFiredPrecedence(&existing)
	// Save writes all fields, which is what the overwrite-to-null rule
	// needs.
	return true, tx.Save(&existing).Error
}

// applyOverwrite applies the columns that overwrite outright: a present
// column replaces the stored value even with null.
func applyOverwrite(m *model.Member, rw row) {
	if rw.level != nil {
		m.Level = parseIntPtr(*rw.level)
	}
	if rw.lastOnline != nil {
		m.LastOnline = datePtr(*rw.lastOnline)
	}
	if rw.joined != nil {
		m.JoinedAt = datePtr(*rw.joined)
	}
	if rw.gold != nil {
		m.Gold = parseInt64Ptr(*rw.gold)
	}
	if rw.mentor != nil {
		m.Mentor = parseInt64Ptr(*rw.mentor)
	}
	if rw.knightHall != nil {
		m.KnightHall = parseInt64Ptr(*rw.knightHall)
	}
	if rw.guildPet != nil {
		m.GuildPet = parseInt64Ptr(*rw.guildPet)
	}
}

// applyKeepOld applies the columns where a non-empty CSV value wins and an
// empty one keeps the stored value.
func applyKeepOld(m *model.Member, rw row) {
	if rw.rank != nil && *rw.rank != "" {
		m.Rank = normalizeRank(*rw.rank)
	}
	if rw.notes != nil && *rw.notes != "" {
		m.Notes = *rw.notes
	}
	if rw.fired != nil && *rw.fired != "" {
		m.FiredAt = datePtr(*rw.fired)
	}
	if rw.left != nil && *rw.left != "" {
		m.LeftAt = datePtr(*rw.left)
	}
}

// enforceFiredPrecedence clears the left date when both are set; a firing
// supersedes a voluntary leave.
func enforceFiredPrecedence(m *model.Member) {
	if m.FiredAt != nil && m.LeftAt != nil {
		m.LeftAt = nil
	}
}

// normalizeHeader maps a raw header cell to its synonym-table token.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\uFEFF")
	h = strings.ToLower(h)
	h = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss").Replace(h)
	var b strings.Builder
	for _, r := range h {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// cleanName strips control characters, collapses internal whitespace and
// trims.
func cleanName(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// normalizeRank maps localized rank labels onto the rank enum.
func normalizeRank(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "anführer", "anfuehrer", "leader", "gildenleiter":
		return model.RankLeader
	case "offizier", "officer":
		return model.RankOfficer
	case "mitglied", "member":
		return model.RankMember
	default:
		return model.RankOther
	}
}

// convertDate turns DD.MM.YYYY into ISO YYYY-MM-DD; anything unparseable
// passes through unchanged.
func convertDate(s string) string {
	if t, err := time.Parse("02.01.2006", s); err == nil {
		return t.Format("2006-01-02")
	}
	return s
}

func datePtr(s string) *string {
	if s == "" {
		return nil
	}
	iso := convertDate(s)
	return &iso
}

func parseIntPtr(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func parseInt64Ptr(s string) *int64 {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

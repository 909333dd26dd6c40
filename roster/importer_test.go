package roster_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"gorm.io/gorm"

	"github.com/guildboard/guildboard/model"
	"github.com/guildboard/guildboard/roster"
	"github.com/guildboard/guildboard/testutil"
)

func setup(t *testing.T) (*gorm.DB, *roster.Importer, int64) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	g := model.Guild{Name: "Nachtwache"}
	require.NoError(t, db.Create(&g).Error)
	now := func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) }
	return db, roster.NewImporterWithClock(db, zap.NewNop(), now), g.ID
}

func importCSV(t *testing.T, imp *roster.Importer, guildID int64, csv string) roster.Result {
	t.Helper()
	res, err := imp.Import(guildID, strings.NewReader(csv))
	require.NoError(t, err)
	return res
}

func getMember(t *testing.T, db *gorm.DB, guildID int64, name string) model.Member {
	t.Helper()
	var m model.Member
	require.NoError(t, db.Where("guild_id = ? AND name = ?", guildID, name).First(&m).Error)
	return m
}

func TestImport_InsertsNewMembers(t *testing.T) {
	db, imp, guildID := setup(t)
	res := importCSV(t, imp, guildID, "Name,Rang,Stufe\nAlice,Offizier,100\nBob,Mitglied,80\n")
	assert.Equal(t, roster.Result{Inserted: 2}, res)

	alice := getMember(t, db, guildID, "Alice")
	assert.Equal(t, model.RankOfficer, alice.Rank)
	require.NotNil(t, alice.Level)
	assert.Equal(t, 100, *alice.Level)
	assert.Equal(t, "alice", alice.NormName)
}

func TestImport_SemicolonDelimiter(t *testing.T) {
	_, imp, guildID := setup(t)
	res := importCSV(t, imp, guildID, "Name;Stufe\nAlice;100\n")
	assert.Equal(t, 1, res.Inserted)
}

func TestImport_MissingNameColumn(t *testing.T) {
	_, imp, guildID := setup(t)
	_, err := imp.Import(guildID, strings.NewReader("Rang,Stufe\nOffizier,100\n"))
	assert.ErrorIs(t, err, roster.ErrMissingNameColumn)
}

func TestImport_EmptyFile(t *testing.T) {
	_, imp, guildID := setup(t)
	_, err := imp.Import(guildID, strings.NewReader("   \n"))
	assert.ErrorIs(t, err, roster.ErrEmptyFile)
}

func TestImport_SkipsBlankAndDuplicateNames(t *testing.T) {
	db, imp, guildID := setup(t)
	res := importCSV(t, imp, guildID, "Name,Stufe\nAlice,100\n,50\nALICE,90\n")
	assert.Equal(t, roster.Result{Inserted: 1, Skipped: 2}, res)

	// First occurrence wins.
	alice := getMember(t, db, guildID, "Alice")
	assert.Equal(t, 100, *alice.Level)
}

func TestImport_UmlautHeaderSynonyms(t *testing.T) {
	db, imp, guildID := setup(t)
	importCSV(t, imp, guildID, "Spielername;Gefeuert\nAlice;01.02.2026\n")
	alice := getMember(t, db, guildID, "Alice")
	require.NotNil(t, alice.FiredAt)
	assert.Equal(t, "2026-02-01", *alice.FiredAt)
}

func TestImport_DateConversion(t *testing.T) {
	db, imp, guildID := setup(t)
	importCSV(t, imp, guildID, "Name,Zuletzt online,Beigetreten\nAlice,15.03.2026,kaputt\n")
	alice := getMember(t, db, guildID, "Alice")
	require.NotNil(t, alice.LastOnline)
	assert.Equal(t, "2026-03-15", *alice.LastOnline)
	// Unparseable dates pass through unchanged.
	require.NotNil(t, alice.JoinedAt)
	assert.Equal(t, "kaputt", *alice.JoinedAt)
}

func TestImport_NonDestructiveNotesUpdate(t *testing.T) {
	db, imp, guildID := setup(t)
	importCSV(t, imp, guildID, "Name,Notizen\nAlice,VIP\n")

	// Empty notes cell keeps the stored value.
	res := importCSV(t, imp, guildID, "Name,Notizen\nAlice,\n")
	assert.Equal(t, roster.Result{Updated: 1}, res)
	assert.Equal(t, "VIP", getMember(t, db, guildID, "Alice").Notes)

	// Non-empty overwrites.
	importCSV(t, imp, guildID, "Name,Notizen\nAlice,Neue Notiz\n")
	assert.Equal(t, "Neue Notiz", getMember(t, db, guildID, "Alice").Notes)
}

func TestImport_NumericColumnsOverwriteToNull(t *testing.T) {
	db, imp, guildID := setup(t)
	importCSV(t, imp, guildID, "Name,Gold\nAlice,500\n")
	require.NotNil(t, getMember(t, db, guildID, "Alice").Gold)

	importCSV(t, imp, guildID, "Name,Gold\nAlice,\n")
	assert.Nil(t, getMember(t, db, guildID, "Alice").Gold)
}

func TestImport_AbsentColumnsPreserved(t *testing.T) {
	db, imp, guildID := setup(t)
	importCSV(t, imp, guildID, "Name,Gold\nAlice,500\n")

	// Re-import without the gold column leaves it untouched.
	importCSV(t, imp, guildID, "Name,Stufe\nAlice,100\n")
	alice := getMember(t, db, guildID, "Alice")
	require.NotNil(t, alice.Gold)
	assert.EqualValues(t, 500, *alice.Gold)
}

func TestImport_FiredWinsOverLeft(t *testing.T) {
	db, imp, guildID := setup(t)
	importCSV(t, imp, guildID, "Name,Gefeuert,Ausgetreten\nAlice,01.02.2026,05.02.2026\n")
	alice := getMember(t, db, guildID, "Alice")
	require.NotNil(t, alice.FiredAt)
	assert.Nil(t, alice.LeftAt)
}

func TestImport_DaysOfflineDerivesLastOnline(t *testing.T) {
	db, imp, guildID := setup(t)
	importCSV(t, imp, guildID, "Name,Tage offline\nAlice,10\n")
	alice := getMember(t, db, guildID, "Alice")
	require.NotNil(t, alice.LastOnline)
	assert.Equal(t, "2026-08-19", *alice.LastOnline)
}

func TestImport_Windows1252Transcoded(t *testing.T) {
	db, imp, guildID := setup(t)
	enc, err := charmap.Windows1252.NewEncoder().String("Name\nJörg\n")
	require.NoError(t, err)
	res, err := imp.Import(guildID, strings.NewReader(enc))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	getMember(t, db, guildID, "Jörg")
}

func TestImport_CleansControlCharsAndWhitespace(t *testing.T) {
	db, imp, guildID := setup(t)
	importCSV(t, imp, guildID, "Name\n\x01 Alice   Zwei \n")
	getMember(t, db, guildID, "Alice Zwei")
}

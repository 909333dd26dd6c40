package inbox_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guildboard/guildboard/battle"
	"github.com/guildboard/guildboard/inbox"
	"github.com/guildboard/guildboard/model"
	"github.com/guildboard/guildboard/testutil"
)

func newService(t *testing.T) (*gorm.DB, *inbox.Service, int64) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	g := model.Guild{Name: "Nachtwache"}
	require.NoError(t, db.Create(&g).Error)
	battles := battle.NewService(db, zap.NewNop())
	return db, inbox.NewService(db, battles, zap.NewNop()), g.ID
}

func fetchedReport(msgID, date string) string {
	return fmt.Sprintf(`=== GUILDBOARD REPORT ===
Gilde: Nachtwache
Gegner: Sturmklingen
Typ: Angriff
Datum: %s
Zeit: 20:00
Nachricht: %s
=== END HEADER ===
Mitglieder, die teilgenommen haben:
Alice (Stufe 100)
`, date, msgID)
}

func TestSubmit_StagesPending(t *testing.T) {
	_, svc, guildID := newService(t)

	r, err := svc.Submit(guildID, "job-1", "/spool/r1.txt", fetchedReport("msg-1", "01.08.2026"))
	require.NoError(t, err)
	assert.Equal(t, model.InboxPending, r.Status)
	assert.Equal(t, model.BattleAttack, r.Type)
	assert.Equal(t, "Sturmklingen", r.Opponent)
	assert.Equal(t, "msg-1", r.MessageID)
	assert.Nil(t, r.BattleID)
}

func TestSubmit_RejectsUnparseableText(t *testing.T) {
	_, svc, guildID := newService(t)
	_, err := svc.Submit(guildID, "job-1", "", "kompletter Unsinn")
	assert.Error(t, err)
}

func TestImport_PendingBecomesImported(t *testing.T) {
	db, svc, guildID := newService(t)
	r, err := svc.Submit(guildID, "job-1", "", fetchedReport("msg-1", "01.08.2026"))
	require.NoError(t, err)

	b, err := svc.Import(r.ID)
	require.NoError(t, err)

	var after model.InboxReport
	require.NoError(t, db.First(&after, r.ID).Error)
	assert.Equal(t, model.InboxImported, after.Status)
	require.NotNil(t, after.BattleID)
	assert.Equal(t, b.ID, *after.BattleID)
}

func TestImport_TerminalStatesStayTerminal(t *testing.T) {
	_, svc, guildID := newService(t)
	r, err := svc.Submit(guildID, "job-1", "", fetchedReport("msg-1", "01.08.2026"))
	require.NoError(t, err)

	_, err = svc.Import(r.ID)
	require.NoError(t, err)

	_, err = svc.Import(r.ID)
	assert.ErrorIs(t, err, inbox.ErrNotPending)
	err = svc.Reject(r.ID, "zu spät")
	assert.ErrorIs(t, err, inbox.ErrNotPending)
}

func TestReject_RecordsReason(t *testing.T) {
	db, svc, guildID := newService(t)
	r, err := svc.Submit(guildID, "job-1", "", fetchedReport("msg-1", "01.08.2026"))
	require.NoError(t, err)

	require.NoError(t, svc.Reject(r.ID, "unlesbar"))

	var after model.InboxReport
	require.NoError(t, db.First(&after, r.ID).Error)
	assert.Equal(t, model.InboxRejected, after.Status)
	assert.Equal(t, "unlesbar", after.Error)

	_, err = svc.Import(r.ID)
	assert.ErrorIs(t, err, inbox.ErrNotPending)
}

func TestImport_DuplicateLeavesReportPending(t *testing.T) {
	db, svc, guildID := newService(t)
	r1, err := svc.Submit(guildID, "job-1", "", fetchedReport("msg-1", "01.08.2026"))
	require.NoError(t, err)
	r2, err := svc.Submit(guildID, "job-2", "", fetchedReport("msg-1", "01.08.2026"))
	require.NoError(t, err)

	_, err = svc.Import(r1.ID)
	require.NoError(t, err)

	_, err = svc.Import(r2.ID)
	var dup *battle.DuplicateError
	require.ErrorAs(t, err, &dup)

	var after model.InboxReport
	require.NoError(t, db.First(&after, r2.ID).Error)
	assert.Equal(t, model.InboxPending, after.Status)
}

func TestImportAll_DuplicatesBecomeRejected(t *testing.T) {
	db, svc, guildID := newService(t)
	_, err := svc.Submit(guildID, "job-1", "", fetchedReport("msg-1", "01.08.2026"))
	require.NoError(t, err)
	r2, err := svc.Submit(guildID, "job-2", "", fetchedReport("msg-1", "01.08.2026"))
	require.NoError(t, err)
	_, err = svc.Submit(guildID, "job-3", "", fetchedReport("msg-2", "02.08.2026"))
	require.NoError(t, err)

	res, err := svc.ImportAll(guildID)
	require.NoError(t, err)
	assert.Equal(t, inbox.BulkResult{Imported: 2, Rejected: 1}, res)

	var after model.InboxReport
	require.NoError(t, db.First(&after, r2.ID).Error)
	assert.Equal(t, model.InboxRejected, after.Status)
	assert.Contains(t, after.Error, "duplicate")

	var battles int64
	require.NoError(t, db.Model(&model.Battle{}).Count(&battles).Error)
	assert.EqualValues(t, 2, battles)
}

func TestList_FiltersByStatus(t *testing.T) {
	_, svc, guildID := newService(t)
	_, err := svc.Submit(guildID, "job-1", "", fetchedReport("msg-1", "01.08.2026"))
	require.NoError(t, err)
	r2, err := svc.Submit(guildID, "job-2", "", fetchedReport("msg-2", "02.08.2026"))
	require.NoError(t, err)
	require.NoError(t, svc.Reject(r2.ID, "kaputt"))

	all, err := svc.List(guildID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := svc.List(guildID, model.InboxPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "msg-1", pending[0].MessageID)
}

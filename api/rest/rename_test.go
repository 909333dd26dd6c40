package rest_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildboard/guildboard/model"
)

func TestRename_UpdatesMemberAndParticipants(t *testing.T) {
	r, db := newApp(t)
	guildID := createGuild(t, r, "Nachtwache")
	createMember(t, r, guildID, "Alice")

	w := postJSON(r, fmt.Sprintf("/api/guilds/%d/battles", guildID),
		map[string]interface{}{"text": pastedAttack, "date": "01.08.2026", "time": "20:00"})
	require.Equal(t, http.StatusCreated, w.Code)

	rw := postJSON(r, fmt.Sprintf("/api/guilds/%d/rename", guildID),
		map[string]interface{}{"old_name": "Alice", "new_name": "Alicia"})
	require.Equal(t, http.StatusOK, rw.Code)
	resp := decode(t, rw)
	assert.EqualValues(t, 1, resp["updated_participants"])
	assert.EqualValues(t, 1, resp["updated_members"])

	var m model.Member
	require.NoError(t, db.Where("guild_id = ? AND name = ?", guildID, "Alicia").First(&m).Error)
	assert.Equal(t, "alicia", m.NormName)
}

func TestRename_BlankNamesRejected(t *testing.T) {
	r, _ := newApp(t)
	guildID := createGuild(t, r, "Nachtwache")

	w := postJSON(r, fmt.Sprintf("/api/guilds/%d/rename", guildID),
		map[string]interface{}{"old_name": "  ", "new_name": "Alicia"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRename_IdenticalNamesRejected(t *testing.T) {
	r, _ := newApp(t)
	guildID := createGuild(t, r, "Nachtwache")

	w := postJSON(r, fmt.Sprintf("/api/guilds/%d/rename", guildID),
		map[string]interface{}{"old_name": "Alice", "new_name": "Alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRename_RefreshesStats(t *testing.T) {
	r, _ := newApp(t)
	guildID := createGuild(t, r, "Nachtwache")

	w := postJSON(r, fmt.Sprintf("/api/guilds/%d/battles", guildID),
		map[string]interface{}{"text": pastedAttack, "date": "01.08.2026", "time": "20:00"})
	require.Equal(t, http.StatusCreated, w.Code)

	// Prime the cache, rename, and the new name must appear immediately.
	require.Equal(t, http.StatusOK, getReq(r, fmt.Sprintf("/api/guilds/%d/stats", guildID)).Code)

	rw := postJSON(r, fmt.Sprintf("/api/guilds/%d/rename", guildID),
		map[string]interface{}{"old_name": "Alice", "new_name": "Alicia"})
	require.Equal(t, http.StatusOK, rw.Code)

	sw := getReq(r, fmt.Sprintf("/api/guilds/%d/stats", guildID))
	require.Equal(t, http.StatusOK, sw.Code)
	assert.Contains(t, sw.Body.String(), "Alicia")
	assert.NotContains(t, sw.Body.String(), `"Alice"`)
}

package rest_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildboard/guildboard/model"
)

const pastedAttack = `Angriff auf Sturmklingen
Mitglieder, die teilgenommen haben:
Alice (Stufe 100)
Bob (Stufe 80)
Mitglieder, die nicht teilgenommen haben:
Carol (Stufe 60)`

func TestBattleImport_Pasted(t *testing.T) {
	r, _ := newApp(t)
	guildID := createGuild(t, r, "Nachtwache")

	w := postJSON(r, fmt.Sprintf("/api/guilds/%d/battles", guildID),
		map[string]interface{}{"text": pastedAttack, "date": "01.08.2026", "time": "20:00"})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode(t, w)
	assert.Equal(t, model.BattleAttack, resp["type"])
	assert.Equal(t, "Sturmklingen", resp["opponent"])
}

func TestBattleImport_DuplicateConflict(t *testing.T) {
	r, _ := newApp(t)
	guildID := createGuild(t, r, "Nachtwache")

	body := map[string]interface{}{"text": pastedAttack, "date": "01.08.2026", "time": "20:00"}
	require.Equal(t, http.StatusCreated, postJSON(r, fmt.Sprintf("/api/guilds/%d/battles", guildID), body).Code)

	w := postJSON(r, fmt.Sprintf("/api/guilds/%d/battles", guildID), body)
	require.Equal(t, http.StatusConflict, w.Code)
	resp := decode(t, w)
	assert.Contains(t, resp["error"], "identical text")
	assert.NotZero(t, resp["battle_id"])
}

func TestBattleImport_BadHeadline(t *testing.T) {
	r, _ := newApp(t)
	guildID := createGuild(t, r, "Nachtwache")

	w := postJSON(r, fmt.Sprintf("/api/guilds/%d/battles", guildID),
		map[string]interface{}{"text": "Irgendein Text ohne Kopfzeile"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "headline")
}

func TestBattleListAndDetail(t *testing.T) {
	r, _ := newApp(t)
	guildID := createGuild(t, r, "Nachtwache")

	w := postJSON(r, fmt.Sprintf("/api/guilds/%d/battles", guildID),
		map[string]interface{}{"text": pastedAttack, "date": "01.08.2026", "time": "20:00"})
	require.Equal(t, http.StatusCreated, w.Code)
	battleID := int64(decode(t, w)["id"].(float64))

	var list struct {
		Battles []model.Battle `json:"battles"`
	}
	lw := getReq(r, fmt.Sprintf("/api/guilds/%d/battles?type=attack", guildID))
	require.Equal(t, http.StatusOK, lw.Code)
	require.NoError(t, json.Unmarshal(lw.Body.Bytes(), &list))
	require.Len(t, list.Battles, 1)

	dw := getReq(r, fmt.Sprintf("/api/guilds/%d/battles/%d", guildID, battleID))
	require.Equal(t, http.StatusOK, dw.Code)
	assert.Len(t, decode(t, dw)["participants"], 3)
}

func TestBattleDelete_InvalidatesStats(t *testing.T) {
	r, _ := newApp(t)
	guildID := createGuild(t, r, "Nachtwache")

	w := postJSON(r, fmt.Sprintf("/api/guilds/%d/battles", guildID),
		map[string]interface{}{"text": pastedAttack, "date": "01.08.2026", "time": "20:00"})
	require.Equal(t, http.StatusCreated, w.Code)
	battleID := int64(decode(t, w)["id"].(float64))

	// Prime the stats cache, then delete and expect a recomputed payload.
	sw := getReq(r, fmt.Sprintf("/api/guilds/%d/stats", guildID))
	require.Equal(t, http.StatusOK, sw.Code)
	before := decode(t, sw)["battle_counts"].(map[string]interface{})
	assert.EqualValues(t, 1, before["total"])

	require.Equal(t, http.StatusOK,
		deleteReq(r, fmt.Sprintf("/api/guilds/%d/battles/%d", guildID, battleID)).Code)

	sw = getReq(r, fmt.Sprintf("/api/guilds/%d/stats", guildID))
	require.Equal(t, http.StatusOK, sw.Code)
	after := decode(t, sw)["battle_counts"].(map[string]interface{})
	assert.EqualValues(t, 0, after["total"])
}

func TestBattleDelete_NotFound(t *testing.T) {
	r, _ := newApp(t)
	guildID := createGuild(t, r, "Nachtwache")
	w := deleteReq(r, fmt.Sprintf("/api/guilds/%d/battles/999", guildID))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

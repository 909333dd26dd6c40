package rest_test

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postMultipart(t *testing.T, r *gin.Engine, path, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRosterUpload_RawBody(t *testing.T) {
	r, _ := newApp(t)
	guildID := createGuild(t, r, "Nachtwache")

	w := postRaw(r, fmt.Sprintf("/api/guilds/%d/roster", guildID),
		"Name;Rang;Stufe\nAlice;Offizier;100\nBob;Mitglied;80\n")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.EqualValues(t, 2, resp["inserted"])
	assert.EqualValues(t, 0, resp["updated"])
}

func TestRosterUpload_MultipartFile(t *testing.T) {
	r, _ := newApp(t)
	guildID := createGuild(t, r, "Nachtwache")

	w := postMultipart(t, r, fmt.Sprintf("/api/guilds/%d/roster", guildID),
		"roster.csv", "Name,Stufe\nAlice,100\n")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["inserted"])
}

func TestRosterUpload_MissingNameColumn(t *testing.T) {
	r, _ := newApp(t)
	guildID := createGuild(t, r, "Nachtwache")

	w := postRaw(r, fmt.Sprintf("/api/guilds/%d/roster", guildID), "Rang,Stufe\nOffizier,100\n")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "name column")
}

func TestRosterUpload_ReimportUpdates(t *testing.T) {
	r, _ := newApp(t)
	guildID := createGuild(t, r, "Nachtwache")

	first := postRaw(r, fmt.Sprintf("/api/guilds/%d/roster", guildID), "Name,Stufe\nAlice,100\n")
	require.Equal(t, http.StatusOK, first.Code)

	second := postRaw(r, fmt.Sprintf("/api/guilds/%d/roster", guildID), "Name,Stufe\nAlice,101\n")
	require.Equal(t, http.StatusOK, second.Code)
	resp := decode(t, second)
	assert.EqualValues(t, 0, resp["inserted"])
	assert.EqualValues(t, 1, resp["updated"])
}

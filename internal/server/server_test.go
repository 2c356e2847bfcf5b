package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emrgen/notebook/internal/compress"
	"github.com/emrgen/notebook/internal/lock"
	"github.com/emrgen/notebook/internal/permission"
	"github.com/emrgen/notebook/internal/revision"
	"github.com/emrgen/notebook/internal/service"
	"github.com/emrgen/notebook/internal/session"
	"github.com/emrgen/notebook/internal/store"
	"github.com/emrgen/notebook/internal/tester"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = service.User{ID: "alice", SessionID: "s-alice"}
	bob   = service.User{ID: "bob", SessionID: "s-bob"}
)

const withMedia = `<p><img data-media-id="M1"></p>`

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	handler  http.Handler
	locks    lock.Registry
	sessions *session.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s := store.NewGormStore(tester.TestDB(t))
	locks := lock.NewMemoryRegistry()
	archiver := revision.NewArchiver(compress.NewLZ4())
	sessions := session.NewRegistry()
	recordMutex := lock.NewKeyedMutex()
	edit := service.NewEditService(s, locks, recordMutex, archiver, permission.AllowAll{})
	records := service.NewRecordService(s, locks, recordMutex, archiver, permission.AllowAll{})

	return &testServer{
		handler:  NewServer(edit, records, sessions).Handler(),
		locks:    locks,
		sessions: sessions,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, user *service.User, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set(HeaderUserID, user.ID)
		req.Header.Set(HeaderSessionID, user.SessionID)
	}

	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}

	return w.Code, out
}

func (ts *testServer) createRecord(t *testing.T, content string) (string, string) {
	t.Helper()

	code, body := ts.do(t, http.MethodPost, "/v1/records", &alice, map[string]any{
		"name":   "assay",
		"fields": []map[string]string{{"name": "notes", "content": content}},
	})
	require.Equal(t, http.StatusCreated, code)

	fields := body["fields"].([]any)
	require.Len(t, fields, 1)

	return body["id"].(string), fields[0].(map[string]any)["id"].(string)
}

func TestServer_EditFlow(t *testing.T) {
	ts := newTestServer(t)
	recordID, fieldID := ts.createRecord(t, "")

	code, body := ts.do(t, http.MethodPost, "/v1/records/"+recordID+"/edit", &alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "EDIT_MODE", body["status"])

	code, body = ts.do(t, http.MethodPost, "/v1/records/"+recordID+"/edit", &bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ACCESS_DENIED", body["status"])

	code, _ = ts.do(t, http.MethodPost, "/v1/fields/"+fieldID+"/autosave", &alice, map[string]any{"content": withMedia})
	require.Equal(t, http.StatusOK, code)

	code, body = ts.do(t, http.MethodGet, "/v1/fields/"+fieldID+"/content", &alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, withMedia, body["content"])

	code, body = ts.do(t, http.MethodPost, "/v1/records/"+recordID+"/save", &alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	code, body = ts.do(t, http.MethodGet, "/v1/fields/"+fieldID+"/links", &bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, []any{"media:M1"}, body["targets"])

	code, body = ts.do(t, http.MethodGet, "/v1/records/"+recordID+"/revisions", &bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["revisions"], 2)

	code, body = ts.do(t, http.MethodPost, "/v1/records/"+recordID+"/revisions/0/restore", &bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, recordID, body["restoredRecordId"])
	assert.Equal(t, "document", body["restoredRecordType"])

	code, body = ts.do(t, http.MethodGet, "/v1/fields/"+fieldID+"/links", &bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])
	assert.Empty(t, body["targets"])
}

func TestServer_Errors(t *testing.T) {
	ts := newTestServer(t)
	recordID, fieldID := ts.createRecord(t, withMedia)

	code, _ := ts.do(t, http.MethodPost, "/v1/records/"+recordID+"/edit", &bob, nil)
	require.Equal(t, http.StatusOK, code)

	tests := []struct {
		name   string
		method string
		path   string
		user   *service.User
		body   any
		code   int
	}{
		{name: "missing identity", method: http.MethodPost, path: "/v1/records/" + recordID + "/edit", code: http.StatusUnauthorized},
		{name: "not locked", method: http.MethodPost, path: "/v1/fields/" + fieldID + "/autosave", user: &alice, body: map[string]any{"content": ""}, code: http.StatusLocked},
		{name: "missing content", method: http.MethodPost, path: "/v1/fields/" + fieldID + "/autosave", user: &bob, body: map[string]any{}, code: http.StatusBadRequest},
		{name: "lock conflict", method: http.MethodPost, path: "/v1/records/" + recordID + "/revisions/0/restore", user: &alice, code: http.StatusConflict},
		{name: "invalid revision", method: http.MethodPost, path: "/v1/records/" + recordID + "/revisions/9/restore", user: &bob, code: http.StatusNotFound},
		{name: "bad revision number", method: http.MethodPost, path: "/v1/records/" + recordID + "/revisions/latest/restore", user: &bob, code: http.StatusBadRequest},
		{name: "unknown record", method: http.MethodPost, path: "/v1/records/missing/edit", user: &bob, code: http.StatusNotFound},
		{name: "unknown field", method: http.MethodGet, path: "/v1/fields/missing/links", user: &bob, code: http.StatusNotFound},
		{name: "foreign logout", method: http.MethodPost, path: "/v1/sessions/" + bob.SessionID + "/logout", user: &alice, code: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := ts.do(t, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestServer_LogoutReleasesLocks(t *testing.T) {
	ts := newTestServer(t)
	recordID, fieldID := ts.createRecord(t, "")

	code, _ := ts.do(t, http.MethodPost, "/v1/records/"+recordID+"/edit", &bob, nil)
	require.Equal(t, http.StatusOK, code)
	_, ok := ts.sessions.Get(bob.SessionID)
	assert.True(t, ok)

	code, _ = ts.do(t, http.MethodPost, fmt.Sprintf("/v1/sessions/%s/logout", bob.SessionID), &bob, nil)
	require.Equal(t, http.StatusOK, code)

	_, ok = ts.sessions.Get(bob.SessionID)
	assert.False(t, ok)

	code, _ = ts.do(t, http.MethodPost, "/v1/fields/"+fieldID+"/autosave", &bob, map[string]any{"content": withMedia})
	assert.Equal(t, http.StatusLocked, code)

	code, body := ts.do(t, http.MethodPost, "/v1/records/"+recordID+"/edit", &alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "EDIT_MODE", body["status"])
}

func TestServer_DeleteAndSign(t *testing.T) {
	ts := newTestServer(t)
	recordID, _ := ts.createRecord(t, "")
	signedID, _ := ts.createRecord(t, "")

	code, _ := ts.do(t, http.MethodDelete, "/v1/records/"+recordID, &alice, nil)
	require.Equal(t, http.StatusNoContent, code)
	code, _ = ts.do(t, http.MethodPost, "/v1/records/"+recordID+"/edit", &alice, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = ts.do(t, http.MethodPost, "/v1/records/"+signedID+"/sign", &alice, nil)
	require.Equal(t, http.StatusOK, code)
	code, body := ts.do(t, http.MethodPost, "/v1/records/"+signedID+"/edit", &alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "CAN_NEVER_EDIT", body["status"])
}

func TestServer_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	ts.createRecord(t, withMedia)

	code, body := ts.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "notebook_revisions_total")
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/vega/internal/database"
	"github.com/aristath/vega/internal/reliability"
)

type mockSyncer struct {
	synced int
	err    error
	calls  int
}

func (m *mockSyncer) SyncPrices() (int, error) {
	m.calls++
	return m.synced, m.err
}

type memStore struct {
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Upload(_ context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]reliability.StoredObject, error) {
	var objects []reliability.StoredObject
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, reliability.StoredObject{Key: key, Size: int64(len(data))})
		}
	}
	return objects, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return decoded
}

func TestHandleSystemStatus(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	dataDir := t.TempDir()

	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "market.db"),
		Profile: database.ProfileStandard,
		Name:    "market",
	})
	require.NoError(t, err)
	defer db.Close()

	handlers := NewSystemHandlers(log, dataDir, map[string]*database.DB{"market": db}, nil, nil)

	rec := httptest.NewRecorder()
	handlers.HandleSystemStatus(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)

	assert.Equal(t, "ok", data["status"])
	assert.GreaterOrEqual(t, data["uptime_seconds"].(float64), 0.0)

	databases, ok := data["databases"].([]interface{})
	require.True(t, ok)
	require.Len(t, databases, 1)

	market := databases[0].(map[string]interface{})
	assert.Equal(t, "market", market["name"])
	assert.Equal(t, true, market["healthy"])
	assert.Greater(t, market["size_bytes"].(float64), 0.0)
}

func TestHandleCreateBackup(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	dataDir := t.TempDir()

	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "portfolio.db"),
		Profile: database.ProfileLedger,
		Name:    "portfolio",
	})
	require.NoError(t, err)
	defer db.Close()

	store := newMemStore()
	backups := reliability.NewBackupService(store, map[string]*database.DB{"portfolio": db}, dataDir, nil, log)
	handlers := NewSystemHandlers(log, dataDir, nil, backups, nil)

	rec := httptest.NewRecorder()
	handlers.HandleCreateBackup(rec, httptest.NewRequest(http.MethodPost, "/api/system/backup", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)

	filename, ok := data["filename"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(filename, "vega-backup-"))
	assert.Contains(t, store.objects, filename)
}

func TestHandleCreateBackup_NotConfigured(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	handlers := NewSystemHandlers(log, t.TempDir(), nil, nil, nil)

	rec := httptest.NewRecorder()
	handlers.HandleCreateBackup(rec, httptest.NewRequest(http.MethodPost, "/api/system/backup", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "backup storage not configured", body["error"])
}

func TestHandleListBackups(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	store := newMemStore()
	store.objects["vega-backup-2026-01-10-000000.tar.gz"] = []byte("a")
	store.objects["vega-backup-2026-01-12-000000.tar.gz"] = []byte("ab")

	backups := reliability.NewBackupService(store, nil, t.TempDir(), nil, log)
	handlers := NewSystemHandlers(log, t.TempDir(), nil, backups, nil)

	rec := httptest.NewRecorder()
	handlers.HandleListBackups(rec, httptest.NewRequest(http.MethodGet, "/api/system/backups", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 2.0, data["count"].(float64), 1e-9)

	list, ok := data["backups"].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 2)
	newest := list[0].(map[string]interface{})
	assert.Equal(t, "vega-backup-2026-01-12-000000.tar.gz", newest["filename"])
}

func TestHandleSyncPrices(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	syncer := &mockSyncer{synced: 7}
	handlers := NewSystemHandlers(log, t.TempDir(), nil, nil, syncer)

	rec := httptest.NewRecorder()
	handlers.HandleSyncPrices(rec, httptest.NewRequest(http.MethodPost, "/api/system/sync/prices", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 7.0, data["synced"].(float64), 1e-9)
	assert.Equal(t, 1, syncer.calls)
}

func TestHandleSyncPrices_Failure(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	syncer := &mockSyncer{err: errors.New("quote provider down")}
	handlers := NewSystemHandlers(log, t.TempDir(), nil, nil, syncer)

	rec := httptest.NewRecorder()
	handlers.HandleSyncPrices(rec, httptest.NewRequest(http.MethodPost, "/api/system/sync/prices", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "quote provider down")
}

func TestHandleSyncPrices_NotConfigured(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	handlers := NewSystemHandlers(log, t.TempDir(), nil, nil, nil)

	rec := httptest.NewRecorder()
	handlers.HandleSyncPrices(rec, httptest.NewRequest(http.MethodPost, "/api/system/sync/prices", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

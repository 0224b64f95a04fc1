package watcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"geodoc/app/upload"
	"geodoc/backend"
	"geodoc/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestWatcher(t *testing.T) (*Watcher, *int64, string) {
	t.Helper()

	var uploadCalls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/files"):
			json.NewEncoder(w).Encode(map[string]any{"files": []types.UploadedFile{}})
		case strings.HasSuffix(r.URL.Path, "/file"):
			atomic.AddInt64(&uploadCalls, 1)
			json.NewEncoder(w).Encode(types.UploadedFile{ID: "file-1", Status: types.FileProcessing})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	source := t.TempDir()
	t.Setenv("WATCH_SOURCE_DIR", source)
	t.Setenv("WATCH_ARCHIVE_DIR", "")
	t.Setenv("WATCH_BAD_DIR", "")

	client := backend.New(srv.URL, 5*time.Second)
	coordinator := upload.NewCoordinator(client, zap.NewNop())
	w := New(coordinator, func() (string, bool) { return "doc-1", true }, zap.NewNop())
	require.NoError(t, w.CreateDirectories())
	return w, &uploadCalls, source
}

func TestProcessDirUploadsAndArchives(t *testing.T) {
	w, uploadCalls, source := newTestWatcher(t)

	path := filepath.Join(source, "bericht.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0644))

	w.ProcessDir(context.Background())

	assert.EqualValues(t, 1, atomic.LoadInt64(uploadCalls))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "processed file leaves the drop folder")
	_, err = os.Stat(filepath.Join(source, "archive", "bericht.pdf"))
	assert.NoError(t, err, "processed file is archived")
}

func TestProcessDirQuarantinesInvalidFiles(t *testing.T) {
	w, uploadCalls, source := newTestWatcher(t)

	path := filepath.Join(source, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	w.ProcessDir(context.Background())

	assert.EqualValues(t, 0, atomic.LoadInt64(uploadCalls), "invalid files never reach the backend")
	_, err := os.Stat(filepath.Join(source, "bad", "notes.txt"))
	assert.NoError(t, err, "invalid file is quarantined")
}

func TestProcessDirWaitsForActiveDocument(t *testing.T) {
	w, uploadCalls, source := newTestWatcher(t)
	w.documentID = func() (string, bool) { return "", false }

	path := filepath.Join(source, "bericht.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0644))

	w.ProcessDir(context.Background())

	assert.EqualValues(t, 0, atomic.LoadInt64(uploadCalls))
	_, err := os.Stat(path)
	assert.NoError(t, err, "files stay in place until a document is active")
}

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"geodoc/app/ops"
	"geodoc/app/session"
	"geodoc/backend"
	"geodoc/store"
	"geodoc/types"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// minimalPDF builds a one-page PDF with a correct xref table.
func minimalPDF(t *testing.T) []byte {
	t.Helper()
	var b bytes.Buffer
	objects := []string{
		"1 0 obj\n<</Type/Catalog/Pages 2 0 R>>\nendobj\n",
		"2 0 obj\n<</Type/Pages/Kids[3 0 R]/Count 1>>\nendobj\n",
		"3 0 obj\n<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>\nendobj\n",
	}
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, 0, len(objects))
	for _, obj := range objects {
		offsets = append(offsets, b.Len())
		b.WriteString(obj)
	}
	start := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	fmt.Fprintf(&b, "%010d %05d f \n", 0, 65535)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d %05d n \n", off, 0)
	}
	fmt.Fprintf(&b, "trailer\n<</Size %d/Root 1 0 R>>\nstartxref\n%d\n%%%%EOF", len(objects)+1, start)
	return b.Bytes()
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	pdf := minimalPDF(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/start"):
			json.NewEncoder(w).Encode(map[string]string{"message": "Willkommen"})
		case strings.HasSuffix(r.URL.Path, "/reply"):
			json.NewEncoder(w).Encode(map[string]string{"message": "Danke"})
		case strings.HasSuffix(r.URL.Path, "/pdf"):
			w.Write(pdf)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(srv.Close)

	storer := store.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	sess := session.NewManager(storer, zap.NewNop())
	client := backend.New(srv.URL, 5*time.Second)
	service := ops.New(sess, client, zap.NewNop())
	handler := NewConversationHandler(service, sess)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/api/v1/conversation/start", handler.HandleStart)
	app.Post("/api/v1/conversation/reply", handler.HandleReply)
	app.Get("/api/v1/conversation/:documentID/messages", handler.HandleMessages)
	app.Get("/api/v1/structure/:topic", handler.HandleStructure)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 10000)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	decoded := make(map[string]any)
	json.Unmarshal(raw, &decoded)
	return resp, decoded
}

func TestHandleStartReturnsSeededLog(t *testing.T) {
	app := newTestApp(t)

	resp, body := postJSON(t, app, "/api/v1/conversation/start", types.StartParams{
		ProjectID:  "proj-1",
		Topic:      types.TopicBaugrundgutachten,
		Section:    "projekt",
		Subsection: "standort",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.NotEmpty(t, body["document_id"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 1)
	first := messages[0].(map[string]any)
	assert.Equal(t, "assistant", first["role"])
	assert.Equal(t, "Willkommen", first["content"])
}

func TestHandleStartRejectsUnknownSubsection(t *testing.T) {
	app := newTestApp(t)

	resp, _ := postJSON(t, app, "/api/v1/conversation/start", types.StartParams{
		ProjectID:  "proj-1",
		Topic:      types.TopicBaugrundgutachten,
		Section:    "projekt",
		Subsection: "nope",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHandleStartRejectsMissingFields(t *testing.T) {
	app := newTestApp(t)

	resp, _ := postJSON(t, app, "/api/v1/conversation/start", map[string]string{"project_id": "proj-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHandleReplyAppendsBothTurns(t *testing.T) {
	app := newTestApp(t)

	_, start := postJSON(t, app, "/api/v1/conversation/start", types.StartParams{
		ProjectID:  "proj-1",
		Topic:      types.TopicBaugrundgutachten,
		Section:    "projekt",
		Subsection: "standort",
	})
	documentID := start["document_id"].(string)

	resp, body := postJSON(t, app, "/api/v1/conversation/reply", types.MessageParams{
		DocumentID: documentID,
		Section:    "projekt",
		Subsection: "standort",
		Message:    "Standort ist Hamburg",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	messages := body["messages"].([]any)
	require.Len(t, messages, 3)
	assert.Equal(t, "Standort ist Hamburg", messages[1].(map[string]any)["content"])
	assert.Equal(t, "Danke", messages[2].(map[string]any)["content"])
}

func TestHandleStructure(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/structure/Baugrundgutachten", nil)
	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var structure types.DocumentStructure
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&structure))
	assert.Equal(t, types.TopicBaugrundgutachten, structure.Topic)
	assert.NotEmpty(t, structure.Sections)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/structure/Unbekannt", nil)
	resp, err = app.Test(req, 10000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

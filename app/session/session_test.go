package session

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"geodoc/store"
	"geodoc/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	storer := store.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	return NewManager(storer, zap.NewNop())
}

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

func TestMessagesEmptyNeverNil(t *testing.T) {
	m := newTestManager(t)

	got := m.Messages("doc-1", "projekt", "standort")
	require.NotNil(t, got)
	assert.Len(t, got, 0)
}

func TestAppendMessagePreservesCallOrder(t *testing.T) {
	m := newTestManager(t)

	for i := 0; i < 20; i++ {
		m.AppendMessage("doc-1", "projekt", "standort", types.ConversationEntry{
			Role:    types.RoleUser,
			Content: fmt.Sprintf("msg-%d", i),
		})
	}

	log := m.Messages("doc-1", "projekt", "standort")
	require.Len(t, log, 20)
	for i, entry := range log {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), entry.Content)
	}
}

func TestAppendMessageMarksConversation(t *testing.T) {
	m := newTestManager(t)

	assert.False(t, m.Status("doc-1", "projekt", "standort").HasConversation)
	m.AppendMessage("doc-1", "projekt", "standort", types.ConversationEntry{Role: types.RoleAssistant, Content: "hi"})
	assert.True(t, m.Status("doc-1", "projekt", "standort").HasConversation)
}

func TestConfirmPendingPromotesLatestProvisionalEntry(t *testing.T) {
	m := newTestManager(t)

	m.AppendMessage("doc-1", "projekt", "standort", types.ConversationEntry{Role: types.RoleAssistant, Content: "Willkommen"})
	m.AppendMessage("doc-1", "projekt", "standort", types.ConversationEntry{Role: types.RoleUser, Content: "Hallo", Pending: true})

	m.ConfirmPending("doc-1", "projekt", "standort")
	log := m.Messages("doc-1", "projekt", "standort")
	require.Len(t, log, 2)
	assert.False(t, log[1].Pending)

	// No pending entry left, another confirm is a no-op.
	m.ConfirmPending("doc-1", "projekt", "standort")
}

func TestRehydrationConfirmsPendingEntries(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(store.NewFileStore(filepath.Join(dir, "session.json")), zap.NewNop())
	m.AppendMessage("doc-1", "projekt", "standort", types.ConversationEntry{Role: types.RoleUser, Content: "Hallo", Pending: true})

	restored := NewManager(store.NewFileStore(filepath.Join(dir, "session.json")), zap.NewNop())
	log := restored.Messages("doc-1", "projekt", "standort")
	require.Len(t, log, 1)
	assert.False(t, log[0].Pending, "an in-flight call cannot resolve across a restart")
}

func TestStatusPatchFieldsAreIndependent(t *testing.T) {
	m := newTestManager(t)
	yes := true
	no := false

	m.SetStatus("doc-1", "projekt", "standort", types.StatusPatch{HasConversation: &yes})
	m.SetStatus("doc-1", "projekt", "standort", types.StatusPatch{Approved: &yes})

	status := m.Status("doc-1", "projekt", "standort")
	assert.True(t, status.HasConversation, "approval patch must not clear hasConversation")
	assert.True(t, status.Approved)

	// hasConversation is monotonic, approval can toggle back.
	m.SetStatus("doc-1", "projekt", "standort", types.StatusPatch{HasConversation: &no, Approved: &no})
	status = m.Status("doc-1", "projekt", "standort")
	assert.True(t, status.HasConversation)
	assert.False(t, status.Approved)
}

func TestDocumentIDRoundTrip(t *testing.T) {
	m := newTestManager(t)
	key := types.DocumentKey("proj-1", types.TopicBaugrundgutachten)

	_, ok := m.DocumentID(key)
	assert.False(t, ok)

	m.SetDocumentID(key, "doc-1")
	id, ok := m.DocumentID(key)
	require.True(t, ok)
	assert.Equal(t, "doc-1", id)
}

func TestHasDocument(t *testing.T) {
	m := newTestManager(t)

	assert.False(t, m.HasDocument("doc-1"))
	m.SetDocumentID(types.DocumentKey("proj-1", types.TopicBaugrundgutachten), "doc-1")
	assert.True(t, m.HasDocument("doc-1"))
	assert.False(t, m.HasDocument("doc-2"))
}

func TestInflightGuard(t *testing.T) {
	m := newTestManager(t)

	require.True(t, m.Begin("start:doc-1/projekt/standort"))
	assert.False(t, m.Begin("start:doc-1/projekt/standort"))
	assert.True(t, m.Begin("start:doc-1/projekt/anlass"), "guard is keyed per subsection")

	m.End("start:doc-1/projekt/standort")
	assert.True(t, m.Begin("start:doc-1/projekt/standort"))
}

func TestInstallPdfRevokesPrevious(t *testing.T) {
	m := newTestManager(t)

	first, err := NewPdfRef(minimalPDF(t))
	require.NoError(t, err)
	second, err := NewPdfRef(minimalPDF(t))
	require.NoError(t, err)

	gen1 := m.NextPdfGeneration("doc-1")
	require.True(t, m.InstallPdf("doc-1", gen1, first))
	_, statErr := os.Stat(first.Path())
	require.NoError(t, statErr)

	gen2 := m.NextPdfGeneration("doc-1")
	require.True(t, m.InstallPdf("doc-1", gen2, second))

	_, statErr = os.Stat(first.Path())
	assert.True(t, os.IsNotExist(statErr), "replaced reference must be revoked")
	_, statErr = os.Stat(second.Path())
	assert.NoError(t, statErr)
	assert.Same(t, second, m.Pdf("doc-1"))

	// Revoking again is a no-op.
	first.Revoke()
}

func TestInstallPdfDiscardsStaleResolution(t *testing.T) {
	m := newTestManager(t)

	stale, err := NewPdfRef(minimalPDF(t))
	require.NoError(t, err)
	fresh, err := NewPdfRef(minimalPDF(t))
	require.NoError(t, err)

	genOld := m.NextPdfGeneration("doc-1")
	genNew := m.NextPdfGeneration("doc-1")

	// The newer request resolves first.
	require.True(t, m.InstallPdf("doc-1", genNew, fresh))
	assert.False(t, m.InstallPdf("doc-1", genOld, stale), "stale resolution must be discarded")

	assert.Same(t, fresh, m.Pdf("doc-1"))
	_, statErr := os.Stat(stale.Path())
	assert.True(t, os.IsNotExist(statErr), "discarded reference must be revoked")
	_, statErr = os.Stat(fresh.Path())
	assert.NoError(t, statErr)
}

func TestNewPdfRefRejectsGarbage(t *testing.T) {
	_, err := NewPdfRef([]byte("this is not a pdf"))
	require.Error(t, err)
}

func TestRehydrationDerivesStatus(t *testing.T) {
	dir := t.TempDir()
	storer := store.NewFileStore(filepath.Join(dir, "session.json"))

	m := NewManager(storer, zap.NewNop())
	m.SetDocumentID(types.DocumentKey("proj-1", types.TopicBaugrundgutachten), "doc-1")
	m.AppendMessage("doc-1", "projekt", "standort", types.ConversationEntry{Role: types.RoleAssistant, Content: "Willkommen"})

	restored := NewManager(store.NewFileStore(filepath.Join(dir, "session.json")), zap.NewNop())
	id, ok := restored.DocumentID(types.DocumentKey("proj-1", types.TopicBaugrundgutachten))
	require.True(t, ok)
	assert.Equal(t, "doc-1", id)

	log := restored.Messages("doc-1", "projekt", "standort")
	require.Len(t, log, 1)
	assert.Equal(t, "Willkommen", log[0].Content)

	status := restored.Status("doc-1", "projekt", "standort")
	assert.True(t, status.HasConversation, "hasConversation is re-derived from the persisted log")
	assert.False(t, status.Approved, "approval is runtime-only and not persisted")
}

func TestResetClearsEverything(t *testing.T) {
	m := newTestManager(t)
	m.SetDocumentID("key", "doc-1")
	m.AppendMessage("doc-1", "projekt", "standort", types.ConversationEntry{Role: types.RoleUser, Content: "x"})

	ref, err := NewPdfRef(minimalPDF(t))
	require.NoError(t, err)
	require.True(t, m.InstallPdf("doc-1", m.NextPdfGeneration("doc-1"), ref))

	m.Reset()

	_, ok := m.DocumentID("key")
	assert.False(t, ok)
	assert.Len(t, m.Messages("doc-1", "projekt", "standort"), 0)
	assert.Nil(t, m.Pdf("doc-1"))
	_, statErr := os.Stat(ref.Path())
	assert.True(t, os.IsNotExist(statErr))
}

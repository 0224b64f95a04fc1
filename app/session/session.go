package session

import (
	"sync"

	"geodoc/store"
	"geodoc/types"

	"go.uber.org/zap"
)

// Manager is the single source of truth for conversation logs, document ids,
// subsection statuses and PDF references. All mutation funnels through its
// methods; each read-modify-write happens under one lock so interleaved
// async completions cannot lose updates.
//
// Document ids and message logs are written through to the storer on every
// mutation and rehydrated at construction. Statuses and PDF references are
// runtime-only.
type Manager struct {
	mu        sync.Mutex
	logs      map[string][]types.ConversationEntry
	documents map[string]string
	statuses  map[string]types.SubsectionStatus
	pdfs      map[string]*PdfRef
	pdfGen    map[string]uint64
	inflight  map[string]struct{}

	storer store.SessionStorer
	log    *zap.Logger
}

func NewManager(storer store.SessionStorer, log *zap.Logger) *Manager {
	m := &Manager{
		logs:      make(map[string][]types.ConversationEntry),
		documents: make(map[string]string),
		statuses:  make(map[string]types.SubsectionStatus),
		pdfs:      make(map[string]*PdfRef),
		pdfGen:    make(map[string]uint64),
		inflight:  make(map[string]struct{}),
		storer:    storer,
		log:       log,
	}

	state, err := storer.Load()
	if err != nil {
		log.Warn("failed to restore session state, starting empty", zap.Error(err))
	}
	m.documents = state.DocumentIDs
	m.logs = state.Messages

	// hasConversation is re-derived from persisted logs, it is not stored.
	// Provisional entries can never resolve across a restart, they are
	// promoted to confirmed on rehydration.
	for key, entries := range m.logs {
		if len(entries) > 0 {
			m.statuses[key] = types.SubsectionStatus{HasConversation: true}
		}
		for i := range entries {
			entries[i].Pending = false
		}
	}
	return m
}

// Messages returns a copy of the log for the composite key, or an empty
// slice if absent. Never nil.
func (m *Manager) Messages(documentID, sectionKey, subsectionKey string) []types.ConversationEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.logs[types.ConversationKey(documentID, sectionKey, subsectionKey)]
	out := make([]types.ConversationEntry, len(entries))
	copy(out, entries)
	return out
}

// AppendMessage appends to the log in call order and marks the subsection as
// having a conversation in the same critical section.
func (m *Manager) AppendMessage(documentID, sectionKey, subsectionKey string, entry types.ConversationEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := types.ConversationKey(documentID, sectionKey, subsectionKey)
	m.logs[key] = append(m.logs[key], entry)

	status := m.statuses[key]
	status.HasConversation = true
	m.statuses[key] = status

	m.persist()
}

// HasDocument reports whether the id belongs to a known document context.
// Logs may only be created for known ids.
func (m *Manager) HasDocument(documentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.documents {
		if id == documentID {
			return true
		}
	}
	return false
}

// ConfirmPending promotes the most recent provisional entry in the log to
// confirmed. No-op when none is pending.
func (m *Manager) ConfirmPending(documentID, sectionKey, subsectionKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.logs[types.ConversationKey(documentID, sectionKey, subsectionKey)]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Pending {
			entries[i].Pending = false
			m.persist()
			return
		}
	}
}

func (m *Manager) SetDocumentID(contextKey, documentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[contextKey] = documentID
	m.persist()
}

func (m *Manager) DocumentID(contextKey string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.documents[contextKey]
	return id, ok
}

// SetStatus merges the patch into the existing status record. Fields left
// nil are untouched. HasConversation never regresses to false once set.
func (m *Manager) SetStatus(documentID, sectionKey, subsectionKey string, patch types.StatusPatch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := types.ConversationKey(documentID, sectionKey, subsectionKey)
	status := m.statuses[key]
	if patch.HasConversation != nil && *patch.HasConversation {
		status.HasConversation = true
	}
	if patch.Approved != nil {
		status.Approved = *patch.Approved
	}
	m.statuses[key] = status
}

func (m *Manager) Status(documentID, sectionKey, subsectionKey string) types.SubsectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[types.ConversationKey(documentID, sectionKey, subsectionKey)]
}

// Begin registers an in-flight operation for the key. It returns false when
// one is already running, callers must back off instead of issuing a
// duplicate network call.
func (m *Manager) Begin(opKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, running := m.inflight[opKey]; running {
		return false
	}
	m.inflight[opKey] = struct{}{}
	return true
}

func (m *Manager) End(opKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, opKey)
}

// NextPdfGeneration hands out a ticket for a PDF fetch. A resolution is only
// installed if no newer ticket was issued for the document in the meantime.
func (m *Manager) NextPdfGeneration(documentID string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pdfGen[documentID]++
	return m.pdfGen[documentID]
}

// InstallPdf replaces the document's PDF reference, revoking the previous
// one. Stale resolutions (a newer fetch was issued after this one) are
// discarded: the incoming ref is revoked and false is returned.
func (m *Manager) InstallPdf(documentID string, generation uint64, ref *PdfRef) bool {
	m.mu.Lock()
	if generation < m.pdfGen[documentID] {
		m.mu.Unlock()
		ref.Revoke()
		return false
	}
	previous := m.pdfs[documentID]
	m.pdfs[documentID] = ref
	m.mu.Unlock()

	if previous != nil && previous != ref {
		previous.Revoke()
	}
	return true
}

func (m *Manager) Pdf(documentID string) *PdfRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pdfs[documentID]
}

// Reset tears the session down: revokes all PDF references, clears every
// map and removes the persisted state.
func (m *Manager) Reset() {
	m.mu.Lock()
	pdfs := m.pdfs
	m.logs = make(map[string][]types.ConversationEntry)
	m.documents = make(map[string]string)
	m.statuses = make(map[string]types.SubsectionStatus)
	m.pdfs = make(map[string]*PdfRef)
	m.pdfGen = make(map[string]uint64)
	m.inflight = make(map[string]struct{})
	m.mu.Unlock()

	for _, ref := range pdfs {
		ref.Revoke()
	}
	if err := m.storer.Reset(); err != nil {
		m.log.Warn("failed to reset persisted session state", zap.Error(err))
	}
}

// persist is called under m.mu. Storage failures are logged and swallowed,
// in-memory state stays authoritative for the running session.
func (m *Manager) persist() {
	state := &store.SessionState{
		Version:     store.StateVersion,
		DocumentIDs: m.documents,
		Messages:    m.logs,
	}
	if err := m.storer.Save(state); err != nil {
		m.log.Warn("failed to persist session state", zap.Error(err))
	}
}

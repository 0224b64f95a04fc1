package ops

import (
	"context"
	"errors"
	"strings"
	"time"

	"geodoc/app/session"
	"geodoc/backend"
	"geodoc/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrStartInFlight means a start call for the same subsection is already
	// running; the duplicate trigger is suppressed.
	ErrStartInFlight = errors.New("conversation start already in flight")
	ErrEmptyMessage  = errors.New("message is empty")
	ErrNoDocument    = errors.New("no document id")

	// ErrPreviewSuperseded means a preview fetch resolved after a newer one
	// was issued but before any reference was installed. The newer fetch
	// delivers the preview; there is nothing to show yet.
	ErrPreviewSuperseded = errors.New("preview superseded by a newer fetch")
)

// FailureMessage is appended to the log as an assistant turn when a
// conversation call fails. Retries are always user-initiated.
const FailureMessage = "Es gab ein Problem bei der Verarbeitung Ihrer Anfrage. Bitte versuchen Sie es erneut."

// Service bridges the session state to the backend. Each operation checks its
// pre-condition, makes the network call and mutates session state only on
// success; failures are reported without corrupting state.
type Service struct {
	session *session.Manager
	client  *backend.Client
	log     *zap.Logger
}

func New(sess *session.Manager, client *backend.Client, log *zap.Logger) *Service {
	return &Service{
		session: sess,
		client:  client,
		log:     log,
	}
}

// StartConversation opens the conversation for a subsection. The document id
// is generated client-side and only stored once the backend accepted the
// start, so a failed start can simply be retried. Duplicate triggers for the
// same key while a start is in flight are suppressed.
func (o *Service) StartConversation(ctx context.Context, projectID string, topic types.Topic, sectionKey, subsectionKey string) (string, error) {
	docKey := types.DocumentKey(projectID, topic)

	documentID, exists := o.session.DocumentID(docKey)
	if exists && o.session.Status(documentID, sectionKey, subsectionKey).HasConversation {
		// Already started, nothing to do.
		return documentID, nil
	}

	guard := "start:" + docKey + "/" + sectionKey + "/" + subsectionKey
	if !o.session.Begin(guard) {
		return "", ErrStartInFlight
	}
	defer o.session.End(guard)

	// Re-check under the guard, a racing start may have finished meanwhile.
	documentID, exists = o.session.DocumentID(docKey)
	if exists && o.session.Status(documentID, sectionKey, subsectionKey).HasConversation {
		return documentID, nil
	}
	if !exists {
		documentID = uuid.NewString()
	}

	seed, err := o.client.StartConversation(ctx, documentID, topic)
	if err != nil {
		o.log.Error("start conversation failed",
			zap.String("document_id", documentID),
			zap.String("section", sectionKey),
			zap.String("subsection", subsectionKey),
			zap.Error(err))
		return "", err
	}

	o.session.SetDocumentID(docKey, documentID)
	o.session.AppendMessage(documentID, sectionKey, subsectionKey, types.ConversationEntry{
		Role:      types.RoleAssistant,
		Content:   seed,
		Timestamp: time.Now(),
	})

	// Best-effort preview refresh, a failed render never fails the start.
	if _, err := o.FetchPdfPreview(ctx, documentID); err != nil {
		o.log.Warn("pdf refresh after start failed", zap.String("document_id", documentID), zap.Error(err))
	}
	return documentID, nil
}

// SendMessage appends the user's message as a provisional entry, then asks
// the backend for the reply. The entry is promoted to confirmed when the call
// resolves, success or not; on failure an assistant-role failure message is
// appended instead of the reply. The user's entry is never rolled back.
func (o *Service) SendMessage(ctx context.Context, documentID, sectionKey, subsectionKey, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if documentID == "" || !o.session.HasDocument(documentID) {
		return "", ErrNoDocument
	}

	o.session.AppendMessage(documentID, sectionKey, subsectionKey, types.ConversationEntry{
		Role:      types.RoleUser,
		Content:   text,
		Pending:   true,
		Timestamp: time.Now(),
	})

	reply, err := o.client.Reply(ctx, documentID, text)
	o.session.ConfirmPending(documentID, sectionKey, subsectionKey)
	if err != nil {
		o.log.Error("send message failed", zap.String("document_id", documentID), zap.Error(err))
		o.session.AppendMessage(documentID, sectionKey, subsectionKey, types.ConversationEntry{
			Role:      types.RoleAssistant,
			Content:   FailureMessage,
			Timestamp: time.Now(),
		})
		return "", err
	}

	o.session.AppendMessage(documentID, sectionKey, subsectionKey, types.ConversationEntry{
		Role:      types.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now(),
	})

	if _, err := o.FetchPdfPreview(ctx, documentID); err != nil {
		o.log.Warn("pdf refresh after reply failed", zap.String("document_id", documentID), zap.Error(err))
	}
	return reply, nil
}

// SaveSubsection persists edited content. With approve set the subsection is
// additionally marked approved, closing the editing affordance; without it
// this is the save-only path.
func (o *Service) SaveSubsection(ctx context.Context, documentID, sectionKey, subsectionKey, content string, approve bool) error {
	if documentID == "" || !o.session.HasDocument(documentID) {
		return ErrNoDocument
	}
	if err := o.client.SaveSection(ctx, documentID, sectionKey, subsectionKey, content, approve); err != nil {
		o.log.Error("save subsection failed", zap.String("document_id", documentID), zap.Error(err))
		return err
	}
	if approve {
		approved := true
		o.session.SetStatus(documentID, sectionKey, subsectionKey, types.StatusPatch{Approved: &approved})
	}
	return nil
}

// FetchPdfPreview fetches the rendered document and installs it as the
// document's PDF reference. Re-entrant: when several fetches overlap, only
// the most recently issued one wins and stale resolutions are silently
// discarded.
func (o *Service) FetchPdfPreview(ctx context.Context, documentID string) (*session.PdfRef, error) {
	generation := o.session.NextPdfGeneration(documentID)

	data, err := o.client.FetchPDF(ctx, documentID)
	if err != nil {
		return nil, err
	}
	ref, err := session.NewPdfRef(data)
	if err != nil {
		o.log.Error("fetched pdf is not readable",
			zap.String("document_id", documentID),
			zap.Int("bytes", len(data)),
			zap.Error(err))
		return nil, err
	}
	if !o.session.InstallPdf(documentID, generation, ref) {
		// A newer fetch finished first; its reference stays installed.
		if current := o.session.Pdf(documentID); current != nil {
			return current, nil
		}
		return nil, ErrPreviewSuperseded
	}
	return ref, nil
}

// DownloadPdf fetches the document prepared for saving. The handler is
// responsible for releasing whatever transient resource it creates for the
// browser save action.
func (o *Service) DownloadPdf(ctx context.Context, documentID string) ([]byte, error) {
	if documentID == "" {
		return nil, ErrNoDocument
	}
	data, err := o.client.DownloadPDF(ctx, documentID)
	if err != nil {
		o.log.Error("pdf download failed", zap.String("document_id", documentID), zap.Error(err))
		return nil, err
	}
	return data, nil
}

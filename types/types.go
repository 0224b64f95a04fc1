package types

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Topic is the overall document type being produced.
type Topic string

const (
	TopicBaugrundgutachten         Topic = "Baugrundgutachten"
	TopicDeklarationsanalyse       Topic = "Deklarationsanalyse"
	TopicVersickerungsuntersuchung Topic = "Versickerungsuntersuchung"
)

func (t Topic) Valid() bool {
	switch t {
	case TopicBaugrundgutachten, TopicDeklarationsanalyse, TopicVersickerungsuntersuchung:
		return true
	}
	return false
}

// ConversationEntry is one exchange turn in a subsection conversation.
// Pending marks a provisional entry appended before the backend confirmed the
// exchange; it is promoted to confirmed when the call resolves.
type ConversationEntry struct {
	Role             Role      `json:"role"`
	Content          string    `json:"content"`
	IsFileAttachment bool      `json:"is_file_attachment,omitempty"`
	FileName         string    `json:"file_name,omitempty"`
	Pending          bool      `json:"pending,omitempty"`
	Timestamp        time.Time `json:"timestamp,omitempty"`
}

// SubsectionStatus tracks per-subsection progress. HasConversation is
// monotonic for the session, Approved can toggle.
type SubsectionStatus struct {
	HasConversation bool `json:"has_conversation"`
	Approved        bool `json:"approved"`
}

// StatusPatch is a partial update; nil fields are left untouched.
type StatusPatch struct {
	HasConversation *bool
	Approved        *bool
}

type FileStatus string

const (
	FileProcessing FileStatus = "processing"
	FileReady      FileStatus = "ready"
	FileError      FileStatus = "error"
)

// UploadedFile is the backend-owned file record. The client only caches it,
// authoritative state lives server-side.
type UploadedFile struct {
	ID               string     `json:"id"`
	OriginalFilename string     `json:"original_filename"`
	FileSize         int64      `json:"file_size"`
	Status           FileStatus `json:"status"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	Attachment       bool       `json:"attachment"`
}

type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldDate     FieldType = "date"
)

type CoverPageField struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Value    string    `json:"value,omitempty"`
}

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Topic     Topic     `json:"topic"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// DocumentKey identifies one working document per project and topic.
func DocumentKey(projectID string, topic Topic) string {
	return projectID + "|" + string(topic)
}

// ConversationKey addresses one subsection conversation log.
func ConversationKey(documentID, sectionKey, subsectionKey string) string {
	return documentID + "/" + sectionKey + "/" + subsectionKey
}

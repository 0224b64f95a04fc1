package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"geodoc/backend"
	"geodoc/types"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Flow selects which size ceiling applies. The chat-attached flow and the
// document file manager historically use different limits; they stay
// separate and separately configurable.
type Flow int

const (
	FlowChat Flow = iota
	FlowManager
)

const (
	defaultChatLimitMB    = 10
	defaultManagerLimitMB = 25
)

var allowedMimeTypes = map[string]struct{}{
	"application/pdf": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

var allowedExtensions = map[string]struct{}{
	".pdf":  {},
	".docx": {},
}

// ValidationError carries a distinguishable rejection reason. It is raised
// synchronously, before any network call.
type ValidationError struct {
	Reason  string // "type" or "size"
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func errFileType(filename string) *ValidationError {
	return &ValidationError{
		Reason:  "type",
		Message: fmt.Sprintf("file type of '%s' is not allowed, only PDF and DOCX are accepted", filename),
	}
}

func errFileSize(size, limit int64) *ValidationError {
	return &ValidationError{
		Reason:  "size",
		Message: fmt.Sprintf("file is too large: %d bytes, limit is %d bytes", size, limit),
	}
}

// Coordinator gatekeeps uploads and keeps a per-document read-through cache
// of the backend's file list.
type Coordinator struct {
	client       *backend.Client
	lists        *cache.Cache
	log          *zap.Logger
	chatLimit    int64
	managerLimit int64
}

func NewCoordinator(client *backend.Client, log *zap.Logger) *Coordinator {
	return &Coordinator{
		client:       client,
		lists:        cache.New(1*time.Hour, 10*time.Minute),
		log:          log,
		chatLimit:    limitFromEnv("CHAT_UPLOAD_LIMIT_MB", defaultChatLimitMB),
		managerLimit: limitFromEnv("MANAGER_UPLOAD_LIMIT_MB", defaultManagerLimitMB),
	}
}

func limitFromEnv(key string, fallbackMB int64) int64 {
	if v := os.Getenv(key); v != "" {
		if mb, err := strconv.ParseInt(v, 10, 64); err == nil && mb > 0 {
			return mb << 20
		}
	}
	return fallbackMB << 20
}

func (c *Coordinator) Limit(flow Flow) int64 {
	if flow == FlowChat {
		return c.chatLimit
	}
	return c.managerLimit
}

// Validate runs synchronously before any upload call. MIME type is checked
// first, with the file extension as fallback for clients that send a
// generic content type.
func (c *Coordinator) Validate(filename, contentType string, size int64, flow Flow) error {
	mime := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if _, ok := allowedMimeTypes[mime]; !ok {
		ext := strings.ToLower(filepath.Ext(filename))
		if _, ok := allowedExtensions[ext]; !ok {
			return errFileType(filename)
		}
	}
	if limit := c.Limit(flow); size > limit {
		return errFileSize(size, limit)
	}
	return nil
}

// ListFiles returns the cached list unless forceRefresh is set or the
// document has never been listed.
func (c *Coordinator) ListFiles(ctx context.Context, documentID string, forceRefresh bool) ([]types.UploadedFile, error) {
	if !forceRefresh {
		if x, found := c.lists.Get(documentID); found {
			return x.([]types.UploadedFile), nil
		}
	}

	files, err := c.client.ListFiles(ctx, documentID)
	if err != nil {
		return nil, err
	}
	c.lists.Set(documentID, files, cache.DefaultExpiration)
	return files, nil
}

// UploadToDocument runs the file-manager flow: validate, upload, then an
// authoritative re-list. The refresh completes before the call returns so
// the caller can rely on an up-to-date list. refreshPdf, when given, is
// invoked after a successful upload.
func (c *Coordinator) UploadToDocument(ctx context.Context, documentID, filename, contentType string, data []byte, sectionKey, subsectionKey string, refreshPdf func()) (*types.UploadedFile, error) {
	if err := c.Validate(filename, contentType, int64(len(data)), FlowManager); err != nil {
		return nil, err
	}

	file, err := c.client.UploadFile(ctx, documentID, filename, data, sectionKey, subsectionKey)
	if err != nil {
		c.log.Error("file upload failed", zap.String("document_id", documentID), zap.String("file", filename), zap.Error(err))
		return nil, err
	}

	c.refreshList(ctx, documentID)
	if refreshPdf != nil {
		refreshPdf()
	}
	return file, nil
}

// UploadWithMessage runs the chat-attached flow with its lower ceiling.
func (c *Coordinator) UploadWithMessage(ctx context.Context, documentID, filename, contentType string, data []byte, message string) (*types.UploadedFile, error) {
	if err := c.Validate(filename, contentType, int64(len(data)), FlowChat); err != nil {
		return nil, err
	}

	file, err := c.client.UploadFileWithMessage(ctx, documentID, filename, data, message)
	if err != nil {
		c.log.Error("chat file upload failed", zap.String("document_id", documentID), zap.String("file", filename), zap.Error(err))
		return nil, err
	}

	c.refreshList(ctx, documentID)
	return file, nil
}

func (c *Coordinator) Delete(ctx context.Context, documentID, fileID string) error {
	if err := c.client.DeleteFile(ctx, documentID, fileID); err != nil {
		c.log.Error("file delete failed", zap.String("document_id", documentID), zap.String("file_id", fileID), zap.Error(err))
		return err
	}
	c.refreshList(ctx, documentID)
	return nil
}

func (c *Coordinator) FileStatus(ctx context.Context, fileID string) (*types.UploadedFile, error) {
	return c.client.FileStatus(ctx, fileID)
}

// refreshList always bypasses the cache. When the re-list itself fails the
// cached entry is dropped so the next read goes to the backend.
func (c *Coordinator) refreshList(ctx context.Context, documentID string) {
	if _, err := c.ListFiles(ctx, documentID, true); err != nil {
		c.log.Warn("file list refresh failed", zap.String("document_id", documentID), zap.Error(err))
		c.lists.Delete(documentID)
	}
}

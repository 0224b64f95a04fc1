package session

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PdfRef is the local handle to the most recently fetched rendered document.
// It is backed by a temp file so the embedded viewer can stream it; Revoke
// releases the file and is safe to call more than once.
type PdfRef struct {
	path  string
	pages int
	size  int64
	once  sync.Once
}

// NewPdfRef parses the fetched bytes and materializes them as a temp file.
// Blobs pdfcpu cannot read are rejected, a broken preview must not be
// installed.
func NewPdfRef(data []byte) (*PdfRef, error) {
	conf := api.LoadConfiguration()
	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("invalid pdf blob: %w", err)
	}

	f, err := os.CreateTemp("", "geodoc-preview-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create preview file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write preview file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to close preview file: %w", err)
	}

	return &PdfRef{path: f.Name(), pages: pages, size: int64(len(data))}, nil
}

func (r *PdfRef) Path() string { return r.path }
func (r *PdfRef) Pages() int   { return r.pages }
func (r *PdfRef) Size() int64  { return r.size }

// Revoke releases the underlying file exactly once.
func (r *PdfRef) Revoke() {
	r.once.Do(func() {
		os.Remove(r.path)
	})
}

package api

import (
	"context"
	"io"

	"geodoc/app/ops"
	"geodoc/app/upload"

	"github.com/gofiber/fiber/v2"
)

type UploadHandler struct {
	coordinator *upload.Coordinator
	ops         *ops.Service
}

func NewUploadHandler(coordinator *upload.Coordinator, service *ops.Service) *UploadHandler {
	return &UploadHandler{
		coordinator: coordinator,
		ops:         service,
	}
}

// HandleUpload is the document-file-manager flow (25 MB ceiling).
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	documentID := c.Params("documentID")
	if documentID == "" {
		return ErrInvalidID()
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}
	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	refreshPdf := func() {
		// Detached from the request context, the preview refresh may outlive
		// the upload response.
		go h.ops.FetchPdfPreview(context.Background(), documentID)
	}

	uploaded, err := h.coordinator.UploadToDocument(
		c.Context(),
		documentID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		data,
		c.FormValue("section"),
		c.FormValue("subsection"),
		refreshPdf,
	)
	if err != nil {
		return err
	}
	return c.JSON(uploaded)
}

// HandleUploadWithMessage is the chat-attached flow (10 MB ceiling).
func (h *UploadHandler) HandleUploadWithMessage(c *fiber.Ctx) error {
	documentID := c.Params("documentID")
	if documentID == "" {
		return ErrInvalidID()
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}
	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	uploaded, err := h.coordinator.UploadWithMessage(
		c.Context(),
		documentID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		data,
		c.FormValue("message"),
	)
	if err != nil {
		return err
	}
	return c.JSON(uploaded)
}

func (h *UploadHandler) HandleList(c *fiber.Ctx) error {
	documentID := c.Params("documentID")
	if documentID == "" {
		return ErrInvalidID()
	}
	files, err := h.coordinator.ListFiles(c.Context(), documentID, c.QueryBool("refresh"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"files": files})
}

func (h *UploadHandler) HandleStatus(c *fiber.Ctx) error {
	fileID := c.Params("fileID")
	if fileID == "" {
		return ErrInvalidID()
	}
	file, err := h.coordinator.FileStatus(c.Context(), fileID)
	if err != nil {
		return err
	}
	return c.JSON(file)
}

func (h *UploadHandler) HandleDelete(c *fiber.Ctx) error {
	documentID := c.Params("documentID")
	fileID := c.Params("fileID")
	if documentID == "" || fileID == "" {
		return ErrInvalidID()
	}
	if err := h.coordinator.Delete(c.Context(), documentID, fileID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"result": "deleted"})
}

package api

import (
	"errors"
	"fmt"
	"os"

	"geodoc/app/ops"
	"geodoc/app/session"
	"geodoc/types"

	"github.com/gofiber/fiber/v2"
)

type ConversationHandler struct {
	ops     *ops.Service
	session *session.Manager
}

func NewConversationHandler(service *ops.Service, sess *session.Manager) *ConversationHandler {
	return &ConversationHandler{
		ops:     service,
		session: sess,
	}
}

func (h *ConversationHandler) HandleStart(c *fiber.Ctx) error {
	var params types.StartParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}
	if !types.FindSubsection(params.Topic, params.Section, params.Subsection) {
		return NewValidationError(map[string]string{
			"Subsection": fmt.Sprintf("'%s/%s' is not part of topic '%s'", params.Section, params.Subsection, params.Topic),
		})
	}

	documentID, err := h.ops.StartConversation(c.Context(), params.ProjectID, params.Topic, params.Section, params.Subsection)
	if err != nil {
		if errors.Is(err, ops.ErrStartInFlight) {
			return NewError(fiber.StatusConflict, "conversation start already in progress")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"document_id": documentID,
		"messages":    h.session.Messages(documentID, params.Section, params.Subsection),
	})
}

func (h *ConversationHandler) HandleReply(c *fiber.Ctx) error {
	var params types.MessageParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	_, err := h.ops.SendMessage(c.Context(), params.DocumentID, params.Section, params.Subsection, params.Message)
	if err != nil && (errors.Is(err, ops.ErrEmptyMessage) || errors.Is(err, ops.ErrNoDocument)) {
		return NewValidationError(map[string]string{"Message": err.Error()})
	}
	// Backend failures already appended the failure turn to the log; the
	// client re-renders from the returned messages either way.
	return c.JSON(fiber.Map{
		"messages": h.session.Messages(params.DocumentID, params.Section, params.Subsection),
	})
}

func (h *ConversationHandler) HandleMessages(c *fiber.Ctx) error {
	documentID := c.Params("documentID")
	section := c.Query("section")
	subsection := c.Query("subsection")
	if documentID == "" || section == "" || subsection == "" {
		return ErrInvalidID()
	}
	return c.JSON(fiber.Map{
		"messages": h.session.Messages(documentID, section, subsection),
		"status":   h.session.Status(documentID, section, subsection),
	})
}

func (h *ConversationHandler) HandleApprove(c *fiber.Ctx) error {
	var params types.ApproveParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	if err := h.ops.SaveSubsection(c.Context(), params.DocumentID, params.Section, params.Subsection, params.Content, params.Approve); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": h.session.Status(params.DocumentID, params.Section, params.Subsection),
	})
}

// HandlePdfPreview refreshes and streams the rendered document for the
// embedded viewer.
func (h *ConversationHandler) HandlePdfPreview(c *fiber.Ctx) error {
	documentID := c.Params("documentID")
	if documentID == "" {
		return ErrInvalidID()
	}

	ref, err := h.ops.FetchPdfPreview(c.Context(), documentID)
	if err != nil {
		if errors.Is(err, ops.ErrPreviewSuperseded) {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return err
	}
	if ref == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	return c.SendFile(ref.Path())
}

// HandleDownload triggers the browser save action. The temp file exists only
// for the duration of the response.
func (h *ConversationHandler) HandleDownload(c *fiber.Ctx) error {
	documentID := c.Params("documentID")
	if documentID == "" {
		return ErrInvalidID()
	}

	data, err := h.ops.DownloadPdf(c.Context(), documentID)
	if err != nil {
		return err
	}

	output := fmt.Sprintf("geodoc-%s.pdf", documentID)
	if err := os.WriteFile(output, data, 0644); err != nil {
		return err
	}
	defer os.Remove(output)

	return c.Download(output, output)
}

func (h *ConversationHandler) HandleStructure(c *fiber.Ctx) error {
	topic := types.Topic(c.Params("topic"))
	structure, ok := types.Structures[topic]
	if !ok {
		return NewError(fiber.StatusNotFound, fmt.Sprintf("unknown topic '%s'", topic))
	}
	return c.JSON(structure)
}

// HandleReset clears the whole session, local state included.
func (h *ConversationHandler) HandleReset(c *fiber.Ctx) error {
	h.session.Reset()
	return c.JSON(fiber.Map{"result": "ok"})
}

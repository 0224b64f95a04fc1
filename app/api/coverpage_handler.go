package api

import (
	"fmt"
	"time"

	"geodoc/backend"
	"geodoc/types"

	"github.com/gofiber/fiber/v2"
)

type CoverPageHandler struct {
	client *backend.Client
}

func NewCoverPageHandler(client *backend.Client) *CoverPageHandler {
	return &CoverPageHandler{client: client}
}

func (h *CoverPageHandler) HandleStructure(c *fiber.Ctx) error {
	documentID := c.Params("documentID")
	if documentID == "" {
		return ErrInvalidID()
	}
	fields, err := h.client.CoverPageStructure(c.Context(), documentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"fields": fields})
}

func (h *CoverPageHandler) HandleData(c *fiber.Ctx) error {
	documentID := c.Params("documentID")
	if documentID == "" {
		return ErrInvalidID()
	}
	data, err := h.client.CoverPageData(c.Context(), documentID)
	if err != nil {
		return err
	}
	return c.JSON(data)
}

// HandleSaveData validates the submitted values against the backend's field
// structure before forwarding them: required fields must be present, date
// fields must parse.
func (h *CoverPageHandler) HandleSaveData(c *fiber.Ctx) error {
	documentID := c.Params("documentID")
	if documentID == "" {
		return ErrInvalidID()
	}
	data := make(map[string]string)
	if c.BodyParser(&data) != nil {
		return ErrBadRequest()
	}

	fields, err := h.client.CoverPageStructure(c.Context(), documentID)
	if err != nil {
		return err
	}
	if errs := validateCoverPage(fields, data); len(errs) > 0 {
		return NewValidationError(errs)
	}

	if err := h.client.SaveCoverPageData(c.Context(), documentID, data); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"result": "ok"})
}

func validateCoverPage(fields []types.CoverPageField, data map[string]string) map[string]string {
	errs := make(map[string]string)
	for _, field := range fields {
		value, present := data[field.Key]
		if field.Required && (!present || value == "") {
			errs[field.Key] = "failed on 'required' tag"
			continue
		}
		if field.Type == types.FieldDate && value != "" {
			if _, err := time.Parse("2006-01-02", value); err != nil {
				errs[field.Key] = fmt.Sprintf("'%s' is not a valid date (expected YYYY-MM-DD)", value)
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

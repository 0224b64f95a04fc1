package api

import (
	"geodoc/backend"
	"geodoc/types"

	"github.com/gofiber/fiber/v2"
)

// ProjectHandler relays project CRUD to the backend, which owns the records.
type ProjectHandler struct {
	client *backend.Client
}

func NewProjectHandler(client *backend.Client) *ProjectHandler {
	return &ProjectHandler{client: client}
}

func (h *ProjectHandler) HandleList(c *fiber.Ctx) error {
	projects, err := h.client.ListProjects(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"projects": projects})
}

func (h *ProjectHandler) HandleCreate(c *fiber.Ctx) error {
	var params types.ProjectParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	project, err := h.client.CreateProject(c.Context(), params.Name, params.Topic)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(project)
}

func (h *ProjectHandler) HandleUpdate(c *fiber.Ctx) error {
	projectID := c.Params("projectID")
	if projectID == "" {
		return ErrInvalidID()
	}
	var params types.ProjectParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if params.Name == "" {
		return NewValidationError(map[string]string{"Name": "failed on 'required' tag"})
	}

	project, err := h.client.UpdateProject(c.Context(), projectID, params.Name)
	if err != nil {
		return err
	}
	return c.JSON(project)
}

func (h *ProjectHandler) HandleDelete(c *fiber.Ctx) error {
	projectID := c.Params("projectID")
	if projectID == "" {
		return ErrInvalidID()
	}
	if err := h.client.DeleteProject(c.Context(), projectID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"result": "deleted"})
}

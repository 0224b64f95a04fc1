package types

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

type StartParams struct {
	ProjectID  string `json:"project_id" validate:"required"`
	Topic      Topic  `json:"topic" validate:"required"`
	Section    string `json:"section" validate:"required"`
	Subsection string `json:"subsection" validate:"required"`
}

type MessageParams struct {
	DocumentID string `json:"document_id" validate:"required"`
	Section    string `json:"section" validate:"required"`
	Subsection string `json:"subsection" validate:"required"`
	Message    string `json:"message" validate:"required"`
}

type ApproveParams struct {
	DocumentID string `json:"document_id" validate:"required"`
	Section    string `json:"section" validate:"required"`
	Subsection string `json:"subsection" validate:"required"`
	Content    string `json:"content" validate:"required"`
	Approve    bool   `json:"approve"`
}

type ProjectParams struct {
	Name  string `json:"name" validate:"required"`
	Topic Topic  `json:"topic" validate:"required"`
}

type LoginParams struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func validateStruct(params any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(params); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

func (params *StartParams) Validate() map[string]string {
	errors := validateStruct(params)
	if !params.Topic.Valid() {
		if errors == nil {
			errors = make(map[string]string)
		}
		errors["Topic"] = fmt.Sprintf("unknown topic '%s'", params.Topic)
	}
	return errors
}

func (params *MessageParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *ApproveParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *ProjectParams) Validate() map[string]string {
	errors := validateStruct(params)
	if params.Topic != "" && !params.Topic.Valid() {
		if errors == nil {
			errors = make(map[string]string)
		}
		errors["Topic"] = fmt.Sprintf("unknown topic '%s'", params.Topic)
	}
	return errors
}

func (params *LoginParams) Validate() map[string]string {
	return validateStruct(params)
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: http.StatusUnprocessableEntity,
		Errors: errors,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

package utils

import (
	"errors"
	"fmt"
	"net/http"

	"cloudlab-agent/internal/pkg/agent"
)

const (
	CodeSSH        = 1001
	CodeTransfer   = 1002
	CodeCommand    = 2001
	CodeRecipe     = 2002
	CodeValidation = 3001
	CodeNotFound   = 4001
	CodeSystem     = 5001
)

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	// Err is the underlying cause, kept for errors.Is/As.
	Err error `json:"-"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Status maps the error code family onto an HTTP status.
func (e *APIError) Status() int {
	switch e.Code / 1000 {
	case 1:
		return http.StatusBadGateway
	case 2:
		return http.StatusUnprocessableEntity
	case 3:
		return http.StatusBadRequest
	case 4:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func NewSSHError(err error) *APIError {
	return &APIError{
		Code:    CodeSSH,
		Message: "ssh connection error",
		Details: err.Error(),
	}
}

func NewTransferError(err error) *APIError {
	return &APIError{
		Code:    CodeTransfer,
		Message: "file transfer failed",
		Details: err.Error(),
	}
}

func NewCommandError(err error) *APIError {
	return &APIError{
		Code:    CodeCommand,
		Message: "command failed",
		Details: err.Error(),
	}
}

// NewRecipeError reports a recipe that stopped for a reason of its own,
// such as a swarm that was never initialized. err stays reachable through
// errors.Is and errors.As.
func NewRecipeError(step string, err error) *APIError {
	return &APIError{
		Code:    CodeRecipe,
		Message: fmt.Sprintf("recipe step %s failed", step),
		Details: err.Error(),
		Err:     err,
	}
}

func NewValidationError(field string, value interface{}) *APIError {
	return &APIError{
		Code:    CodeValidation,
		Message: fmt.Sprintf("invalid parameter: %s", field),
		Details: fmt.Sprintf("invalid value: %v", value),
	}
}

func NewNotFoundError(what string) *APIError {
	return &APIError{
		Code:    CodeNotFound,
		Message: "not found",
		Details: what,
	}
}

func NewSystemError(err error) *APIError {
	return &APIError{
		Code:    CodeSystem,
		Message: "internal error",
		Details: err.Error(),
	}
}

// FromError classifies an agent error into an APIError.
func FromError(err error) *APIError {
	var (
		apiErr   *APIError
		unknown  *agent.UnknownNodeError
		conn     *agent.ConnectionError
		transfer *agent.TransferError
		fatal    *agent.FatalError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &unknown):
		return NewNotFoundError(unknown.Error())
	case errors.Is(err, agent.ErrEmptyTarget):
		return NewValidationError("target", "[]")
	case errors.As(err, &transfer):
		return NewTransferError(err)
	case errors.As(err, &fatal):
		return NewCommandError(err)
	case errors.As(err, &conn):
		return NewSSHError(err)
	default:
		return NewSystemError(err)
	}
}

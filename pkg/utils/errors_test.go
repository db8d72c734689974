package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"cloudlab-agent/internal/pkg/agent"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantStatus int
	}{
		{"unknown node", &agent.UnknownNodeError{Node: "x"}, 4001, http.StatusNotFound},
		{"empty target", agent.ErrEmptyTarget, 3001, http.StatusBadRequest},
		{"connection", &agent.ConnectionError{Node: "n", Err: agent.ErrUnreachable}, 1001, http.StatusBadGateway},
		{"transfer wraps connection", &agent.TransferError{Node: "n", Op: "upload", Err: &agent.ConnectionError{Node: "n", Err: agent.ErrUnreachable}}, 1002, http.StatusBadGateway},
		{"fatal", fmt.Errorf("run: %w", &agent.FatalError{Node: "n", Command: "false"}), 2001, http.StatusUnprocessableEntity},
		{"api error passes through", NewValidationError("command", ""), 3001, http.StatusBadRequest},
		{"recipe", NewRecipeError("swarm-join", errors.New("no swarm")), 2002, http.StatusUnprocessableEntity},
		{"other", errors.New("boom"), 5001, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := FromError(tt.err)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantStatus, apiErr.Status())
			assert.NotEmpty(t, apiErr.Error())
		})
	}
}

func TestRecipeErrorKeepsCause(t *testing.T) {
	cause := errors.New("swarm not initialized")
	err := fmt.Errorf("task: %w", NewRecipeError("swarm-join", cause))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "recipe step swarm-join failed: swarm not initialized", FromError(err).Error())
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cloudlab-agent/internal/model"
	"cloudlab-agent/pkg/utils"
)

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Success: false,
		Code:    3001,
		Message: "invalid request parameters",
		Details: err.Error(),
	})
}

func respondError(c *gin.Context, err error) {
	apiErr := utils.FromError(err)
	c.JSON(apiErr.Status(), model.ErrorResponse{
		Success: false,
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	})
}

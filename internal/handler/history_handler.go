package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cloudlab-agent/internal/pkg/history"
	"cloudlab-agent/pkg/utils"
)

type HistoryHandler struct {
	store *history.Store
}

func NewHistoryHandler(store *history.Store) *HistoryHandler {
	return &HistoryHandler{store: store}
}

func (h *HistoryHandler) Recent(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(c, utils.NewValidationError("limit", v))
			return
		}
		limit = n
	}

	entries, err := h.store.Recent(c.Request.Context(), c.Query("node"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": entries})
}

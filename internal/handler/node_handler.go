package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cloudlab-agent/internal/model"
	"cloudlab-agent/internal/pkg/agent"
	"cloudlab-agent/internal/service"
)

type NodeHandler struct {
	nodeService *service.NodeService
}

func NewNodeHandler(nodeService *service.NodeService) *NodeHandler {
	return &NodeHandler{
		nodeService: nodeService,
	}
}

func (h *NodeHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.nodeService.List())
}

func (h *NodeHandler) Probe(c *gin.Context) {
	agg, err := h.nodeService.Probe(c.Request.Context())
	if agg == nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewRunResponse(agg, err))
}

// Run executes a command synchronously. Failed exit statuses are reported
// in the body with 200; only requests the agent rejected, and fail-fast
// failures, get an error status.
func (h *NodeHandler) Run(c *gin.Context) {
	var req model.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := req.Target.Target(); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.nodeService.Run(c.Request.Context(), &req)
	if res == nil {
		respondError(c, err)
		return
	}
	if _, fatal := agent.AsFatal(err); fatal {
		c.JSON(http.StatusUnprocessableEntity, model.NewRunResponse(res, err))
		return
	}
	c.JSON(http.StatusOK, model.NewRunResponse(res, err))
}

package handler

import (
	"context"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cloudlab-agent/internal/model"
	"cloudlab-agent/internal/pkg/agent"
	"cloudlab-agent/internal/service"
	"cloudlab-agent/pkg/utils"
)

type RecipeHandler struct {
	recipeService *service.RecipeService
	taskService   *service.TaskService
	upgrader      websocket.Upgrader
}

// NewRecipeHandler accepts websocket upgrades from allowOrigins only; an
// empty list or "*" accepts any origin.
func NewRecipeHandler(recipeService *service.RecipeService, taskService *service.TaskService, allowOrigins []string) *RecipeHandler {
	return &RecipeHandler{
		recipeService: recipeService,
		taskService:   taskService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowOrigins) == 0 ||
					slices.Contains(allowOrigins, "*") || slices.Contains(allowOrigins, origin)
			},
		},
	}
}

func (h *RecipeHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"recipes": service.Recipes()})
}

// Start validates the recipe name and launches it as a background task.
func (h *RecipeHandler) Start(c *gin.Context) {
	name := c.Param("name")
	if !service.Known(name) {
		respondError(c, utils.NewNotFoundError("recipe "+name))
		return
	}

	var req model.RecipeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	taskID := h.taskService.Start(name, func(ctx context.Context) (agent.Result, error) {
		return h.recipeService.Execute(ctx, name, &req)
	})
	c.JSON(http.StatusAccepted, model.TaskResponse{
		Success: true,
		TaskID:  taskID,
		Message: "recipe started",
	})
}

func (h *RecipeHandler) Progress(c *gin.Context) {
	taskID := c.Param("taskId")
	progress, ok := h.taskService.Get(taskID)
	if !ok {
		respondError(c, utils.NewNotFoundError("task "+taskID))
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Stream sends the task log over a websocket, backlog first, and closes the
// socket when the task finishes.
func (h *RecipeHandler) Stream(c *gin.Context) {
	taskID := c.Param("taskId")
	backlog, lines, cancel, ok := h.taskService.Subscribe(taskID)
	if !ok {
		respondError(c, utils.NewNotFoundError("task "+taskID))
		return
	}
	defer cancel()

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Warn("WebSocket upgrade failed", zap.String("task", taskID), zap.Error(err))
		return
	}
	defer ws.Close()

	// a closed socket on the client side ends the stream early
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for _, line := range backlog {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			zap.L().Warn("WebSocket write error", zap.Error(err))
			return
		}
	}
	for line := range lines {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			zap.L().Warn("WebSocket write error", zap.Error(err))
			return
		}
	}

	progress, _ := h.taskService.Get(taskID)
	_ = ws.WriteJSON(progress)
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, progress.Status))
}

package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"cloudlab-agent/internal/handler"
)

type Handlers struct {
	Node    *handler.NodeHandler
	Recipe  *handler.RecipeHandler
	History *handler.HistoryHandler
}

// New builds the engine with logging, recovery and CORS for allowOrigins.
func New(allowOrigins []string, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	config := cors.DefaultConfig()
	if len(allowOrigins) == 0 || (len(allowOrigins) == 1 && allowOrigins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowOrigins
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	RegisterRoutes(r, h)
	return r
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	api := r.Group("/api")
	{
		nodes := api.Group("/nodes")
		{
			nodes.GET("", h.Node.List)
			nodes.POST("/probe", h.Node.Probe)
		}

		api.POST("/run", h.Node.Run)

		recipes := api.Group("/recipes")
		{
			recipes.GET("", h.Recipe.List)
			recipes.POST("/:name", h.Recipe.Start)
		}

		tasks := api.Group("/tasks")
		{
			tasks.GET("/:taskId", h.Recipe.Progress)
			tasks.GET("/:taskId/stream", h.Recipe.Stream)
		}

		if h.History != nil {
			api.GET("/history", h.History.Recent)
		}
	}
}

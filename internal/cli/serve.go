package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cloudlab-agent/internal/handler"
	"cloudlab-agent/internal/router"
	"cloudlab-agent/internal/service"
	"cloudlab-agent/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(r *root) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over HTTP",
		Long: `Serve the agent over HTTP. Fatal command failures do not stop the
server: they are returned to the caller of the request or recorded on the
recipe task.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := r.newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			if port == 0 {
				port = a.cfg.Server.Port
			}
			if err := utils.ValidatePort(port); err != nil {
				return err
			}
			return a.serve(cmd.Context(), fmt.Sprintf("%s:%d", host, port))
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "listen address")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default $SERVER_PORT or 8080)")

	return cmd
}

func (a *app) handlers() router.Handlers {
	h := router.Handlers{
		Node: handler.NewNodeHandler(a.nodes),
		Recipe: handler.NewRecipeHandler(
			a.recipes,
			service.NewTaskService(a.logger),
			a.cfg.Server.AllowOrigins,
		),
	}
	if a.history != nil {
		h.History = handler.NewHistoryHandler(a.history)
	}
	return h
}

// serve blocks until ctx is cancelled or the listener fails.
func (a *app) serve(ctx context.Context, addr string) error {
	zap.ReplaceGlobals(a.logger.Desugar())
	gin.SetMode(gin.ReleaseMode)

	// A zero WriteTimeout keeps websocket task streams open.
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.New(a.cfg.Server.AllowOrigins, a.handlers()),
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infow("Server starting", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

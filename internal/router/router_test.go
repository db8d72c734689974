package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudlab-agent/internal/handler"
	"cloudlab-agent/internal/model"
	"cloudlab-agent/internal/pkg/agent"
	"cloudlab-agent/internal/pkg/history"
	"cloudlab-agent/internal/pkg/logger"
	"cloudlab-agent/internal/pkg/recipes"
	"cloudlab-agent/internal/pkg/swarm"
	"cloudlab-agent/internal/service"
	"cloudlab-agent/internal/testutil/fleettest"
	"cloudlab-agent/internal/testutil/sshtest"
)

const origin = "http://localhost:3000"

func reply(_ context.Context, cmd string) sshtest.Reply {
	switch cmd {
	case "uname -a":
		return sshtest.Reply{Stdout: "Linux\n"}
	case "false":
		return sshtest.Reply{Stderr: "failed\n", Status: 1}
	}
	return sshtest.Reply{Stdout: "done\n"}
}

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	log := logger.Nop()
	a := fleettest.New(t, fleettest.Same(reply, "node-1", "node-2"), []string{"node-1", "node-2"}, agent.WithRecorder(store))
	sw := swarm.NewManager(a, a.Cluster().NetworkPrefix, log)

	return New([]string{origin}, Handlers{
		Node:    handler.NewNodeHandler(service.NewNodeService(a, sw, log)),
		Recipe:  handler.NewRecipeHandler(service.NewRecipeService(recipes.NewInstaller(a, log), sw, log), service.NewTaskService(log), []string{origin}),
		History: handler.NewHistoryHandler(store),
	})
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndNodes(t *testing.T) {
	r := newEngine(t)

	w := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/nodes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[model.ClusterInfo](t, w)
	assert.Equal(t, "node-1", info.MasterNode)
	assert.Len(t, info.Nodes, 2)
	assert.Empty(t, info.Unreachable)

	w = do(t, r, http.MethodPost, "/api/nodes/probe", nil)
	require.Equal(t, http.StatusOK, w.Code)
	probe := decode[model.RunResponse](t, w)
	assert.True(t, probe.Success)
	assert.Equal(t, []string{"Linux"}, probe.Results["node-2"].Stdout)
}

func TestRun(t *testing.T) {
	r := newEngine(t)

	tests := []struct {
		name     string
		body     any
		wantCode int
		check    func(t *testing.T, w *httptest.ResponseRecorder)
	}{
		{
			name:     "single node",
			body:     model.RunRequest{Target: model.TargetRequest{Node: "node-1"}, Command: "uptime"},
			wantCode: http.StatusOK,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				res := decode[model.RunResponse](t, w)
				require.NotNil(t, res.Result)
				assert.Equal(t, []string{"done"}, res.Result.Stdout)
			},
		},
		{
			name:     "list keeps failures as data",
			body:     model.RunRequest{Target: model.TargetRequest{All: true}, Command: "false"},
			wantCode: http.StatusOK,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				res := decode[model.RunResponse](t, w)
				assert.False(t, res.Success)
				assert.Equal(t, 1, res.Results["node-1"].ExitStatus)
			},
		},
		{
			name:     "fail fast",
			body:     model.RunRequest{Target: model.TargetRequest{Node: "node-2"}, Command: "false", ExitOnErr: true},
			wantCode: http.StatusUnprocessableEntity,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				res := decode[model.RunResponse](t, w)
				assert.Contains(t, res.Error, "node-2")
				assert.Equal(t, []string{"failed"}, res.Result.Stderr)
			},
		},
		{
			name:     "unknown node",
			body:     model.RunRequest{Target: model.TargetRequest{Node: "node-9"}, Command: "uptime"},
			wantCode: http.StatusNotFound,
		},
		{
			name:     "empty node list",
			body:     model.RunRequest{Target: model.TargetRequest{Nodes: []string{}}, Command: "uptime"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "no target",
			body:     model.RunRequest{Command: "uptime"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "no command",
			body:     model.RunRequest{Target: model.TargetRequest{All: true}},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/run", tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.check != nil {
				tt.check(t, w)
			}
		})
	}
}

func startRecipe(t *testing.T, r http.Handler, name string, body any) string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/recipes/"+name, body)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	task := decode[model.TaskResponse](t, w)
	require.NotEmpty(t, task.TaskID)
	return task.TaskID
}

func TestRecipeTask(t *testing.T) {
	r := newEngine(t)
	off := false
	taskID := startRecipe(t, r, "hyperthreading", model.RecipeRequest{Target: model.TargetRequest{All: true}, Enabled: &off})

	var progress model.ProgressResponse
	require.Eventually(t, func() bool {
		w := do(t, r, http.MethodGet, "/api/tasks/"+taskID, nil)
		if w.Code != http.StatusOK {
			return false
		}
		progress = decode[model.ProgressResponse](t, w)
		return progress.Status != service.TaskRunning
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, service.TaskSuccess, progress.Status)
	assert.Equal(t, "hyperthreading", progress.Recipe)
	require.NotNil(t, progress.Result)
	assert.Len(t, progress.Result.Results, 2)

	w := do(t, r, http.MethodGet, "/api/history?node=node-2&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "smt/control")
}

func TestRecipeErrors(t *testing.T) {
	r := newEngine(t)

	w := do(t, r, http.MethodPost, "/api/recipes/format-disks", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/tasks/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/history?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/recipes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "swarm-create")
}

func TestTaskStream(t *testing.T) {
	srv := httptest.NewServer(newEngine(t))
	defer srv.Close()

	taskID := startRecipe(t, srv.Config.Handler, "benchmark", model.RecipeRequest{
		Target:  model.TargetRequest{Nodes: []string{"node-1", "node-2"}},
		Command: "stress --cpu 2 --timeout 1",
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/tasks/" + taskID + "/stream"
	header := http.Header{"Origin": []string{origin}}
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer ws.Close()

	var messages []string
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected close: %v", err)
			break
		}
		messages = append(messages, string(msg))
	}

	joined := strings.Join(messages, "\n")
	assert.Contains(t, joined, "Starting benchmark")
	assert.Contains(t, joined, "Completed benchmark")
	assert.Contains(t, messages[len(messages)-1], `"status":"success"`)
}

func TestStreamRejectsForeignOrigin(t *testing.T) {
	srv := httptest.NewServer(newEngine(t))
	defer srv.Close()

	taskID := startRecipe(t, srv.Config.Handler, "reboot", model.RecipeRequest{Target: model.TargetRequest{Node: "node-1"}})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/tasks/" + taskID + "/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newEngine(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/run", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))
}

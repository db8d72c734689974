package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cloudlab-agent/internal/model"
	"cloudlab-agent/internal/pkg/agent"
	"cloudlab-agent/internal/pkg/logger"
)

const (
	TaskRunning = "running"
	TaskSuccess = "success"
	TaskError   = "error"
)

// TaskFunc is the body of an asynchronous task.
type TaskFunc func(ctx context.Context) (agent.Result, error)

type task struct {
	progress    model.ProgressResponse
	done        bool
	subscribers map[int]chan string
	nextSub     int
}

// TaskService runs recipes in the background and keeps their progress and
// logs in memory, keyed by a UUID.
type TaskService struct {
	logger *logger.Logger

	mu    sync.Mutex
	tasks map[string]*task
	now   func() time.Time
}

func NewTaskService(logger *logger.Logger) *TaskService {
	return &TaskService{
		logger: logger,
		tasks:  make(map[string]*task),
		now:    time.Now,
	}
}

// Start launches fn on its own goroutine and returns the task id at once.
// The task outlives the request that started it.
func (s *TaskService) Start(recipe string, fn TaskFunc) string {
	taskID := uuid.New().String()

	s.mu.Lock()
	s.tasks[taskID] = &task{
		progress: model.ProgressResponse{
			Success: true,
			Recipe:  recipe,
			Status:  TaskRunning,
			Logs:    []string{},
		},
		subscribers: make(map[int]chan string),
	}
	s.mu.Unlock()
	s.appendLog(taskID, fmt.Sprintf("Starting %s", recipe))

	go func() {
		res, err := fn(context.Background())
		s.finish(taskID, recipe, res, err)
	}()
	return taskID
}

func (s *TaskService) Get(taskID string) (model.ProgressResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return model.ProgressResponse{}, false
	}
	p := t.progress
	p.Logs = append([]string(nil), t.progress.Logs...)
	return p, true
}

// Subscribe returns the log lines written so far and a channel carrying the
// following ones. The channel is closed when the task finishes or cancel is
// called. A slow reader loses lines rather than blocking the task.
func (s *TaskService) Subscribe(taskID string) (backlog []string, lines <-chan string, cancel func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return nil, nil, nil, false
	}
	backlog = append([]string(nil), t.progress.Logs...)

	ch := make(chan string, 64)
	if t.done {
		close(ch)
		return backlog, ch, func() {}, true
	}

	id := t.nextSub
	t.nextSub++
	t.subscribers[id] = ch

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := t.subscribers[id]; ok {
				delete(t.subscribers, id)
				close(c)
			}
		})
	}
	return backlog, ch, cancel, true
}

func (s *TaskService) appendLog(taskID, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return
	}
	line = fmt.Sprintf("%s %s", s.now().Format(time.TimeOnly), line)
	t.progress.Logs = append(t.progress.Logs, line)
	for _, ch := range t.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

func (s *TaskService) finish(taskID, recipe string, res agent.Result, err error) {
	if agg, ok := res.(agent.AggregatedResult); ok {
		for _, node := range agg.Nodes() {
			s.appendLog(taskID, fmt.Sprintf("%s: exit status %d", node, agg[node].ExitStatus))
		}
	} else if single, ok := res.(*agent.CommandResult); ok {
		s.appendLog(taskID, fmt.Sprintf("%s: exit status %d", single.Node, single.ExitStatus))
	}

	if err != nil {
		s.appendLog(taskID, fmt.Sprintf("Failed %s: %v", recipe, err))
		s.logger.With("task", taskID, "recipe", recipe, "error", err).Error("task failed")
	} else {
		s.appendLog(taskID, fmt.Sprintf("Completed %s", recipe))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[taskID]
	t.progress.Progress = 100
	t.progress.Result = model.NewRunResponse(res, err)
	if err != nil {
		t.progress.Status = TaskError
		t.progress.Error = err.Error()
		t.progress.Success = false
	} else {
		t.progress.Status = TaskSuccess
	}
	t.done = true
	for id, ch := range t.subscribers {
		delete(t.subscribers, id)
		close(ch)
	}
}

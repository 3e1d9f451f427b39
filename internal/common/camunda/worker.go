package camunda

import (
	"sync"

	"conversation-workers/internal/common/config"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

type CamundaWorker struct {
	worker   worker.JobWorker
	taskType string
}

// WorkerGroup opens one job worker per task type and closes them together.
type WorkerGroup struct {
	client  zbc.Client
	logger  *zap.Logger
	mu      sync.Mutex
	workers []*CamundaWorker
}

func NewWorkerGroup(client zbc.Client, logger *zap.Logger) *WorkerGroup {
	return &WorkerGroup{client: client, logger: logger}
}

// Start opens a worker for taskType unless it is disabled in config.
func (g *WorkerGroup) Start(taskType string, cfg config.WorkerConfig, handler worker.JobHandler) bool {
	if !cfg.Enabled {
		g.logger.Info("worker disabled", zap.String("taskType", taskType))
		return false
	}

	jobWorker := g.client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(cfg.MaxJobsActive).
		Timeout(config.GetDuration(cfg.Timeout)).
		Open()

	g.mu.Lock()
	g.workers = append(g.workers, &CamundaWorker{worker: jobWorker, taskType: taskType})
	g.mu.Unlock()

	g.logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", cfg.MaxJobsActive),
		zap.Int("timeoutMs", cfg.Timeout),
	)
	return true
}

// TaskTypes lists the task types with an open worker.
func (g *WorkerGroup) TaskTypes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.workers))
	for _, w := range g.workers {
		out = append(out, w.taskType)
	}
	return out
}

// Stop closes every worker. The Zeebe client stays open.
func (g *WorkerGroup) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, w := range g.workers {
		g.logger.Info("stopping worker", zap.String("taskType", w.taskType))
		w.worker.Close()
	}
	g.workers = nil
}

package jobqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/JonasKleint/ReelKit/app/models"
	"github.com/JonasKleint/ReelKit/internal/pkg/env"
	metrics "github.com/JonasKleint/ReelKit/internal/pkg/metrics/counter"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue              *Queue
	counterFlushTicker *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 3
		if raw := env.GetEnv("JOBQUEUE_WORKERS", ""); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil && v > 0 {
				workerCount = v
			}
		}

		globalManager = &Manager{
			queue:  NewQueue(workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	// Start counter flush worker (Redis -> DB) every 5 seconds
	m.counterFlushTicker = time.NewTicker(5 * time.Second)
	m.wg.Add(1)
	go m.counterFlushWorker()
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks")
	close(m.stopCh)
	m.running = false

	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}

	m.queue.Stop()
	m.wg.Wait()
}

// counterFlushWorker periodically flushes pending Redis counters to the database
func (m *Manager) counterFlushWorker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			// Final flush on shutdown
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[JobQueue Manager] Final counter flush failed: %v", err)
			}
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush failed: %v", err)
			}
		}
	}
}

// EnqueueRenderJob queues a project for the AI render pipeline.
func EnqueueRenderJob(project *models.Project) (*Job, error) {
	payload := RenderJobPayload{
		ProjectID:      project.ID,
		ProjectUUID:    project.UUID,
		Prompt:         project.Prompt,
		SourceVideoRef: project.SourceVideoRef,
	}
	return GetManager().GetQueue().EnqueueJob(JobTypeRenderProject, payload.ToMap())
}

// EnqueuePublishJob queues the social publish step for a project.
func EnqueuePublishJob(project *models.Project, shareCode string) (*Job, error) {
	payload := PublishJobPayload{
		ProjectID:   project.ID,
		ProjectUUID: project.UUID,
		ShareCode:   shareCode,
	}
	return GetManager().GetQueue().EnqueueJob(JobTypePublishProject, payload.ToMap())
}

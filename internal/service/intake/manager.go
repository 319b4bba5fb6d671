package intake

import (
	"bytes"
	"context"
	"sync"

	"sorter/internal/logger"
	"sorter/internal/metrics"
	"sorter/internal/service/pipeline"
)

// Processor runs the detection pipeline on one encoded frame.
type Processor interface {
	ProcessBytes(ctx context.Context, data []byte) (*pipeline.Result, error)
	ProcessDataURI(ctx context.Context, uri string) (*pipeline.Result, error)
}

// Task is one frame waiting for a worker.
type Task struct {
	Image  []byte
	Source string
}

// Manager feeds frames from push sources (MQTT, UDP cameras) into the pipeline through
// a bounded queue. When the queue is full new frames are dropped.
type Manager struct {
	processor Processor
	logger    *logger.Logger

	processingQueue chan Task
	numWorkers      int

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewManager starts workers goroutines reading from a queue of queueSize frames.
func NewManager(processor Processor, workers, queueSize int, logger *logger.Logger) *Manager {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	m := &Manager{
		processor:       processor,
		logger:          logger,
		processingQueue: make(chan Task, queueSize),
		numWorkers:      workers,
	}

	for i := 0; i < m.numWorkers; i++ {
		m.wg.Add(1)
		go m.processingWorker(i)
	}

	m.logger.Info("Intake manager started with %d workers, queue %d", workers, queueSize)
	return m
}

// HandleFrame queues a frame. It never blocks and reports whether the frame was accepted.
func (m *Manager) HandleFrame(image []byte, source string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.stopped {
		return false
	}

	select {
	case m.processingQueue <- Task{Image: image, Source: source}:
		return true
	default:
		metrics.FramesDropped.WithLabelValues(source).Inc()
		m.logger.Warning("Processing queue full, dropping frame from %s", source)
		return false
	}
}

// HandleMessage adapts HandleFrame to the MQTT handler signature.
// The payload may be a raw image or a base64 data URI.
func (m *Manager) HandleMessage(topic string, payload []byte) {
	image := make([]byte, len(payload))
	copy(image, payload)
	m.HandleFrame(image, "mqtt:"+topic)
}

func (m *Manager) processingWorker(workerID int) {
	defer m.wg.Done()

	for task := range m.processingQueue {
		m.process(task)
	}

	m.logger.Info("Processing worker %d stopped", workerID)
}

func (m *Manager) process(task Task) {
	ctx := context.Background()

	var (
		result *pipeline.Result
		err    error
	)
	if bytes.HasPrefix(task.Image, []byte("data:")) {
		result, err = m.processor.ProcessDataURI(ctx, string(task.Image))
	} else {
		result, err = m.processor.ProcessBytes(ctx, task.Image)
	}
	if err != nil {
		m.logger.Error("Frame from %s rejected: %v", task.Source, err)
		return
	}

	if n := result.Dispatched(); n > 0 {
		m.logger.Info("Frame from %s triggered %d actuation(s)", task.Source, n)
	}
}

// Stop stops accepting frames, drains the queue and waits for the workers.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.processingQueue)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("All processing workers stopped")
}

package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// AccessLog batches access entries and writes them from a small worker pool
// so request handling never waits on log output.
type AccessLog struct {
	workerCount int
	batchSize   int
	timeout     time.Duration
	logger      *zap.Logger

	inputChan  chan AccessLogEntry
	batchChan  chan []AccessLogEntry
	shutdownCh chan struct{}
	doneCh     chan struct{}
	once       sync.Once
	startOnce  sync.Once
	started    atomic.Bool

	wg sync.WaitGroup
}

func NewAccessLog(workerCount, batchSize int, timeout time.Duration, logger *zap.Logger) *AccessLog {
	if workerCount <= 0 {
		workerCount = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessLog{
		workerCount: workerCount,
		batchSize:   batchSize,
		timeout:     timeout,
		logger:      logger,
		inputChan:   make(chan AccessLogEntry, workerCount*batchSize*2),
		batchChan:   make(chan []AccessLogEntry, workerCount*2),
		shutdownCh:  make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

func (m *AccessLog) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.started.Store(true)
		m.wg.Add(1)
		go m.runAggregator(ctx)

		for i := 0; i < m.workerCount; i++ {
			m.wg.Add(1)
			go m.runWorker(i)
		}
	})
}

// Record queues an entry. Before Start and after the pipeline has stopped,
// entries are written directly.
func (m *AccessLog) Record(ctx context.Context, entry AccessLogEntry) {
	if !m.started.Load() {
		m.write(-1, entry)
		return
	}

	select {
	case <-m.doneCh:
		m.write(-1, entry)
		return
	default:
	}

	select {
	case m.inputChan <- entry:
	case <-m.doneCh:
		m.write(-1, entry)
	case <-ctx.Done():
		m.write(-1, entry)
	}
}

// Shutdown flushes queued entries and waits for the workers, or for ctx.
func (m *AccessLog) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		close(m.shutdownCh)

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			m.logger.Warn("access log shutdown interrupted", zap.Error(ctx.Err()))
		}
	})
}

func (m *AccessLog) runAggregator(ctx context.Context) {
	defer m.wg.Done()

	var (
		batch    []AccessLogEntry
		timer    *time.Timer
		timeoutC <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
		close(m.doneCh)
		// drain what was queued before doneCh closed
	drain:
		for {
			select {
			case entry := <-m.inputChan:
				batch = append(batch, entry)
			default:
				break drain
			}
		}
		if len(batch) > 0 {
			m.dispatchBatch(batch)
		}
		close(m.batchChan)
	}()

	for {
		select {
		case entry := <-m.inputChan:
			batch = append(batch, entry)
			if len(batch) >= m.batchSize {
				m.dispatchBatch(batch)
				batch = nil
				timeoutC = nil
			} else if len(batch) == 1 {
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(m.timeout)
				timeoutC = timer.C
			}

		case <-timeoutC:
			m.dispatchBatch(batch)
			batch = nil
			timeoutC = nil

		case <-ctx.Done():
			return

		case <-m.shutdownCh:
			return
		}
	}
}

func (m *AccessLog) dispatchBatch(batch []AccessLogEntry) {
	batchCopy := make([]AccessLogEntry, len(batch))
	copy(batchCopy, batch)

	select {
	case m.batchChan <- batchCopy:
	default:
		m.writeBatch(-1, batchCopy)
	}
}

func (m *AccessLog) runWorker(id int) {
	defer m.wg.Done()
	for batch := range m.batchChan {
		m.writeBatch(id, batch)
	}
}

func (m *AccessLog) writeBatch(workerID int, batch []AccessLogEntry) {
	for _, entry := range batch {
		m.write(workerID, entry)
	}
}

func (m *AccessLog) write(workerID int, e AccessLogEntry) {
	m.logger.Info("request",
		zap.Int("worker", workerID),
		zap.Time("timestamp", e.Timestamp),
		zap.String("request_id", e.RequestID),
		zap.String("method", e.Method),
		zap.String("path", e.Path),
		zap.String("route", e.Route),
		zap.Int("status", e.StatusCode),
		zap.String("user_key", e.UserKey),
		zap.String("buyer_id", e.BuyerID),
		zap.String("tab", e.Tab),
		zap.String("cache", e.Cache),
		zap.Int("bytes", e.Bytes),
		zap.Duration("duration", e.Duration),
	)
}

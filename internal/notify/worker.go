package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cosmetica/clinic-booking/internal/messaging"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

const (
	defaultWorkerCount   = 1
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
	defaultSendTimeout   = 15 * time.Second
)

// Dispatch is the delivery step the worker runs for each request.
type Dispatch interface {
	Dispatch(ctx context.Context, req Request) (*messaging.Receipt, error)
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	sendTimeout      time.Duration
}

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithSendTimeout bounds each provider call.
func WithSendTimeout(d time.Duration) WorkerOption {
	return func(cfg *workerConfig) {
		if d > 0 {
			cfg.sendTimeout = d
		}
	}
}

// Worker consumes notification requests. Messages are deleted before delivery is
// attempted, so each request is delivered at most once and never retried.
type Worker struct {
	queue    queueClient
	dispatch Dispatch
	logger   *logging.Logger
	cfg      workerConfig
	wg       sync.WaitGroup
}

func NewWorker(queue queueClient, dispatch Dispatch, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("notify: queue cannot be nil")
	}
	if dispatch == nil {
		panic("notify: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		sendTimeout:      defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{queue: queue, dispatch: dispatch, logger: logger, cfg: cfg}
}

// Start launches the consumer goroutines; they stop when ctx is done.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("notification worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("notification worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive notifications", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	w.deleteMessage(msg.ReceiptHandle)

	payload, err := decodePayload(msg.Body)
	if err != nil {
		w.logger.Error("dropping undecodable notification", "error", err, "msg_id", msg.ID)
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.sendTimeout)
	defer cancel()
	receipt, err := w.dispatch.Dispatch(sendCtx, payload.Request)
	if err != nil {
		w.logger.Warn("notification not delivered",
			"job_id", payload.ID,
			"kind", payload.Request.Kind,
			"error", err,
		)
		return
	}
	sid := ""
	if receipt != nil {
		sid = receipt.SID
	}
	w.logger.Info("notification delivered",
		"job_id", payload.ID,
		"kind", payload.Request.Kind,
		"sid", sid,
		"queued_for", time.Since(payload.EnqueuedAt).String(),
	)
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete notification message", "error", err)
	}
}

// Run starts the consumers and blocks until ctx is done and they have exited.
func (w *Worker) Run(ctx context.Context) {
	w.Start(ctx)
	w.Wait()
}

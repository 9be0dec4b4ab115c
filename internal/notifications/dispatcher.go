package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	"github.com/bazaarlabs/bazaar-backend/pkg/logger"
)

const (
	defaultQueueSize = 256
	persistTimeout   = 5 * time.Second
)

// Dispatcher persists notifications off the request path. Delivery is
// best-effort: a full queue or a failed write is logged and dropped, never
// surfaced to the caller.
type Dispatcher struct {
	repo   Repository
	logger *logger.Logger

	queue chan models.Notification
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher builds a dispatcher with a bounded queue. queueSize <= 0
// falls back to the default.
func NewDispatcher(repo Repository, logg *logger.Logger, queueSize int) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	d := &Dispatcher{
		repo:   repo,
		logger: logg,
		queue:  make(chan models.Notification, queueSize),
	}
	d.wg.Add(1)
	go d.run()
	return d, nil
}

// Enqueue queues a notification for persistence. It never blocks; when the
// queue is full the notification is dropped with a warning.
func (d *Dispatcher) Enqueue(ctx context.Context, notification models.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.queue <- notification:
	default:
		if d.logger != nil {
			d.logger.Warn(ctx, fmt.Sprintf("notification queue full, dropping %s for %s", notification.Type, notification.RecipientID))
		}
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for notification := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := d.repo.Create(ctx, &notification); err != nil && d.logger != nil {
			d.logger.Error(ctx, fmt.Sprintf("persisting notification %s for %s", notification.Type, notification.RecipientID), err)
		}
		cancel()
	}
}

// Close drains the queue and stops the worker.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

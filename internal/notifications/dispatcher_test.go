package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	"github.com/bazaarlabs/bazaar-backend/pkg/enums"
	"github.com/bazaarlabs/bazaar-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type memoryRepo struct {
	mu    sync.Mutex
	saved []models.Notification
	fail  bool
}

func (m *memoryRepo) WithTx(tx *gorm.DB) Repository { return m }

func (m *memoryRepo) Create(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return context.DeadlineExceeded
	}
	m.saved = append(m.saved, *n)
	return nil
}

func (m *memoryRepo) ListForRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, cursor *pagination.Cursor, limit int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.saved {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memoryRepo) MarkRead(ctx context.Context, id, recipientID uuid.UUID) (bool, error) {
	return false, nil
}

func (m *memoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func TestDispatcherPersistsEnqueued(t *testing.T) {
	repo := &memoryRepo{}
	dispatcher, err := NewDispatcher(repo, nil, 8)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	recipient := uuid.New()
	for i := 0; i < 5; i++ {
		dispatcher.Enqueue(context.Background(), models.Notification{
			ID:          uuid.New(),
			RecipientID: recipient,
			Type:        enums.NotificationTypeOrderPaid,
			Title:       "Order paid",
			Description: "Payment confirmed.",
		})
	}
	dispatcher.Close()

	if got := repo.count(); got != 5 {
		t.Fatalf("persisted %d notifications, want 5", got)
	}
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	repo := &memoryRepo{fail: true} // writes fail slowly enough to back up
	dispatcher, err := NewDispatcher(repo, nil, 1)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	defer dispatcher.Close()

	// flood well past the queue size; Enqueue must never block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			dispatcher.Enqueue(context.Background(), models.Notification{
				ID:          uuid.New(),
				RecipientID: uuid.New(),
				Type:        enums.NotificationTypeGeneralActivity,
			})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}

func TestDispatcherEnqueueAfterCloseIsNoOp(t *testing.T) {
	repo := &memoryRepo{}
	dispatcher, err := NewDispatcher(repo, nil, 8)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	dispatcher.Close()

	// must not panic on the closed queue
	dispatcher.Enqueue(context.Background(), models.Notification{ID: uuid.New(), RecipientID: uuid.New()})
}

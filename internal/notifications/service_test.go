package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarlabs/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
	"github.com/bazaarlabs/bazaar-backend/pkg/pagination"
)

type pageRepo struct {
	notifications []models.Notification
	lastCursor    *pagination.Cursor
	lastLimit     int
}

func (r *pageRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *pageRepo) Create(ctx context.Context, n *models.Notification) error { return nil }

func (r *pageRepo) ListForRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, cursor *pagination.Cursor, limit int) ([]models.Notification, error) {
	r.lastCursor = cursor
	r.lastLimit = limit

	start := 0
	if cursor != nil {
		for i, n := range r.notifications {
			if n.CreatedAt.Before(cursor.CreatedAt) {
				start = i
				break
			}
		}
	}
	out := r.notifications[start:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *pageRepo) MarkRead(ctx context.Context, id, recipientID uuid.UUID) (bool, error) {
	return false, nil
}

func seedPage(count int) []models.Notification {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]models.Notification, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, models.Notification{
			ID:        uuid.New(),
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		})
	}
	return out
}

func TestListReturnsNextCursorWhenMorePagesExist(t *testing.T) {
	repo := &pageRepo{notifications: seedPage(5)}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("service setup: %v", err)
	}

	result, err := svc.List(context.Background(), ListParams{RecipientID: uuid.New(), Limit: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Notifications) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(result.Notifications))
	}
	if result.NextCursor == "" {
		t.Fatal("expected next cursor on partial page")
	}
	if repo.lastLimit != 4 {
		t.Fatalf("expected buffered limit 4, got %d", repo.lastLimit)
	}

	cursor, err := pagination.ParseCursor(result.NextCursor)
	if err != nil {
		t.Fatalf("cursor should round-trip: %v", err)
	}
	last := result.Notifications[2]
	if cursor.ID != last.ID || !cursor.CreatedAt.Equal(last.CreatedAt) {
		t.Fatalf("cursor should point at the last returned row")
	}
}

func TestListOmitsCursorOnFinalPage(t *testing.T) {
	repo := &pageRepo{notifications: seedPage(2)}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("service setup: %v", err)
	}

	result, err := svc.List(context.Background(), ListParams{RecipientID: uuid.New(), Limit: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Notifications) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Notifications))
	}
	if result.NextCursor != "" {
		t.Fatalf("final page should have no cursor, got %q", result.NextCursor)
	}
}

func TestListRejectsMalformedCursor(t *testing.T) {
	svc, err := NewService(&pageRepo{})
	if err != nil {
		t.Fatalf("service setup: %v", err)
	}

	_, err = svc.List(context.Background(), ListParams{RecipientID: uuid.New(), Cursor: "%%%not-base64%%%"})
	if err == nil {
		t.Fatal("expected error")
	}
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListForwardsParsedCursor(t *testing.T) {
	repo := &pageRepo{notifications: seedPage(3)}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("service setup: %v", err)
	}

	want := pagination.Cursor{CreatedAt: time.Date(2026, 3, 1, 11, 58, 0, 0, time.UTC), ID: uuid.New()}
	_, err = svc.List(context.Background(), ListParams{
		RecipientID: uuid.New(),
		Cursor:      pagination.EncodeCursor(want),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastCursor == nil || repo.lastCursor.ID != want.ID {
		t.Fatalf("expected repository to receive the decoded cursor")
	}
}

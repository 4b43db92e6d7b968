package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mc-Beton/K-fun/internal/domain"
	"github.com/Mc-Beton/K-fun/internal/domain/entity"
	"github.com/Mc-Beton/K-fun/internal/domain/repository"
)

var _ repository.NotificationRepository = (*NotificationRepo)(nil)

// NotificationRepo implements NotificationRepository.
type NotificationRepo struct {
	q Querier
}

// NewNotificationRepository builds the adapter.
func NewNotificationRepository(q Querier) *NotificationRepo {
	return &NotificationRepo{q: q}
}

// Create persists a notification.
func (r *NotificationRepo) Create(ctx context.Context, n *entity.SystemNotification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO system_notifications (id, category, level, title, message, details, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		n.ID, n.Category, n.Level, n.Title, n.Message, nullIfEmpty(n.Details), n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// GetRecent lists the newest notifications, up to limit.
func (r *NotificationRepo) GetRecent(ctx context.Context, limit int) ([]*entity.SystemNotification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, category, level, title, message, details, is_read, created_at
		FROM system_notifications
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var items []*entity.SystemNotification
	for rows.Next() {
		var n entity.SystemNotification
		var details *string
		if err := rows.Scan(&n.ID, &n.Category, &n.Level, &n.Title, &n.Message, &details, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Details = derefStr(details)
		items = append(items, &n)
	}
	return items, rows.Err()
}

// MarkRead flags a notification as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `UPDATE system_notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

package repository

import (
	"context"

	"github.com/Mc-Beton/K-fun/internal/domain/entity"
)

// NotificationRepository is the persistence port for the notification feed.
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.SystemNotification) error
	GetRecent(ctx context.Context, limit int) ([]*entity.SystemNotification, error)
	MarkRead(ctx context.Context, id string) error
}

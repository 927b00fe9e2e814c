package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/playforge/esports-platform/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationRepository interface {
	Enqueue(ctx context.Context, n *models.Notification) error
	// ListDue возвращает уведомления в очереди, чей срок ретрая наступил.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Notification, error)
	MarkSent(ctx context.Context, id int, deliveryID string, at time.Time) error
	// MarkAttemptFailed фиксирует неудачную попытку; status переходит в failed,
	// когда попытки исчерпаны, иначе остаётся queued с новым сроком ретрая.
	MarkAttemptFailed(ctx context.Context, id int, lastError string, nextRetry *time.Time, at time.Time) error
}

type postgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) Enqueue(ctx context.Context, n *models.Notification) error {
	params, err := json.Marshal(n.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal notification params: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO notifications (event_type, template_id, recipient, params, status)
		VALUES ($1, $2, $3, $4, 'queued')
		RETURNING id, created_at, updated_at`,
		n.EventType, n.TemplateID, n.Recipient, params,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	n.Status = models.NotificationQueued
	return nil
}

func (r *postgresNotificationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, template_id, recipient, params, status, attempts,
		       last_error, delivery_id, next_retry, created_at, updated_at
		FROM notifications
		WHERE status = 'queued' AND (next_retry IS NULL OR next_retry <= $1)
		ORDER BY id
		LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var params []byte
		err := rows.Scan(
			&n.ID, &n.EventType, &n.TemplateID, &n.Recipient, &params, &n.Status,
			&n.Attempts, &n.LastError, &n.DeliveryID, &n.NextRetry, &n.CreatedAt, &n.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &n.Params); err != nil {
				return nil, fmt.Errorf("failed to unmarshal notification params: %w", err)
			}
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (r *postgresNotificationRepository) MarkSent(ctx context.Context, id int, deliveryID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications
		SET status = 'sent', delivery_id = $1, attempts = attempts + 1, last_error = NULL, updated_at = $2
		WHERE id = $3`,
		deliveryID, at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows for notification update: %w", err)
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *postgresNotificationRepository) MarkAttemptFailed(ctx context.Context, id int, lastError string, nextRetry *time.Time, at time.Time) error {
	status := models.NotificationQueued
	if nextRetry == nil {
		status = models.NotificationFailed
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications
		SET status = $1, attempts = attempts + 1, last_error = $2, next_retry = $3, updated_at = $4
		WHERE id = $5`,
		status, lastError, nextRetry, at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification attempt failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows for notification update: %w", err)
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

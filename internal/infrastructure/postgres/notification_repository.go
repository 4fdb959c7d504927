package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mr-houngbo/Colit/internal/domain/notification"
)

const notificationColumns = `notification_id, coli_space_id, type, title, body, metadata, recipient_id, status, retry_count, max_retries, last_error, created_at, sent_at, failed_at, delivered_via`

// NotificationRepository implements notification.Repository.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	metadata := n.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, n.NotificationID, n.ColiSpaceID, n.Type, n.Title, n.Body, metadata, n.RecipientID, n.Status, n.RetryCount, n.MaxRetries, n.LastError, n.CreatedAt, n.SentAt, n.FailedAt, deliveredVia(n))
	return err
}

func (r *NotificationRepository) Update(ctx context.Context, n *notification.Notification) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status=$1, retry_count=$2, max_retries=$3, last_error=$4, sent_at=$5, failed_at=$6, delivered_via=$7
		WHERE notification_id=$8
	`, n.Status, n.RetryCount, n.MaxRetries, n.LastError, n.SentAt, n.FailedAt, deliveredVia(n), n.NotificationID)
	return err
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*notification.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE recipient_id=$1 ORDER BY created_at ASC LIMIT $2
	`, recipientID, limit)
	if err != nil {
		return nil, err
	}
	return collectNotifications(rows)
}

func (r *NotificationRepository) ListRetryable(ctx context.Context, limit int) ([]*notification.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE status='FAILED' AND retry_count < max_retries
		ORDER BY created_at ASC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return collectNotifications(rows)
}

func collectNotifications(rows pgx.Rows) ([]*notification.Notification, error) {
	defer rows.Close()
	var out []*notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNotification(row pgx.Row) (*notification.Notification, error) {
	var n notification.Notification
	if err := row.Scan(&n.NotificationID, &n.ColiSpaceID, &n.Type, &n.Title, &n.Body, &n.Metadata, &n.RecipientID, &n.Status, &n.RetryCount, &n.MaxRetries, &n.LastError, &n.CreatedAt, &n.SentAt, &n.FailedAt, &n.DeliveredVia); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

func deliveredVia(n *notification.Notification) []string {
	if n.DeliveredVia == nil {
		return []string{}
	}
	return n.DeliveredVia
}

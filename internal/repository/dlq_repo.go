package repository

import (
	"context"
	"database/sql"
	"fmt"

	"subscribe/internal/model"
)

const deadLetterUnprocessed = "unprocessed"

// DLQRepository persists queue messages the reminder worker gave up on.
type DLQRepository interface {
	Create(ctx context.Context, message *model.DeadLetterMessage) error
}

type dlqRepository struct {
	db *sql.DB
}

func NewDLQRepository(db *sql.DB) DLQRepository {
	return &dlqRepository{db: db}
}

// Create inserts message and fills in its generated id and timestamps.
func (r *dlqRepository) Create(ctx context.Context, message *model.DeadLetterMessage) error {
	if message.Status == "" {
		message.Status = deadLetterUnprocessed
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO dead_letter_messages (queue_name, message_id, payload, error, status)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		RETURNING id::text, created_at, updated_at`,
		message.QueueName, message.MessageID, message.Payload, message.Error, message.Status,
	)
	if err := row.Scan(&message.ID, &message.CreatedAt, &message.UpdatedAt); err != nil {
		return fmt.Errorf("insert dead letter for %s/%s: %w", message.QueueName, message.MessageID, err)
	}
	return nil
}

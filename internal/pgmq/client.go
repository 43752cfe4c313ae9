// Package pgmq is a thin client for the pgmq Postgres extension.
package pgmq

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Client runs pgmq functions over a database/sql connection.
type Client struct {
	db *sql.DB
}

func New(db *sql.DB) *Client {
	return &Client{db: db}
}

// Message is one queue entry. ReadCount counts deliveries, including this one.
type Message struct {
	ID         int64
	ReadCount  int
	EnqueuedAt time.Time
	Data       []byte // raw JSON payload
}

// ReadOptions control a polling read. A message stays invisible to other
// readers for VisibilitySec after it is read; the call waits up to PollSec
// for the first message.
type ReadOptions struct {
	VisibilitySec int
	Qty           int
	PollSec       int
}

// Send pushes a JSON payload into the given queue.
func (c *Client) Send(ctx context.Context, queue string, payload []byte) error {
	if _, err := c.db.ExecContext(ctx, "SELECT pgmq.send($1, $2::jsonb, 0)", queue, string(payload)); err != nil {
		return fmt.Errorf("pgmq send to %s: %w", queue, err)
	}
	return nil
}

// SendJSON marshals v and sends it.
func (c *Client) SendJSON(ctx context.Context, queue string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("pgmq marshal payload: %w", err)
	}
	return c.Send(ctx, queue, payload)
}

// Read fetches up to opts.Qty messages, waiting up to opts.PollSec for one to arrive.
func (c *Client) Read(ctx context.Context, queue string, opts ReadOptions) ([]*Message, error) {
	const query = "SELECT msg_id, read_ct, enqueued_at, message FROM pgmq.read_with_poll($1, $2, $3, $4)"
	rows, err := c.db.QueryContext(ctx, query, queue, opts.VisibilitySec, opts.Qty, opts.PollSec)
	if err != nil {
		return nil, fmt.Errorf("pgmq read_with_poll on %s: %w", queue, err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.ReadCount, &m.EnqueuedAt, &m.Data); err != nil {
			return nil, fmt.Errorf("pgmq scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgmq read rows: %w", err)
	}
	return msgs, nil
}

// Delete removes one message. It reports whether the message existed.
func (c *Client) Delete(ctx context.Context, queue string, msgID int64) (bool, error) {
	var deleted bool
	if err := c.db.QueryRowContext(ctx, "SELECT pgmq.delete($1, $2::bigint)", queue, msgID).Scan(&deleted); err != nil {
		return false, fmt.Errorf("pgmq delete %d from %s: %w", msgID, queue, err)
	}
	return deleted, nil
}

// Package reminder runs the reminder queue: a sweep that enqueues due
// reminders and a consumer that sends them.
package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"subscribe/internal/model"
	"subscribe/internal/pgmq"
	"subscribe/internal/service"

	"github.com/rs/zerolog"
)

// Queue is the subset of the pgmq client the consumer needs.
type Queue interface {
	Read(ctx context.Context, queue string, opts pgmq.ReadOptions) ([]*pgmq.Message, error)
	Delete(ctx context.Context, queue string, msgID int64) (bool, error)
}

type Options struct {
	Queue         string
	VisibilitySec int
	PollSec       int
	MaxMessages   int
	// MaxAttempts dead-letters a message once it has been delivered more
	// often than this, e.g. after the worker crashed mid-dispatch. Zero disables the cap.
	MaxAttempts int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Run consumes the reminder queue until ctx is cancelled. Messages that
// cannot be decoded or sent are recorded in the dead letter table and removed.
func Run(ctx context.Context, logger zerolog.Logger, client Queue, svc service.ReminderService, dlq service.DLQService, opts Options) error {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 1
	}
	if opts.VisibilitySec <= 0 {
		opts.VisibilitySec = 60
	}
	readOpts := pgmq.ReadOptions{VisibilitySec: opts.VisibilitySec, Qty: opts.MaxMessages, PollSec: opts.PollSec}
	logger.Info().Str("queue", opts.Queue).Msg("Starting reminder orchestrator")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down reminder orchestrator")
			return nil
		default:
		}

		msgs, err := client.Read(ctx, opts.Queue, readOpts)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("Error reading reminder queue")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			process(ctx, logger, client, svc, dlq, opts, msg)
		}
	}
}

func process(ctx context.Context, logger zerolog.Logger, client Queue, svc service.ReminderService, dlq service.DLQService, opts Options, msg *pgmq.Message) {
	log := logger.With().Int64("msg_id", msg.ID).Int("read_ct", msg.ReadCount).Logger()

	var job model.ReminderJob
	var err error
	if opts.MaxAttempts > 0 && msg.ReadCount > opts.MaxAttempts {
		err = fmt.Errorf("gave up after %d deliveries", msg.ReadCount)
	} else if err = json.Unmarshal(msg.Data, &job); err != nil {
		err = fmt.Errorf("decode reminder job: %w", err)
	} else {
		err = svc.Dispatch(ctx, job, opts.Now())
	}
	if err != nil {
		log.Error().Err(err).Msg("Reminder job failed")
		if dlqErr := dlq.RecordFailure(ctx, opts.Queue, msg.ID, msg.Data, err); dlqErr != nil {
			// Leave the message to reappear after its visibility timeout.
			log.Error().Err(dlqErr).Msg("Failed to record reminder job in dead letter table")
			return
		}
	}

	if ok, err := client.Delete(ctx, opts.Queue, msg.ID); err != nil {
		log.Error().Err(err).Msg("Error deleting reminder message")
	} else if !ok {
		log.Warn().Msg("Reminder message already deleted")
	}
}

// Sweep enqueues every reminder due at now. It runs once and returns.
func Sweep(ctx context.Context, logger zerolog.Logger, svc service.ReminderService, now time.Time) error {
	logger.Info().Time("now", now).Msg("Starting reminder sweep")
	n, err := svc.Sweep(ctx, now)
	if err != nil {
		return fmt.Errorf("reminder sweep: %w", err)
	}
	logger.Info().Int("queued", n).Msg("Reminder sweep complete")
	return nil
}

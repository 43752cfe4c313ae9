package service

import (
	"context"
	"strconv"

	"subscribe/internal/model"
	"subscribe/internal/repository"
)

type DLQService interface {
	// RecordFailure stores a queue message that could not be processed.
	RecordFailure(ctx context.Context, queue string, msgID int64, payload []byte, cause error) error
}

type dlqService struct {
	repo repository.DLQRepository
}

func NewDLQService(repo repository.DLQRepository) DLQService {
	return &dlqService{repo: repo}
}

func (s *dlqService) RecordFailure(ctx context.Context, queue string, msgID int64, payload []byte, cause error) error {
	var errText *string
	if cause != nil {
		msg := cause.Error()
		errText = &msg
	}
	dbMessage := &model.DeadLetterMessage{
		QueueName: queue,
		MessageID: strconv.FormatInt(msgID, 10),
		Payload:   string(payload),
		Error:     errText,
		Status:    "unprocessed",
	}
	return s.repo.Create(ctx, dbMessage)
}

package handler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/errs"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
)

type returnLoan func(ctx context.Context, loanID int, notes *string) (model.Loan, error)

const (
	retryDelay    = 500 * time.Millisecond
	maxRetryDelay = 30 * time.Second
)

// Consumer applies kiosk returns published on the returns topic.
type Consumer struct {
	returnLoanHandler returnLoan
	log               *zap.Logger
	retryDelay        time.Duration

	once  sync.Once
	ready chan struct{}
}

func NewConsumer(returnLoan returnLoan, log *zap.Logger) *Consumer {
	return &Consumer{
		returnLoanHandler: returnLoan,
		log:               log.Named("consumer"),
		retryDelay:        retryDelay,
		ready:             make(chan struct{}),
	}
}

// Ready is closed after the first group session is set up.
func (consumer *Consumer) Ready() <-chan struct{} {
	return consumer.ready
}

func (consumer *Consumer) Setup(sarama.ConsumerGroupSession) error {
	consumer.once.Do(func() { close(consumer.ready) })
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (consumer *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				consumer.log.Warn("message channel was closed")
				return nil
			}
			// a message is marked only once handled, so a later offset never commits past it
			if err := consumer.process(session.Context(), message); err != nil {
				consumer.log.Warn("claim stopped before message was handled", zap.Int64("offset", message.Offset), zap.Error(err))
				return nil
			}
			consumer.log.Debug("Message claimed:", zap.String("value", string(message.Value)), zap.Time("timestamp", message.Timestamp), zap.String("topic", message.Topic))
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// process retries handle with backoff until it succeeds or ctx is done.
func (consumer *Consumer) process(ctx context.Context, message *sarama.ConsumerMessage) error {
	delay := consumer.retryDelay
	for {
		err := consumer.handle(ctx, message.Value)
		if err == nil {
			return nil
		}
		consumer.log.Error("consumer.returnLoanHandler", zap.Error(err),
			zap.ByteString("value", message.Value),
			zap.Int64("offset", message.Offset),
			zap.Duration("retry_in", delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

// handle returns an error only for failures worth redelivering.
// Malformed events and returns that no longer apply are dropped.
func (consumer *Consumer) handle(ctx context.Context, value []byte) error {
	var ev model.ReturnEvent
	if err := json.Unmarshal(value, &ev); err != nil || ev.LoanID <= 0 {
		consumer.log.Warn("drop malformed return event", zap.ByteString("value", value), zap.Error(err))
		return nil
	}
	loan, err := consumer.returnLoanHandler(ctx, ev.LoanID, ev.Notes)
	switch {
	case err == nil:
		consumer.log.Info("kiosk return", zap.Int("loan_id", loan.ID), zap.Int("copy_id", loan.CopyID))
		return nil
	case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrInvalidState):
		consumer.log.Warn("skip return event", zap.Int("loan_id", ev.LoanID), zap.Error(err))
		return nil
	default:
		return err
	}
}

package handler

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/errs"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
)

func TestConsumer_handle(t *testing.T) {
	t.Parallel()
	notes := "kiosk 2"

	var tests = []struct {
		name      string
		value     string
		returnErr error
		wantCall  bool
		wantErr   bool
	}{
		{name: "ok", value: `{"loanId":12,"notes":"kiosk 2"}`, wantCall: true},
		{name: "malformed is dropped", value: `{"loanId":`},
		{name: "missing loan id is dropped", value: `{"notes":"x"}`},
		{name: "already returned is dropped", value: `{"loanId":12}`, returnErr: errors.Wrap(errs.ErrInvalidState, "loan 12 is Devuelto"), wantCall: true},
		{name: "unknown loan is dropped", value: `{"loanId":12}`, returnErr: errs.ErrNotFound, wantCall: true},
		{name: "db down is redelivered", value: `{"loanId":12}`, returnErr: errors.New("conn refused"), wantCall: true, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			called := false
			c := NewConsumer(func(ctx context.Context, loanID int, n *string) (model.Loan, error) {
				called = true
				require.Equal(t, 12, loanID)
				if tt.name == "ok" {
					require.NotNil(t, n)
					require.Equal(t, notes, *n)
				}
				return model.Loan{ID: loanID}, tt.returnErr
			}, zap.NewNop())

			err := c.handle(context.Background(), []byte(tt.value))
			require.Equal(t, tt.wantErr, err != nil)
			require.Equal(t, tt.wantCall, called)
		})
	}
}

func TestConsumer_SetupTwice(t *testing.T) {
	t.Parallel()
	c := NewConsumer(nil, zap.NewNop())
	require.NoError(t, c.Setup(nil))
	require.NoError(t, c.Setup(nil))
	<-c.Ready()
}

type groupSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *groupSession) Context() context.Context { return s.ctx }

func (s *groupSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type groupClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *groupClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func newClaim(values map[int64]string, offsets ...int64) *groupClaim {
	ch := make(chan *sarama.ConsumerMessage, len(offsets))
	for _, off := range offsets {
		ch <- &sarama.ConsumerMessage{Topic: "loan-returns", Offset: off, Value: []byte(values[off])}
	}
	close(ch)
	return &groupClaim{messages: ch}
}

func TestConsumer_ConsumeClaim(t *testing.T) {
	t.Parallel()
	values := map[int64]string{10: `{"loanId":1}`, 11: `{"loanId":2}`}

	var tests = []struct {
		name       string
		failures   int // calls for loan 1 that fail before it succeeds
		cancelAt   int // cancel the session on this call for loan 1
		wantCalls  []int
		wantMarked []int64
	}{
		{
			name:       "ok",
			wantCalls:  []int{1, 2},
			wantMarked: []int64{10, 11},
		},
		{
			name:       "failed message is retried before the next one",
			failures:   2,
			wantCalls:  []int{1, 1, 1, 2},
			wantMarked: []int64{10, 11},
		},
		{
			name:       "failed message is never marked past",
			failures:   100,
			cancelAt:   3,
			wantCalls:  []int{1, 1, 1},
			wantMarked: nil,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var calls []int
			attempts := 0
			c := NewConsumer(func(ctx context.Context, loanID int, _ *string) (model.Loan, error) {
				calls = append(calls, loanID)
				if loanID != 1 {
					return model.Loan{ID: loanID}, nil
				}
				attempts++
				if attempts == tt.cancelAt {
					cancel()
				}
				if attempts <= tt.failures {
					return model.Loan{}, errors.New("conn refused")
				}
				return model.Loan{ID: loanID}, nil
			}, zap.NewNop())
			c.retryDelay = time.Millisecond

			session := &groupSession{ctx: ctx}
			err := c.ConsumeClaim(session, newClaim(values, 10, 11))
			require.NoError(t, err)
			require.Equal(t, tt.wantCalls, calls)
			require.Equal(t, tt.wantMarked, session.marked)
		})
	}
}

package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

// Locker serialises batch runs across replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}

// FineChecker reports a borrower's pending fines.
type FineChecker interface {
	PendingTotals(ctx context.Context, userID int) (int, decimal.Decimal, error)
}

// Publisher sends an event to a topic.
type Publisher interface {
	Enqueue(topic, key string, v any) error
}

type Clock func() time.Time

type options struct {
	now Clock
}

type Option func(o *options)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now Clock) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// startOfDay truncates t to midnight UTC.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days from a to b, both read as UTC dates.
func daysBetween(a, b time.Time) int {
	return int(startOfDay(b).Sub(startOfDay(a)) / (24 * time.Hour))
}

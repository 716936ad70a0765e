package streampager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/gorm/logger"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
)

// RetrySource wraps a Source and retries Connect with a fixed delay. The pager
// itself never retries; wrap the source to opt in.
type RetrySource struct {
	source   Source
	attempts int
	delay    time.Duration
	log      logger.Interface
}

func NewRetrySource(source Source) *RetrySource {
	return &RetrySource{
		source:   source,
		attempts: DefaultRetryAttempts,
		delay:    DefaultRetryDelay,
	}
}

// WithAttempts sets the total number of Connect attempts. Values below 1 are
// treated as 1.
func (s *RetrySource) WithAttempts(attempts int) *RetrySource {
	if s == nil {
		s = new(RetrySource)
	}

	s.attempts = max(attempts, 1)

	return s
}

// WithDelay sets the pause between attempts.
func (s *RetrySource) WithDelay(delay time.Duration) *RetrySource {
	if s == nil {
		s = new(RetrySource)
	}

	s.delay = delay

	return s
}

// WithLogger sets the logger for failed attempts.
func (s *RetrySource) WithLogger(log logger.Interface) *RetrySource {
	if s == nil {
		s = new(RetrySource)
	}

	s.log = log

	return s
}

// Logger returns the configured logger or the one of the wrapped source.
func (s *RetrySource) Logger() logger.Interface {
	if s.log != nil {
		return s.log
	}

	return sourceLogger(s.source)
}

// Connect implements Source.
func (s *RetrySource) Connect(ctx context.Context) (Conn, error) {
	if s == nil || s.source == nil {
		return nil, fmt.Errorf("retry source is not initialized")
	}

	attempts := max(s.attempts, 1)

	var (
		conn    Conn
		lastErr error
		attempt int
	)

	connect := func() error {
		attempt++
		conn, lastErr = s.source.Connect(ctx)
		return lastErr
	}

	notify := func(err error, next time.Duration) {
		s.Logger().Warn(ctx, "streampager: connect attempt %d/%d failed: %v, retrying in %s", attempt, attempts, err, next)
	}

	if err := backoff.RetryNotify(connect, s.backOff(ctx, attempts), notify); err == nil {
		return conn, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.Join(lastErr, ctxErr)
	}

	return nil, fmt.Errorf("all %d connect attempts failed: %w", attempts, lastErr)
}

// backOff waits a constant delay between attempts. WithMaxRetries treats 0 as
// unlimited, so a single attempt uses StopBackOff instead.
func (s *RetrySource) backOff(ctx context.Context, attempts int) backoff.BackOff {
	var b backoff.BackOff = &backoff.StopBackOff{}
	if attempts > 1 {
		b = backoff.WithMaxRetries(backoff.NewConstantBackOff(s.delay), uint64(attempts-1))
	}

	return backoff.WithContext(b, ctx)
}

var _ Source = (*RetrySource)(nil)

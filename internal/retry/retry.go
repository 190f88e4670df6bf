// Package retry holds the backoff policy shared by the HTTP fetcher and the
// LLM relevance client.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy describes exponential backoff between attempts.
type Policy struct {
	// Сколько раз повторять после первой попытки
	MaxRetries int
	// Пауза перед первым повтором
	InitialDelay time.Duration
	// Верхняя граница паузы
	MaxDelay time.Duration
	// Множитель паузы между повторами
	Multiplier float64
	// Во сколько раз дольше ждать, если сервер просит притормозить (429)
	ThrottleFactor float64

	// Подменяется в тестах
	sleep func(ctx context.Context, d time.Duration) error
}

// Default returns the 1s, 2s, 4s schedule with 3 retries.
func Default() Policy {
	return Policy{
		MaxRetries:     3,
		InitialDelay:   time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2,
		ThrottleFactor: 4,
	}
}

// Delay returns the pause before retry number attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.InitialDelay <= 0 {
		return 0
	}

	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= multiplier
		if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
			break
		}
	}

	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}

	return time.Duration(delay)
}

// Do calls op until it succeeds, returns a Stop error, the retries are
// exhausted or ctx is done. The last error is returned unwrapped.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.Delay(attempt)
			if isThrottled(lastErr) && p.ThrottleFactor > 1 {
				delay = time.Duration(float64(delay) * p.ThrottleFactor)
			}

			if err := sleep(ctx, delay); err != nil {
				return unwrap(lastErr)
			}
		}

		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return unwrap(lastErr)
			}
			return err
		}

		err := op(ctx, attempt)
		if err == nil {
			return nil
		}

		lastErr = err

		var stop *stopError
		if errors.As(err, &stop) {
			return stop.err
		}
	}

	return unwrap(lastErr)
}

type stopError struct {
	err error
}

func (e *stopError) Error() string { return e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

// Stop marks err as terminal: Do returns it without further attempts.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &stopError{err: err}
}

type throttleError struct {
	err error
}

func (e *throttleError) Error() string { return e.err.Error() }
func (e *throttleError) Unwrap() error { return e.err }

// Throttle marks err as retryable with a longer pause.
func Throttle(err error) error {
	if err == nil {
		return nil
	}
	return &throttleError{err: err}
}

func isThrottled(err error) bool {
	var t *throttleError
	return errors.As(err, &t)
}

func unwrap(err error) error {
	var t *throttleError
	if errors.As(err, &t) {
		return t.err
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

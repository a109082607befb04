// Package retry runs a single target's check-in with bounded attempts and
// linear backoff: after the n-th failure it waits 5*n units.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crucial707/autosignin/internal/models"
)

// DefaultMaxAttempts is used when an Executor is built with a non-positive bound.
const DefaultMaxAttempts = 3

// BackoffStep is the number of units waited per failed attempt so far.
const BackoffStep = 5

// Func is one attempt. (false, msg, nil) is an explicit failure.
type Func func(ctx context.Context) (bool, string, error)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Executor retries a Func.
type Executor struct {
	MaxAttempts int
	Unit        time.Duration
	Sleep       Sleeper
}

// New returns an Executor using the real clock.
func New(maxAttempts int, unit time.Duration) *Executor {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Executor{MaxAttempts: maxAttempts, Unit: unit, Sleep: Sleep}
}

// Run calls fn until it succeeds or MaxAttempts is reached. The returned
// Outcome always has a non-empty message on failure.
func (e *Executor) Run(ctx context.Context, target string, fn Func) models.Outcome {
	failures := 0
	for {
		attempt := failures + 1
		ok, msg, err := fn(ctx)
		if err == nil && ok {
			slog.Info("retry: attempt succeeded", "target", target, "attempt", attempt, "message", msg)
			return models.Outcome{Target: target, Success: true, Message: msg, Attempts: attempt}
		}

		last := msg
		if err != nil {
			last = err.Error()
		}
		if last == "" {
			last = "签到失败"
		}
		failures++
		slog.Warn("retry: attempt failed", "target", target, "attempt", attempt, "error", last)

		if failures >= e.MaxAttempts {
			return models.Outcome{
				Target:   target,
				Success:  false,
				Message:  fmt.Sprintf("签到失败，已重试%d次：%s", e.MaxAttempts, last),
				Attempts: failures,
			}
		}

		wait := time.Duration(BackoffStep*failures) * e.Unit
		slog.Info("retry: waiting before next attempt", "target", target, "wait", wait, "next_attempt", attempt+1)
		if err := e.Sleep(ctx, wait); err != nil {
			return models.Outcome{
				Target:   target,
				Success:  false,
				Message:  fmt.Sprintf("签到中断：%s (%v)", last, err),
				Attempts: failures,
			}
		}
	}
}

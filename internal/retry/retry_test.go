package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func (r *recordingSleeper) total() time.Duration {
	var sum time.Duration
	for _, w := range r.waits {
		sum += w
	}
	return sum
}

func newTestExecutor(max int) (*Executor, *recordingSleeper) {
	rec := &recordingSleeper{}
	e := New(max, time.Second)
	e.Sleep = rec.sleep
	return e, rec
}

func TestRun_SucceedsOnAttemptK(t *testing.T) {
	for k := 1; k <= 3; k++ {
		e, rec := newTestExecutor(3)
		calls := 0
		out := e.Run(context.Background(), "hh", func(ctx context.Context) (bool, string, error) {
			calls++
			if calls < k {
				return false, "not yet", nil
			}
			return true, "签到成功", nil
		})
		if !out.Success || out.Attempts != k || out.Message != "签到成功" {
			t.Errorf("k=%d: unexpected outcome %+v", k, out)
		}
		// 5 * (1 + 2 + ... + (k-1)) units
		want := time.Duration(5*(k-1)*k/2) * time.Second
		if rec.total() != want {
			t.Errorf("k=%d: total sleep %v, want %v", k, rec.total(), want)
		}
	}
}

func TestRun_AlwaysFails(t *testing.T) {
	e, rec := newTestExecutor(3)
	calls := 0
	out := e.Run(context.Background(), "ttg", func(ctx context.Context) (bool, string, error) {
		calls++
		return false, "", errors.New("connection reset")
	})
	if out.Success || out.Attempts != 3 || calls != 3 {
		t.Fatalf("unexpected outcome %+v after %d calls", out, calls)
	}
	if out.Message != "签到失败，已重试3次：connection reset" {
		t.Errorf("message: got %q", out.Message)
	}
	if len(rec.waits) != 2 || rec.waits[0] != 5*time.Second || rec.waits[1] != 10*time.Second {
		t.Errorf("waits: got %v, want [5s 10s]", rec.waits)
	}
}

func TestRun_ExplicitFailureWithoutMessage(t *testing.T) {
	e, _ := newTestExecutor(2)
	out := e.Run(context.Background(), "x", func(ctx context.Context) (bool, string, error) {
		return false, "", nil
	})
	if out.Success || out.Attempts != 2 || out.Message == "" {
		t.Errorf("unexpected outcome %+v", out)
	}
}

func TestRun_SuccessFlagWithErrorIsFailure(t *testing.T) {
	e, _ := newTestExecutor(1)
	out := e.Run(context.Background(), "x", func(ctx context.Context) (bool, string, error) {
		return true, "ok", errors.New("late error")
	})
	if out.Success || out.Attempts != 1 {
		t.Errorf("unexpected outcome %+v", out)
	}
}

func TestRun_DefaultMaxAttempts(t *testing.T) {
	e, _ := newTestExecutor(0)
	if e.MaxAttempts != DefaultMaxAttempts {
		t.Fatalf("MaxAttempts: got %d", e.MaxAttempts)
	}
}

func TestRun_SleepCanceled(t *testing.T) {
	e := New(3, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := e.Run(ctx, "x", func(ctx context.Context) (bool, string, error) {
		return false, "nope", nil
	})
	if out.Success || out.Attempts != 1 || out.Message == "" {
		t.Errorf("unexpected outcome %+v", out)
	}
}

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep canceled: got %v", err)
	}
}

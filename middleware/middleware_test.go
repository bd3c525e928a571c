package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Safi643133/ai-immigration-services-sub003/id"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/middleware"
)

func testJob() *job.Job {
	return &job.Job{ID: id.NewJobID(), Status: job.StatusRunning, Embassy: "LONDON"}
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mw := func(name string) middleware.Middleware {
		return func(ctx context.Context, _ *job.Job, next middleware.Handler) error {
			order = append(order, name+":before")
			err := next(ctx)
			order = append(order, name+":after")
			return err
		}
	}

	chain := middleware.Chain(mw("outer"), mw("inner"))
	err := chain(context.Background(), testJob(), func(context.Context) error {
		order = append(order, "handler")
		return nil
	})
	if err != nil {
		t.Fatalf("chain: %v", err)
	}

	want := "outer:before,inner:before,handler,inner:after,outer:after"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}

func TestChainEmpty(t *testing.T) {
	t.Parallel()

	called := false
	err := middleware.Chain()(context.Background(), testJob(), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Errorf("empty chain: err=%v called=%v", err, called)
	}
}

func TestChainShortCircuit(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	blocker := func(context.Context, *job.Job, middleware.Handler) error {
		return boom
	}

	reached := false
	err := middleware.Chain(blocker)(context.Background(), testJob(), func(context.Context) error {
		reached = true
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if reached {
		t.Error("handler ran past a short-circuiting middleware")
	}
}

func TestRecoverConvertsPanic(t *testing.T) {
	t.Parallel()

	mw := middleware.Recover(slog.Default())
	err := mw(context.Background(), testJob(), func(context.Context) error {
		panic("kaboom")
	})
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("err = %v, want panic converted to error", err)
	}
}

func TestTimeoutCancelsContext(t *testing.T) {
	t.Parallel()

	mw := middleware.Timeout(10 * time.Millisecond)
	err := mw(context.Background(), testJob(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return nil
		}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestTimeoutZeroDisablesCeiling(t *testing.T) {
	t.Parallel()

	mw := middleware.Timeout(0)
	err := mw(context.Background(), testJob(), func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			return errors.New("unexpected deadline")
		}
		return nil
	})
	if err != nil {
		t.Errorf("err = %v", err)
	}
}

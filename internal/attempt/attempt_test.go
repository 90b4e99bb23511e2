package attempt

import (
	"context"
	"errors"
	"testing"
	"time"
)

func constant(name string, v int, err error, calls *[]string) Attempt[int] {
	return Attempt[int]{Name: name, Run: func(context.Context) (int, error) {
		*calls = append(*calls, name)
		return v, err
	}}
}

func TestFirst_FirstSuccessWins(t *testing.T) {
	var calls []string
	v, name, err := First(context.Background(), []Attempt[int]{
		constant("a", 0, errors.New("a failed"), &calls),
		constant("b", 2, nil, &calls),
		constant("c", 3, nil, &calls),
	})
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if v != 2 || name != "b" {
		t.Errorf("got (%d, %q), want (2, \"b\")", v, name)
	}
	if len(calls) != 2 {
		t.Errorf("calls = %v, want [a b]", calls)
	}
}

func TestFirst_LastErrorSurfaced(t *testing.T) {
	var calls []string
	errC := errors.New("c failed")
	_, _, err := First(context.Background(), []Attempt[int]{
		constant("a", 0, errors.New("a failed"), &calls),
		constant("b", 0, errors.New("b failed"), &calls),
		constant("c", 0, errC, &calls),
	})

	var aerr *Error
	if !errors.As(err, &aerr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if aerr.Tried != 3 || aerr.Last != "c" {
		t.Errorf("Tried=%d Last=%q, want 3 and c", aerr.Tried, aerr.Last)
	}
	if !errors.Is(err, errC) {
		t.Error("errors.Is(err, errC) = false")
	}
}

func TestFirst_NonRetryableStops(t *testing.T) {
	var calls []string
	fatal := errors.New("model not found")
	_, _, err := First(context.Background(), []Attempt[int]{
		constant("a", 0, fatal, &calls),
		constant("b", 1, nil, &calls),
	}, Retryable(func(err error) bool { return !errors.Is(err, fatal) }))

	if !errors.Is(err, fatal) {
		t.Fatalf("err = %v, want %v", err, fatal)
	}
	if len(calls) != 1 {
		t.Errorf("calls = %v, want only [a]", calls)
	}
}

func TestFirst_Empty(t *testing.T) {
	if _, _, err := First[int](context.Background(), nil); !errors.Is(err, ErrNoAttempts) {
		t.Errorf("err = %v, want ErrNoAttempts", err)
	}
}

func TestFirst_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls []string
	_, _, err := First(ctx, []Attempt[int]{constant("a", 1, nil, &calls)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(calls) != 0 {
		t.Errorf("attempt ran on cancelled context: %v", calls)
	}
}

func TestFirst_PerAttemptTimeout(t *testing.T) {
	slow := Attempt[string]{Name: "slow", Run: func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	fast := Attempt[string]{Name: "fast", Run: func(ctx context.Context) (string, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("fast attempt has no deadline")
		}
		return "ok", nil
	}}

	v, name, err := First(context.Background(), []Attempt[string]{slow, fast}, Timeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if v != "ok" || name != "fast" {
		t.Errorf("got (%q, %q)", v, name)
	}
}

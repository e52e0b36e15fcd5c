package fn

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestResultBasics(t *testing.T) {
	ok := Ok(42)
	if !ok.IsOk() || ok.IsErr() {
		t.Error("Ok should be ok")
	}
	if v, err := ok.Unwrap(); v != 42 || err != nil {
		t.Errorf("Unwrap = %v, %v", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() || !e.IsErr() {
		t.Error("Err should be err")
	}
	if e.UnwrapOr(7) != 7 {
		t.Error("UnwrapOr should return fallback")
	}
	if ok.UnwrapOr(7) != 42 {
		t.Error("UnwrapOr should return value on ok")
	}
}

func TestResultMustPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Must should panic on error")
		}
	}()
	Err[int](errors.New("boom")).Must()
}

func TestFromPair(t *testing.T) {
	if r := FromPair(5, nil); !r.IsOk() || r.Must() != 5 {
		t.Errorf("FromPair ok: %v", r)
	}
	if r := FromPair(0, errors.New("boom")); !r.IsErr() {
		t.Error("FromPair with error should be err")
	}
}

func TestCollect(t *testing.T) {
	all := Collect([]Result[int]{Ok(1), Ok(2), Ok(3)})
	if vals := all.Must(); len(vals) != 3 || vals[2] != 3 {
		t.Errorf("Collect = %v", vals)
	}

	bad := Collect([]Result[int]{Ok(1), Err[int](errors.New("boom")), Ok(3)})
	if !bad.IsErr() {
		t.Error("Collect should propagate the first error")
	}
}

func TestMapAndFilter(t *testing.T) {
	doubled := Map([]int{1, 2, 3}, func(n int) int { return n * 2 })
	if len(doubled) != 3 || doubled[2] != 6 {
		t.Errorf("Map = %v", doubled)
	}

	evens := Filter([]int{1, 2, 3, 4}, func(n int) bool { return n%2 == 0 })
	if len(evens) != 2 || evens[0] != 2 || evens[1] != 4 {
		t.Errorf("Filter = %v", evens)
	}
}

func TestThenShortCircuits(t *testing.T) {
	first := Stage[int, string](func(ctx context.Context, n int) Result[string] {
		return Ok(strconv.Itoa(n))
	})
	var secondCalled bool
	second := Stage[string, int](func(ctx context.Context, s string) Result[int] {
		secondCalled = true
		return Ok(len(s))
	})

	if r := Then(first, second)(context.Background(), 123); r.Must() != 3 {
		t.Errorf("composed = %v", r)
	}

	secondCalled = false
	failing := Stage[int, string](func(ctx context.Context, n int) Result[string] {
		return Err[string](errors.New("boom"))
	})
	if r := Then(failing, second)(context.Background(), 1); !r.IsErr() {
		t.Error("composition should fail")
	}
	if secondCalled {
		t.Error("second stage should not run after a failure")
	}
}

func TestTracedStagePassesThrough(t *testing.T) {
	stage := TracedStage("test", Stage[int, int](func(ctx context.Context, n int) Result[int] {
		return Ok(n + 1)
	}))
	if r := stage(context.Background(), 1); r.Must() != 2 {
		t.Errorf("traced = %v", r)
	}

	failing := TracedStage("test", Stage[int, int](func(ctx context.Context, n int) Result[int] {
		return Err[int](errors.New("boom"))
	}))
	if r := failing(context.Background(), 1); !r.IsErr() {
		t.Error("traced stage should preserve the error")
	}
}

func TestParMapPreservesOrder(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}
	out := ParMap(items, 4, func(n int) int { return n * n })
	for i, v := range out {
		if v != i*i {
			t.Fatalf("out[%d] = %d", i, v)
		}
	}
}

func TestParMapBoundsConcurrency(t *testing.T) {
	var cur, max int64
	var mu sync.Mutex

	ParMap(make([]int, 32), 3, func(int) int {
		n := atomic.AddInt64(&cur, 1)
		mu.Lock()
		if n > max {
			max = n
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		atomic.AddInt64(&cur, -1)
		return 0
	})

	if max > 3 {
		t.Fatalf("observed %d concurrent workers, limit 3", max)
	}
}

func TestParMapResultKeepsPerItemErrors(t *testing.T) {
	out := ParMapResult([]int{1, 2, 3}, 2, func(n int) Result[int] {
		if n == 2 {
			return Err[int](errors.New("boom"))
		}
		return Ok(n * 10)
	})

	if out[0].Must() != 10 || out[2].Must() != 30 {
		t.Errorf("values %v %v", out[0], out[2])
	}
	if !out[1].IsErr() {
		t.Error("error position lost")
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	var calls int
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 5, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
		func(ctx context.Context) Result[string] {
			calls++
			if calls < 3 {
				return Err[string](errors.New("not yet"))
			}
			return Ok("done")
		})

	if r.Must() != "done" {
		t.Errorf("result %v", r)
	}
	if calls != 3 {
		t.Errorf("calls = %d", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	var calls int
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
		func(ctx context.Context) Result[int] {
			calls++
			return Err[int](errors.New("always"))
		})

	if !r.IsErr() {
		t.Error("expected failure")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	r := Retry(ctx, RetryOpts{MaxAttempts: 100, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
		func(ctx context.Context) Result[int] {
			calls++
			cancel()
			return Err[int](errors.New("boom"))
		})

	if !r.IsErr() {
		t.Error("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

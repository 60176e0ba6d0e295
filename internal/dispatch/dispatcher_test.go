package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDoRunsTaskAndCounts(t *testing.T) {
	d := New(1, nil)
	if err := d.Do(context.Background(), "ok", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	boom := errors.New("boom")
	if err := d.Do(context.Background(), "bad", func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	st := d.Status()
	if st.Processed != 1 || st.Failed != 1 || st.Active != 0 || st.Queued != 0 || st.Total != 2 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestDoRecoversPanics(t *testing.T) {
	d := New(1, nil)
	err := d.Do(context.Background(), "panic", func(context.Context) error { panic("kaboom") })
	if err == nil {
		t.Fatal("expected error from panicking task")
	}
	if st := d.Status(); st.Failed != 1 || st.Active != 0 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestDoIsFIFOWithSingleSlot(t *testing.T) {
	d := New(1, nil)
	release := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = d.Do(context.Background(), "blocker", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	var mu sync.Mutex
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Do(context.Background(), "t", func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		waitFor(t, func() bool { return d.Status().Queued == i+1 })
	}

	if st := d.Status(); st.Active != 1 || st.Queued != 3 {
		t.Fatalf("unexpected status while blocked: %+v", st)
	}
	close(release)
	wg.Wait()

	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("tasks ran out of order: %v", order)
	}
	if st := d.Status(); st.Processed != 4 {
		t.Fatalf("processed = %d, want 4", st.Processed)
	}
}

func TestCancelledWaiterLeavesQueue(t *testing.T) {
	d := New(1, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Do(context.Background(), "blocker", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	ran := false
	go func() {
		errCh <- d.Do(ctx, "waiter", func(context.Context) error {
			ran = true
			return nil
		})
	}()
	waitFor(t, func() bool { return d.Status().Queued == 1 })
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if st := d.Status(); st.Queued != 0 || st.Active != 1 {
		t.Fatalf("unexpected status after cancel: %+v", st)
	}
	close(release)
	<-done
	if ran {
		t.Fatal("cancelled task should not run")
	}
	if st := d.Status(); st.Active != 0 || st.Processed != 1 || st.Failed != 0 {
		t.Fatalf("unexpected final status: %+v", st)
	}
}

func TestSetMaxConcurrentAdmitsWaiters(t *testing.T) {
	d := New(1, nil)
	if err := d.SetMaxConcurrent(0); err == nil {
		t.Fatal("expected error for zero slots")
	}

	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Do(context.Background(), "t", func(context.Context) error {
				<-release
				return nil
			})
		}()
	}
	waitFor(t, func() bool { st := d.Status(); return st.Active == 1 && st.Queued == 1 })

	if err := d.SetMaxConcurrent(2); err != nil {
		t.Fatalf("SetMaxConcurrent: %v", err)
	}
	waitFor(t, func() bool { st := d.Status(); return st.Active == 2 && st.Queued == 0 })
	if d.Status().MaxConcurrent != 2 {
		t.Fatal("max concurrent not updated")
	}
	close(release)
	wg.Wait()
}

func TestClearDropsQueuedWaiters(t *testing.T) {
	d := New(1, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Do(context.Background(), "blocker", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Do(context.Background(), "queued", func(context.Context) error { return nil })
	}()
	waitFor(t, func() bool { return d.Status().Queued == 1 })

	if n := d.Clear(); n != 1 {
		t.Fatalf("Clear = %d, want 1", n)
	}
	if err := <-errCh; !errors.Is(err, ErrQueueCleared) {
		t.Fatalf("expected ErrQueueCleared, got %v", err)
	}
	close(release)
	<-done

	d.ResetStats()
	if st := d.Status(); st.Processed != 0 || st.Failed != 0 {
		t.Fatalf("stats not reset: %+v", st)
	}
}

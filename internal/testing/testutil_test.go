package testing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoroutineTest(t *testing.T) {
	gt := NewGoroutineTest(t)

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		gt.Go(func() error {
			n.Add(1)
			return nil
		})
	}
	gt.Wait()

	if n.Load() != 10 {
		t.Errorf("ran %d goroutines, want 10", n.Load())
	}
}

func TestGoroutineTest_Context(t *testing.T) {
	gt := NewGoroutineTestWithTimeout(t, 20*time.Millisecond)

	gt.GoWithContext(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
			return errors.New("context never expired")
		}
	})
	gt.Wait()
}

func TestTestHelper(t *testing.T) {
	h := NewTestHelper(t)
	for i := 0; i < 5; i++ {
		h.Add(1)
		go func() {
			defer h.Done()
			h.Error(nil)
		}()
	}
	h.Wait()
}

func TestWithTimeout(t *testing.T) {
	if err := WithTimeout(time.Second, func() error { return nil }); err != nil {
		t.Errorf("fast function: %v", err)
	}

	err := WithTimeout(10*time.Millisecond, func() error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})
	if err == nil {
		t.Error("slow function should time out")
	}
}

func TestEventually(t *testing.T) {
	var n atomic.Int32
	err := Eventually(time.Second, time.Millisecond, func() bool {
		return n.Add(1) >= 3
	})
	if err != nil {
		t.Errorf("Eventually() error = %v", err)
	}

	if err := Eventually(10*time.Millisecond, time.Millisecond, func() bool { return false }); err == nil {
		t.Error("Eventually() should fail when condition never holds")
	}
}

package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewDefaultsCapacity(t *testing.T) {
	if got := New(0).Capacity(); got != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", got, DefaultCapacity)
	}
	if got := New(3).Capacity(); got != 3 {
		t.Errorf("Capacity() = %d, want 3", got)
	}
}

func TestAcquireRelease(t *testing.T) {
	g := New(2)
	ctx := context.Background()

	p1, err := g.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p2, err := g.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if g.InFlight() != 2 {
		t.Errorf("InFlight() = %d, want 2", g.InFlight())
	}

	p1.Release()
	p1.Release()
	if g.InFlight() != 1 {
		t.Errorf("InFlight() after double release = %d, want 1", g.InFlight())
	}
	p2.Release()
	if g.InFlight() != 0 {
		t.Errorf("InFlight() = %d, want 0", g.InFlight())
	}
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	g := New(1)
	p, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		p2, err := g.Acquire(context.Background())
		if err != nil {
			t.Errorf("Acquire: %v", err)
			return
		}
		close(acquired)
		p2.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire should block while the slot is held")
	case <-time.After(50 * time.Millisecond):
	}

	p.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Acquire did not proceed after Release")
	}
}

func TestAcquireFailsOnCancel(t *testing.T) {
	g := New(1)
	p, _ := g.Acquire(context.Background())
	defer p.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := g.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire error = %v, want DeadlineExceeded", err)
	}
	if g.InFlight() != 1 {
		t.Errorf("InFlight() = %d, want 1", g.InFlight())
	}
}

func TestPeakNeverExceedsCapacity(t *testing.T) {
	g := New(3)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := g.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer p.Release()
			if n := g.InFlight(); n > 3 || n < 1 {
				t.Errorf("InFlight() = %d out of range", n)
			}
			time.Sleep(time.Millisecond)
		}()
	}
	wg.Wait()

	if g.Peak() > 3 {
		t.Errorf("Peak() = %d, want <= 3", g.Peak())
	}
	if g.InFlight() != 0 {
		t.Errorf("InFlight() = %d, want 0", g.InFlight())
	}
}

package readyqueue

import (
	"sync"
	"testing"
	"time"
)

func TestFIFOOrder(t *testing.T) {
	q := New[int](8)

	for i := 0; i < 8; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d refused on a live queue", i)
		}
	}
	if q.Len() != 8 {
		t.Fatalf("Len = %d, want 8", q.Len())
	}

	for i := 0; i < 8; i++ {
		v, ok := q.PopBlocking()
		if !ok {
			t.Fatal("pop reported shutdown on a live queue")
		}
		if v != i {
			t.Errorf("pop %d: got %d", i, v)
		}
	}
}

func TestWrapAround(t *testing.T) {
	q := New[int](3)

	next := 0
	for round := 0; round < 5; round++ {
		q.Push(next)
		q.Push(next + 1)
		for i := 0; i < 2; i++ {
			v, _ := q.PopBlocking()
			if v != next+i {
				t.Fatalf("round %d: got %d, want %d", round, v, next+i)
			}
		}
		next += 2
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New[string](1)

	got := make(chan string, 1)
	go func() {
		v, _ := q.PopBlocking()
		got <- v
	}()

	select {
	case v := <-got:
		t.Fatalf("pop returned %q from an empty queue", v)
	case <-time.After(20 * time.Millisecond):
	}

	q.Push("work")
	select {
	case v := <-got:
		if v != "work" {
			t.Errorf("got %q, want %q", v, "work")
		}
	case <-time.After(time.Second):
		t.Fatal("pop never observed the push")
	}
}

func TestPushSpinsWhileFull(t *testing.T) {
	q := New[int](1)
	q.Push(1)

	pushed := make(chan struct{})
	go func() {
		q.Push(2) // spins until the slot frees
		close(pushed)
	}()

	select {
	case <-pushed:
		t.Fatal("push completed on a full queue")
	case <-time.After(20 * time.Millisecond):
	}

	if v, _ := q.PopBlocking(); v != 1 {
		t.Fatalf("got %d, want 1", v)
	}
	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("push never completed after a slot freed")
	}
	if v, _ := q.PopBlocking(); v != 2 {
		t.Fatalf("got %d, want 2", v)
	}
}

func TestShutdownDrainsPoppers(t *testing.T) {
	q := New[int](4)
	const poppers = 5

	var wg sync.WaitGroup
	results := make(chan bool, poppers)
	for i := 0; i < poppers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := q.PopBlocking()
			results <- ok
		}()
	}

	q.SignalShutdown()
	wg.Wait()

	for i := 0; i < poppers; i++ {
		if ok := <-results; ok {
			t.Error("popper returned ok=true after shutdown")
		}
	}

	// Future pops drain immediately too.
	if _, ok := q.PopBlocking(); ok {
		t.Error("post-shutdown pop returned ok=true")
	}
}

func TestShutdownRefusesPush(t *testing.T) {
	q := New[int](4)
	q.Push(1)
	q.SignalShutdown()

	if q.Push(2) {
		t.Error("push accepted after shutdown")
	}
	// Items already enqueued are not delivered after shutdown.
	if _, ok := q.PopBlocking(); ok {
		t.Error("queued item delivered after shutdown")
	}
}

// TestConcurrentProducersConsumers hammers the queue from both sides and
// checks nothing is lost or duplicated.
func TestConcurrentProducersConsumers(t *testing.T) {
	q := New[int](16)
	const producers = 8
	const perProducer = 1000
	const total = producers * perProducer

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(p*perProducer + i)
			}
		}(p)
	}

	seen := make([]bool, total)
	var mu sync.Mutex
	var cwg sync.WaitGroup
	for c := 0; c < 4; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				v, ok := q.PopBlocking()
				if !ok {
					return
				}
				mu.Lock()
				if seen[v] {
					t.Errorf("value %d delivered twice", v)
				}
				seen[v] = true
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	// Producers done; drain the remainder before signalling.
	for q.Len() > 0 {
		time.Sleep(time.Millisecond)
	}
	q.SignalShutdown()
	cwg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for v, ok := range seen {
		if !ok {
			t.Fatalf("value %d never delivered", v)
		}
	}
}

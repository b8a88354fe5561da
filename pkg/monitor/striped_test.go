package monitor

import (
	"sync"
	"testing"
	"time"

	"goca/pkg/types"
)

func TestStripedServiceDifferentStripesRunConcurrently(t *testing.T) {
	pool := NewPool(4, 16)
	defer pool.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	release := make(chan struct{})

	a := newStripedService(pool, 1, func(n Notification) {
		wg.Done()
		<-release
	})
	b := newStripedService(pool, 2, func(n Notification) {
		wg.Done()
		<-release
	})

	a.Publish(Notification{Value: types.PlainBundle{Val: types.NewInt(1)}})
	b.Publish(Notification{Value: types.PlainBundle{Val: types.NewInt(2)}})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("two different stripes did not both start concurrently")
	}
	close(release)
}

func TestStripedServiceFIFOWithinStripe(t *testing.T) {
	pool := NewPool(4, 16)
	defer pool.Close()

	var mu sync.Mutex
	var got []int
	s := newStripedService(pool, 7, func(n Notification) {
		b := n.Value.(types.PlainBundle)
		v, _ := b.Val.AsDouble()
		mu.Lock()
		got = append(got, int(v))
		mu.Unlock()
	})

	for i := 1; i <= 5; i++ {
		s.Publish(Notification{Value: types.PlainBundle{Val: types.NewInt(int32(i))}})
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 5 {
		t.Fatalf("got = %v, want 5", got)
	}
	for i, v := range got {
		if v != i+1 {
			t.Errorf("got[%d] = %d, want %d", i, v, i+1)
		}
	}
}

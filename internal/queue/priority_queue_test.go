package queue

import (
	"testing"
	"time"
)

func TestPriorityQueueOrdersByNextRun(t *testing.T) {
	pq := New()
	now := time.Now()
	pq.Push("late", now.Add(2*time.Second))
	pq.Push("early", now.Add(time.Millisecond))
	pq.Push("middle", now.Add(time.Second))

	if pq.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", pq.Len())
	}

	future := now.Add(10 * time.Second)
	first := pq.PopReady(future)
	second := pq.PopReady(future)
	third := pq.PopReady(future)

	if first != "early" || second != "middle" || third != "late" {
		t.Errorf("pop order = %v, %v, %v; want early, middle, late", first, second, third)
	}
}

func TestPriorityQueuePopReadyRespectsTime(t *testing.T) {
	pq := New()
	now := time.Now()
	pq.Push("future", now.Add(time.Hour))

	if v := pq.PopReady(now); v != nil {
		t.Errorf("PopReady() = %v, want nil before NextRun", v)
	}
	if v := pq.PopReady(now.Add(2 * time.Hour)); v != "future" {
		t.Errorf("PopReady() = %v, want %q", v, "future")
	}
}

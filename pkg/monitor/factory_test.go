package monitor

import (
	"testing"
	"time"
)

func TestFactoryProducesWorkingService(t *testing.T) {
	f, err := NewFactory("latest-only")
	if err != nil {
		t.Fatalf("NewFactory() error = %v", err)
	}
	defer f.Close()

	delivered := make(chan Notification, 1)
	svc := f.NewService(func(n Notification) { delivered <- n })
	defer svc.Dispose()

	svc.Publish(Notification{})
	select {
	case n := <-delivered:
		if !n.IsConnectionLoss() {
			t.Error("expected a connection-loss sentinel for a zero-value Notification")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestFactoryRejectsBadConfig(t *testing.T) {
	if _, err := NewFactory("garbage-strategy"); err == nil {
		t.Error("expected error for unrecognized strategy")
	}
}

func TestFactoryMultiWorkerSharesPoolAcrossServices(t *testing.T) {
	f, err := NewFactory("multi-worker,3")
	if err != nil {
		t.Fatalf("NewFactory() error = %v", err)
	}
	defer f.Close()

	s1 := f.NewService(func(Notification) {})
	s2 := f.NewService(func(Notification) {})
	defer s1.Dispose()
	defer s2.Dispose()

	if s1.QoS().ThreadsPerSvc != 3 || s2.QoS().ThreadsPerSvc != 3 {
		t.Error("expected both services to report the shared pool's thread count")
	}
}

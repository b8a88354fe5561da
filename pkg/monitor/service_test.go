package monitor

import "testing"

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig("bounded-latest")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Strategy != StrategyBoundedLatest {
		t.Errorf("Strategy = %q, want %q", cfg.Strategy, StrategyBoundedLatest)
	}
	if cfg.Threads != defaultThreads {
		t.Errorf("Threads = %d, want %d", cfg.Threads, defaultThreads)
	}
	if cfg.BufferSize != unboundedCapacity {
		t.Errorf("BufferSize = %d, want %d", cfg.BufferSize, unboundedCapacity)
	}
}

func TestParseConfigWithFields(t *testing.T) {
	cfg, err := ParseConfig("multi-worker,4,100")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Strategy != StrategyMultiWorker || cfg.Threads != 4 || cfg.BufferSize != 100 {
		t.Errorf("cfg = %+v, want {multi-worker 4 100}", cfg)
	}
}

func TestParseConfigUnknownStrategy(t *testing.T) {
	if _, err := ParseConfig("not-a-strategy"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestParseConfigInvalidThreadCount(t *testing.T) {
	if _, err := ParseConfig("striped,not-a-number"); err == nil {
		t.Error("expected error for invalid thread count")
	}
}

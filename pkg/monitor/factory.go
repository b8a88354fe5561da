package monitor

import "sync/atomic"

// Factory builds Service instances for one Context, all sharing the
// strategy chosen by CA_MONITOR_NOTIFIER_IMPL. Multi-worker and striped
// strategies share one Pool across every Service the factory produces;
// bounded-latest and latest-only give each Service its own goroutine.
type Factory struct {
	cfg        Config
	pool       *Pool
	nextStripe atomic.Uint64
}

// NewFactory parses configString and prepares a shared worker pool if
// the chosen strategy needs one.
func NewFactory(configString string) (*Factory, error) {
	cfg, err := ParseConfig(configString)
	if err != nil {
		return nil, err
	}
	f := &Factory{cfg: cfg}
	if cfg.Strategy == StrategyMultiWorker || cfg.Strategy == StrategyStriped {
		f.pool = NewPool(cfg.Threads, 256)
	}
	return f, nil
}

// NewService builds one Service instance bound to consumer: one call per
// (channel, consumer) pair, i.e. per monitor.
func (f *Factory) NewService(consumer Consumer) Service {
	switch f.cfg.Strategy {
	case StrategyBoundedLatest:
		s := newRingService(2, StrategyBoundedLatest, consumer)
		s.Start()
		return s
	case StrategyLatestOnly:
		s := newRingService(1, StrategyLatestOnly, consumer)
		s.Start()
		return s
	case StrategyMultiWorker:
		return newMultiWorkerService(f.pool, f.cfg.BufferSize, consumer)
	case StrategyStriped:
		key := f.nextStripe.Add(1)
		return newStripedService(f.pool, key, consumer)
	default:
		// unreachable: ParseConfig already rejected unknown strategies
		s := newRingService(2, StrategyBoundedLatest, consumer)
		s.Start()
		return s
	}
}

// Close releases the shared pool, if one was created. Does not touch
// Services already handed out; callers must Dispose those themselves.
func (f *Factory) Close() {
	if f.pool != nil {
		f.pool.Close()
	}
}

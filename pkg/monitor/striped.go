package monitor

import "sync"

// stripedService behaves like multiWorkerService but is pinned to one
// fixed pool worker (its stripe) rather than rotating round-robin across
// the pool's workers. Two services that hash to different stripes always
// run in parallel; services sharing a stripe serialize against each
// other as well as against themselves, same as a single-consumer queue,
// except when the stripe's job queue is full and a drain job spills over
// to its own goroutine (see worker.submit).
type stripedService struct {
	pool      *Pool
	stripeKey uint64

	mu        sync.Mutex
	queue     []Notification
	scheduled bool
	disposed  bool

	consumer Consumer
}

func newStripedService(pool *Pool, stripeKey uint64, consumer Consumer) *stripedService {
	return &stripedService{pool: pool, stripeKey: stripeKey, consumer: consumer}
}

// Publish implements Service.
func (s *stripedService) Publish(n Notification) bool {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, n)
	needSchedule := !s.scheduled
	s.scheduled = true
	s.mu.Unlock()

	if needSchedule {
		s.pool.submitStriped(s.stripeKey, s.drain)
	}
	return true
}

func (s *stripedService) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.disposed {
			s.scheduled = false
			s.mu.Unlock()
			return
		}
		n := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.consumer(n)
	}
}

// Start implements Service; the shared pool is already running.
func (s *stripedService) Start() {}

// Dispose implements Service. Idempotent.
func (s *stripedService) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.queue = nil
	s.mu.Unlock()
}

// QoS implements Service.
func (s *stripedService) QoS() QoS {
	return QoS{
		Strategy:        StrategyStriped,
		ThreadsPerSvc:   1,
		NullPublishable: true,
		Buffered:        true,
		BufferSize:      0,
	}
}

package monitor

import "sync/atomic"

// worker is one goroutine in a Pool, draining its own job channel.
type worker struct {
	jobs chan func()
	quit chan struct{}
}

func newWorker(queueDepth int) *worker {
	w := &worker{jobs: make(chan func(), queueDepth), quit: make(chan struct{})}
	go w.run()
	return w
}

func (w *worker) run() {
	for {
		select {
		case <-w.quit:
			return
		case job := <-w.jobs:
			job()
		}
	}
}

// submit enqueues job on this worker, spilling over to a throwaway
// goroutine if the worker's queue is momentarily full. Publish callers
// must never block on a full notification pipeline.
func (w *worker) submit(job func()) {
	select {
	case w.jobs <- job:
	default:
		go job()
	}
}

func (w *worker) stop() {
	close(w.quit)
}

// Pool is a fixed set of N worker goroutines shared by every multi-worker
// or striped Service created with the same Pool. multiWorkerService
// round-robins work across the pool; stripedService pins each consumer
// to one worker by its stripe key so a consumer's notifications run on
// the same goroutine unless that worker's queue is full (see submit).
type Pool struct {
	workers []*worker
	next    atomic.Uint64
}

// NewPool starts n worker goroutines, each with the given per-worker job
// queue depth.
func NewPool(n int, queueDepth int) *Pool {
	if n <= 0 {
		n = defaultThreads
	}
	if queueDepth <= 0 {
		queueDepth = 256
	}
	p := &Pool{workers: make([]*worker, n)}
	for i := range p.workers {
		p.workers[i] = newWorker(queueDepth)
	}
	return p
}

// Size returns the number of worker goroutines in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// submitRoundRobin hands job to the next worker in rotation.
func (p *Pool) submitRoundRobin(job func()) {
	idx := p.next.Add(1) % uint64(len(p.workers))
	p.workers[idx].submit(job)
}

// submitStriped hands job to the worker selected by key, always the
// same worker for the same key.
func (p *Pool) submitStriped(key uint64, job func()) {
	idx := key % uint64(len(p.workers))
	p.workers[idx].submit(job)
}

// Close stops every worker goroutine. Queued jobs are abandoned.
func (p *Pool) Close() {
	for _, w := range p.workers {
		w.stop()
	}
}

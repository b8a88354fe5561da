package ca

import (
	"time"

	"goca/pkg/iomux"
	"goca/pkg/types"
)

// Future is a completion handle for one outstanding get or put, backed
// by an iomux.Request.
type Future struct {
	req *iomux.Request
	mux *iomux.Mux
	err error // set for a request that failed before it was ever submitted
}

func failedFuture(err error) *Future {
	return &Future{err: err}
}

// Wait blocks until the request completes or timeout elapses (timeout<=0
// blocks forever). On timeout, the request is removed from the mux so it
// cannot complete late into a discarded result.
func (f *Future) Wait(timeout time.Duration) (types.Bundle, error) {
	if f.err != nil {
		return nil, f.err
	}
	var deadline chan struct{}
	if timeout > 0 {
		deadline = make(chan struct{})
		timer := time.AfterFunc(timeout, func() { close(deadline) })
		defer timer.Stop()
	}
	res, ok := f.req.Wait(deadline)
	if !ok {
		f.mux.PutNoWait(f.req.IOID)
		return nil, types.NewStatus(types.CodeTimeout, "request %d timed out", f.req.IOID)
	}
	if !res.Status.IsNormal() {
		return nil, res.Status
	}
	return res.Value, nil
}

// ConnectFuture is a completion handle for a pending connect.
type ConnectFuture struct {
	done     chan struct{}
	disposer func()
}

// Wait blocks until the channel reaches CONNECTED or timeout elapses
// (timeout<=0 blocks forever).
func (f *ConnectFuture) Wait(timeout time.Duration) error {
	defer func() {
		if f.disposer != nil {
			f.disposer()
		}
	}()
	if timeout <= 0 {
		<-f.done
		return nil
	}
	select {
	case <-f.done:
		return nil
	case <-time.After(timeout):
		return types.NewStatus(types.CodeTimeout, "connect timed out")
	}
}

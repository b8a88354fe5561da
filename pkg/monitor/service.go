// Package monitor implements the pluggable notification subsystem: four
// interchangeable strategies for delivering value updates from a
// Transport's receive goroutine to a user consumer, selected at
// construction by a configuration string.
package monitor

import (
	"fmt"
	"strconv"
	"strings"

	"goca/pkg/types"
)

// Notification is one event delivered to a consumer. A nil Value is the
// connection-loss sentinel: exactly one is delivered per DISCONNECTED
// transition so the consumer can distinguish "no new data" from
// "connection gone".
type Notification struct {
	Value types.Bundle
}

// IsConnectionLoss reports whether this is the connection-loss sentinel.
func (n Notification) IsConnectionLoss() bool {
	return n.Value == nil
}

// Consumer receives notifications in order, one at a time, from
// whichever notification thread(s) the chosen strategy uses.
type Consumer func(Notification)

// QoS summarizes a service's delivery characteristics for diagnostics.
type QoS struct {
	Strategy         string
	ThreadsPerSvc    int
	NullPublishable  bool
	Buffered         bool
	BufferSize       int
}

// Service is one (channel, consumer) pair's notification pipeline.
type Service interface {
	// Publish hands a value to the service; it must never block the
	// caller (the transport receive loop). It returns false if the
	// value was dropped under backpressure.
	Publish(n Notification) bool
	Start()
	Dispose()
	QoS() QoS
}

// Strategy names recognized in CA_MONITOR_NOTIFIER_IMPL.
const (
	StrategyBoundedLatest = "bounded-latest"
	StrategyLatestOnly    = "latest-only"
	StrategyMultiWorker   = "multi-worker"
	StrategyStriped       = "striped"
)

const (
	defaultThreads    = 10
	unboundedCapacity = 0 // 0 means unbounded for the multi-worker queue
)

// Config is a parsed CA_MONITOR_NOTIFIER_IMPL value:
// "STRATEGY[,threads[,bufferSize]]".
type Config struct {
	Strategy   string
	Threads    int
	BufferSize int
}

// ParseConfig parses the configuration string, applying documented
// defaults (threads=10, bufferSize=unbounded) to omitted fields.
func ParseConfig(s string) (Config, error) {
	fields := strings.Split(s, ",")
	strategy := strings.TrimSpace(fields[0])
	switch strategy {
	case StrategyBoundedLatest, StrategyLatestOnly, StrategyMultiWorker, StrategyStriped:
	default:
		return Config{}, fmt.Errorf("monitor: unknown strategy %q", strategy)
	}

	cfg := Config{Strategy: strategy, Threads: defaultThreads, BufferSize: unboundedCapacity}
	if len(fields) >= 2 && strings.TrimSpace(fields[1]) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("monitor: invalid thread count %q", fields[1])
		}
		cfg.Threads = n
	}
	if len(fields) >= 3 && strings.TrimSpace(fields[2]) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("monitor: invalid buffer size %q", fields[2])
		}
		cfg.BufferSize = n
	}
	return cfg, nil
}

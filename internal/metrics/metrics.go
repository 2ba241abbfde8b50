package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

var readingsCh = make(chan *reading, 1024)
var readingsPool = sync.Pool{
	New: func() interface{} {
		return &reading{}
	},
}
var dispatching atomic.Bool

// Simple enqueues a single reading. Readings are dropped until a dispatcher
// is running, and whenever the queue is full.
func Simple(kind MetricKind, value float64) {
	if !dispatching.Load() {
		return
	}
	r := readingsPool.Get().(*reading)
	r.Kind = kind
	r.Value = value
	select {
	case readingsCh <- r:
	default:
		readingsPool.Put(r)
	}
}

// Measure returns a function reporting the time elapsed since Measure was
// called, in microseconds.
func Measure(kind MetricKind) func() {
	start := time.Now()
	return func() {
		Simple(kind, float64(time.Since(start).Microseconds()))
	}
}

type reading struct {
	Kind  MetricKind
	Value float64
}

type delegate interface {
	Dispatch(kind MetricKind, value float64)
}

// Dispatch forwards every reading to del. It never returns, and is expected
// to run on its own goroutine.
func Dispatch(del delegate) {
	dispatching.Store(true)
	for msg := range readingsCh {
		del.Dispatch(msg.Kind, msg.Value)
		readingsPool.Put(msg)
	}
}

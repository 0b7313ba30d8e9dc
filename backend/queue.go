package backend

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Y3rnur/sitesrv/backend/store"
)

// RecordQueue hands access events to slow recorders from a single worker.
// Record never blocks: when the buffer is full the event is dropped.
type RecordQueue struct {
	events    chan store.AccessEvent
	recorders []Recorder
	log       *zap.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

// NewRecordQueue starts the worker. Close must be called to stop it.
func NewRecordQueue(log *zap.Logger, size int, recorders ...Recorder) *RecordQueue {
	if log == nil {
		log = zap.NewNop()
	}
	q := &RecordQueue{
		events:    make(chan store.AccessEvent, size),
		recorders: recorders,
		log:       log,
		done:      make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *RecordQueue) run() {
	defer close(q.done)
	for ev := range q.events {
		for _, rc := range q.recorders {
			rc.Record(ev)
		}
	}
}

func (q *RecordQueue) Record(ev store.AccessEvent) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	select {
	case q.events <- ev:
	default:
		q.log.Warn("access event dropped, queue full", zap.Stringer("id", ev.ID))
	}
}

// Close stops accepting events and waits until the queued ones have been
// passed to every recorder.
func (q *RecordQueue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.events)
		q.mu.Unlock()
	})
	<-q.done
}

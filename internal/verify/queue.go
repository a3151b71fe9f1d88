package verify

import (
	"go.uber.org/zap"
)

// Notification carries a background verification result to whoever polls the
// queue. Delivery is at-most-once and unordered across independent scenes:
// when the queue is full the oldest entry is dropped.
type Notification struct {
	SceneRef string `json:"scene_ref"`
	Result   Result `json:"result"`
}

type Queue struct {
	ch  chan Notification
	log *zap.Logger
}

func NewQueue(size int, log *zap.Logger) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{ch: make(chan Notification, size), log: log}
}

// Publish never blocks the producer; a full queue sheds its oldest entry.
func (q *Queue) Publish(n Notification) {
	for {
		select {
		case q.ch <- n:
			return
		default:
		}
		select {
		case dropped := <-q.ch:
			q.log.Warn("notification queue full, dropping oldest",
				zap.String("scene_ref", dropped.SceneRef))
		default:
		}
	}
}

// Drain returns everything currently queued without blocking.
func (q *Queue) Drain() []Notification {
	var out []Notification
	for {
		select {
		case n := <-q.ch:
			out = append(out, n)
		default:
			return out
		}
	}
}

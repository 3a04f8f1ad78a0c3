// Package pubsub fans out events to any number of subscribers.
package pubsub

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Publisher[E any] interface {
	Publish(evt E)
}

type Subscriber[E any] interface {
	Subscribe(ctx context.Context) Subscription[E]
}

type Subscription[E any] interface {
	ResultChan() <-chan E
	Stop()
}

// PubSub delivers each published event to all current subscribers.
// A subscriber that does not accept an event within Timeout is dropped.
type PubSub[E any] struct {
	Timeout    time.Duration
	BufferSize int

	mutex         sync.RWMutex
	subscriptions map[int64]*subscription[E]
	seq           int64
	stopped       bool
}

func New[E any]() *PubSub[E] {
	return &PubSub[E]{
		Timeout:       5 * time.Second,
		BufferSize:    32,
		subscriptions: map[int64]*subscription[E]{},
	}
}

// Stop closes all subscriptions. Subsequent subscriptions are closed immediately.
func (p *PubSub[E]) Stop() {
	p.mutex.Lock()
	p.stopped = true
	subscriptions := make([]*subscription[E], 0, len(p.subscriptions))
	for _, s := range p.subscriptions {
		subscriptions = append(subscriptions, s)
	}
	p.mutex.Unlock()

	for _, s := range subscriptions {
		s.Stop()
	}
}

func (p *PubSub[E]) Subscribe(ctx context.Context) Subscription[E] {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.stopped {
		return closedSubscription[E]{}
	}

	p.seq++

	ctx, cancel := context.WithCancel(ctx)
	s := &subscription[E]{
		id:     p.seq,
		cancel: cancel,
		pubsub: p,
		ch:     make(chan E, p.BufferSize),
	}
	p.subscriptions[s.id] = s

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return s
}

func (p *PubSub[E]) Publish(evt E) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if p.stopped {
		return
	}

	for _, s := range p.subscriptions {
		s.mutex.Lock()
		if s.ch != nil {
			select {
			case s.ch <- evt:
			case <-time.After(p.Timeout):
				slog.Warn("dropping subscriber since it did not accept the event in time", "subscription", s.id, "timeout", p.Timeout)
				go s.Stop()
			}
		}
		s.mutex.Unlock()
	}
}

type subscription[E any] struct {
	pubsub *PubSub[E]
	id     int64
	cancel context.CancelFunc
	mutex  sync.Mutex
	ch     chan E
}

func (s *subscription[E]) Stop() {
	s.pubsub.mutex.Lock()
	delete(s.pubsub.subscriptions, s.id)
	s.pubsub.mutex.Unlock()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.ch != nil {
		close(s.ch)
		s.ch = nil
		s.cancel()
	}
}

func (s *subscription[E]) ResultChan() <-chan E {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.ch == nil {
		return closedSubscription[E]{}.ResultChan()
	}

	return s.ch
}

type closedSubscription[E any] struct{}

func (closedSubscription[E]) Stop() {}

func (closedSubscription[E]) ResultChan() <-chan E {
	ch := make(chan E)
	close(ch)
	return ch
}

// Package position provides in-process live position sources.
package position

import (
	"context"
	"errors"
	"sync"
	"time"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/ports"
)

var ErrFeedClosed = errors.New("position feed closed")

// Feed fans out published positions to subscribers, keeping only the latest
// undelivered update per subscriber.
//
// It is the server-side source for clients that push their location over HTTP.
type Feed struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	last   *ports.PositionUpdate
	closed bool
	now    func() time.Time
}

type subscriber struct {
	ch   chan ports.PositionUpdate
	once sync.Once
}

func NewFeed() *Feed {
	return &Feed{
		subs: make(map[*subscriber]struct{}),
		now:  time.Now,
	}
}

var _ ports.PositionSource = (*Feed)(nil)

// Subscribe registers a subscriber. The most recent update, if any, is delivered immediately.
func (f *Feed) Subscribe(ctx context.Context) (<-chan ports.PositionUpdate, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, nil, ErrFeedClosed
	}

	s := &subscriber{ch: make(chan ports.PositionUpdate, 1)}
	f.subs[s] = struct{}{}
	if f.last != nil {
		s.ch <- *f.last
	}

	stop := context.AfterFunc(ctx, func() { f.unsubscribe(s) })
	cancel := func() {
		stop()
		f.unsubscribe(s)
	}
	return s.ch, cancel, nil
}

// Publish delivers a position sample. A zero timestamp is stamped with the current time.
func (f *Feed) Publish(p domain.Position) error {
	if err := p.LatLng.Validate(); err != nil {
		return err
	}
	if p.At.IsZero() {
		p.At = f.now()
	}
	f.broadcast(ports.PositionUpdate{Position: p})
	return nil
}

// PublishError delivers a sensor failure to subscribers.
func (f *Feed) PublishError(code domain.PositionErrorCode, message string) {
	f.broadcast(ports.PositionUpdate{Err: &domain.PositionError{Code: code, Message: message}})
}

// Latest returns the last published sample, if any.
func (f *Feed) Latest() (domain.Position, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil || f.last.Err != nil {
		return domain.Position{}, false
	}
	return f.last.Position, true
}

// Close ends every subscription and rejects new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for s := range f.subs {
		delete(f.subs, s)
		s.close()
	}
}

func (f *Feed) broadcast(u ports.PositionUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	if u.Err == nil {
		f.last = &u
	}
	for s := range f.subs {
		// Replace any undelivered update so a slow reader only sees the newest one.
		select {
		case <-s.ch:
		default:
		}
		s.ch <- u
	}
}

func (f *Feed) unsubscribe(s *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[s]; !ok {
		return
	}
	delete(f.subs, s)
	s.close()
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

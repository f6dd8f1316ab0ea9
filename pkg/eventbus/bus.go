package eventbus

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Envelope is one delivered event. Data is serialized as {clientId, payload}.
type Envelope struct {
	Event    string `json:"-"`
	ClientID string `json:"clientId"`
	Payload  any    `json:"payload"`
}

// Encode renders the envelope as an SSE frame.
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(e.Event)+len(data)+16)
	frame = append(frame, "event: "...)
	frame = append(frame, e.Event...)
	frame = append(frame, "\ndata: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

// SnapshotFunc produces the first event a new subscriber sees.
type SnapshotFunc func(filter string) Envelope

// Subscription is a live stream registration. Events arrive on C in publish
// order; C is closed when the subscription is dropped.
type Subscription struct {
	id     uint64
	filter string
	ch     chan Envelope
	once   sync.Once
}

func (s *Subscription) C() <-chan Envelope { return s.ch }
func (s *Subscription) Filter() string     { return s.filter }

func (s *Subscription) matches(clientID string) bool {
	return s.filter == "" || s.filter == clientID
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber whose
// buffer is full is dropped, the others still receive the event.
type Bus struct {
	mu       sync.RWMutex
	subs     map[uint64]*Subscription
	nextID   uint64
	buffer   int
	snapshot SnapshotFunc

	published int64
	dropped   int64
}

func New(buffer int, snapshot SnapshotFunc) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:     make(map[uint64]*Subscription),
		buffer:   buffer,
		snapshot: snapshot,
	}
}

// SetSnapshot replaces the snapshot source. The bus is usually built before the
// component that knows the session list.
func (b *Bus) SetSnapshot(fn SnapshotFunc) {
	b.mu.Lock()
	b.snapshot = fn
	b.mu.Unlock()
}

// Subscribe registers a subscriber for filter ("" means every session) and
// queues the snapshot event before any published event.
func (b *Bus) Subscribe(filter string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id:     b.nextID,
		filter: filter,
		ch:     make(chan Envelope, b.buffer),
	}
	if b.snapshot != nil {
		sub.ch <- b.snapshot(filter)
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes sub. Safe to call more than once.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	_, ok := b.subs[sub.id]
	delete(b.subs, sub.id)
	b.mu.Unlock()
	if ok {
		sub.close()
	}
}

// Publish delivers event to every subscriber whose filter matches clientID.
func (b *Bus) Publish(event, clientID string, payload any) {
	env := Envelope{Event: event, ClientID: clientID, Payload: payload}
	atomic.AddInt64(&b.published, 1)

	var slow []*Subscription
	b.mu.RLock()
	for _, sub := range b.subs {
		if !sub.matches(clientID) {
			continue
		}
		select {
		case sub.ch <- env:
		default:
			slow = append(slow, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range slow {
		atomic.AddInt64(&b.dropped, 1)
		logrus.WithField("client_id", clientID).Warnf("[EVENTS] Dropping slow subscriber %d (filter=%q)", sub.id, sub.filter)
		b.Unsubscribe(sub)
	}
}

// Count returns the number of live subscriptions.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) Published() int64 { return atomic.LoadInt64(&b.published) }
func (b *Bus) Dropped() int64   { return atomic.LoadInt64(&b.dropped) }

// Close drops every subscriber.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[uint64]*Subscription)
	b.mu.Unlock()
	for _, sub := range subs {
		sub.close()
	}
}

package event

import (
	"reflect"
	"sync"
)

// Envelope is a queued event with its sequence number and the tick it was
// raised in.
type Envelope struct {
	Seq     uint64
	Tick    uint64
	Payload any
}

// Bus is a deferred-flush event queue. Events emitted during a tick are held
// in raised order and delivered by Flush; events emitted by handlers while a
// flush is running wait for the next flush. Kinds without subscribers are
// dropped silently.
type Bus struct {
	mu       sync.Mutex // only protects handler registration
	queue    []Envelope
	flushing []Envelope
	handlers map[reflect.Type][]func(any)
	all      []func(Envelope)
	seq      uint64
	tick     uint64
}

func NewBus() *Bus {
	return &Bus{
		queue:    make([]Envelope, 0, 64),
		flushing: make([]Envelope, 0, 64),
		handlers: make(map[reflect.Type][]func(any)),
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Emit queues an event for the next flush and returns its sequence number.
func Emit[T any](b *Bus, event T) uint64 {
	b.seq++
	b.queue = append(b.queue, Envelope{Seq: b.seq, Tick: b.tick, Payload: event})
	return b.seq
}

// Subscribe registers a typed handler for events of type T. Handlers of one
// kind run in subscription order.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := typeOf[T]()
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// SubscribeAll registers a handler that sees every event, after the typed
// handlers of that event.
func (b *Bus) SubscribeAll(fn func(Envelope)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, fn)
}

// SetTick stamps subsequently emitted events with tick.
func (b *Bus) SetTick(tick uint64) { b.tick = tick }

// Pending returns the number of events waiting for the next flush.
func (b *Bus) Pending() int { return len(b.queue) }

// Flush delivers every queued event, in raised order, to the current
// handlers and clears the queue. It returns the number of events delivered.
func (b *Bus) Flush() int {
	b.flushing, b.queue = b.queue, b.flushing[:0]
	if len(b.flushing) == 0 {
		return 0
	}

	b.mu.Lock()
	handlers := make(map[reflect.Type][]func(any), len(b.handlers))
	for t, hs := range b.handlers {
		handlers[t] = hs
	}
	all := b.all
	b.mu.Unlock()

	for _, env := range b.flushing {
		for _, h := range handlers[reflect.TypeOf(env.Payload)] {
			h(env.Payload)
		}
		for _, h := range all {
			h(env)
		}
	}
	n := len(b.flushing)
	clear(b.flushing)
	b.flushing = b.flushing[:0]
	return n
}

// Reset drops every queued event without delivering it.
func (b *Bus) Reset() {
	clear(b.queue)
	b.queue = b.queue[:0]
}

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

// Package notify implements an in-process notification channel. Host
// library plugins publish timed notifications under an event name, and
// subscribers receive them synchronously on the publishing goroutine.
package notify // import "github.com/DataDog/dd-autopatch-go/notify"

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/zoobzio/clockz"
)

// Handler receives a notification: the event name, when the operation
// started and finished, a unique instrumentation id and the payload
// describing the operation.
type Handler func(name string, start, finish time.Time, id string, payload map[string]any)

// Bus dispatches notifications to the handlers subscribed to their name.
// The zero value is not usable; use NewBus.
type Bus struct {
	clock clockz.Clock

	mu     sync.RWMutex // guards below
	subs   map[string][]*Subscription
	nextID uint64
}

// Subscription identifies a handler subscribed to a Bus.
type Subscription struct {
	bus  *Bus
	name string
	id   uint64
	h    Handler
}

// Option configures a Bus.
type Option func(*Bus)

// WithClock sets the clock used to time instrumented operations and to
// generate instrumentation ids.
func WithClock(c clockz.Clock) Option {
	return func(b *Bus) {
		b.clock = c
	}
}

// NewBus returns a Bus with no subscribers.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		clock: clockz.RealClock,
		subs:  make(map[string][]*Subscription),
	}
	for _, fn := range opts {
		fn(b)
	}
	return b
}

var entropy = ulid.DefaultEntropy()

// Subscribe calls h for every notification published under name.
func (b *Bus) Subscribe(name string, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &Subscription{bus: b, name: name, id: b.nextID, h: h}
	b.subs[name] = append(b.subs[name], s)
	return s
}

// Unsubscribe stops the delivery of notifications to the subscription's
// handler. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[s.name]
	for i, sub := range subs {
		if sub.id != s.id {
			continue
		}
		// copy so that an in-flight Publish keeps its snapshot intact
		next := make([]*Subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(b.subs, s.name)
		} else {
			b.subs[s.name] = next
		}
		return
	}
}

// Name returns the event name of the subscription.
func (s *Subscription) Name() string { return s.name }

// Listening reports whether any handler is subscribed to name.
func (b *Bus) Listening(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name]) > 0
}

// Publish delivers a notification to the handlers subscribed to name, in
// subscription order.
func (b *Bus) Publish(name string, start, finish time.Time, payload map[string]any) {
	b.mu.RLock()
	subs := b.subs[name]
	b.mu.RUnlock()
	if len(subs) == 0 {
		return
	}
	id := ulid.MustNew(ulid.Timestamp(b.clock.Now()), entropy).String()
	for _, s := range subs {
		s.h(name, start, finish, id, payload)
	}
}

// Instrument times fn and publishes its notification under name once it
// returns. The error returned by fn is recorded in the payload under the
// "error" key and returned unchanged.
func (b *Bus) Instrument(name string, payload map[string]any, fn func() error) error {
	if !b.Listening(name) {
		return fn()
	}
	start := b.clock.Now()
	err := fn()
	finish := b.clock.Now()
	if payload == nil {
		payload = make(map[string]any, 1)
	}
	if err != nil {
		payload["error"] = err
	}
	b.Publish(name, start, finish, payload)
	return err
}

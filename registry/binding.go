// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package registry

import (
	"sync"
	"sync/atomic"
)

// Binding memoizes the service name an integration reports under and
// guards the registration of services with the tracer. It is computed
// lazily and lives as long as the process.
type Binding struct {
	resolution doneOnce
	service    string

	registered sync.Map // service name -> *doneOnce
}

// Service returns the integration's service name. The first call computes
// it with resolve and registers it with register; concurrent first calls
// block until that is done, and later calls return the cached name.
// When resolve panics, nothing is cached and the next call resolves again.
func (b *Binding) Service(resolve func() string, register func(service string)) string {
	b.resolution.Do(func() { b.service = resolve() })
	b.Ensure(b.service, register)
	return b.service
}

// Ensure calls register for service unless it already completed for it
// through this binding. Concurrent callers for the same service wait for
// the registration to complete.
func (b *Binding) Ensure(service string, register func(service string)) {
	if register == nil {
		return
	}
	v, _ := b.registered.LoadOrStore(service, new(doneOnce))
	v.(*doneOnce).Do(func() { register(service) })
}

// doneOnce is a sync.Once that only counts calls of f that returned.
type doneOnce struct {
	mu   sync.Mutex
	done atomic.Bool
}

func (o *doneOnce) Do(f func()) {
	if o.done.Load() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done.Load() {
		return
	}
	f()
	o.done.Store(true)
}

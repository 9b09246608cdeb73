// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

// Package statsdtest provides a recording statsd client for tests.
package statsdtest

import (
	"slices"
	"sync"

	"github.com/DataDog/dd-autopatch-go/internal"
)

var _ internal.StatsdClient = &TestStatsdClient{}

// TestStatsdClient records every metric it receives.
type TestStatsdClient struct {
	mu      sync.RWMutex
	calls   []TestStatsdCall
	counts  map[string]int64
	closed  bool
	flushed int
}

// TestStatsdCall is a single recorded metric submission.
type TestStatsdCall struct {
	name    string
	intVal int64
	tags   []string
	rate   float64
}

func (t TestStatsdCall) Name() string { return t.name }

func (t TestStatsdCall) Tags() []string { return t.tags }

func (t TestStatsdCall) IntVal() int64 { return t.intVal }

func (tg *TestStatsdClient) Incr(name string, tags []string, rate float64) error {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	if tg.counts == nil {
		tg.counts = make(map[string]int64)
	}
	tg.counts[name]++
	tg.calls = append(tg.calls, TestStatsdCall{
		name:   name,
		intVal: 1,
		tags:   slices.Clone(tags),
		rate:   rate,
	})
	return nil
}

func (tg *TestStatsdClient) Flush() error {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.flushed++
	return nil
}

func (tg *TestStatsdClient) Close() error {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.closed = true
	return nil
}

// Flushed returns the number of calls to Flush.
func (tg *TestStatsdClient) Flushed() int {
	tg.mu.RLock()
	defer tg.mu.RUnlock()
	return tg.flushed
}

// Closed reports whether Close was called.
func (tg *TestStatsdClient) Closed() bool {
	tg.mu.RLock()
	defer tg.mu.RUnlock()
	return tg.closed
}

// Counts returns the accumulated count per metric name.
func (tg *TestStatsdClient) Counts() map[string]int64 {
	tg.mu.RLock()
	defer tg.mu.RUnlock()
	c := make(map[string]int64, len(tg.counts))
	for k, v := range tg.counts {
		c[k] = v
	}
	return c
}

// CallsByName returns every call recorded for the given metric name.
func (tg *TestStatsdClient) CallsByName(name string) []TestStatsdCall {
	tg.mu.RLock()
	defer tg.mu.RUnlock()
	var c []TestStatsdCall
	for _, call := range tg.calls {
		if call.name == name {
			c = append(c, call)
		}
	}
	return c
}

// Reset discards every recorded call.
func (tg *TestStatsdClient) Reset() {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.calls = nil
	tg.counts = nil
	tg.flushed = 0
}

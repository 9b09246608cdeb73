// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

// Package tracertest provides a recording tracer collaborator that allows
// querying the spans and service registrations produced by integrations.
package tracertest

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/DataDog/dd-autopatch-go/tracer"
)

var (
	_ tracer.Tracer     = (*Recorder)(nil)
	_ tracer.Propagator = (*Recorder)(nil)
)

// ParentHeader is the header read by Recorder.Extract.
const ParentHeader = "X-Test-Parent"

// Span is a span recorded by Recorder.
type Span struct {
	mu        sync.RWMutex
	rec       *Recorder
	Operation string
	Service   string
	Resource  string
	SpanType  string
	Parent    string
	Start     time.Time
	End       time.Time
	Err       error
	tags      map[string]any
	finished  bool
}

// SetTag implements tracer.Span.
func (s *Span) SetTag(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[key] = value
}

// Tag returns the value of the tag with the given key.
func (s *Span) Tag(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tags[key]
}

// Tags returns a copy of the span tags.
func (s *Span) Tags() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := make(map[string]any, len(s.tags))
	for k, v := range s.tags {
		m[k] = v
	}
	return m
}

// Finish implements tracer.Span. Finishing a span twice panics, since it
// signals a broken span lifecycle.
func (s *Span) Finish(end time.Time, err error) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		panic("tracertest: span " + s.Operation + " finished twice")
	}
	s.finished = true
	if end.IsZero() {
		end = s.rec.now()
	}
	s.End = end
	s.Err = err
	s.mu.Unlock()
	s.rec.finish(s)
}

// Recorder is a tracer.Tracer recording every span and service registration.
type Recorder struct {
	// Now, when set, is used for spans started or finished without an
	// explicit time.
	Now func() time.Time

	mu           sync.Mutex // guards below
	open         map[*Span]struct{}
	finished     []*Span
	services     map[string]tracer.Service
	serviceCalls map[string]int
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		open:         make(map[*Span]struct{}),
		services:     make(map[string]tracer.Service),
		serviceCalls: make(map[string]int),
	}
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

type spanKey struct{}
type parentKey struct{}

// StartSpan implements tracer.Tracer.
func (r *Recorder) StartSpan(ctx context.Context, operation string, cfg tracer.SpanConfig) (tracer.Span, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s := &Span{
		rec:       r,
		Operation: operation,
		Service:   cfg.Service,
		Resource:  cfg.Resource,
		SpanType:  cfg.SpanType,
		Start:     cfg.StartTime,
		tags:      make(map[string]any, len(cfg.Tags)),
	}
	if s.Start.IsZero() {
		s.Start = r.now()
	}
	if p, ok := ctx.Value(spanKey{}).(*Span); ok {
		s.Parent = p.Operation
	} else if p, ok := ctx.Value(parentKey{}).(string); ok {
		s.Parent = p
	}
	for k, v := range cfg.Tags {
		s.tags[k] = v
	}
	r.mu.Lock()
	r.open[s] = struct{}{}
	r.mu.Unlock()
	return s, context.WithValue(ctx, spanKey{}, s)
}

func (r *Recorder) finish(s *Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.open, s)
	r.finished = append(r.finished, s)
}

// SetServiceInfo implements tracer.Tracer.
func (r *Recorder) SetServiceInfo(name, app, appType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serviceCalls[name]++
	r.services[name] = tracer.Service{Name: name, App: app, AppType: appType}
}

// HasService implements tracer.Tracer.
func (r *Recorder) HasService(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.services[name]
	return ok
}

// Extract implements tracer.Propagator using ParentHeader.
func (r *Recorder) Extract(ctx context.Context, h http.Header) context.Context {
	if p := h.Get(ParentHeader); p != "" {
		return context.WithValue(ctx, parentKey{}, p)
	}
	return ctx
}

// FinishedSpans returns the finished spans in finishing order.
func (r *Recorder) FinishedSpans() []*Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	spans := make([]*Span, len(r.finished))
	copy(spans, r.finished)
	return spans
}

// OpenSpans returns the spans started and not yet finished.
func (r *Recorder) OpenSpans() []*Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	spans := make([]*Span, 0, len(r.open))
	for s := range r.open {
		spans = append(spans, s)
	}
	return spans
}

// Services returns the registered services.
func (r *Recorder) Services() map[string]tracer.Service {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := make(map[string]tracer.Service, len(r.services))
	for k, v := range r.services {
		m[k] = v
	}
	return m
}

// ServiceInfoCalls returns how many times SetServiceInfo was called for name.
func (r *Recorder) ServiceInfoCalls(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.serviceCalls[name]
}

// Reset forgets every recorded span and service.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = make(map[*Span]struct{})
	r.finished = nil
	r.services = make(map[string]tracer.Service)
	r.serviceCalls = make(map[string]int)
}

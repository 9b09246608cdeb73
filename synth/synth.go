// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

// Package synth turns operation events into spans. A Synthesizer is
// configured with the Kind of span an integration produces and resolves,
// for each event, the service, resource and tags of the span before
// handing it to the tracer.
package synth // import "github.com/DataDog/dd-autopatch-go/synth"

import (
	"context"
	"fmt"

	"github.com/zoobzio/clockz"

	"github.com/DataDog/dd-autopatch-go/bridge"
	"github.com/DataDog/dd-autopatch-go/ext"
	"github.com/DataDog/dd-autopatch-go/registry"
	"github.com/DataDog/dd-autopatch-go/tracer"
)

// OptionServiceName is the registry option holding the service name an
// integration reports under.
const OptionServiceName = "service_name"

// Kind describes the spans produced by an integration.
type Kind struct {
	// Integration is the name the integration is registered under.
	Integration string
	// Operation is the span operation name. OperationFunc takes precedence
	// when set.
	Operation     string
	OperationFunc func(ev bridge.Event) string
	// SpanType is the span type, such as ext.SpanTypeSQL.
	SpanType string
	// App and AppType are registered with the tracer along with the service.
	App     string
	AppType string
	// Resource derives the span resource. It defaults to the event name.
	Resource func(ev bridge.Event) string
	// Tags derives the span tags. Nil values are skipped.
	Tags func(ev bridge.Event) map[string]any
	// DefaultService names the integration's service when the
	// service_name option is not set. It defaults to the integration name.
	DefaultService func(ev bridge.Event) string
	// ServiceOverride, when it returns a non-empty name, reports the event
	// under that service instead of the integration's.
	ServiceOverride func(ev bridge.Event) string
}

// Synthesizer emits the spans of one integration.
type Synthesizer struct {
	kind   Kind
	reg    *registry.Registry
	tracer tracer.Tracer
	clock  clockz.Clock
}

var (
	_ bridge.Sink   = (*Synthesizer)(nil)
	_ bridge.Framer = (*Synthesizer)(nil)
)

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithClock sets the clock used for events that carry no timing.
func WithClock(c clockz.Clock) Option {
	return func(s *Synthesizer) {
		s.clock = c
	}
}

// New returns a Synthesizer producing spans of the given kind through t.
// Configuration is looked up in reg.
func New(kind Kind, reg *registry.Registry, t tracer.Tracer, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		kind:   kind,
		reg:    reg,
		tracer: t,
		clock:  clockz.RealClock,
	}
	for _, fn := range opts {
		fn(s)
	}
	return s
}

// Emit produces a finished span for an operation that already completed.
// The span is back-dated to the event's start and finished at its finish
// time. Failures are returned as *bridge.SpanEmissionError.
func (s *Synthesizer) Emit(ev bridge.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = s.wrap(ev, fmt.Errorf("panic: %v", r))
		}
	}()
	span, _, err := s.open(context.Background(), ev)
	if err != nil {
		return s.wrap(ev, err)
	}
	end := ev.Finish
	if end.IsZero() {
		end = s.clock.Now()
	}
	span.Finish(end, eventError(ev))
	return nil
}

// Start opens a span for an operation about to run. The returned frame
// must be finished once the operation returns.
func (s *Synthesizer) Start(ctx context.Context, ev bridge.Event) (bridge.Frame, context.Context, error) {
	span, ctx, err := s.open(ctx, ev)
	if err != nil {
		return nil, ctx, s.wrap(ev, err)
	}
	return &Active{span: span, clock: s.clock}, ctx, nil
}

func (s *Synthesizer) open(ctx context.Context, ev bridge.Event) (tracer.Span, context.Context, error) {
	service, err := s.Service(ev)
	if err != nil {
		return nil, ctx, err
	}
	cfg := tracer.SpanConfig{
		Service:   service,
		Resource:  s.resource(ev),
		SpanType:  s.kind.SpanType,
		StartTime: ev.Start,
	}
	if cfg.StartTime.IsZero() {
		cfg.StartTime = s.clock.Now()
	}
	if s.kind.Tags != nil {
		for k, v := range s.kind.Tags(ev) {
			if v == nil {
				continue
			}
			if cfg.Tags == nil {
				cfg.Tags = make(map[string]any)
			}
			cfg.Tags[k] = v
		}
	}
	span, ctx := s.tracer.StartSpan(ctx, s.operation(ev), cfg)
	return span, ctx, nil
}

// Service returns the service the event is reported under, registering
// it with the tracer the first time it is seen. The integration's service
// is resolved once and reused for the lifetime of the process.
func (s *Synthesizer) Service(ev bridge.Event) (string, error) {
	b, err := s.reg.Binding(s.kind.Integration)
	if err != nil {
		return "", err
	}
	if s.kind.ServiceOverride != nil {
		if name := s.kind.ServiceOverride(ev); name != "" {
			b.Ensure(name, s.register)
			return name, nil
		}
	}
	return b.Service(func() string { return s.resolve(ev) }, s.register), nil
}

func (s *Synthesizer) resolve(ev bridge.Event) string {
	if name, err := s.reg.String(s.kind.Integration, OptionServiceName); err == nil && name != "" {
		return name
	}
	if s.kind.DefaultService != nil {
		if name := s.kind.DefaultService(ev); name != "" {
			return name
		}
	}
	return s.kind.Integration
}

func (s *Synthesizer) register(service string) {
	if s.tracer.HasService(service) {
		return
	}
	s.tracer.SetServiceInfo(service, s.kind.App, s.kind.AppType)
}

func (s *Synthesizer) operation(ev bridge.Event) string {
	if s.kind.OperationFunc != nil {
		if op := s.kind.OperationFunc(ev); op != "" {
			return op
		}
	}
	if s.kind.Operation != "" {
		return s.kind.Operation
	}
	return ev.Name
}

func (s *Synthesizer) resource(ev bridge.Event) string {
	if s.kind.Resource != nil {
		return s.kind.Resource(ev)
	}
	return ev.Name
}

func (s *Synthesizer) wrap(ev bridge.Event, err error) error {
	return &bridge.SpanEmissionError{Integration: s.kind.Integration, Event: ev.Name, Err: err}
}

// eventError returns the error recorded in the event payload, if any.
func eventError(ev bridge.Event) error {
	err, _ := ev.Attributes[ext.AttrError].(error)
	return err
}

// Active is a span framing an operation in progress.
type Active struct {
	span  tracer.Span
	clock clockz.Clock
}

// SetTag sets a tag on the span. Nil values are skipped.
func (a *Active) SetTag(key string, value any) {
	if value == nil {
		return
	}
	a.span.SetTag(key, value)
}

// Finish finishes the span now, marking it as errored when err is set.
func (a *Active) Finish(err error) error {
	a.span.Finish(a.clock.Now(), err)
	return nil
}

// JobResource names job spans after the job class, unless the job wraps
// another one, in which case the wrapped class is used.
func JobResource(ev bridge.Event) string {
	if wrapped, ok := ev.AttrString(AttrWrapped); ok {
		return wrapped
	}
	s, _ := ev.AttrString(AttrClass)
	return s
}

// Job event attribute keys.
const (
	AttrClass   = "class"
	AttrWrapped = "wrapped"
)

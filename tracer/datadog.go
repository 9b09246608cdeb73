// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package tracer

import (
	"context"
	"net/http"
	"time"

	ddtracer "github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"

	"github.com/DataDog/dd-autopatch-go/internal/log"
)

var (
	_ Tracer     = (*Datadog)(nil)
	_ Propagator = (*Datadog)(nil)
)

type datadogConfig struct {
	measured bool
	spanOpts []ddtracer.StartSpanOption
}

// DatadogOption configures the Datadog adapter.
type DatadogOption func(*datadogConfig)

// WithMeasured marks every span started by the adapter as measured.
func WithMeasured() DatadogOption {
	return func(cfg *datadogConfig) {
		cfg.measured = true
	}
}

// WithSpanOptions appends opts to the options of every span started by the adapter.
func WithSpanOptions(opts ...ddtracer.StartSpanOption) DatadogOption {
	return func(cfg *datadogConfig) {
		cfg.spanOpts = append(cfg.spanOpts, opts...)
	}
}

// Datadog adapts the dd-trace-go global tracer. The tracer itself must be
// started by the application with ddtracer.Start.
type Datadog struct {
	cfg      datadogConfig
	services services
}

// NewDatadog returns a Tracer backed by the dd-trace-go global tracer.
func NewDatadog(opts ...DatadogOption) *Datadog {
	d := new(Datadog)
	for _, fn := range opts {
		fn(&d.cfg)
	}
	return d
}

type extractedContextKey struct{}

// StartSpan implements Tracer.
func (d *Datadog) StartSpan(ctx context.Context, operation string, cfg SpanConfig) (Span, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	opts := make([]ddtracer.StartSpanOption, 0, 6+len(cfg.Tags)+len(d.cfg.spanOpts))
	if sc, ok := ctx.Value(extractedContextKey{}).(*ddtracer.SpanContext); ok {
		opts = append(opts, ddtracer.ChildOf(sc))
	}
	if cfg.Service != "" {
		opts = append(opts, ddtracer.ServiceName(cfg.Service))
	}
	if cfg.Resource != "" {
		opts = append(opts, ddtracer.ResourceName(cfg.Resource))
	}
	if cfg.SpanType != "" {
		opts = append(opts, ddtracer.SpanType(cfg.SpanType))
	}
	if !cfg.StartTime.IsZero() {
		opts = append(opts, ddtracer.StartTime(cfg.StartTime))
	}
	if d.cfg.measured {
		opts = append(opts, ddtracer.Measured())
	}
	for k, v := range cfg.Tags {
		opts = append(opts, ddtracer.Tag(k, v))
	}
	opts = append(opts, d.cfg.spanOpts...)
	s, ctx := ddtracer.StartSpanFromContext(ctx, operation, opts...)
	return datadogSpan{s}, ctx
}

// SetServiceInfo implements Tracer.
func (d *Datadog) SetServiceInfo(name, app, appType string) {
	if d.services.set(Service{Name: name, App: app, AppType: appType}) {
		log.Debug("Registered service %q (app: %s, app_type: %s)", name, app, appType)
	}
}

// HasService implements Tracer.
func (d *Datadog) HasService(name string) bool {
	return d.services.has(name)
}

// Services returns a copy of the registered services.
func (d *Datadog) Services() map[string]Service {
	return d.services.all()
}

// Extract implements Propagator.
func (d *Datadog) Extract(ctx context.Context, h http.Header) context.Context {
	sc, err := ddtracer.Extract(ddtracer.HTTPHeadersCarrier(h))
	if err != nil || sc == nil {
		return ctx
	}
	return context.WithValue(ctx, extractedContextKey{}, sc)
}

type datadogSpan struct{ s *ddtracer.Span }

func (s datadogSpan) SetTag(key string, value any) {
	s.s.SetTag(key, value)
}

func (s datadogSpan) Finish(end time.Time, err error) {
	var opts []ddtracer.FinishOption
	if !end.IsZero() {
		opts = append(opts, ddtracer.FinishTime(end))
	}
	if err != nil {
		opts = append(opts, ddtracer.WithError(err))
	}
	s.s.Finish(opts...)
}

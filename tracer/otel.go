// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package tracer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/DataDog/dd-autopatch-go/internal/log"
	"github.com/DataDog/dd-autopatch-go/internal/version"
)

// Attribute keys used by the OpenTelemetry adapter to carry Datadog span
// properties that have no OpenTelemetry equivalent.
const (
	OTelServiceKey  = attribute.Key("service.name")
	OTelResourceKey = attribute.Key("resource.name")
	OTelSpanTypeKey = attribute.Key("span.type")
)

const otelScope = "github.com/DataDog/dd-autopatch-go"

var (
	_ Tracer     = (*OTel)(nil)
	_ Propagator = (*OTel)(nil)
)

// OTelOption configures the OpenTelemetry adapter.
type OTelOption func(*OTel)

// WithPropagator sets the propagator used by Extract. Defaults to W3C trace context.
func WithPropagator(p propagation.TextMapPropagator) OTelOption {
	return func(o *OTel) {
		o.prop = p
	}
}

// OTel adapts an OpenTelemetry tracer provider.
type OTel struct {
	tracer   trace.Tracer
	prop     propagation.TextMapPropagator
	services services
}

// NewOTel returns a Tracer creating spans through tp.
func NewOTel(tp trace.TracerProvider, opts ...OTelOption) *OTel {
	o := &OTel{
		tracer: tp.Tracer(otelScope, trace.WithInstrumentationVersion(version.Tag)),
		prop:   propagation.TraceContext{},
	}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// StartSpan implements Tracer.
func (o *OTel) StartSpan(ctx context.Context, operation string, cfg SpanConfig) (Span, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	attrs := make([]attribute.KeyValue, 0, 3+len(cfg.Tags))
	if cfg.Service != "" {
		attrs = append(attrs, OTelServiceKey.String(cfg.Service))
	}
	if cfg.Resource != "" {
		attrs = append(attrs, OTelResourceKey.String(cfg.Resource))
	}
	if cfg.SpanType != "" {
		attrs = append(attrs, OTelSpanTypeKey.String(cfg.SpanType))
	}
	for k, v := range cfg.Tags {
		attrs = append(attrs, otelAttribute(k, v))
	}
	opts := []trace.SpanStartOption{trace.WithAttributes(attrs...)}
	if !cfg.StartTime.IsZero() {
		opts = append(opts, trace.WithTimestamp(cfg.StartTime))
	}
	ctx, s := o.tracer.Start(ctx, operation, opts...)
	return otelSpan{s}, ctx
}

// SetServiceInfo implements Tracer.
func (o *OTel) SetServiceInfo(name, app, appType string) {
	if o.services.set(Service{Name: name, App: app, AppType: appType}) {
		log.Debug("Registered service %q (app: %s, app_type: %s)", name, app, appType)
	}
}

// HasService implements Tracer.
func (o *OTel) HasService(name string) bool {
	return o.services.has(name)
}

// Extract implements Propagator.
func (o *OTel) Extract(ctx context.Context, h http.Header) context.Context {
	return o.prop.Extract(ctx, propagation.HeaderCarrier(h))
}

type otelSpan struct{ s trace.Span }

func (s otelSpan) SetTag(key string, value any) {
	s.s.SetAttributes(otelAttribute(key, value))
}

func (s otelSpan) Finish(end time.Time, err error) {
	if err != nil {
		s.s.RecordError(err)
		s.s.SetStatus(codes.Error, err.Error())
	}
	if end.IsZero() {
		s.s.End()
		return
	}
	s.s.End(trace.WithTimestamp(end))
}

func otelAttribute(k string, v any) attribute.KeyValue {
	switch v := v.(type) {
	case string:
		return attribute.String(k, v)
	case bool:
		return attribute.Bool(k, v)
	case int:
		return attribute.Int(k, v)
	case int64:
		return attribute.Int64(k, v)
	case float64:
		return attribute.Float64(k, v)
	case []string:
		return attribute.StringSlice(k, v)
	case fmt.Stringer:
		return attribute.String(k, v.String())
	default:
		return attribute.String(k, fmt.Sprint(v))
	}
}

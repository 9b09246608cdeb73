// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

// Package tracer defines the tracer collaborator used by integrations to
// create spans and register services, along with adapters for the Datadog
// and OpenTelemetry tracers.
//
// Integrations never own a span beyond the operation it describes: they
// start it, tag it and finish it.
//
//	span, ctx := t.StartSpan(ctx, "postgres.query", tracer.SpanConfig{
//		Service:  "postgres",
//		Resource: "SELECT * FROM users",
//		SpanType: ext.SpanTypeSQL,
//	})
//	defer span.Finish(time.Time{}, nil)
package tracer // import "github.com/DataDog/dd-autopatch-go/tracer"

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Tracer creates spans and keeps track of the services they belong to.
type Tracer interface {
	// StartSpan creates and starts a span for the given operation. The span
	// is a child of any span found in ctx. The returned context carries the
	// new span.
	StartSpan(ctx context.Context, operation string, cfg SpanConfig) (Span, context.Context)

	// SetServiceInfo registers the application and application type of the
	// given service. Repeated calls with the same values are no-ops.
	SetServiceInfo(name, app, appType string)

	// HasService reports whether the service was registered.
	HasService(name string) bool
}

// Propagator is implemented by tracers able to continue a trace started by
// an upstream process.
type Propagator interface {
	// Extract returns a copy of ctx that parents new spans to the span
	// context found in the given headers, if any.
	Extract(ctx context.Context, h http.Header) context.Context
}

// SpanConfig holds the properties of a span at creation time.
type SpanConfig struct {
	// Service is the logical name of the service emitting the span.
	Service string
	// Resource identifies the operation within the service, such as a SQL
	// statement or a job class.
	Resource string
	// SpanType is the semantic type of the span (sql, web, job...).
	SpanType string
	// StartTime back-dates the span. The zero value starts it now.
	StartTime time.Time
	// Tags are set on the span when it is created.
	Tags map[string]any
}

// Span is a timed, tagged record of one traced operation.
type Span interface {
	// SetTag sets a key/value pair as metadata on the span.
	SetTag(key string, value any)

	// Finish closes the span at the given time, or now if end is the zero
	// value. A non-nil err marks the span as errored.
	Finish(end time.Time, err error)
}

// Service describes a registered service.
type Service struct {
	Name    string `json:"-"`        // the internal of the service (e.g. acme_search, datadog_web)
	App     string `json:"app"`      // the name of the application (e.g. gin, postgres, custom-app)
	AppType string `json:"app_type"` // the type of the application (e.g. db, web)
}

// Equal reports whether both services hold the same information.
func (s Service) Equal(s2 Service) bool {
	return s.Name == s2.Name && s.App == s2.App && s.AppType == s2.AppType
}

// services is a concurrency-safe service table shared by the adapters.
type services struct {
	mu sync.RWMutex // guards m
	m  map[string]Service
}

// set records svc, returning true if the table changed.
func (s *services) set(svc Service) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]Service)
	}
	if old, ok := s.m[svc.Name]; ok && old.Equal(svc) {
		return false
	}
	s.m[svc.Name] = svc
	return true
}

func (s *services) has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[name]
	return ok
}

func (s *services) all() map[string]Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := make(map[string]Service, len(s.m))
	for k, v := range s.m {
		m[k] = v
	}
	return m
}

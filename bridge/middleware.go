// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package bridge

import (
	"context"
	"sync/atomic"
)

// MiddlewareAdapter frames synchronous host operations, such as a job
// being performed or a request being served, with a span.
type MiddlewareAdapter struct {
	integration string
	framer      Framer
	cfg         *config
	installed   atomic.Bool
}

// NewMiddlewareAdapter returns an adapter framing operations through f on
// behalf of integration. Operations run untouched until it is installed.
func NewMiddlewareAdapter(integration string, f Framer, opts ...Option) *MiddlewareAdapter {
	return &MiddlewareAdapter{
		integration: integration,
		framer:      f,
		cfg:         newConfig(opts),
	}
}

// Install enables framing. It reports whether this call enabled it.
func (m *MiddlewareAdapter) Install() bool {
	return m.installed.CompareAndSwap(false, true)
}

// Uninstall disables framing.
func (m *MiddlewareAdapter) Uninstall() {
	m.installed.Store(false)
}

// Installed reports whether operations are framed.
func (m *MiddlewareAdapter) Installed() bool {
	return m.installed.Load()
}

type frameKey struct{}

// Wrap runs op inside a span describing the named operation. The span is
// finished whichever way op returns; a panic raised by op is re-raised
// once the span is finished. Failures of the instrumentation itself never
// affect op or its result.
func (m *MiddlewareAdapter) Wrap(ctx context.Context, name string, attrs map[string]any, op func(context.Context) error) error {
	return m.WrapFunc(ctx, name, func() map[string]any { return attrs }, op)
}

// WrapFunc is like Wrap, but the attributes of the operation are computed
// by describe. describe is only called when the adapter is installed, and
// a panic it raises is handled like any other instrumentation failure.
func (m *MiddlewareAdapter) WrapFunc(ctx context.Context, name string, describe func() map[string]any, op func(context.Context) error) (err error) {
	if !m.Installed() {
		return op(ctx)
	}
	f, fctx := m.start(ctx, name, describe)
	if f == nil {
		return op(ctx)
	}
	defer func() {
		if r := recover(); r != nil {
			m.finish(f, name, recovered(r))
			panic(r)
		}
		m.finish(f, name, err)
	}()
	return op(context.WithValue(fctx, frameKey{}, f))
}

func (m *MiddlewareAdapter) start(ctx context.Context, name string, describe func() map[string]any) (f Frame, fctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.cfg.report(m.integration, name, recovered(r))
			f, fctx = nil, ctx
		}
	}()
	f, fctx, err := m.framer.Start(ctx, Event{Name: name, Attributes: describe()})
	if err != nil {
		m.cfg.report(m.integration, name, err)
		return nil, ctx
	}
	return f, fctx
}

func (m *MiddlewareAdapter) finish(f Frame, name string, opErr error) {
	defer func() {
		if r := recover(); r != nil {
			m.cfg.report(m.integration, name, recovered(r))
		}
	}()
	if err := f.Finish(opErr); err != nil {
		m.cfg.report(m.integration, name, err)
	}
}

// SetTag annotates the operation framed by the MiddlewareAdapter that
// produced ctx. It does nothing when ctx carries no framed operation.
func SetTag(ctx context.Context, key string, value any) {
	f, ok := ctx.Value(frameKey{}).(Frame)
	if !ok {
		return
	}
	defer func() { recover() }()
	f.SetTag(key, value)
}

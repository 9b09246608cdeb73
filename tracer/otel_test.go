// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package tracer

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestOTel(t *testing.T) (*OTel, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewOTel(tp), sr
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestOTelStartSpan(t *testing.T) {
	o, sr := newTestOTel(t)

	start := time.Now().Add(-time.Second)
	end := start.Add(100 * time.Millisecond)
	span, _ := o.StartSpan(context.Background(), "jobqueue.job", SpanConfig{
		Service:   "jobqueue",
		Resource:  "ActualReportJob",
		SpanType:  "job",
		StartTime: start,
		Tags:      map[string]any{"jobqueue.job.retry": true, "jobqueue.job.attempt": 2},
	})
	span.SetTag("jobqueue.job.id", "abc123")
	span.Finish(end, nil)

	ended := sr.Ended()
	require.Len(t, ended, 1)
	s := ended[0]
	assert.Equal(t, "jobqueue.job", s.Name())
	assert.True(t, start.Equal(s.StartTime()))
	assert.True(t, end.Equal(s.EndTime()))

	attrs := attrMap(s.Attributes())
	assert.Equal(t, "jobqueue", attrs[OTelServiceKey].AsString())
	assert.Equal(t, "ActualReportJob", attrs[OTelResourceKey].AsString())
	assert.Equal(t, "job", attrs[OTelSpanTypeKey].AsString())
	assert.True(t, attrs["jobqueue.job.retry"].AsBool())
	assert.Equal(t, int64(2), attrs["jobqueue.job.attempt"].AsInt64())
	assert.Equal(t, "abc123", attrs["jobqueue.job.id"].AsString())
}

func TestOTelFinishWithError(t *testing.T) {
	o, sr := newTestOTel(t)

	span, _ := o.StartSpan(context.Background(), "op", SpanConfig{})
	span.Finish(time.Time{}, errors.New("boom"))

	ended := sr.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "boom", ended[0].Status().Description)
	require.Len(t, ended[0].Events(), 1)
}

func TestOTelExtract(t *testing.T) {
	o, sr := newTestOTel(t)

	h := http.Header{}
	h.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	ctx := o.Extract(context.Background(), h)

	span, _ := o.StartSpan(ctx, "http.request", SpanConfig{})
	span.Finish(time.Time{}, nil)

	ended := sr.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", ended[0].SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", ended[0].Parent().SpanID().String())
	assert.Equal(t, trace.SpanKindInternal, ended[0].SpanKind())
}

func TestOTelServiceInfo(t *testing.T) {
	o, _ := newTestOTel(t)
	o.SetServiceInfo("jobqueue", "river", "worker")
	o.SetServiceInfo("jobqueue", "river", "worker")
	assert.True(t, o.HasService("jobqueue"))
	assert.False(t, o.HasService("orm"))
}

func TestOTelAttribute(t *testing.T) {
	for _, tt := range []struct {
		in   any
		want attribute.Value
	}{
		{"s", attribute.StringValue("s")},
		{true, attribute.BoolValue(true)},
		{3, attribute.IntValue(3)},
		{int64(4), attribute.Int64Value(4)},
		{1.5, attribute.Float64Value(1.5)},
		{[]string{"a"}, attribute.StringSliceValue([]string{"a"})},
		{time.Second, attribute.StringValue("1s")},
		{uint8(7), attribute.StringValue("7")},
	} {
		assert.Equal(t, tt.want, otelAttribute("k", tt.in).Value)
	}
}

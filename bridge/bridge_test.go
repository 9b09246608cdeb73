// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/dd-autopatch-go/internal"
	"github.com/DataDog/dd-autopatch-go/internal/log"
	"github.com/DataDog/dd-autopatch-go/internal/statsdtest"
	"github.com/DataDog/dd-autopatch-go/notify"
)

type testSink struct {
	mu     sync.Mutex
	events []Event
	emit   func(Event) error
}

func (s *testSink) Emit(ev Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	if s.emit != nil {
		return s.emit(ev)
	}
	return nil
}

func (s *testSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestNotificationAdapter(t *testing.T) {
	bus := notify.NewBus()
	sink := new(testSink)
	a := NewNotificationAdapter("orm", "sql.gorm", bus, sink)

	bus.Publish("sql.gorm", time.Now(), time.Now(), nil)
	assert.Empty(t, sink.Events(), "not installed")

	assert.True(t, a.Install())
	assert.False(t, a.Install())
	assert.True(t, a.Installed())

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	finish := start.Add(12 * time.Millisecond)
	payload := map[string]any{"sql": "SELECT * FROM articles", "adapter": "postgres"}
	bus.Publish("sql.gorm", start, finish, payload)

	events := sink.Events()
	require.Len(t, events, 1, "installing twice must not double subscribe")
	ev := events[0]
	assert.Equal(t, "sql.gorm", ev.Name)
	assert.Equal(t, start, ev.Start)
	assert.Equal(t, finish, ev.Finish)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, payload, ev.Attributes)
	s, ok := ev.AttrString("adapter")
	assert.True(t, ok)
	assert.Equal(t, "postgres", s)
	assert.Nil(t, ev.Attr("rows_affected"))

	ev.Attributes["sql"] = "changed"
	assert.Equal(t, "SELECT * FROM articles", payload["sql"], "attributes are a copy of the payload")

	a.Uninstall()
	a.Uninstall()
	assert.False(t, a.Installed())
	bus.Publish("sql.gorm", start, finish, payload)
	assert.Len(t, sink.Events(), 1)
}

func TestNotificationAdapterIsolation(t *testing.T) {
	rl := new(log.RecordLogger)
	defer log.UseLogger(rl)()

	for name, emit := range map[string]func(Event) error{
		"panic": func(Event) error { panic("nil pointer dereference") },
		"error": func(Event) error { return errors.New("no service") },
	} {
		t.Run(name, func(t *testing.T) {
			rl.Reset()
			var sc statsdtest.TestStatsdClient
			bus := notify.NewBus()
			a := NewNotificationAdapter("orm", "sql.gorm", bus, &testSink{emit: emit}, WithStatsd(&sc))
			a.Install()

			want := errors.New("duplicate key")
			var err error
			assert.NotPanics(t, func() {
				err = bus.Instrument("sql.gorm", map[string]any{"sql": "INSERT"}, func() error {
					return want
				})
			})
			assert.Same(t, want, err, "the host operation result is untouched")

			calls := sc.CallsByName(internal.MetricSpanError)
			require.Len(t, calls, 1)
			assert.ElementsMatch(t, []string{"integration:orm", "event:sql.gorm"}, calls[0].Tags())

			log.Flush()
			logs := rl.Logs()
			require.Len(t, logs, 1)
			assert.Contains(t, logs[0], `ERROR: orm: unable to emit span for "sql.gorm"`)
		})
	}
}

type testFrame struct {
	mu       sync.Mutex
	tags     map[string]any
	finished int
	err      error
	finish   func(error) error
}

func (f *testFrame) SetTag(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags[key] = value
}

func (f *testFrame) Finish(err error) error {
	f.mu.Lock()
	f.finished++
	f.err = err
	f.mu.Unlock()
	if f.finish != nil {
		return f.finish(err)
	}
	return nil
}

type ctxKey struct{}

type testFramer struct {
	frames []*testFrame
	events []Event
	start  func() error
	finish func(error) error
}

func (fr *testFramer) Start(ctx context.Context, ev Event) (Frame, context.Context, error) {
	if fr.start != nil {
		if err := fr.start(); err != nil {
			return nil, ctx, err
		}
	}
	f := &testFrame{tags: map[string]any{}, finish: fr.finish}
	fr.frames = append(fr.frames, f)
	fr.events = append(fr.events, ev)
	return f, context.WithValue(ctx, ctxKey{}, f), nil
}

func TestMiddlewareAdapter(t *testing.T) {
	t.Run("not-installed", func(t *testing.T) {
		fr := new(testFramer)
		m := NewMiddlewareAdapter("jobqueue", fr)
		called := false
		err := m.Wrap(context.Background(), "job.perform", nil, func(ctx context.Context) error {
			called = true
			assert.Nil(t, ctx.Value(ctxKey{}))
			return nil
		})
		assert.NoError(t, err)
		assert.True(t, called)
		assert.Empty(t, fr.frames)
	})

	t.Run("ok", func(t *testing.T) {
		fr := new(testFramer)
		m := NewMiddlewareAdapter("jobqueue", fr)
		assert.True(t, m.Install())
		assert.False(t, m.Install())

		attrs := map[string]any{"class": "ReportJob"}
		err := m.Wrap(context.Background(), "job.perform", attrs, func(ctx context.Context) error {
			assert.NotNil(t, ctx.Value(ctxKey{}), "op runs in the framed context")
			SetTag(ctx, "jobqueue.job.attempt", 1)
			return nil
		})
		assert.NoError(t, err)
		require.Len(t, fr.frames, 1)
		assert.Equal(t, "job.perform", fr.events[0].Name)
		assert.Equal(t, attrs, fr.events[0].Attributes)
		f := fr.frames[0]
		assert.Equal(t, 1, f.finished)
		assert.NoError(t, f.err)
		assert.Equal(t, 1, f.tags["jobqueue.job.attempt"])

		m.Uninstall()
		assert.False(t, m.Installed())
	})

	t.Run("error", func(t *testing.T) {
		fr := new(testFramer)
		m := NewMiddlewareAdapter("jobqueue", fr)
		m.Install()
		want := errors.New("job failed")
		err := m.Wrap(context.Background(), "job.perform", nil, func(context.Context) error { return want })
		assert.Same(t, want, err)
		assert.Same(t, want, fr.frames[0].err)
		assert.Equal(t, 1, fr.frames[0].finished)
	})

	t.Run("host-panic", func(t *testing.T) {
		fr := new(testFramer)
		m := NewMiddlewareAdapter("jobqueue", fr)
		m.Install()
		assert.PanicsWithValue(t, "job exploded", func() {
			m.Wrap(context.Background(), "job.perform", nil, func(context.Context) error {
				panic("job exploded")
			})
		})
		require.Len(t, fr.frames, 1)
		assert.Equal(t, 1, fr.frames[0].finished, "span finished before the panic is re-raised")
		assert.EqualError(t, fr.frames[0].err, "panic: job exploded")
	})
}

func TestMiddlewareAdapterIsolation(t *testing.T) {
	rl := new(log.RecordLogger)
	defer log.UseLogger(rl)()

	for name, fr := range map[string]*testFramer{
		"start-error":  {start: func() error { return errors.New("no tracer") }},
		"start-panic":  {start: func() error { panic("tracer gone") }},
		"finish-error": {finish: func(error) error { return errors.New("closed") }},
		"finish-panic": {finish: func(error) error { panic("closed") }},
	} {
		t.Run(name, func(t *testing.T) {
			var sc statsdtest.TestStatsdClient
			m := NewMiddlewareAdapter("web", fr, WithStatsd(&sc))
			m.Install()
			want := errors.New("not found")
			calls := 0
			var err error
			assert.NotPanics(t, func() {
				err = m.Wrap(context.Background(), "http.request", nil, func(ctx context.Context) error {
					calls++
					SetTag(ctx, "http.status_code", 404)
					return want
				})
			})
			assert.Equal(t, 1, calls)
			assert.Same(t, want, err)
			assert.Equal(t, int64(1), sc.Counts()[internal.MetricSpanError])
		})
	}
}

func TestMiddlewareAdapterWrapFunc(t *testing.T) {
	t.Run("not-installed", func(t *testing.T) {
		m := NewMiddlewareAdapter("jobqueue", new(testFramer))
		err := m.WrapFunc(context.Background(), "job.perform", func() map[string]any {
			t.Fatal("attributes computed while not installed")
			return nil
		}, func(context.Context) error { return nil })
		assert.NoError(t, err)
	})

	t.Run("describe-panic", func(t *testing.T) {
		rl := new(log.RecordLogger)
		defer log.UseLogger(rl)()
		var sc statsdtest.TestStatsdClient
		fr := new(testFramer)
		m := NewMiddlewareAdapter("jobqueue", fr, WithStatsd(&sc))
		m.Install()

		want := errors.New("job failed")
		calls := 0
		var err error
		assert.NotPanics(t, func() {
			err = m.WrapFunc(context.Background(), "job.perform", func() map[string]any {
				var row *struct{ ID int64 }
				return map[string]any{"id": row.ID}
			}, func(context.Context) error {
				calls++
				return want
			})
		})
		assert.Equal(t, 1, calls)
		assert.Same(t, want, err)
		assert.Empty(t, fr.frames)
		assert.Equal(t, int64(1), sc.Counts()[internal.MetricSpanError])
	})
}

func TestSetTagWithoutFrame(t *testing.T) {
	assert.NotPanics(t, func() {
		SetTag(context.Background(), "k", "v")
	})
}

func TestSpanEmissionError(t *testing.T) {
	cause := errors.New("boom")
	err := error(&SpanEmissionError{Integration: "web", Event: "http.request", Err: cause})
	assert.EqualError(t, err, `web: unable to emit span for "http.request": boom`)
	assert.ErrorIs(t, err, cause)
}

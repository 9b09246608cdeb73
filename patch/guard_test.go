// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package patch

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/dd-autopatch-go/internal"
	"github.com/DataDog/dd-autopatch-go/internal/log"
	"github.com/DataDog/dd-autopatch-go/internal/statsdtest"
	"github.com/DataDog/dd-autopatch-go/registry"
)

type fakePatcher struct {
	name     string
	probe    ProbeFunc
	activate func() error

	probes      atomic.Int32
	activations atomic.Int32
}

func (p *fakePatcher) Name() string { return p.name }

func (p *fakePatcher) Probe() Compatibility {
	p.probes.Add(1)
	return p.probe()
}

func (p *fakePatcher) Activate() error {
	p.activations.Add(1)
	if p.activate == nil {
		return nil
	}
	return p.activate()
}

func newFake(name string) *fakePatcher {
	return &fakePatcher{
		name:  name,
		probe: VersionProbe("example.com/"+name, "v1.2.0", "v1.0.0"),
	}
}

func newTestGuard(t *testing.T, names ...string) (*Guard, *registry.Registry, *statsdtest.TestStatsdClient) {
	t.Helper()
	reg := registry.New()
	for _, n := range names {
		reg.Register(n, map[string]any{OptionEnabled: true}, true)
	}
	var sc statsdtest.TestStatsdClient
	return NewGuard(reg, WithStatsd(&sc)), reg, &sc
}

func TestPatchIdempotent(t *testing.T) {
	g, reg, _ := newTestGuard(t, "jobqueue")
	p := newFake("jobqueue")
	g.Add(p)

	assert.True(t, g.Patch("jobqueue"))
	assert.True(t, g.Patch("jobqueue"))
	assert.True(t, reg.IsPatched("jobqueue"))
	assert.EqualValues(t, 1, p.activations.Load())
	assert.EqualValues(t, 1, p.probes.Load())
}

func TestPatchLogsActivation(t *testing.T) {
	rl := new(log.RecordLogger)
	defer log.UseLogger(rl)()
	log.SetLevel(log.LevelInfo)
	defer log.SetLevel(log.LevelWarn)

	g, _, _ := newTestGuard(t, "web")
	g.Add(newFake("web"))
	require.True(t, g.Patch("web"))
	require.True(t, g.Patch("web"))

	logs := rl.Logs()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0], "INFO: Activated instrumentation for web (example.com/web v1.2.0)")
}

func TestPatchConcurrent(t *testing.T) {
	g, _, _ := newTestGuard(t, "web")
	p := newFake("web")
	g.Add(p)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, g.Patch("web"))
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, p.activations.Load())
}

func TestPatchIncompatible(t *testing.T) {
	rl := new(log.RecordLogger)
	defer log.UseLogger(rl)()

	t.Run("version", func(t *testing.T) {
		g, reg, sc := newTestGuard(t, "web")
		p := newFake("web")
		p.probe = VersionProbe("example.com/webkit", "2.3.18", "v3.0.0")
		g.Add(p)

		a := g.Attempt("web")
		assert.False(t, a.Succeeded)
		assert.Equal(t, "v2.3.18", a.Version)
		var ierr *IncompatibleHostError
		require.True(t, errors.As(a.Err, &ierr))
		assert.True(t, ierr.Loaded)
		assert.EqualError(t, ierr, "web: module example.com/webkit version v2.3.18 is not supported (supporting versions >=v3.0.0)")
		assert.False(t, reg.IsPatched("web"))
		assert.Zero(t, p.activations.Load())
		assert.Equal(t, int64(1), sc.Counts()[internal.MetricPatch])
		assert.Contains(t, sc.CallsByName(internal.MetricPatch)[0].Tags(), "status:incompatible")
	})

	t.Run("not-loaded", func(t *testing.T) {
		g, reg, _ := newTestGuard(t, "jobqueue")
		p := newFake("jobqueue")
		p.probe = MissingProbe("example.com/jobs")
		g.Add(p)

		assert.NotPanics(t, func() {
			assert.False(t, g.Patch("jobqueue"))
		})
		assert.False(t, reg.IsPatched("jobqueue"))
		assert.Zero(t, p.activations.Load())
	})

	for _, l := range rl.Logs() {
		assert.NotContains(t, l, "WARN", "incompatible hosts are not warnings")
		assert.NotContains(t, l, "ERROR", "incompatible hosts are not errors")
	}
}

func TestPatchActivationFailure(t *testing.T) {
	rl := new(log.RecordLogger)
	defer log.UseLogger(rl)()

	g, reg, sc := newTestGuard(t, "orm", "web")
	broken := newFake("orm")
	broken.activate = func() error { return errors.New("undefined method subscribe") }
	panicky := newFake("web")
	panicky.activate = func() error { panic("missing hook") }
	g.Add(broken)
	g.Add(panicky)

	a := g.Attempt("orm")
	assert.False(t, a.Succeeded)
	var aerr *ActivationError
	require.True(t, errors.As(a.Err, &aerr))
	assert.Equal(t, "orm", aerr.Integration)
	assert.EqualError(t, a.Err, "unable to apply orm integration: undefined method subscribe")
	assert.False(t, reg.IsPatched("orm"))

	assert.NotPanics(t, func() {
		assert.False(t, g.Patch("web"))
	})
	assert.False(t, reg.IsPatched("web"))

	logs := rl.Logs()
	require.Len(t, logs, 2)
	assert.Contains(t, logs[0], "WARN: unable to apply orm integration: undefined method subscribe")
	assert.Contains(t, logs[1], "WARN: unable to apply web integration: activation panicked: missing hook")
	for _, l := range logs {
		assert.NotContains(t, l, "\n", "failures are logged on a single line")
	}

	calls := sc.CallsByName(internal.MetricPatch)
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].Tags(), "status:error")

	t.Run("retry", func(t *testing.T) {
		broken.activate = nil
		assert.True(t, g.Patch("orm"))
		assert.EqualValues(t, 2, broken.activations.Load())
	})
}

func TestPatchProbePanics(t *testing.T) {
	g, reg, _ := newTestGuard(t, "orm")
	p := newFake("orm")
	p.probe = func() Compatibility { panic("nil build info") }
	g.Add(p)

	a := g.Attempt("orm")
	assert.False(t, a.Succeeded)
	assert.ErrorContains(t, a.Err, "probe panicked: nil build info")
	assert.False(t, reg.IsPatched("orm"))
	assert.Zero(t, p.activations.Load())
}

func TestPatchDisabled(t *testing.T) {
	t.Run("env", func(t *testing.T) {
		t.Setenv("DD_TRACE_WEB_ENABLED", "false")
		g, reg, sc := newTestGuard(t, "web")
		p := newFake("web")
		g.Add(p)

		a := g.Attempt("web")
		assert.False(t, a.Succeeded)
		assert.ErrorIs(t, a.Err, ErrDisabled)
		assert.Zero(t, p.probes.Load(), "the host library must not be touched")
		assert.Zero(t, p.activations.Load())
		assert.False(t, reg.IsPatched("web"))
		assert.Contains(t, sc.CallsByName(internal.MetricPatch)[0].Tags(), "status:disabled")
	})

	t.Run("option", func(t *testing.T) {
		g, reg, _ := newTestGuard(t, "web")
		require.NoError(t, reg.Configure("web", map[string]any{OptionEnabled: false}))
		p := newFake("web")
		g.Add(p)

		assert.False(t, g.Patch("web"))
		assert.Zero(t, p.probes.Load())
	})

	t.Run("undeclared", func(t *testing.T) {
		reg := registry.New()
		reg.Register("web", nil, true)
		g := NewGuard(reg)
		g.Add(newFake("web"))
		assert.True(t, g.Patch("web"))
	})
}

func TestPatchUnknown(t *testing.T) {
	g, _, _ := newTestGuard(t, "web")

	a := g.Attempt("web")
	assert.ErrorIs(t, a.Err, ErrNoPatcher)

	a = g.Attempt("cache")
	var cerr *registry.ConfigurationError
	assert.True(t, errors.As(a.Err, &cerr))
	assert.False(t, a.Succeeded)
}

func TestPatchAll(t *testing.T) {
	g, reg, _ := newTestGuard(t, "jobqueue", "web")
	reg.Register("orm", nil, false)
	reg.Register("cache", nil, true)

	jq := newFake("jobqueue")
	jq.activate = func() error { return errors.New("boom") }
	web := newFake("web")
	orm := newFake("orm")
	g.Add(jq)
	g.Add(web)
	g.Add(orm)

	attempts := g.PatchAll()
	require.Len(t, attempts, 2, "only auto-patch integrations with a patcher are applied")
	assert.Equal(t, "jobqueue", attempts[0].Integration)
	assert.False(t, attempts[0].Succeeded)
	assert.Equal(t, "web", attempts[1].Integration)
	assert.True(t, attempts[1].Succeeded)
	assert.Zero(t, orm.activations.Load())
	assert.True(t, reg.IsPatched("web"))
}

func TestAddAfterPatch(t *testing.T) {
	g, _, _ := newTestGuard(t, "web")
	first := newFake("web")
	g.Add(first)
	require.True(t, g.Patch("web"))

	second := newFake("web")
	g.Add(second)
	assert.True(t, g.Patch("web"))
	assert.Zero(t, second.activations.Load())
}

func TestAttemptLogsName(t *testing.T) {
	rl := new(log.RecordLogger)
	defer log.UseLogger(rl)()

	g, _, _ := newTestGuard(t, "orm")
	p := newFake("orm")
	p.activate = func() error { return errors.New("boom") }
	g.Add(p)
	g.Patch("orm")

	require.Len(t, rl.Logs(), 1)
	assert.True(t, strings.Contains(rl.Logs()[0], "orm"))
}

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

// Package autopatch attaches distributed-tracing spans to the operations of
// third-party libraries without modifying them.
//
// A Runtime ties together the integration registry, the patch guard, the
// tracer and the notification bus used by integrations. Integrations
// live under contrib/ and are created against a Runtime:
//
//	rt := autopatch.Default()
//	orm := gormtrace.New(rt)
//	jobs := rivertrace.New(rt)
//	rt.PatchAll()
//
// Patching never fails the program: integrations whose host library is
// missing, too old or broken are skipped and logged.
package autopatch // import "github.com/DataDog/dd-autopatch-go"

import (
	"sync"

	"github.com/zoobzio/clockz"

	"github.com/DataDog/dd-autopatch-go/bridge"
	"github.com/DataDog/dd-autopatch-go/internal"
	"github.com/DataDog/dd-autopatch-go/internal/log"
	"github.com/DataDog/dd-autopatch-go/notify"
	"github.com/DataDog/dd-autopatch-go/patch"
	"github.com/DataDog/dd-autopatch-go/registry"
	"github.com/DataDog/dd-autopatch-go/synth"
	"github.com/DataDog/dd-autopatch-go/tracer"
)

type config struct {
	tracer     tracer.Tracer
	bus        *notify.Bus
	clock      clockz.Clock
	statsd     internal.StatsdClient
	statsdAddr string
}

// Option configures a Runtime.
type Option func(*config)

func defaults(cfg *config) {
	cfg.clock = clockz.RealClock
	cfg.statsdAddr = internal.StringEnv("DD_DOGSTATSD_ADDR", "")
}

// WithTracer sets the tracer spans are sent to. It defaults to the Datadog
// tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(cfg *config) {
		cfg.tracer = t
	}
}

// WithBus sets the notification bus host library plugins publish to.
func WithBus(b *notify.Bus) Option {
	return func(cfg *config) {
		cfg.bus = b
	}
}

// WithClock sets the clock used to time operations.
func WithClock(c clockz.Clock) Option {
	return func(cfg *config) {
		cfg.clock = c
	}
}

// WithDogstatsdAddr sets the address health metrics are sent to. It
// defaults to DD_DOGSTATSD_ADDR; an empty address disables them.
func WithDogstatsdAddr(addr string) Option {
	return func(cfg *config) {
		cfg.statsdAddr = addr
	}
}

// WithStatsd sets the client health metrics are reported through.
func WithStatsd(c internal.StatsdClient) Option {
	return func(cfg *config) {
		cfg.statsd = c
	}
}

// Runtime is the instrumentation state shared by a set of integrations.
type Runtime struct {
	reg    *registry.Registry
	guard  *patch.Guard
	tracer tracer.Tracer
	bus    *notify.Bus
	clock  clockz.Clock
	statsd internal.StatsdClient
}

// New returns a Runtime with an empty registry. It fails only when the
// health metrics client cannot be created.
func New(opts ...Option) (*Runtime, error) {
	cfg := new(config)
	defaults(cfg)
	for _, fn := range opts {
		fn(cfg)
	}
	if cfg.tracer == nil {
		cfg.tracer = tracer.NewDatadog()
	}
	if cfg.bus == nil {
		cfg.bus = notify.NewBus(notify.WithClock(cfg.clock))
	}
	if cfg.statsd == nil {
		c, err := internal.NewStatsdClient(cfg.statsdAddr)
		if err != nil {
			return nil, err
		}
		cfg.statsd = c
	}
	reg := registry.New()
	return &Runtime{
		reg:    reg,
		guard:  patch.NewGuard(reg, patch.WithStatsd(cfg.statsd)),
		tracer: cfg.tracer,
		bus:    cfg.bus,
		clock:  cfg.clock,
		statsd: cfg.statsd,
	}, nil
}

var (
	defaultOnce    sync.Once
	defaultRuntime *Runtime
)

// Default returns the process-wide Runtime, backed by the Datadog tracer.
func Default() *Runtime {
	defaultOnce.Do(func() {
		rt, err := New()
		if err != nil {
			log.Warn("Unable to start health metrics: %v", err)
			rt, _ = New(WithStatsd(internal.NoopStatsdClient{}))
		}
		defaultRuntime = rt
	})
	return defaultRuntime
}

// Registry returns the integration registry.
func (r *Runtime) Registry() *registry.Registry { return r.reg }

// Tracer returns the tracer spans are sent to.
func (r *Runtime) Tracer() tracer.Tracer { return r.tracer }

// Bus returns the notification bus.
func (r *Runtime) Bus() *notify.Bus { return r.bus }

// Clock returns the clock used to time operations.
func (r *Runtime) Clock() clockz.Clock { return r.clock }

// Register declares an integration and its options.
func (r *Runtime) Register(name string, defaults map[string]any, autoPatch bool) {
	r.reg.Register(name, defaults, autoPatch)
}

// Add makes an integration available for patching.
func (r *Runtime) Add(p patch.Patcher) {
	r.guard.Add(p)
}

// Patch applies the named integration and reports whether it is active.
func (r *Runtime) Patch(name string) bool {
	return r.guard.Patch(name)
}

// PatchAll applies every integration registered for automatic patching.
func (r *Runtime) PatchAll() []patch.Attempt {
	return r.guard.PatchAll()
}

// Configure sets options of the named integration. It returns a
// *registry.ConfigurationError when the integration or an option is
// unknown.
func (r *Runtime) Configure(name string, opts map[string]any) error {
	return r.reg.Configure(name, opts)
}

// Synthesizer returns a span synthesizer for the given kind of spans.
func (r *Runtime) Synthesizer(kind synth.Kind) *synth.Synthesizer {
	return synth.New(kind, r.reg, r.tracer, synth.WithClock(r.clock))
}

// BridgeOptions returns the options event bridges are built with.
func (r *Runtime) BridgeOptions() []bridge.Option {
	return []bridge.Option{bridge.WithStatsd(r.statsd)}
}

// Close flushes and closes the health metrics client.
func (r *Runtime) Close() error {
	if err := r.statsd.Flush(); err != nil {
		log.Debug("Unable to flush health metrics: %v", err)
	}
	log.Flush()
	return r.statsd.Close()
}

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

// Package patch applies integrations to their host libraries. A Guard
// makes sure each integration is activated at most once, only against a
// compatible host library, and that a failing integration never prevents
// the others from being patched nor crashes the program.
package patch // import "github.com/DataDog/dd-autopatch-go/patch"

import (
	"errors"
	"fmt"
	"sync"

	"github.com/DataDog/dd-autopatch-go/internal"
	"github.com/DataDog/dd-autopatch-go/internal/log"
	"github.com/DataDog/dd-autopatch-go/registry"
)

// OptionEnabled is the option integrations declare to allow being turned
// off through configuration.
const OptionEnabled = "enabled"

// Patcher is implemented by every integration.
type Patcher interface {
	// Name returns the name the integration is registered under.
	Name() string
	// Probe inspects the host library. It must not modify it.
	Probe() Compatibility
	// Activate installs the integration's event bridge into the host
	// library. It is called at most once per Guard.
	Activate() error
}

// Attempt is the outcome of a call to Guard.Patch.
type Attempt struct {
	Integration string
	// Version is the version of the host library, when probed.
	Version   string
	Succeeded bool
	// Err explains why the integration is not patched.
	Err error
}

// Guard patches the integrations of a registry.
type Guard struct {
	reg    *registry.Registry
	statsd internal.StatsdClient

	mu       sync.Mutex // serializes activation
	pmu      sync.RWMutex
	patchers map[string]Patcher // guarded by pmu
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithStatsd reports patch attempts as health metrics through c.
func WithStatsd(c internal.StatsdClient) GuardOption {
	return func(g *Guard) {
		g.statsd = c
	}
}

// NewGuard returns a Guard recording patch state in reg.
func NewGuard(reg *registry.Registry, opts ...GuardOption) *Guard {
	g := &Guard{
		reg:      reg,
		statsd:   internal.NoopStatsdClient{},
		patchers: make(map[string]Patcher),
	}
	for _, fn := range opts {
		fn(g)
	}
	return g
}

// Add makes p available for patching. Adding a second Patcher under the
// same name replaces the first one unless it was already patched.
func (g *Guard) Add(p Patcher) {
	g.pmu.Lock()
	defer g.pmu.Unlock()
	if _, ok := g.patchers[p.Name()]; ok && g.reg.IsPatched(p.Name()) {
		log.Debug("Integration %s is already patched, ignoring new patcher", p.Name())
		return
	}
	g.patchers[p.Name()] = p
}

func (g *Guard) patcher(name string) (Patcher, bool) {
	g.pmu.RLock()
	defer g.pmu.RUnlock()
	p, ok := g.patchers[name]
	return p, ok
}

// Patch applies the named integration and reports whether it is patched.
func (g *Guard) Patch(name string) bool {
	return g.Attempt(name).Succeeded
}

// PatchAll applies every integration registered for automatic patching,
// in name order. A failing integration does not stop the others.
func (g *Guard) PatchAll() []Attempt {
	var attempts []Attempt
	for _, name := range g.reg.AutoPatch() {
		if _, ok := g.patcher(name); !ok {
			continue
		}
		attempts = append(attempts, g.Attempt(name))
	}
	return attempts
}

// Attempt applies the named integration and describes the outcome.
func (g *Guard) Attempt(name string) Attempt {
	if g.reg.IsPatched(name) {
		return Attempt{Integration: name, Succeeded: true}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	a := g.attempt(name)
	g.report(a)
	return a
}

// attempt must be called with g.mu held.
func (g *Guard) attempt(name string) Attempt {
	a := Attempt{Integration: name}
	if g.reg.IsPatched(name) {
		a.Succeeded = true
		return a
	}
	if !g.reg.IsRegistered(name) {
		a.Err = &registry.ConfigurationError{Integration: name}
		log.Warn("Unable to apply %s integration: %v", name, a.Err)
		return a
	}
	p, ok := g.patcher(name)
	if !ok {
		a.Err = ErrNoPatcher
		log.Warn("Unable to apply %s integration: %v", name, a.Err)
		return a
	}
	if !g.enabled(name) {
		a.Err = ErrDisabled
		log.Debug("Integration %s is disabled", name)
		return a
	}
	c, err := probe(p)
	a.Version = c.Version
	if err != nil {
		a.Err = &ActivationError{Integration: name, Err: err}
		log.Warn("%v", a.Err)
		return a
	}
	if err := c.Err(name); err != nil {
		a.Err = err
		log.Debug("Skipping %s integration: %v", name, err)
		return a
	}
	if err := activate(p); err != nil {
		a.Err = &ActivationError{Integration: name, Err: err}
		log.Warn("%v", a.Err)
		return a
	}
	g.reg.MarkPatched(name)
	a.Succeeded = true
	log.Info("Activated instrumentation for %s (%s %s)", name, c.Module, c.Version)
	return a
}

// enabled reports whether the integration was left on by its environment
// toggle and enabled option. The host library is not inspected.
func (g *Guard) enabled(name string) bool {
	if !internal.BoolEnv(internal.IntegrationEnabledEnv(name), true) {
		return false
	}
	on, err := g.reg.Bool(name, OptionEnabled, true)
	if err != nil {
		// the option was not declared
		return true
	}
	return on
}

func (g *Guard) report(a Attempt) {
	status := "patched"
	switch {
	case a.Succeeded:
	case errors.Is(a.Err, ErrDisabled):
		status = "disabled"
	case errors.As(a.Err, new(*IncompatibleHostError)):
		status = "incompatible"
	default:
		status = "error"
	}
	tags := []string{"integration:" + a.Integration, "status:" + status}
	if err := g.statsd.Incr(internal.MetricPatch, tags, 1); err != nil {
		log.Debug("Unable to report patch attempt: %v", err)
	}
}

func probe(p Patcher) (c Compatibility, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	return p.Probe(), nil
}

func activate(p Patcher) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("activation panicked: %v", r)
		}
	}()
	return p.Activate()
}

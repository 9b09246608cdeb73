// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

// Package registry holds the process-wide table of integrations: their
// declared options, explicit configuration, patch state and service
// bindings.
//
// Registration and patching normally happen once at startup, while option
// lookups happen concurrently from request and job goroutines afterwards.
// All methods are safe for concurrent use.
package registry // import "github.com/DataDog/dd-autopatch-go/registry"

import (
	"sort"
	"sync"
)

// Registry maps integration names to their descriptors.
type Registry struct {
	mu      sync.RWMutex // guards below fields and every descriptor
	entries map[string]*descriptor
	pending map[string]map[string]any // presets of integrations not registered yet
}

type descriptor struct {
	name      string
	autoPatch bool
	defaults  map[string]any // declared options and their defaults
	options   map[string]any // explicitly configured values
	presets   map[string]any // values set by other integrations
	patched   bool
	binding   *Binding
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*descriptor),
		pending: make(map[string]map[string]any),
	}
}

// Register declares the integration name with the given option defaults. A
// nil default declares an option without a default value.
//
// Registering a name again replaces its declared defaults and auto-patch
// flag but preserves explicitly configured values, the patched state and
// the service binding.
func (r *Registry) Register(name string, defaults map[string]any, autoPatch bool) {
	d := make(map[string]any, len(defaults))
	for k, v := range defaults {
		d[k] = v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		e.defaults = d
		e.autoPatch = autoPatch
		return
	}
	e := &descriptor{
		name:      name,
		autoPatch: autoPatch,
		defaults:  d,
		options:   make(map[string]any),
		presets:   make(map[string]any),
		binding:   new(Binding),
	}
	for k, v := range r.pending[name] {
		if _, ok := d[k]; ok {
			e.presets[k] = v
		}
	}
	delete(r.pending, name)
	r.entries[name] = e
}

// IsRegistered reports whether name was registered.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Configure explicitly sets option values for the integration. Every key
// must have been declared at registration.
func (r *Registry) Configure(name string, opts map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return &ConfigurationError{Integration: name}
	}
	for k := range opts {
		if _, ok := e.defaults[k]; !ok {
			return &ConfigurationError{Integration: name, Key: k}
		}
	}
	for k, v := range opts {
		e.options[k] = v
	}
	return nil
}

// Preset sets option values of the integration on behalf of another
// integration. Presets take precedence over declared defaults but never
// over explicitly configured values. When name is not registered yet, the
// values are kept and applied when it registers; keys it does not declare
// are then dropped.
func (r *Registry) Preset(name string, opts map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		p := r.pending[name]
		if p == nil {
			p = make(map[string]any, len(opts))
			r.pending[name] = p
		}
		for k, v := range opts {
			p[k] = v
		}
		return nil
	}
	for k := range opts {
		if _, ok := e.defaults[k]; !ok {
			return &ConfigurationError{Integration: name, Key: k}
		}
	}
	for k, v := range opts {
		e.presets[k] = v
	}
	return nil
}

// Option returns the configured value of key for the integration, falling
// back to its preset and then to its declared default. It returns a *ConfigurationError when the
// integration was never registered or the option never declared.
func (r *Registry) Option(name, key string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, &ConfigurationError{Integration: name}
	}
	if v, ok := e.options[key]; ok {
		return v, nil
	}
	if v, ok := e.presets[key]; ok {
		return v, nil
	}
	if v, ok := e.defaults[key]; ok {
		return v, nil
	}
	return nil, &ConfigurationError{Integration: name, Key: key}
}

// String returns the option as a string. Unset and non-string values yield "".
func (r *Registry) String(name, key string) (string, error) {
	v, err := r.Option(name, key)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// Bool returns the option as a boolean. Unset and non-boolean values yield def.
func (r *Registry) Bool(name, key string, def bool) (bool, error) {
	v, err := r.Option(name, key)
	if err != nil {
		return def, err
	}
	b, ok := v.(bool)
	if !ok {
		return def, nil
	}
	return b, nil
}

// IsPatched reports whether the integration was successfully patched.
func (r *Registry) IsPatched(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return ok && e.patched
}

// MarkPatched records that the integration was patched. It reports whether
// this call performed the transition; the state never reverts.
func (r *Registry) MarkPatched(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok || e.patched {
		return false
	}
	e.patched = true
	return true
}

// AutoPatch returns the sorted names of the integrations registered for
// automatic patching.
func (r *Registry) AutoPatch() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, e := range r.entries {
		if e.autoPatch {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Binding returns the service binding of the integration.
func (r *Registry) Binding(name string) (*Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, &ConfigurationError{Integration: name}
	}
	return e.binding, nil
}

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package patch

import (
	"runtime/debug"

	"golang.org/x/mod/semver"
)

// Compatibility is the result of probing a host library.
type Compatibility struct {
	// Module is the module path of the host library.
	Module string
	// Loaded reports whether the host library is linked into the program.
	Loaded bool
	// Version is the version of the host library, if known.
	Version string
	// Min is the minimum supported version. Empty means any version.
	Min string
}

// Compatible reports whether the host library is loaded and satisfies the
// minimum version. Unknown and non-semver versions (such as "(devel)"
// builds) are accepted.
func (c Compatibility) Compatible() bool {
	if !c.Loaded {
		return false
	}
	if c.Min == "" || !semver.IsValid(c.Version) {
		return true
	}
	return semver.Compare(c.Version, c.Min) >= 0
}

// Err returns an *IncompatibleHostError describing why the host library
// cannot be instrumented by the integration, or nil.
func (c Compatibility) Err(integration string) error {
	if c.Compatible() {
		return nil
	}
	return &IncompatibleHostError{
		Integration: integration,
		Module:      c.Module,
		Loaded:      c.Loaded,
		Version:     c.Version,
		Min:         c.Min,
	}
}

// ProbeFunc inspects a host library.
type ProbeFunc func() Compatibility

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// ModuleProbe returns a probe looking for the module path among the
// dependencies the program was built with.
func ModuleProbe(path, min string) ProbeFunc {
	return func() Compatibility {
		c := Compatibility{Module: path, Min: min}
		info, ok := readBuildInfo()
		if !ok {
			return c
		}
		if info.Main.Path == path {
			c.Loaded = true
			c.Version = info.Main.Version
			return c
		}
		for _, dep := range info.Deps {
			if dep.Path != path {
				continue
			}
			c.Loaded = true
			c.Version = dep.Version
			if dep.Replace != nil && dep.Replace.Version != "" {
				c.Version = dep.Replace.Version
			}
			break
		}
		return c
	}
}

// VersionProbe returns a probe for a host library that exposes its own
// version. The library is considered loaded since the caller references it.
func VersionProbe(path, version, min string) ProbeFunc {
	if version != "" && version[0] != 'v' {
		version = "v" + version
	}
	return func() Compatibility {
		return Compatibility{Module: path, Loaded: true, Version: version, Min: min}
	}
}

// MissingProbe returns a probe reporting the module as not loaded.
func MissingProbe(path string) ProbeFunc {
	return func() Compatibility {
		return Compatibility{Module: path}
	}
}

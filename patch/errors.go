// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package patch

import (
	"errors"
	"fmt"
)

// ErrDisabled is recorded for integrations turned off through their
// enabled option or DD_TRACE_<NAME>_ENABLED.
var ErrDisabled = errors.New("integration disabled")

// ErrNoPatcher is recorded when patching a name that has no Patcher.
var ErrNoPatcher = errors.New("no patcher added for integration")

// IncompatibleHostError is recorded when the host library is absent or
// older than the minimum supported version. It is an expected outcome.
type IncompatibleHostError struct {
	Integration string
	Module      string
	Loaded      bool
	Version     string
	Min         string
}

// Error provides a readable error message.
func (e *IncompatibleHostError) Error() string {
	if !e.Loaded {
		return fmt.Sprintf("%s: module %s is not loaded", e.Integration, e.Module)
	}
	return fmt.Sprintf("%s: module %s version %s is not supported (supporting versions >=%s)",
		e.Integration, e.Module, e.Version, e.Min)
}

// ActivationError wraps a failure that occurred while installing an
// integration's event bridge.
type ActivationError struct {
	Integration string
	Err         error
}

// Error provides a readable error message.
func (e *ActivationError) Error() string {
	return fmt.Sprintf("unable to apply %s integration: %v", e.Integration, e.Err)
}

// Unwrap returns the underlying failure.
func (e *ActivationError) Unwrap() error { return e.Err }

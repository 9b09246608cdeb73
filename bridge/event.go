// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

// Package bridge turns the hooks offered by host libraries into operation
// events and hands them to a span producer. It is the only place where
// instrumentation code runs on the host's call stack, so every failure
// occurring past its boundary is recovered, logged and counted instead of
// being returned to the host.
package bridge // import "github.com/DataDog/dd-autopatch-go/bridge"

import (
	"context"
	"fmt"
	"time"
)

// Event describes one observed host operation.
type Event struct {
	// Name is the name of the notification, e.g. "sql.gorm".
	Name string
	// Start is when the operation began. It is zero for operations that
	// have not run yet.
	Start time.Time
	// Finish is when the operation completed.
	Finish time.Time
	// ID identifies the notification, when the host provides one.
	ID string
	// Attributes holds the operation's payload.
	Attributes map[string]any
}

// Attr returns the attribute with the given key, or nil.
func (e Event) Attr(key string) any {
	return e.Attributes[key]
}

// AttrString returns the attribute with the given key when it is a
// non-empty string.
func (e Event) AttrString(key string) (string, bool) {
	s, ok := e.Attributes[key].(string)
	return s, ok && s != ""
}

// Sink consumes completed events.
type Sink interface {
	// Emit turns ev into a finished span.
	Emit(ev Event) error
}

// Framer frames operations that are about to run.
type Framer interface {
	// Start opens a span for ev and returns the context carrying it.
	Start(ctx context.Context, ev Event) (Frame, context.Context, error)
}

// Frame is an operation in progress.
type Frame interface {
	// SetTag annotates the operation.
	SetTag(key string, value any)
	// Finish closes the operation, marking it as failed when err is set.
	Finish(err error) error
}

// SpanEmissionError is reported when an event could not be turned into a
// span. It never reaches the host library.
type SpanEmissionError struct {
	Integration string
	Event       string
	Err         error
}

// Error provides a readable error message.
func (e *SpanEmissionError) Error() string {
	return fmt.Sprintf("%s: unable to emit span for %q: %v", e.Integration, e.Event, e.Err)
}

// Unwrap returns the underlying failure.
func (e *SpanEmissionError) Unwrap() error { return e.Err }

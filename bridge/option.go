// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package bridge

import (
	"errors"
	"fmt"

	"github.com/DataDog/dd-autopatch-go/internal"
	"github.com/DataDog/dd-autopatch-go/internal/log"
)

type config struct {
	statsd internal.StatsdClient
}

// Option configures an adapter.
type Option func(*config)

func defaults(cfg *config) {
	cfg.statsd = internal.NoopStatsdClient{}
}

// WithStatsd counts the events that failed to produce a span through c.
func WithStatsd(c internal.StatsdClient) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.statsd = c
		}
	}
}

func newConfig(opts []Option) *config {
	cfg := new(config)
	defaults(cfg)
	for _, fn := range opts {
		fn(cfg)
	}
	return cfg
}

// report logs and counts a failure that occurred past the bridge boundary.
func (cfg *config) report(integration, event string, err error) {
	var serr *SpanEmissionError
	if !errors.As(err, &serr) {
		serr = &SpanEmissionError{Integration: integration, Event: event, Err: err}
	}
	log.Error("bridge:"+integration, "%v", serr)
	tags := []string{"integration:" + integration, "event:" + event}
	if err := cfg.statsd.Incr(internal.MetricSpanError, tags, 1); err != nil {
		log.Debug("Unable to report span error: %v", err)
	}
}

// recovered converts a recovered panic value into an error.
func recovered(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}

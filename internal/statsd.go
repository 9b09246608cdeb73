// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package internal

import "github.com/DataDog/datadog-go/v5/statsd"

// Health metric names.
const (
	MetricPatch     = "datadog.autopatch.patch"
	MetricSpanError = "datadog.autopatch.span.error"
)

// StatsdClient is the subset of a dogstatsd client used to report health metrics.
type StatsdClient interface {
	Incr(name string, tags []string, rate float64) error
	Flush() error
	Close() error
}

// NewStatsdClient returns a client sending health metrics to the dogstatsd
// agent at addr. An empty addr disables reporting.
func NewStatsdClient(addr string) (StatsdClient, error) {
	if addr == "" {
		return NoopStatsdClient{}, nil
	}
	c, err := statsd.New(addr)
	if err != nil {
		return nil, err
	}
	return &dogstatsd{c: c}, nil
}

type dogstatsd struct{ c *statsd.Client }

func (d *dogstatsd) Incr(name string, tags []string, rate float64) error {
	return d.c.Incr(name, tags, rate)
}

func (d *dogstatsd) Flush() error { return d.c.Flush() }

func (d *dogstatsd) Close() error { return d.c.Close() }

// NoopStatsdClient discards every metric.
type NoopStatsdClient struct{}

func (NoopStatsdClient) Incr(string, []string, float64) error { return nil }
func (NoopStatsdClient) Flush() error                         { return nil }
func (NoopStatsdClient) Close() error                         { return nil }

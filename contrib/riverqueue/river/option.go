// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package river

type config struct {
	wrappedKey string
	serviceKey string
}

// Option is used to customize the jobs framed by WorkerMiddleware.
type Option func(cfg *config)

func defaults(cfg *config) {
	cfg.wrappedKey = "wrapped"
	cfg.serviceKey = "service"
}

// WithWrappedKey sets the job metadata key naming the class a job wraps.
// It defaults to "wrapped".
func WithWrappedKey(key string) Option {
	return func(cfg *config) {
		cfg.wrappedKey = key
	}
}

// WithServiceKey sets the job metadata key selecting the service a job is
// reported under. It defaults to "service".
func WithServiceKey(key string) Option {
	return func(cfg *config) {
		cfg.serviceKey = key
	}
}

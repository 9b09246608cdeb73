// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package gorm

import (
	"gorm.io/gorm"
)

type config struct {
	errCheck func(err error) bool
	tags     map[string]func(db *gorm.DB) any
}

// Option represents an option that can be passed to Plugin.
type Option func(*config)

func defaults(cfg *config) {
	cfg.errCheck = func(error) bool { return true }
	cfg.tags = make(map[string]func(db *gorm.DB) any)
}

// WithErrorCheck specifies a function fn which determines whether the passed
// error should be marked as an error.
func WithErrorCheck(fn func(err error) bool) Option {
	return func(cfg *config) {
		cfg.errCheck = fn
	}
}

// WithCustomTag will cause the span to have the specified tag key set to the
// value returned by tagFn, computed once the statement ran.
func WithCustomTag(tag string, tagFn func(db *gorm.DB) any) Option {
	return func(cfg *config) {
		cfg.tags[tag] = tagFn
	}
}

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package gin

import (
	"github.com/gin-gonic/gin"
)

type config struct {
	resourceNamer func(c *gin.Context) string
	ignoreRequest func(c *gin.Context) bool
	headerTags    []string
}

// Option specifies instrumentation configuration options.
type Option func(*config)

func defaults(cfg *config) {
	cfg.resourceNamer = defaultResourceNamer
	cfg.ignoreRequest = func(*gin.Context) bool { return false }
}

// WithResourceNamer specifies a function which will be used to obtain a resource name for a given
// gin request, using the request's context.
func WithResourceNamer(namer func(c *gin.Context) string) Option {
	return func(cfg *config) {
		cfg.resourceNamer = namer
	}
}

// WithIgnoreRequest specifies a function to use for determining if the
// incoming HTTP request tracing should be skipped.
func WithIgnoreRequest(f func(c *gin.Context) bool) Option {
	return func(cfg *config) {
		cfg.ignoreRequest = f
	}
}

// WithHeaderTags enables the integration to attach HTTP request headers as span tags.
// Warning:
// Using this feature can risk exposing sensitive data such as authorization tokens to Datadog.
func WithHeaderTags(headers []string) Option {
	return func(cfg *config) {
		cfg.headerTags = headers
	}
}

// defaultResourceNamer names requests after their method and route, such as
// "GET /users/:id".
func defaultResourceNamer(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		return c.Request.Method
	}
	return c.Request.Method + " " + route
}

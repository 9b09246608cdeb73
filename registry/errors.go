// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package registry

import "strconv"

// ConfigurationError is returned when looking up an integration that was
// never registered, or an option it never declared. It signals a setup
// mistake rather than a runtime condition of the host library.
type ConfigurationError struct {
	// Integration is the name of the integration looked up.
	Integration string
	// Key is the option looked up, if any.
	Key string
}

// Error provides a readable error message.
func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "integration " + strconv.Quote(e.Integration) + " is not registered"
	}
	return "integration " + strconv.Quote(e.Integration) + " has no option " + strconv.Quote(e.Key)
}

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package internal

import (
	"os"
	"strconv"
	"strings"
)

// BoolEnv returns the parsed boolean value of an environment variable, or
// def if it fails to parse.
func BoolEnv(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

// StringEnv returns the value of an environment variable, or def if it is
// unset or empty.
func StringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// IntegrationEnabledEnv returns the environment variable that toggles the
// integration with the given name, e.g. "orm" becomes DD_TRACE_ORM_ENABLED.
func IntegrationEnabledEnv(name string) string {
	r := strings.NewReplacer("-", "_", ".", "_", "/", "_")
	return "DD_TRACE_" + strings.ToUpper(r.Replace(name)) + "_ENABLED"
}

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package ext

// Span types set on spans emitted by integrations.
const (
	SpanTypeSQL      = "sql"
	SpanTypeWeb      = "web"
	SpanTypeJob      = "job"
	SpanTypeTemplate = "template"
)

// Attribute keys shared by the event bridge and the span synthesizer.
const (
	// AttrResource overrides the resource derived from other attributes.
	AttrResource = "resource"
	// AttrService overrides the service resolved for the integration.
	AttrService = "service"
	// AttrError carries the error reported by the host operation.
	AttrError = "error"
)

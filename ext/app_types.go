// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

// Package ext contains the constants shared by integrations when
// describing services and spans.
package ext // import "github.com/DataDog/dd-autopatch-go/ext"

// Application types for services.
const (
	AppTypeWeb    = "web"
	AppTypeDB     = "db"
	AppTypeCache  = "cache"
	AppTypeRPC    = "rpc"
	AppTypeWorker = "worker"
)

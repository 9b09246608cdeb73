// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

// Package river provides the "jobqueue" integration, tracing the jobs
// performed by github.com/riverqueue/river workers.
//
// Job spans are named after the job kind, or after the wrapped class when
// the job is a wrapper around another one, as recorded under the "wrapped"
// key of the job metadata.
package river // import "github.com/DataDog/dd-autopatch-go/contrib/riverqueue/river"

import (
	"context"
	"strconv"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/tidwall/gjson"

	autopatch "github.com/DataDog/dd-autopatch-go"
	"github.com/DataDog/dd-autopatch-go/bridge"
	"github.com/DataDog/dd-autopatch-go/ext"
	"github.com/DataDog/dd-autopatch-go/patch"
	"github.com/DataDog/dd-autopatch-go/synth"
)

const (
	// Name is the name the integration is registered under.
	Name = "jobqueue"
	// EventName is the name of the operation framing a job.
	EventName = "perform.jobqueue"
)

// Span tags.
const (
	TagJobID      = "jobqueue.job.id"
	TagJobRetry   = "jobqueue.job.retry"
	TagJobQueue   = "jobqueue.job.queue"
	TagJobWrapper = "jobqueue.job.wrapper"
	TagJobAttempt = "jobqueue.job.attempt"
)

const (
	attrJID     = "jid"
	attrQueue   = "queue"
	attrRetry   = "retry"
	attrAttempt = "attempt"
)

var probe = patch.ModuleProbe("github.com/riverqueue/river", "v0.13.0")

var kind = synth.Kind{
	Integration: Name,
	Operation:   "jobqueue.job",
	SpanType:    ext.SpanTypeJob,
	App:         "jobqueue",
	AppType:     ext.AppTypeWorker,
	Resource:    synth.JobResource,
	Tags: func(ev bridge.Event) map[string]any {
		tags := map[string]any{
			TagJobID:      ev.Attr(attrJID),
			TagJobRetry:   ev.Attr(attrRetry),
			TagJobQueue:   ev.Attr(attrQueue),
			TagJobAttempt: ev.Attr(attrAttempt),
		}
		if _, ok := ev.AttrString(synth.AttrWrapped); ok {
			tags[TagJobWrapper] = ev.Attr(synth.AttrClass)
		}
		return tags
	},
	ServiceOverride: func(ev bridge.Event) string {
		s, _ := ev.AttrString(ext.AttrService)
		return s
	},
}

// ServiceNamer is implemented by job arguments selecting the service their
// jobs are reported under.
type ServiceNamer interface {
	ServiceName() string
}

// Job describes a job about to be performed.
type Job struct {
	// JID identifies the job.
	JID string
	// Class is the kind of the job.
	Class string
	// Wrapped is the class the job wraps, if any.
	Wrapped string
	Queue   string
	// Retry reports whether the job will be retried if it fails.
	Retry   bool
	Attempt int
	// Service overrides the integration's service when set.
	Service string
}

func (j Job) attributes() map[string]any {
	attrs := map[string]any{
		synth.AttrClass: j.Class,
		attrJID:         j.JID,
		attrQueue:       j.Queue,
		attrRetry:       j.Retry,
	}
	if j.Wrapped != "" {
		attrs[synth.AttrWrapped] = j.Wrapped
	}
	if j.Attempt > 0 {
		attrs[attrAttempt] = j.Attempt
	}
	if j.Service != "" {
		attrs[ext.AttrService] = j.Service
	}
	return attrs
}

// JobFromRow describes a river job row. The wrapped class and the service
// are read from the job metadata.
func JobFromRow(row *rivertype.JobRow, opts ...Option) Job {
	cfg := new(config)
	defaults(cfg)
	for _, fn := range opts {
		fn(cfg)
	}
	return jobFromRow(row, cfg)
}

func jobFromRow(row *rivertype.JobRow, cfg *config) Job {
	j := Job{
		JID:     strconv.FormatInt(row.ID, 10),
		Class:   row.Kind,
		Queue:   row.Queue,
		Retry:   row.Attempt < row.MaxAttempts,
		Attempt: row.Attempt,
	}
	if len(row.Metadata) > 0 {
		j.Wrapped = gjson.GetBytes(row.Metadata, cfg.wrappedKey).String()
		j.Service = gjson.GetBytes(row.Metadata, cfg.serviceKey).String()
	}
	return j
}

// JobFromRiver describes a typed river job. Arguments implementing
// ServiceNamer select the service of the job.
func JobFromRiver[T river.JobArgs](job *river.Job[T], opts ...Option) Job {
	j := JobFromRow(job.JobRow, opts...)
	if sn, ok := any(job.Args).(ServiceNamer); ok {
		if s := sn.ServiceName(); s != "" {
			j.Service = s
		}
	}
	return j
}

// Integration traces river jobs.
type Integration struct {
	adapter *bridge.MiddlewareAdapter
}

// New registers the integration with rt. It is patched by rt.PatchAll.
func New(rt *autopatch.Runtime) *Integration {
	rt.Register(Name, map[string]any{
		synth.OptionServiceName: "jobqueue",
		patch.OptionEnabled:     true,
	}, true)
	i := &Integration{
		adapter: bridge.NewMiddlewareAdapter(Name, rt.Synthesizer(kind), rt.BridgeOptions()...),
	}
	rt.Add(i)
	return i
}

// Name implements patch.Patcher.
func (*Integration) Name() string { return Name }

// Probe implements patch.Patcher.
func (*Integration) Probe() patch.Compatibility { return probe() }

// Activate implements patch.Patcher.
func (i *Integration) Activate() error {
	i.adapter.Install()
	return nil
}

// Trace performs the job by calling fn within a span. It returns the
// result of fn; a panic raised by fn is propagated once the span is
// finished.
func (i *Integration) Trace(ctx context.Context, job Job, fn func(context.Context) error) error {
	return i.adapter.Wrap(ctx, EventName, job.attributes(), fn)
}

// WorkerMiddleware returns a river worker middleware tracing every job
// worked by the client it is configured on.
func (i *Integration) WorkerMiddleware(opts ...Option) *WorkerMiddleware {
	cfg := new(config)
	defaults(cfg)
	for _, fn := range opts {
		fn(cfg)
	}
	return &WorkerMiddleware{i: i, cfg: cfg}
}

var _ rivertype.WorkerMiddleware = (*WorkerMiddleware)(nil)

// WorkerMiddleware traces the jobs worked by a river client.
type WorkerMiddleware struct {
	i   *Integration
	cfg *config
}

// IsMiddleware implements rivertype.Middleware.
func (*WorkerMiddleware) IsMiddleware() bool { return true }

// Work implements rivertype.WorkerMiddleware.
// Jobs without a row are worked untraced.
func (m *WorkerMiddleware) Work(ctx context.Context, job *rivertype.JobRow, doInner func(context.Context) error) error {
	if job == nil {
		return doInner(ctx)
	}
	return m.i.adapter.WrapFunc(ctx, EventName, func() map[string]any {
		return jobFromRow(job, m.cfg).attributes()
	}, doInner)
}

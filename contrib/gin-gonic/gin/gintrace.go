// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

// Package gin provides the "web" integration, tracing the requests served
// and the templates rendered by the gin-gonic/gin package
// (https://github.com/gin-gonic/gin).
package gin // import "github.com/DataDog/dd-autopatch-go/contrib/gin-gonic/gin"

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	autopatch "github.com/DataDog/dd-autopatch-go"
	"github.com/DataDog/dd-autopatch-go/bridge"
	"github.com/DataDog/dd-autopatch-go/ext"
	"github.com/DataDog/dd-autopatch-go/internal"
	"github.com/DataDog/dd-autopatch-go/internal/log"
	"github.com/DataDog/dd-autopatch-go/patch"
	"github.com/DataDog/dd-autopatch-go/synth"
	"github.com/DataDog/dd-autopatch-go/tracer"
)

const (
	// Name is the name the integration is registered under.
	Name = "web"
	// EventRequest names the operation framing a request.
	EventRequest = "request.gin"
	// EventRender names the operation framing a template rendering.
	EventRender = "render_template.gin"
)

// Integration options, besides service_name and enabled.
const (
	OptionDistributedTracing = "distributed_tracing"
	OptionTemplateBasePath   = "template_base_path"
	OptionDatabaseService    = "database_service"
)

// TagTemplateName is set on template spans.
const TagTemplateName = "gin.template_name"

// ormIntegration is the integration configured by the database_service option.
const ormIntegration = "orm"

const (
	attrMethod   = "method"
	attrRoute    = "route"
	attrURL      = "url"
	attrTemplate = "template"
)

var probe = patch.VersionProbe("github.com/gin-gonic/gin", gin.Version, "v1.7.0")

var requestKind = synth.Kind{
	Integration: Name,
	Operation:   "http.request",
	SpanType:    ext.SpanTypeWeb,
	App:         "gin",
	AppType:     ext.AppTypeWeb,
	Resource: func(ev bridge.Event) string {
		s, _ := ev.AttrString(ext.AttrResource)
		return s
	},
	Tags: func(ev bridge.Event) map[string]any {
		tags := map[string]any{
			ext.HTTPMethod: ev.Attr(attrMethod),
			ext.HTTPURL:    ev.Attr(attrURL),
		}
		for k, v := range ev.Attributes {
			if strings.HasPrefix(k, "http.request.headers.") {
				tags[k] = v
			}
		}
		return tags
	},
}

var renderKind = synth.Kind{
	Integration: Name,
	Operation:   "gin.render.html",
	SpanType:    ext.SpanTypeTemplate,
	App:         "gin",
	AppType:     ext.AppTypeWeb,
	Resource: func(ev bridge.Event) string {
		s, _ := ev.AttrString(attrTemplate)
		return s
	},
	Tags: func(ev bridge.Event) map[string]any {
		return map[string]any{TagTemplateName: ev.Attr(attrTemplate)}
	},
}

// Integration traces gin requests and template renderings.
type Integration struct {
	rt       *autopatch.Runtime
	requests *bridge.MiddlewareAdapter
	renders  *bridge.MiddlewareAdapter
}

// New registers the integration with rt. It is patched by rt.PatchAll
// unless DD_TRACE_GIN_ENABLED is false.
func New(rt *autopatch.Runtime) *Integration {
	rt.Register(Name, map[string]any{
		synth.OptionServiceName:  internal.StringEnv("DD_SERVICE", "gin"),
		OptionDistributedTracing: false,
		OptionTemplateBasePath:   "views/",
		OptionDatabaseService:    nil,
		patch.OptionEnabled:      true,
	}, true)
	if !internal.BoolEnv("DD_TRACE_GIN_ENABLED", true) {
		if err := rt.Configure(Name, map[string]any{patch.OptionEnabled: false}); err != nil {
			log.Warn("Unable to disable the %s integration: %v", Name, err)
		}
	}
	i := &Integration{
		rt:       rt,
		requests: bridge.NewMiddlewareAdapter(Name, rt.Synthesizer(requestKind), rt.BridgeOptions()...),
		renders:  bridge.NewMiddlewareAdapter(Name, rt.Synthesizer(renderKind), rt.BridgeOptions()...),
	}
	rt.Add(i)
	return i
}

// Name implements patch.Patcher.
func (*Integration) Name() string { return Name }

// Probe implements patch.Patcher.
func (*Integration) Probe() patch.Compatibility { return probe() }

// Activate implements patch.Patcher. When the database_service option is
// set, it becomes the service of the orm integration, whether that one is
// registered before or after. An explicitly configured orm service wins.
func (i *Integration) Activate() error {
	reg := i.rt.Registry()
	if svc, err := reg.String(Name, OptionDatabaseService); err == nil && svc != "" {
		if err := reg.Preset(ormIntegration, map[string]any{synth.OptionServiceName: svc}); err != nil {
			log.Warn("Unable to set the database service: %v", err)
		}
	}
	i.requests.Install()
	i.renders.Install()
	return nil
}

// Middleware returns middleware that will trace incoming requests.
func (i *Integration) Middleware(opts ...Option) gin.HandlerFunc {
	cfg := new(config)
	defaults(cfg)
	for _, fn := range opts {
		fn(cfg)
	}
	return func(c *gin.Context) {
		if cfg.ignoreRequest(c) {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		if i.distributed() {
			if p, ok := i.rt.Tracer().(tracer.Propagator); ok {
				ctx = p.Extract(ctx, c.Request.Header)
			}
		}
		attrs := map[string]any{
			ext.AttrResource: cfg.resourceNamer(c),
			attrMethod:       c.Request.Method,
			attrRoute:        c.FullPath(),
			attrURL:          c.Request.URL.Path,
		}
		for _, h := range cfg.headerTags {
			if v := c.GetHeader(h); v != "" {
				attrs["http.request.headers."+strings.ToLower(h)] = v
			}
		}
		_ = i.requests.Wrap(ctx, EventRequest, attrs, func(ctx context.Context) error {
			// pass the span through the request context
			c.Request = c.Request.WithContext(ctx)

			// serve the request to the next middleware
			c.Next()

			status := c.Writer.Status()
			bridge.SetTag(ctx, ext.HTTPCode, strconv.Itoa(status))
			if len(c.Errors) > 0 {
				bridge.SetTag(ctx, "gin.errors", c.Errors.String())
				return c.Errors.Last()
			}
			if status >= http.StatusInternalServerError {
				return fmt.Errorf("%d: %s", status, http.StatusText(status))
			}
			return nil
		})
	}
}

func (i *Integration) distributed() bool {
	on, _ := i.rt.Registry().Bool(Name, OptionDistributedTracing, false)
	return on
}

// HTML will trace the rendering of the template as a child of the span in the given context.
func (i *Integration) HTML(c *gin.Context, code int, name string, obj any) {
	attrs := map[string]any{attrTemplate: i.templateName(name)}
	_ = i.renders.Wrap(c.Request.Context(), EventRender, attrs, func(context.Context) error {
		n := len(c.Errors)
		c.HTML(code, name, obj)
		if len(c.Errors) > n {
			return c.Errors.Last()
		}
		return nil
	})
}

// templateName strips the configured base path from a template name, e.g.
// "app/views/users/index.tmpl" becomes "users/index.tmpl".
func (i *Integration) templateName(name string) string {
	base, _ := i.rt.Registry().String(Name, OptionTemplateBasePath)
	if base == "" {
		return name
	}
	if idx := strings.Index(name, base); idx >= 0 {
		return name[idx+len(base):]
	}
	return name
}

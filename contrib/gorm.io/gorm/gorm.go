// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

// Package gorm provides the "orm" integration, tracing the statements run
// through gorm.io/gorm (https://gorm.io).
//
// Plugin publishes a notification for each statement; once the integration
// is patched, every notification becomes a span back-dated to the moment
// the statement started. The database service defaults to the name of
// the dialector, e.g. "postgres".
package gorm // import "github.com/DataDog/dd-autopatch-go/contrib/gorm.io/gorm"

import (
	"errors"
	"time"

	"github.com/zoobzio/clockz"
	"gorm.io/gorm"

	autopatch "github.com/DataDog/dd-autopatch-go"
	"github.com/DataDog/dd-autopatch-go/bridge"
	"github.com/DataDog/dd-autopatch-go/ext"
	"github.com/DataDog/dd-autopatch-go/notify"
	"github.com/DataDog/dd-autopatch-go/patch"
	"github.com/DataDog/dd-autopatch-go/synth"
)

const (
	// Name is the name the integration is registered under.
	Name = "orm"
	// EventName is the notification published for each statement.
	EventName = "sql.gorm"
)

// Notification payload keys.
const (
	KeySQL          = "sql"
	KeyAdapter      = "adapter"
	KeyTable        = "table"
	KeyOperation    = "operation"
	KeyRowsAffected = "rows_affected"
	KeyTags         = "tags"
)

// Span tags.
const (
	TagDBVendor     = "orm.db.vendor"
	TagTable        = "orm.db.table"
	TagOperation    = "orm.operation"
	TagRowsAffected = "orm.db.rows_affected"
)

var probe = patch.ModuleProbe("gorm.io/gorm", "v1.20.0")

var kind = synth.Kind{
	Integration: Name,
	OperationFunc: func(ev bridge.Event) string {
		adapter, ok := ev.AttrString(KeyAdapter)
		if !ok {
			return "sql.query"
		}
		return adapter + ".query"
	},
	SpanType: ext.SpanTypeSQL,
	App:      "gorm",
	AppType:  ext.AppTypeDB,
	Resource: func(ev bridge.Event) string {
		s, _ := ev.AttrString(KeySQL)
		return s
	},
	Tags: func(ev bridge.Event) map[string]any {
		tags := map[string]any{
			TagDBVendor:     ev.Attr(KeyAdapter),
			TagTable:        ev.Attr(KeyTable),
			TagOperation:    ev.Attr(KeyOperation),
			TagRowsAffected: ev.Attr(KeyRowsAffected),
		}
		if table, ok := ev.AttrString(KeyTable); !ok || table == "" {
			delete(tags, TagTable)
		}
		custom, _ := ev.Attr(KeyTags).(map[string]any)
		for k, v := range custom {
			tags[k] = v
		}
		return tags
	},
	DefaultService: func(ev bridge.Event) string {
		s, _ := ev.AttrString(KeyAdapter)
		return s
	},
}

// Integration traces gorm statements.
type Integration struct {
	rt      *autopatch.Runtime
	synth   *synth.Synthesizer
	adapter *bridge.NotificationAdapter
}

// New registers the integration with rt. It is not patched automatically;
// call rt.Patch(Name) to activate it.
func New(rt *autopatch.Runtime) *Integration {
	rt.Register(Name, map[string]any{
		synth.OptionServiceName: nil,
		patch.OptionEnabled:     true,
	}, false)
	s := rt.Synthesizer(kind)
	i := &Integration{
		rt:      rt,
		synth:   s,
		adapter: bridge.NewNotificationAdapter(Name, EventName, rt.Bus(), s, rt.BridgeOptions()...),
	}
	rt.Add(i)
	return i
}

// Name implements patch.Patcher.
func (*Integration) Name() string { return Name }

// Probe implements patch.Patcher.
func (*Integration) Probe() patch.Compatibility { return probe() }

// Activate implements patch.Patcher by subscribing to statement
// notifications.
func (i *Integration) Activate() error {
	i.adapter.Install()
	return nil
}

// Plugin returns a gorm.Plugin publishing a notification for every
// statement run by the database it is used with:
//
//	db.Use(orm.Plugin())
func (i *Integration) Plugin(opts ...Option) gorm.Plugin {
	cfg := new(config)
	defaults(cfg)
	for _, fn := range opts {
		fn(cfg)
	}
	return &plugin{bus: i.rt.Bus(), clock: i.rt.Clock(), cfg: cfg}
}

const startTimeKey = "autopatch:start_time"

type plugin struct {
	bus   *notify.Bus
	clock clockz.Clock
	cfg   *config
}

func (*plugin) Name() string { return "autopatch:orm" }

func (p *plugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("autopatch:before_create", p.before),
		cb.Create().After("gorm:create").Register("autopatch:after_create", p.after("create")),
		cb.Query().Before("gorm:query").Register("autopatch:before_query", p.before),
		cb.Query().After("gorm:query").Register("autopatch:after_query", p.after("query")),
		cb.Update().Before("gorm:update").Register("autopatch:before_update", p.before),
		cb.Update().After("gorm:update").Register("autopatch:after_update", p.after("update")),
		cb.Delete().Before("gorm:delete").Register("autopatch:before_delete", p.before),
		cb.Delete().After("gorm:delete").Register("autopatch:after_delete", p.after("delete")),
		cb.Row().Before("gorm:row").Register("autopatch:before_row", p.before),
		cb.Row().After("gorm:row").Register("autopatch:after_row", p.after("row")),
		cb.Raw().Before("gorm:raw").Register("autopatch:before_raw", p.before),
		cb.Raw().After("gorm:raw").Register("autopatch:after_raw", p.after("raw")),
	)
}

func (p *plugin) before(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	db.InstanceSet(startTimeKey, p.clock.Now())
}

func (p *plugin) after(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		if db == nil || db.Statement == nil || !p.bus.Listening(EventName) {
			return
		}
		var start time.Time
		if v, ok := db.InstanceGet(startTimeKey); ok {
			start, _ = v.(time.Time)
		}
		payload := map[string]any{
			KeySQL:          db.Statement.SQL.String(),
			KeyAdapter:      db.Dialector.Name(),
			KeyTable:        db.Statement.Table,
			KeyOperation:    operation,
			KeyRowsAffected: db.Statement.RowsAffected,
		}
		if db.Error != nil && p.cfg.errCheck(db.Error) {
			payload[ext.AttrError] = db.Error
		}
		if len(p.cfg.tags) > 0 {
			tags := make(map[string]any, len(p.cfg.tags))
			for k, fn := range p.cfg.tags {
				tags[k] = fn(db)
			}
			payload[KeyTags] = tags
		}
		p.bus.Publish(EventName, start, p.clock.Now(), payload)
	}
}

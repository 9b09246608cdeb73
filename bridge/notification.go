// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package bridge

import (
	"sync"
	"time"

	"github.com/DataDog/dd-autopatch-go/notify"
)

// Subscriber is a notification channel, such as a *notify.Bus.
type Subscriber interface {
	Subscribe(name string, h notify.Handler) *notify.Subscription
}

// NotificationAdapter forwards the notifications published under one event
// name to a Sink.
type NotificationAdapter struct {
	integration string
	event       string
	channel     Subscriber
	sink        Sink
	cfg         *config

	mu  sync.Mutex
	sub *notify.Subscription // guarded by mu
}

// NewNotificationAdapter returns an adapter forwarding the notifications
// published under event on channel to sink on behalf of integration. It
// does nothing until installed.
func NewNotificationAdapter(integration, event string, channel Subscriber, sink Sink, opts ...Option) *NotificationAdapter {
	return &NotificationAdapter{
		integration: integration,
		event:       event,
		channel:     channel,
		sink:        sink,
		cfg:         newConfig(opts),
	}
}

// Install subscribes the adapter to its channel. It reports whether this
// call subscribed; installing an installed adapter does nothing.
func (a *NotificationAdapter) Install() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sub != nil {
		return false
	}
	a.sub = a.channel.Subscribe(a.event, a.Handle)
	return true
}

// Uninstall unsubscribes the adapter.
func (a *NotificationAdapter) Uninstall() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sub == nil {
		return
	}
	a.sub.Unsubscribe()
	a.sub = nil
}

// Installed reports whether the adapter is subscribed.
func (a *NotificationAdapter) Installed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sub != nil
}

// Handle is the notify.Handler subscribed by Install.
func (a *NotificationAdapter) Handle(name string, start, finish time.Time, id string, payload map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			a.cfg.report(a.integration, name, recovered(r))
		}
	}()
	ev := Event{
		Name:       name,
		Start:      start,
		Finish:     finish,
		ID:         id,
		Attributes: make(map[string]any, len(payload)),
	}
	for k, v := range payload {
		ev.Attributes[k] = v
	}
	if err := a.sink.Emit(ev); err != nil {
		a.cfg.report(a.integration, name, err)
	}
}

/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package events

import (
	"sync"

	"k8s.io/klog/v2"
)

// Event kinds published by the environment service, the deployment engine and
// the recovery supervisor.
const (
	EnvironmentActive     = "environment.active"
	EnvironmentError      = "environment.error"
	EnvironmentDeleted    = "environment.deleted"
	EnvironmentMadePublic = "environment.made_public"

	DeploymentStarted        = "deployment.started"
	DeploymentSuccess        = "deployment.success"
	DeploymentFailed         = "deployment.failed"
	DeploymentStopped        = "deployment.stopped"
	DeploymentRecovered      = "deployment.recovered"
	DeploymentRecoveryFailed = "deployment.recovery-failed"
)

// Event is a typed domain event. Data carries kind-specific details for the
// notifier to render.
type Event struct {
	Kind   string
	UserId string
	Data   map[string]interface{}
}

// Handler consumes one event. Handlers run on their own goroutine so a slow
// consumer cannot back-pressure a publisher.
type Handler func(Event)

// Bus is an in-process typed event bus. Dispatch is asynchronous and
// best-effort; a panicking handler is logged and dropped.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: map[string][]Handler{}}
}

// Subscribe registers a handler for one event kind. The empty kind subscribes
// to every event.
func (b *Bus) Subscribe(kind string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Publish fans the event out to the subscribers of its kind and to the
// wildcard subscribers. Publish never blocks on handlers.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Kind])+len(b.handlers[""]))
	handlers = append(handlers, b.handlers[event.Kind]...)
	handlers = append(handlers, b.handlers[""]...)
	b.mu.RUnlock()
	for _, h := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					klog.Errorf("event handler panicked on %s: %v", event.Kind, r)
				}
			}()
			h(event)
		}(h)
	}
}

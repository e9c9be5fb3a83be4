/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package notification

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"

	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	"github.com/wrytes/deployment-system/pkg/events"
)

const drainInterval = 5 * time.Second

// Store is the slice of the database client the manager uses.
type Store interface {
	SubmitNotification(ctx context.Context, data *dbclient.Notification) error
	UpdateNotification(ctx context.Context, data *dbclient.Notification) error
	ListUnprocessedNotifications(ctx context.Context) ([]*dbclient.Notification, error)
	GetUserById(ctx context.Context, userId string) (*dbclient.User, error)
}

// Channel delivers one rendered notification to a user.
type Channel interface {
	Name() string
	Send(ctx context.Context, user *dbclient.User, topic string, data map[string]interface{}) error
}

// Manager journals every domain event into an outbox row and drains the
// outbox on a fixed interval. Delivery is at-least-once per channel; a row is
// stamped sent only after every channel accepted it. Channel failures are
// logged and retried on the next drain.
type Manager struct {
	store    Store
	channels []Channel

	startOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewManager(store Store, channels ...Channel) *Manager {
	return &Manager{
		store:    store,
		channels: channels,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Attach subscribes the manager to every event on the bus.
func (m *Manager) Attach(bus *events.Bus) {
	bus.Subscribe("", m.enqueue)
}

// Start runs the drain loop until Stop is called.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		go m.loop()
	})
}

// Stop ends the drain loop after the in-flight pass finishes.
func (m *Manager) Stop() {
	close(m.stop)
	<-m.done
}

func (m *Manager) enqueue(event events.Event) {
	if event.UserId == "" {
		return
	}
	payload, err := json.Marshal(event.Data)
	if err != nil {
		klog.ErrorS(err, "failed to encode notification payload", "kind", event.Kind)
		return
	}
	row := &dbclient.Notification{
		UID:   event.UserId,
		Topic: event.Kind,
		Data:  string(payload),
	}
	if err := m.store.SubmitNotification(context.Background(), row); err != nil {
		klog.ErrorS(err, "failed to journal notification", "kind", event.Kind, "userId", event.UserId)
	}
}

func (m *Manager) loop() {
	defer close(m.done)
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.drain(context.Background())
		}
	}
}

func (m *Manager) drain(ctx context.Context) {
	rows, err := m.store.ListUnprocessedNotifications(ctx)
	if err != nil {
		klog.ErrorS(err, "failed to list unprocessed notifications")
		return
	}
	for _, row := range rows {
		if m.deliver(ctx, row) {
			row.SentAt = time.Now().UTC()
			if err := m.store.UpdateNotification(ctx, row); err != nil {
				klog.ErrorS(err, "failed to mark notification sent", "id", row.Id)
			}
		}
	}
}

// deliver sends one row through every channel and reports whether all
// deliveries succeeded. Suppressed topics count as delivered.
func (m *Manager) deliver(ctx context.Context, row *dbclient.Notification) bool {
	user, err := m.store.GetUserById(ctx, row.UID)
	if err != nil {
		klog.ErrorS(err, "failed to resolve notification user", "userId", row.UID)
		return false
	}
	if !wantsTopic(user, row.Topic) {
		klog.V(3).Infof("user %s muted topic %s", row.UID, row.Topic)
		return true
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
		klog.ErrorS(err, "failed to decode notification payload", "id", row.Id)
		return true
	}
	ok := true
	for _, ch := range m.channels {
		if err := ch.Send(ctx, user, row.Topic, data); err != nil {
			klog.ErrorS(err, "notification delivery failed", "channel", ch.Name(), "topic", row.Topic)
			ok = false
		}
	}
	return ok
}

// wantsTopic applies the per-user notification booleans.
func wantsTopic(user *dbclient.User, topic string) bool {
	switch {
	case strings.HasPrefix(topic, "deployment."):
		return user.NotifyDeploy
	case strings.HasPrefix(topic, "environment."):
		return user.NotifyEnv
	default:
		return true
	}
}

/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
	"github.com/wrytes/deployment-system/pkg/events"
)

type fakeStore struct {
	mu    sync.Mutex
	rows  []*dbclient.Notification
	users map[string]*dbclient.User
	next  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*dbclient.User)}
}

func (f *fakeStore) SubmitNotification(_ context.Context, data *dbclient.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	data.Id = f.next
	f.rows = append(f.rows, data)
	return nil
}

func (f *fakeStore) UpdateNotification(_ context.Context, data *dbclient.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, row := range f.rows {
		if row.Id == data.Id {
			f.rows[i] = data
			return nil
		}
	}
	return commonerrors.NewNotFoundWithMessage("notification not found")
}

func (f *fakeStore) ListUnprocessedNotifications(_ context.Context) ([]*dbclient.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*dbclient.Notification
	for _, row := range f.rows {
		if row.SentAt.IsZero() {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeStore) GetUserById(_ context.Context, userId string) (*dbclient.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userId]
	if !ok {
		return nil, commonerrors.NewNotFoundWithMessage("user not found")
	}
	return user, nil
}

func (f *fakeStore) unsentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, row := range f.rows {
		if row.SentAt.IsZero() {
			n++
		}
	}
	return n
}

type fakeChannel struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (f *fakeChannel) Name() string { return "fake" }

func (f *fakeChannel) Send(_ context.Context, user *dbclient.User, topic string, _ map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("downstream unavailable")
	}
	f.sent = append(f.sent, user.UserId+":"+topic)
	return nil
}

func (f *fakeChannel) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestEventJournaledAndDelivered(t *testing.T) {
	store := newFakeStore()
	store.users["u-1"] = &dbclient.User{UserId: "u-1", ChatId: 1, NotifyDeploy: true, NotifyEnv: true}
	channel := &fakeChannel{}
	mgr := NewManager(store, channel)
	bus := events.NewBus()
	mgr.Attach(bus)

	bus.Publish(events.Event{
		Kind:   events.DeploymentSuccess,
		UserId: "u-1",
		Data:   map[string]interface{}{"job_id": "job1"},
	})
	require.Eventually(t, func() bool { return len(store.rows) == 1 }, time.Second, 5*time.Millisecond)

	mgr.drain(context.Background())
	assert.Equal(t, []string{"u-1:deployment.success"}, channel.sent)
	assert.Zero(t, store.unsentCount())
}

func TestMutedTopicSuppressed(t *testing.T) {
	store := newFakeStore()
	store.users["u-1"] = &dbclient.User{UserId: "u-1", NotifyDeploy: false, NotifyEnv: true}
	channel := &fakeChannel{}
	mgr := NewManager(store, channel)

	require.NoError(t, store.SubmitNotification(context.Background(), &dbclient.Notification{
		UID: "u-1", Topic: events.DeploymentFailed, Data: "{}",
	}))
	require.NoError(t, store.SubmitNotification(context.Background(), &dbclient.Notification{
		UID: "u-1", Topic: events.EnvironmentActive, Data: "{}",
	}))

	mgr.drain(context.Background())

	// The muted deployment topic is consumed silently, the env topic delivered.
	assert.Equal(t, []string{"u-1:environment.active"}, channel.sent)
	assert.Zero(t, store.unsentCount())
}

func TestFailedDeliveryRetriedNextDrain(t *testing.T) {
	store := newFakeStore()
	store.users["u-1"] = &dbclient.User{UserId: "u-1", NotifyDeploy: true, NotifyEnv: true}
	channel := &fakeChannel{fail: true}
	mgr := NewManager(store, channel)

	require.NoError(t, store.SubmitNotification(context.Background(), &dbclient.Notification{
		UID: "u-1", Topic: events.DeploymentSuccess, Data: "{}",
	}))

	mgr.drain(context.Background())
	assert.Equal(t, 1, store.unsentCount())

	channel.fail = false
	mgr.drain(context.Background())
	assert.Zero(t, store.unsentCount())
	assert.Equal(t, 1, channel.sentCount())
}

func TestWantsTopic(t *testing.T) {
	user := &dbclient.User{NotifyDeploy: true, NotifyEnv: false}
	assert.True(t, wantsTopic(user, events.DeploymentStarted))
	assert.False(t, wantsTopic(user, events.EnvironmentDeleted))
	assert.True(t, wantsTopic(user, "something.else"))
}

func TestRenderText(t *testing.T) {
	text := renderText("deployment.failed", map[string]interface{}{
		"job_id": "job1",
		"error":  "manifest unknown",
	})
	assert.Contains(t, text, "job1")
	assert.Contains(t, text, "manifest unknown")

	text = renderText("environment.made_public", map[string]interface{}{
		"name":   "demo",
		"domain": "app.example.com",
	})
	assert.Contains(t, text, "demo")
	assert.Contains(t, text, "app.example.com")
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/termshare/lib/codec"
	"github.com/bureau-foundation/termshare/lib/testutil"
	"github.com/bureau-foundation/termshare/lib/tmux"
)

// fakeLister serves a client list that tests replace between polls.
type fakeLister struct {
	mu      sync.Mutex
	clients []tmux.ClientInfo
	err     error
	polls   int
}

func (l *fakeLister) ListClients(ctx context.Context, sessionName string) ([]tmux.ClientInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.polls++
	if l.err != nil {
		return nil, l.err
	}
	return append([]tmux.ClientInfo(nil), l.clients...), nil
}

func (l *fakeLister) set(clients ...tmux.ClientInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients = clients
	l.err = nil
}

func (l *fakeLister) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func joinMessage(id int, readOnly bool) codec.Value {
	return codec.Array(
		codec.Int(int64(CommandClientJoin)),
		codec.Int(int64(id)),
		codec.String(LocalClientAddress),
		codec.Nil(),
		codec.Bool(readOnly),
	)
}

func leftMessage(id int) codec.Value {
	return codec.Array(codec.Int(int64(CommandClientLeft)), codec.Int(int64(id)))
}

func TestClientWatcherReconcile(t *testing.T) {
	t.Parallel()

	notifier, encoder := newTestNotifier(true)
	watcher := NewClientWatcher(ClientWatcherConfig{
		SessionName: "shared",
		Notifier:    notifier,
		Interval:    time.Second,
		Logger:      discardLogger(),
	})

	watcher.reconcile([]tmux.ClientInfo{
		{Name: "/dev/pts/1", PID: 100},
		{Name: "/dev/pts/2", PID: 200, ReadOnly: true},
	})
	messages := decodeAll(t, encoder.Take())
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2 joins: %v", len(messages), messages)
	}
	requireEqual(t, messages[0], joinMessage(1, false))
	requireEqual(t, messages[1], joinMessage(2, true))

	// An unchanged list announces nothing.
	watcher.reconcile([]tmux.ClientInfo{
		{Name: "/dev/pts/2", PID: 200, ReadOnly: true},
		{Name: "/dev/pts/1", PID: 100},
	})
	if encoder.Len() != 0 {
		t.Fatalf("unchanged client list encoded %d bytes", encoder.Len())
	}

	// One new client, both old ones gone: the join comes first, then the
	// departures in id order.
	watcher.reconcile([]tmux.ClientInfo{{Name: "/dev/pts/3", PID: 300}})
	messages = decodeAll(t, encoder.Take())
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 1 join and 2 lefts: %v", len(messages), messages)
	}
	requireEqual(t, messages[0], joinMessage(3, false))
	requireEqual(t, messages[1], leftMessage(1))
	requireEqual(t, messages[2], leftMessage(2))

	// A client that reattaches under a known name gets a fresh id.
	watcher.reconcile(nil)
	watcher.reconcile([]tmux.ClientInfo{{Name: "/dev/pts/1", PID: 101}})
	messages = decodeAll(t, encoder.Take())
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want left and join: %v", len(messages), messages)
	}
	requireEqual(t, messages[0], leftMessage(3))
	requireEqual(t, messages[1], joinMessage(4, false))
}

func TestClientWatcherRun(t *testing.T) {
	t.Parallel()

	fixture := newChannelFixture(t, 0)
	fixture.start(t, t.Context())

	lister := &fakeLister{}
	lister.set(tmux.ClientInfo{Name: "/dev/pts/1", PID: 100})
	watcher := NewClientWatcher(ClientWatcherConfig{
		Lister:      lister,
		SessionName: "shared",
		Channel:     fixture.channel,
		Notifier:    fixture.notifier,
		Interval:    10 * time.Millisecond,
		Logger:      discardLogger(),
	})

	ctx, cancel := context.WithCancel(t.Context())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		watcher.Run(ctx)
	}()

	messages := fixture.readMessages(t, 1)
	requireEqual(t, messages[0], joinMessage(1, false))

	lister.set()
	messages = fixture.readMessages(t, 1)
	requireEqual(t, messages[0], leftMessage(1))

	cancel()
	testutil.RequireClosed(t, stopped, channelTimeout, "watcher to stop")
}

func TestClientWatcherStopsWithChannel(t *testing.T) {
	t.Parallel()

	fixture := newChannelFixture(t, 0)
	ctx, cancelChannel := context.WithCancel(t.Context())
	fixture.start(t, ctx)

	lister := &fakeLister{}
	watcher := NewClientWatcher(ClientWatcherConfig{
		Lister:   lister,
		Channel:  fixture.channel,
		Notifier: fixture.notifier,
		Interval: time.Hour,
		Logger:   discardLogger(),
	})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		watcher.Run(t.Context())
	}()

	cancelChannel()
	fixture.wait(t)
	testutil.RequireClosed(t, stopped, channelTimeout, "watcher to stop with the channel")
}

func TestClientWatcherSkipsFailedListing(t *testing.T) {
	t.Parallel()

	notifier, encoder := newTestNotifier(true)
	lister := &fakeLister{}
	lister.fail(errors.New("tmux unavailable"))
	watcher := NewClientWatcher(ClientWatcherConfig{
		Lister:   lister,
		Notifier: notifier,
		Interval: time.Second,
		Logger:   discardLogger(),
	})

	if !watcher.poll(t.Context()) {
		t.Fatal("poll gave up after a failed listing")
	}
	if lister.polls != 1 {
		t.Fatalf("lister polled %d times, want 1", lister.polls)
	}
	if encoder.Len() != 0 {
		t.Fatalf("failed listing encoded %d bytes", encoder.Len())
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/bureau-foundation/termshare/lib/tmux"
)

// LocalClientAddress is announced as the address of tmux clients. They
// attach through the local socket, so there is no remote address.
const LocalClientAddress = "127.0.0.1"

// ClientLister lists the tmux clients attached to a session.
type ClientLister interface {
	ListClients(ctx context.Context, sessionName string) ([]tmux.ClientInfo, error)
}

// ClientWatcherConfig configures a ClientWatcher.
type ClientWatcherConfig struct {
	Lister      ClientLister
	SessionName string
	Channel     *Channel
	Notifier    *Notifier

	// Interval is the time between polls. It must be positive.
	Interval time.Duration

	Logger *slog.Logger
}

// ClientWatcher polls tmux for attached clients and announces joins and
// departures to the control server. Listing happens on the watcher's
// goroutine; the client table and the Notifier are only touched on the
// reactor through Channel.Submit.
//
// tmux clients are authenticated by socket permissions, so every listed
// client is Identified.
type ClientWatcher struct {
	lister      ClientLister
	sessionName string
	channel     *Channel
	notifier    *Notifier
	interval    time.Duration
	logger      *slog.Logger

	// Reactor-owned.
	clients map[string]*Client
	nextID  int
}

// NewClientWatcher returns a ClientWatcher. Call Run to start it.
func NewClientWatcher(config ClientWatcherConfig) *ClientWatcher {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ClientWatcher{
		lister:      config.Lister,
		sessionName: config.SessionName,
		channel:     config.Channel,
		notifier:    config.Notifier,
		interval:    config.Interval,
		logger:      logger,
		clients:     make(map[string]*Client),
		nextID:      1,
	}
}

// Run polls until ctx is cancelled or the channel stops. The first poll
// happens immediately.
func (w *ClientWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if !w.poll(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-w.channel.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll lists clients once and hands the result to the reactor. It
// reports false once the channel no longer accepts submissions.
func (w *ClientWatcher) poll(ctx context.Context) bool {
	infos, err := w.lister.ListClients(ctx, w.sessionName)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("listing tmux clients failed", "session", w.sessionName, "error", err)
		}
		return true
	}
	return w.channel.Submit(func() { w.reconcile(infos) })
}

// reconcile announces clients that appeared since the last poll, then
// clients that disappeared, in id order. It runs on the reactor.
func (w *ClientWatcher) reconcile(infos []tmux.ClientInfo) {
	present := make(map[string]bool, len(infos))
	for _, info := range infos {
		present[info.Name] = true
		if _, known := w.clients[info.Name]; known {
			continue
		}
		client := &Client{
			ID:         w.nextID,
			IPAddress:  LocalClientAddress,
			ReadOnly:   info.ReadOnly,
			Identified: true,
		}
		w.nextID++
		w.clients[info.Name] = client
		w.logger.Debug("tmux client attached", "client", info.Name, "pid", info.PID, "client_id", client.ID)
		w.notifier.NotifyClientJoin(client)
	}

	var departed []*Client
	for name, client := range w.clients {
		if !present[name] {
			departed = append(departed, client)
			delete(w.clients, name)
		}
	}
	sort.Slice(departed, func(i, j int) bool { return departed[i].ID < departed[j].ID })
	for _, client := range departed {
		w.notifier.NotifyClientLeft(client)
	}
}

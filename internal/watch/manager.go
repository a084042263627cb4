// Copyright (c) 2026 The Mailvault Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mailvault/ingestion/internal/mail"
)

// Watcher is the provider surface the manager needs: registering and
// cancelling a push-notification watch.
type Watcher interface {
	Watch(ctx context.Context, topic string) (*mail.WatchInfo, error)
	Stop(ctx context.Context) error
}

// StateStore is the persistence surface the manager needs. Implemented by
// Store.
type StateStore interface {
	Get(ctx context.Context, emailAddress string) (*Record, error)
	Upsert(ctx context.Context, r Record) error
}

// Manager keeps the mailbox watch registered and renewed. Provider watches
// expire (Gmail's after seven days), so the manager re-registers whenever
// the stored expiry falls inside the renewal buffer.
type Manager struct {
	watcher      Watcher
	store        StateStore
	emailAddress string
	topic        string
	renewBuffer  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ManagerConfig holds dependencies for the watch manager.
type ManagerConfig struct {
	Watcher      Watcher
	Store        StateStore
	EmailAddress string
	Topic        string
	RenewBuffer  time.Duration
}

// NewManager creates a watch manager.
func NewManager(cfg ManagerConfig) *Manager {
	buffer := cfg.RenewBuffer
	if buffer <= 0 {
		buffer = 24 * time.Hour
	}
	return &Manager{
		watcher:      cfg.Watcher,
		store:        cfg.Store,
		emailAddress: cfg.EmailAddress,
		topic:        cfg.Topic,
		renewBuffer:  buffer,
	}
}

// Ensure registers the watch if none exists or the stored one expires
// within the renewal buffer, and persists the resulting state.
func (m *Manager) Ensure(ctx context.Context) error {
	rec, err := m.store.Get(ctx, m.emailAddress)
	if err != nil {
		return fmt.Errorf("load watch state: %w", err)
	}

	if rec != nil && time.Until(rec.ExpiresAt) > m.renewBuffer {
		slog.Info("watch still valid",
			"mailbox", m.emailAddress,
			"expires_at", rec.ExpiresAt,
		)
		return nil
	}

	info, err := m.watcher.Watch(ctx, m.topic)
	if err != nil {
		return fmt.Errorf("register watch: %w", err)
	}

	slog.Info("watch registered",
		"mailbox", m.emailAddress,
		"topic", m.topic,
		"history_id", info.HistoryID,
		"expires_at", info.Expires,
	)

	return m.store.Upsert(ctx, Record{
		EmailAddress: m.emailAddress,
		Topic:        m.topic,
		HistoryID:    info.HistoryID,
		ExpiresAt:    info.Expires,
	})
}

// Start runs Ensure immediately and then keeps the watch renewed in the
// background until Stop or context cancellation.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.Ensure(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.renewalLoop(loopCtx)

	return nil
}

// Stop halts the renewal loop. It does not cancel the provider-side watch;
// use Cancel for that.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// Cancel tears down the provider-side watch registration.
func (m *Manager) Cancel(ctx context.Context) error {
	return m.watcher.Stop(ctx)
}

// renewalLoop runs periodically to renew the watch before expiry.
func (m *Manager) renewalLoop(ctx context.Context) {
	defer m.wg.Done()

	interval := m.renewBuffer / 2
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Ensure(ctx); err != nil {
				slog.Error("watch renewal failed",
					"mailbox", m.emailAddress,
					"error", err,
				)
			}
		}
	}
}

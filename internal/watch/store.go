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

// Package watch provides a Postgres-backed store for mailbox
// push-notification watch state and a manager that registers and renews
// the watch before it expires.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Record represents the watch registration for one mailbox.
type Record struct {
	ID               int64
	EmailAddress     string
	Topic            string
	HistoryID        uint64
	ExpiresAt        time.Time
	LastNotification *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Store provides CRUD operations for watch records in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a watch store backed by the given Postgres pool.
// It ensures the watch_state table exists on creation.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure watch schema: %w", err)
	}
	slog.Info("watch store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS watch_state (
			id                BIGSERIAL PRIMARY KEY,
			email_address     TEXT NOT NULL UNIQUE,
			topic             TEXT NOT NULL,
			history_id        BIGINT DEFAULT 0,
			expires_at        TIMESTAMPTZ NOT NULL,
			last_notification TIMESTAMPTZ,
			created_at        TIMESTAMPTZ DEFAULT NOW(),
			updated_at        TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_watch_expires ON watch_state(expires_at);
	`)
	return err
}

// Upsert inserts or updates the watch record keyed on email_address.
func (s *Store) Upsert(ctx context.Context, r Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watch_state (email_address, topic, history_id, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email_address) DO UPDATE SET
			topic      = EXCLUDED.topic,
			history_id = EXCLUDED.history_id,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
	`, r.EmailAddress, r.Topic, int64(r.HistoryID), r.ExpiresAt)
	return err
}

// Get retrieves the watch record for a mailbox. Returns nil when no watch
// has been registered yet.
func (s *Store) Get(ctx context.Context, emailAddress string) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email_address, topic, history_id, expires_at,
		       last_notification, created_at, updated_at
		FROM watch_state
		WHERE email_address = $1
	`, emailAddress)
	return scanRecord(row)
}

// SaveHistoryID records the newest history cursor seen for a mailbox.
func (s *Store) SaveHistoryID(ctx context.Context, emailAddress string, historyID uint64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE watch_state
		SET history_id = GREATEST(history_id, $2), updated_at = NOW()
		WHERE email_address = $1
	`, emailAddress, int64(historyID))
	return err
}

// TouchNotification stamps the time of the last received notification.
func (s *Store) TouchNotification(ctx context.Context, emailAddress string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE watch_state
		SET last_notification = NOW(), updated_at = NOW()
		WHERE email_address = $1
	`, emailAddress)
	return err
}

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	var historyID int64
	err := row.Scan(
		&r.ID, &r.EmailAddress, &r.Topic, &historyID, &r.ExpiresAt,
		&r.LastNotification, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan watch record: %w", err)
	}
	r.HistoryID = uint64(historyID)
	return &r, nil
}

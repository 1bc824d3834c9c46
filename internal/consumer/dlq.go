// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/confwatch/confwatch/internal/logging"
	"github.com/confwatch/confwatch/internal/metrics"
)

// ErrEntryNotFound is returned when a dead-letter entry does not exist.
var ErrEntryNotFound = errors.New("dead-letter entry not found")

// DLQEntry is one undecodable message preserved for later inspection or
// replay. Decode failures never land here; only payloads the consumer
// could not parse at all.
type DLQEntry struct {
	// MessageID is the broker message UUID.
	MessageID string `json:"message_id"`

	// Topic is the subject the message arrived on.
	Topic string `json:"topic"`

	// Payload is the raw message body. Stored as bytes since
	// dead-lettered payloads are by definition not valid JSON.
	Payload []byte `json:"payload"`

	// Error is the parse failure that dead-lettered the message.
	Error string `json:"error"`

	// RetryCount is the number of delivery attempts observed.
	RetryCount int `json:"retry_count"`

	// FirstFailure and LastFailure bracket the failure window.
	FirstFailure time.Time `json:"first_failure"`
	LastFailure  time.Time `json:"last_failure"`
}

// DLQStore persists dead-lettered messages in badger so they survive
// restarts. Entries expire after the configured retention time.
type DLQStore struct {
	db        *badger.DB
	retention time.Duration
}

const dlqKeyPrefix = "dlq:"

// OpenDLQStore opens (or creates) the badger database at cfg.Path.
func OpenDLQStore(cfg DLQConfig) (*DLQStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open dead-letter store: %w", err)
	}

	s := &DLQStore{db: db, retention: cfg.RetentionTime}

	count, err := s.Count(context.Background())
	if err != nil {
		logging.Warn().Err(err).Msg("Dead-letter store count failed on open")
	} else {
		metrics.DLQEntries.Set(float64(count))
		if count > 0 {
			logging.Info().Int64("count", count).Msg("Dead-letter store holds entries from a previous run")
		}
	}

	return s, nil
}

// Save persists an entry, keyed by message ID. Saving an existing ID
// overwrites it with the updated retry metadata.
func (s *DLQStore) Save(ctx context.Context, entry *DLQEntry) error {
	if entry == nil || entry.MessageID == "" {
		return errors.New("entry with message ID required")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dead-letter entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(dlqKeyPrefix+entry.MessageID), data)
		if s.retention > 0 {
			e = e.WithTTL(s.retention)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("save dead-letter entry: %w", err)
	}

	s.refreshGauge(ctx)
	return nil
}

// Get retrieves an entry by message ID.
func (s *DLQStore) Get(ctx context.Context, messageID string) (*DLQEntry, error) {
	var entry DLQEntry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dlqKeyPrefix + messageID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrEntryNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Delete removes an entry by message ID. Deleting a missing entry is not
// an error.
func (s *DLQStore) Delete(ctx context.Context, messageID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(dlqKeyPrefix + messageID))
	})
	if err != nil {
		return fmt.Errorf("delete dead-letter entry: %w", err)
	}

	s.refreshGauge(ctx)
	return nil
}

// List returns all live entries, oldest first failure first.
func (s *DLQStore) List(ctx context.Context) ([]*DLQEntry, error) {
	var entries []*DLQEntry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(dlqKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var entry DLQEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				logging.Warn().Err(err).Msg("Skipping unreadable dead-letter entry")
				continue
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list dead-letter entries: %w", err)
	}

	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].FirstFailure.Before(entries[j-1].FirstFailure); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	return entries, nil
}

// Count returns the number of live entries.
func (s *DLQStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(dlqKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count dead-letter entries: %w", err)
	}
	return count, nil
}

// Close shuts down the underlying badger database.
func (s *DLQStore) Close() error {
	return s.db.Close()
}

func (s *DLQStore) refreshGauge(ctx context.Context) {
	if count, err := s.Count(ctx); err == nil {
		metrics.DLQEntries.Set(float64(count))
	}
}

package bolt

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pushkit-labs/pushover-relay/internal/model"
	"github.com/pushkit-labs/pushover-relay/internal/storage"
	bolt "go.etcd.io/bbolt"
)

var _ storage.Store = (*Store)(nil)

var bucketRecipients = []byte("recipients")

// Store is a BoltDB-backed Store implementation. Recipients are keyed by
// their name, one JSON document per record.
type Store struct {
	db *bolt.DB
}

// New initialises the Bolt store.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecipients)
		return err
	}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes underlying Bolt DB.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertRecipient stores or updates a recipient record.
func (s *Store) UpsertRecipient(ctx context.Context, recipient *model.Recipient) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	now := time.Now().UTC()
	if recipient.CreatedAt.IsZero() {
		recipient.CreatedAt = now
	}
	recipient.UpdatedAt = now
	payload, err := json.Marshal(recipient)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketRecipients)
		return bkt.Put([]byte(recipient.Name), payload)
	})
}

// GetRecipient fetches a recipient by name.
func (s *Store) GetRecipient(ctx context.Context, name string) (*model.Recipient, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	var result *model.Recipient
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketRecipients).Get([]byte(name))
		if raw == nil {
			return nil
		}
		var recipient model.Recipient
		if err := json.Unmarshal(raw, &recipient); err != nil {
			return err
		}
		result = &recipient
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, storage.ErrNotFound
	}
	return result, nil
}

// ListRecipients returns all recipients.
func (s *Store) ListRecipients(ctx context.Context) ([]*model.Recipient, error) {
	return s.list(ctx, func(*model.Recipient) bool { return true })
}

// ListActiveRecipients returns ACTIVE recipients only.
func (s *Store) ListActiveRecipients(ctx context.Context) ([]*model.Recipient, error) {
	return s.list(ctx, func(r *model.Recipient) bool { return r.Active() })
}

func (s *Store) list(ctx context.Context, filter func(*model.Recipient) bool) ([]*model.Recipient, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	var recipients []*model.Recipient
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketRecipients)
		return bkt.ForEach(func(_, v []byte) error {
			var recipient model.Recipient
			if err := json.Unmarshal(v, &recipient); err != nil {
				return err
			}
			if filter(&recipient) {
				copied := recipient
				recipients = append(recipients, &copied)
			}
			return nil
		})
	})
	return recipients, err
}

// DeleteRecipient removes a recipient by name.
func (s *Store) DeleteRecipient(ctx context.Context, name string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketRecipients)
		if bkt.Get([]byte(name)) == nil {
			return storage.ErrNotFound
		}
		return bkt.Delete([]byte(name))
	})
}

package storage

import (
	"context"

	"github.com/pushkit-labs/pushover-relay/internal/model"
)

// Store abstracts recipient persistence.
type Store interface {
	UpsertRecipient(ctx context.Context, recipient *model.Recipient) error
	GetRecipient(ctx context.Context, name string) (*model.Recipient, error)
	ListRecipients(ctx context.Context) ([]*model.Recipient, error)
	ListActiveRecipients(ctx context.Context) ([]*model.Recipient, error)
	DeleteRecipient(ctx context.Context, name string) error
	Close() error
}

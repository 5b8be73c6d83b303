package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pushkit-labs/pushover-relay/internal/model"
	"github.com/pushkit-labs/pushover-relay/internal/pushover"
	"github.com/pushkit-labs/pushover-relay/internal/storage"
)

// UserValidator checks a user key against the remote service. Satisfied by
// *pushover.Client; nil disables remote validation.
type UserValidator interface {
	ValidateUser(ctx context.Context, userKey, device string) (pushover.Result, error)
}

// RecipientService manages recipient delivery profiles.
type RecipientService struct {
	store     storage.Store
	validator UserValidator
}

// RecipientRequest describes an upsert payload.
type RecipientRequest struct {
	Name            string `json:"name"`
	UserKey         string `json:"userKey"`
	Device          string `json:"device"`
	DefaultSound    string `json:"defaultSound"`
	DefaultPriority string `json:"defaultPriority"`
	Status          string `json:"status"`
}

// NewRecipientService constructs RecipientService.
func NewRecipientService(store storage.Store, validator UserValidator) *RecipientService {
	return &RecipientService{store: store, validator: validator}
}

// Upsert stores/updates a recipient profile. When a remote validator is
// configured, new or changed user keys are checked against the service so
// typos fail here rather than on the first push.
func (s *RecipientService) Upsert(ctx context.Context, req RecipientRequest) (*model.Recipient, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("recipient name is required")
	}

	recipient, err := s.store.GetRecipient(ctx, name)
	if err != nil {
		if err != storage.ErrNotFound {
			return nil, err
		}
		recipient = &model.Recipient{Name: name}
	}

	userKey := strings.TrimSpace(req.UserKey)
	if userKey == "" {
		userKey = recipient.UserKey
	}
	if userKey == "" {
		return nil, fmt.Errorf("user key is required")
	}
	device := strings.TrimSpace(req.Device)

	if req.DefaultPriority != "" {
		if _, err := pushover.ParsePriority(req.DefaultPriority); err != nil {
			return nil, err
		}
	}

	keyChanged := userKey != recipient.UserKey || device != recipient.Device
	if keyChanged && s.validator != nil {
		res, err := s.validator.ValidateUser(ctx, userKey, device)
		if err != nil {
			return nil, err
		}
		if !res.Success {
			return nil, fmt.Errorf("user key rejected: %s", res.Detail)
		}
	}

	recipient.UserKey = userKey
	recipient.Device = device
	recipient.DefaultSound = strings.TrimSpace(req.DefaultSound)
	recipient.DefaultPriority = strings.TrimSpace(req.DefaultPriority)
	recipient.Status = firstNonEmpty(strings.ToUpper(strings.TrimSpace(req.Status)), model.RecipientStatusActive)

	if err := s.store.UpsertRecipient(ctx, recipient); err != nil {
		return nil, err
	}
	return recipient, nil
}

// List returns all recipients.
func (s *RecipientService) List(ctx context.Context) ([]*model.Recipient, error) {
	return s.store.ListRecipients(ctx)
}

// ListViews returns masked recipient views.
func (s *RecipientService) ListViews(ctx context.Context) ([]*model.RecipientView, error) {
	recipients, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]*model.RecipientView, 0, len(recipients))
	for _, recipient := range recipients {
		views = append(views, toView(recipient))
	}
	return views, nil
}

// Get returns a recipient by name.
func (s *RecipientService) Get(ctx context.Context, name string) (*model.Recipient, error) {
	return s.store.GetRecipient(ctx, name)
}

// UpdateStatus toggles a recipient between ACTIVE and STOP.
func (s *RecipientService) UpdateStatus(ctx context.Context, name, status string) (*model.Recipient, error) {
	recipient, err := s.store.GetRecipient(ctx, name)
	if err != nil {
		return nil, err
	}
	recipient.Status = strings.ToUpper(strings.TrimSpace(status))
	if recipient.Status == "" {
		recipient.Status = model.RecipientStatusActive
	}
	if err := s.store.UpsertRecipient(ctx, recipient); err != nil {
		return nil, err
	}
	return recipient, nil
}

// Delete removes a recipient profile.
func (s *RecipientService) Delete(ctx context.Context, name string) error {
	return s.store.DeleteRecipient(ctx, name)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func toView(recipient *model.Recipient) *model.RecipientView {
	if recipient == nil {
		return nil
	}
	return &model.RecipientView{
		Name:            recipient.Name,
		UserKey:         maskValue(recipient.UserKey),
		Device:          recipient.Device,
		DefaultSound:    recipient.DefaultSound,
		DefaultPriority: recipient.DefaultPriority,
		Status:          recipient.Status,
	}
}

func maskValue(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	length := len(runes)
	if length <= 4 {
		return value
	}
	masked := make([]rune, length-4)
	for i := range masked {
		masked[i] = '*'
	}
	return string(runes[:4]) + string(masked)
}

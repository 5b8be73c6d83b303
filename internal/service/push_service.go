package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pushkit-labs/pushover-relay/internal/model"
	"github.com/pushkit-labs/pushover-relay/internal/pushover"
	"github.com/pushkit-labs/pushover-relay/internal/storage"
	"github.com/rs/zerolog"
)

// Notifier sends one notification on behalf of a single user key.
type Notifier interface {
	Notify(ctx context.Context, req pushover.Request) (pushover.Result, error)
}

// ClientFactory builds a Notifier bound to a recipient's user key. The relay
// holds one application token; each recipient brings its own account key.
type ClientFactory func(userKey string) (Notifier, error)

// PushService resolves target recipients and fans notifications out through
// the Pushover client.
type PushService struct {
	store     storage.Store
	newClient ClientFactory
	log       zerolog.Logger
}

// NewPushService builds PushService.
func NewPushService(store storage.Store, newClient ClientFactory, log zerolog.Logger) *PushService {
	return &PushService{store: store, newClient: newClient, log: log}
}

// Dispatch sends one notification to the named recipients, or to every
// active recipient when none are named. Per-recipient outcomes are returned
// alongside an aggregate summary; an error is returned only when the request
// itself is unusable.
func (s *PushService) Dispatch(ctx context.Context, req model.PushRequest) (model.PushSummary, []model.PushResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return model.PushSummary{}, nil, fmt.Errorf("message is required")
	}
	if req.Priority != "" {
		if _, err := pushover.ParsePriority(req.Priority); err != nil {
			return model.PushSummary{}, nil, err
		}
	}

	targets, lookupFailures := s.pickTargets(ctx, req.Recipients)
	if len(targets) == 0 {
		return model.PushSummary{}, lookupFailures, fmt.Errorf("no target recipients resolved")
	}

	var (
		results    = make([]model.PushResult, 0, len(targets)+len(lookupFailures))
		mu         sync.Mutex
		wg         sync.WaitGroup
		successNum int
	)

	results = append(results, lookupFailures...)

	wg.Add(len(targets))
	for _, recipient := range targets {
		recipient := recipient
		go func() {
			defer wg.Done()
			result := s.sendOne(ctx, recipient, req)
			if !result.Success {
				s.log.Warn().
					Str("recipient", recipient.Name).
					Str("detail", result.Detail).
					Msg("push failed")
			}
			mu.Lock()
			if result.Success {
				successNum++
			}
			results = append(results, result)
			mu.Unlock()
		}()
	}
	wg.Wait()

	summary := model.PushSummary{
		Sent:      len(targets),
		Succeeded: successNum,
	}
	return summary, results, nil
}

func (s *PushService) sendOne(ctx context.Context, recipient *model.Recipient, req model.PushRequest) model.PushResult {
	result := model.PushResult{Recipient: recipient.Name}

	priority, err := resolvePriority(req.Priority, recipient.DefaultPriority)
	if err != nil {
		result.Detail = err.Error()
		return result
	}
	client, err := s.newClient(recipient.UserKey)
	if err != nil {
		result.Detail = err.Error()
		return result
	}

	res, err := client.Notify(ctx, pushover.Request{
		Message:  req.Message,
		Title:    req.Title,
		Device:   recipient.Device,
		Sound:    firstNonEmpty(req.Sound, recipient.DefaultSound),
		Priority: priority,
	})
	if err != nil {
		result.Detail = err.Error()
		return result
	}
	result.Success = res.Success
	result.Detail = res.Detail
	return result
}

func (s *PushService) pickTargets(ctx context.Context, names []string) ([]*model.Recipient, []model.PushResult) {
	if len(names) == 0 {
		list, err := s.store.ListActiveRecipients(ctx)
		if err != nil {
			return nil, []model.PushResult{{
				Detail: fmt.Sprintf("list recipients: %v", err),
			}}
		}
		return list, nil
	}
	var (
		recipients []*model.Recipient
		failures   []model.PushResult
	)
	for _, name := range names {
		recipient, err := s.store.GetRecipient(ctx, name)
		if err != nil {
			failures = append(failures, model.PushResult{
				Recipient: name,
				Detail:    err.Error(),
			})
			continue
		}
		recipients = append(recipients, recipient)
	}
	return recipients, failures
}

func resolvePriority(requested, fallback string) (pushover.Priority, error) {
	name := requested
	if name == "" {
		name = fallback
	}
	return pushover.ParsePriority(name)
}

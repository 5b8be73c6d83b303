package model

import "time"

// Recipient is a named delivery profile: a Pushover user key plus the
// defaults applied when a push request does not specify its own.
type Recipient struct {
	Name            string    `json:"name"`
	UserKey         string    `json:"userKey"`
	Device          string    `json:"device,omitempty"`
	DefaultSound    string    `json:"defaultSound,omitempty"`
	DefaultPriority string    `json:"defaultPriority,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

const (
	RecipientStatusActive = "ACTIVE"
	RecipientStatusStop   = "STOP"
)

// Active reports whether the recipient should receive broadcast pushes.
// An unset status counts as active for backwards compatibility.
func (r *Recipient) Active() bool {
	return r.Status == "" || r.Status == RecipientStatusActive
}

// RecipientView hides the user key when listing recipients to clients.
type RecipientView struct {
	Name            string `json:"name"`
	UserKey         string `json:"userKey"`
	Device          string `json:"device,omitempty"`
	DefaultSound    string `json:"defaultSound,omitempty"`
	DefaultPriority string `json:"defaultPriority,omitempty"`
	Status          string `json:"status"`
}

package model

// PushRequest models one inbound relay notification. Priority is a level
// name (lowest/low/normal/high/emergency), not a wire integer. An empty
// Recipients list broadcasts to every active recipient profile.
type PushRequest struct {
	Message    string   `json:"message"`
	Title      string   `json:"title,omitempty"`
	Sound      string   `json:"sound,omitempty"`
	Priority   string   `json:"priority,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
}

// PushResult is the outcome of one recipient's delivery attempt.
type PushResult struct {
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
	Detail    string `json:"detail,omitempty"`
}

// PushSummary aggregates a dispatch across recipients.
type PushSummary struct {
	Sent      int `json:"sent"`
	Succeeded int `json:"succeeded"`
}

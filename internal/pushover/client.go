package pushover

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultBaseURL is the Pushover REST API root.
const DefaultBaseURL = "https://api.pushover.net/1"

const (
	// MaxMessageLen is the longest message body the service accepts.
	MaxMessageLen = 1024
	// MaxTitleLen is the longest title the service accepts.
	MaxTitleLen = 250

	// DefaultSound is used when a request does not name a sound.
	DefaultSound = "persistent"

	defaultTimeout = 15 * time.Second

	// Emergency-priority redelivery bounds, per the service contract.
	minEmergencyRetry  = 30    // seconds
	maxEmergencyExpire = 10800 // seconds
	defaultRetry       = 60
	defaultExpire      = 3600

	maxResponseBytes = 1 << 20
)

// Client is a thin wrapper over the Pushover message API. It holds the two
// credential tokens verbatim and keeps no per-call state, so a single
// instance may be shared across goroutines; concurrent use is only as safe
// as the underlying http.Client, which is safe by default.
type Client struct {
	baseURL  *url.URL
	userKey  string
	apiToken string
	http     *http.Client
}

// Option customises a Client at construction time.
type Option func(*options)

type options struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// WithBaseURL overrides the API root, mainly for tests and self-hosted proxies.
func WithBaseURL(raw string) Option {
	return func(o *options) { o.baseURL = raw }
}

// WithTimeout bounds each request. Ignored when WithHTTPClient is also given.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHTTPClient substitutes the transport entirely.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// New creates a Pushover API client. The credentials are stored as given;
// their validity is only ever determined by the remote service's response.
func New(userKey, apiToken string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(userKey) == "" {
		return nil, fmt.Errorf("user key is required")
	}
	if strings.TrimSpace(apiToken) == "" {
		return nil, fmt.Errorf("api token is required")
	}
	o := options{
		baseURL: DefaultBaseURL,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	parsed, err := url.Parse(o.baseURL)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" {
		return nil, fmt.Errorf("base url must include scheme")
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	httpClient := o.client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: o.timeout}
	}
	return &Client{
		baseURL:  parsed,
		userKey:  userKey,
		apiToken: apiToken,
		http:     httpClient,
	}, nil
}

// Request describes one notification. Message is required; everything else
// falls back to the service defaults documented on the fields.
type Request struct {
	// Message is the notification body. Required, at most 1024 characters.
	Message string
	// Title overrides the application name shown on the device. At most
	// 250 characters. Empty means the service uses the application's name.
	Title string
	// Device targets one registered device. Empty broadcasts to all of the
	// user's devices.
	Device string
	// Sound names the notification sound. Empty means DefaultSound. The
	// name is not checked locally; unknown sounds are rejected remotely.
	Sound string
	// Priority is the delivery priority. The zero value is PriorityNormal.
	Priority Priority
	// Retry and Expire, in seconds, control emergency-priority redelivery.
	// Only consulted when Priority is PriorityEmergency; zero values take
	// the service minimums (60s retry, 1h expiry).
	Retry  int
	Expire int
}

// Result reports the outcome of a single API call. Detail is human-readable
// troubleshooting text, never a machine-parsed code.
type Result struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
}

// Notify sends one notification with exactly one synchronous HTTP POST.
//
// A non-nil error is returned only for caller-contract violations
// (*ValidationError), before any network traffic. Every operational outcome
// including transport failures, service rejections and unparseable responses
// is normalized into the Result.
func (c *Client) Notify(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}

	form := url.Values{}
	form.Set("token", c.apiToken)
	form.Set("user", c.userKey)
	form.Set("message", req.Message)
	form.Set("priority", strconv.Itoa(int(req.Priority)))
	sound := req.Sound
	if sound == "" {
		sound = DefaultSound
	}
	form.Set("sound", sound)
	if req.Title != "" {
		form.Set("title", req.Title)
	}
	if req.Device != "" {
		form.Set("device", req.Device)
	}
	if req.Priority == PriorityEmergency {
		retry, expire := req.Retry, req.Expire
		if retry == 0 {
			retry = defaultRetry
		}
		if expire == 0 {
			expire = defaultExpire
		}
		form.Set("retry", strconv.Itoa(retry))
		form.Set("expire", strconv.Itoa(expire))
	}

	return c.postForm(ctx, "/messages.json", form), nil
}

// ValidateUser asks the service whether a user key (and optionally one of
// its device names) is valid and active. Used when registering recipients so
// that typos surface immediately instead of on the first push.
func (c *Client) ValidateUser(ctx context.Context, userKey, device string) (Result, error) {
	if strings.TrimSpace(userKey) == "" {
		return Result{}, &ValidationError{Field: "user", Reason: "must not be empty"}
	}
	form := url.Values{}
	form.Set("token", c.apiToken)
	form.Set("user", userKey)
	if device != "" {
		form.Set("device", device)
	}
	return c.postForm(ctx, "/users/validate.json", form), nil
}

// BaseURL returns the configured API root without trailing slash.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.baseURL.String(), "/")
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return &ValidationError{Field: "message", Reason: "must not be empty"}
	}
	if n := utf8.RuneCountInString(r.Message); n > MaxMessageLen {
		return &ValidationError{Field: "message", Reason: fmt.Sprintf("%d characters exceeds limit of %d", n, MaxMessageLen)}
	}
	if n := utf8.RuneCountInString(r.Title); n > MaxTitleLen {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("%d characters exceeds limit of %d", n, MaxTitleLen)}
	}
	if !r.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("%d is not a known priority level", int(r.Priority))}
	}
	if r.Priority == PriorityEmergency {
		if r.Retry != 0 && r.Retry < minEmergencyRetry {
			return &ValidationError{Field: "retry", Reason: fmt.Sprintf("must be at least %d seconds", minEmergencyRetry)}
		}
		if r.Expire != 0 && r.Expire > maxEmergencyExpire {
			return &ValidationError{Field: "expire", Reason: fmt.Sprintf("must be at most %d seconds", maxEmergencyExpire)}
		}
	}
	return nil
}

// apiResponse models the service's standard response envelope. Anything that
// does not decode into it is treated as a protocol failure.
type apiResponse struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Errors  []string `json:"errors"`
}

const statusOK = 1

func (c *Client) postForm(ctx context.Context, p string, form url.Values) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(p), strings.NewReader(form.Encode()))
	if err != nil {
		return Result{Detail: "network error: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return Result{Detail: "network error: " + err.Error()}
	}
	defer resp.Body.Close()

	var payload apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return Result{Detail: fmt.Sprintf("malformed response (%s)", resp.Status)}
	}
	if payload.Status == statusOK && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{Success: true, Detail: "success"}
	}
	detail := strings.Join(payload.Errors, "; ")
	if detail == "" {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			// decoded but carries neither a success status nor errors
			return Result{Detail: fmt.Sprintf("malformed response (%s)", resp.Status)}
		}
		detail = resp.Status
	}
	return Result{Detail: "service rejected request: " + detail}
}

func (c *Client) resolve(p string) string {
	u := *c.baseURL
	u.Path = path.Join(c.baseURL.Path, p)
	return u.String()
}

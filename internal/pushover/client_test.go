package pushover

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// respond writes a standard API envelope.
func respond(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func newClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL(baseURL)}, opts...)
	client, err := New("user-key-1", "app-token-1", opts...)
	require.NoError(t, err)
	return client
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Parallel()
	_, err := New("", "token")
	require.Error(t, err)
	_, err = New("user", "  ")
	require.Error(t, err)
	_, err = New("user", "token", WithBaseURL("api.pushover.net/1"))
	require.Error(t, err, "base url without scheme must be rejected")
}

func TestNotifyEncodesAllFields(t *testing.T) {
	t.Parallel()
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/messages.json", r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		respond(w, http.StatusOK, `{"status":1,"request":"abc"}`)
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	res, err := client.Notify(context.Background(), Request{
		Message:  "disk space low",
		Title:    "homelab",
		Device:   "phone",
		Sound:    "siren",
		Priority: PriorityHigh,
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	require.Equal(t, "app-token-1", got.Get("token"))
	require.Equal(t, "user-key-1", got.Get("user"))
	require.Equal(t, "disk space low", got.Get("message"))
	require.Equal(t, "homelab", got.Get("title"))
	require.Equal(t, "phone", got.Get("device"))
	require.Equal(t, "siren", got.Get("sound"))
	require.Equal(t, "1", got.Get("priority"))
}

func TestNotifyAppliesDefaults(t *testing.T) {
	t.Parallel()
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		respond(w, http.StatusOK, `{"status":1}`)
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	_, err := client.Notify(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)

	require.Equal(t, DefaultSound, got.Get("sound"))
	require.Equal(t, "0", got.Get("priority"))
	_, hasTitle := got["title"]
	require.False(t, hasTitle, "absent title must not be sent")
	_, hasDevice := got["device"]
	require.False(t, hasDevice, "absent device must not be sent")
}

func TestNotifyValidatesBeforeSending(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respond(w, http.StatusOK, `{"status":1}`)
	}))
	defer srv.Close()
	client := newClient(t, srv.URL)

	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{name: "empty message", req: Request{Message: "   "}, field: "message"},
		{name: "message too long", req: Request{Message: strings.Repeat("x", MaxMessageLen+1)}, field: "message"},
		{name: "title too long", req: Request{Message: "ok", Title: strings.Repeat("t", MaxTitleLen+1)}, field: "title"},
		{name: "priority above range", req: Request{Message: "ok", Priority: Priority(3)}, field: "priority"},
		{name: "priority below range", req: Request{Message: "ok", Priority: Priority(-3)}, field: "priority"},
		{name: "emergency retry too small", req: Request{Message: "ok", Priority: PriorityEmergency, Retry: 10}, field: "retry"},
		{name: "emergency expire too large", req: Request{Message: "ok", Priority: PriorityEmergency, Expire: 20000}, field: "expire"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Notify(context.Background(), tt.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tt.field, verr.Field)
		})
	}
	require.Zero(t, calls.Load(), "validation failures must never reach the network")
}

func TestNotifyBoundaryLengthsAccepted(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"status":1}`)
	}))
	defer srv.Close()
	client := newClient(t, srv.URL)

	res, err := client.Notify(context.Background(), Request{
		Message: strings.Repeat("m", MaxMessageLen),
		Title:   strings.Repeat("t", MaxTitleLen),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestNotifyEmergencyRedeliveryParams(t *testing.T) {
	t.Parallel()
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		respond(w, http.StatusOK, `{"status":1}`)
	}))
	defer srv.Close()
	client := newClient(t, srv.URL)

	_, err := client.Notify(context.Background(), Request{Message: "fire", Priority: PriorityEmergency})
	require.NoError(t, err)
	require.Equal(t, "60", got.Get("retry"))
	require.Equal(t, "3600", got.Get("expire"))

	_, err = client.Notify(context.Background(), Request{Message: "fire", Priority: PriorityEmergency, Retry: 45, Expire: 900})
	require.NoError(t, err)
	require.Equal(t, "45", got.Get("retry"))
	require.Equal(t, "900", got.Get("expire"))
}

func TestNotifyServiceRejection(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusBadRequest, `{"status":0,"errors":["invalid user key"]}`)
	}))
	defer srv.Close()
	client := newClient(t, srv.URL)

	res, err := client.Notify(context.Background(), Request{Message: "hello"})
	require.NoError(t, err, "service rejection is a result, not an error")
	require.False(t, res.Success)
	require.Contains(t, res.Detail, "invalid user key")
}

func TestNotifyNonSuccessStatusField(t *testing.T) {
	t.Parallel()
	// Well-formed body, HTTP 200, but the status field says no.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"status":0,"errors":["application token is invalid"]}`)
	}))
	defer srv.Close()
	client := newClient(t, srv.URL)

	res, err := client.Notify(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Contains(t, res.Detail, "application token is invalid")
}

func TestNotifyMalformedResponse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<html>not json</html>"},
		{name: "wrong shape", body: `{"unexpected":"payload"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			client := newClient(t, srv.URL)

			res, err := client.Notify(context.Background(), Request{Message: "hello"})
			require.NoError(t, err)
			require.False(t, res.Success)
			require.Contains(t, res.Detail, "malformed response")
		})
	}
}

func TestNotifyTransportFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on
	client := newClient(t, srv.URL)

	res, err := client.Notify(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Contains(t, res.Detail, "network error")
}

func TestNotifyTimeoutIsBounded(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		srv.Close()
	}()

	client := newClient(t, srv.URL, WithTimeout(100*time.Millisecond))
	start := time.Now()
	res, err := client.Notify(context.Background(), Request{Message: "hello"})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.False(t, res.Success)
	require.Contains(t, res.Detail, "network error")
	require.Less(t, elapsed, 5*time.Second, "timeout must not hang")
}

func TestValidateUser(t *testing.T) {
	t.Parallel()
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/validate.json", r.URL.Path)
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		if got.Get("user") == "known-user" {
			respond(w, http.StatusOK, `{"status":1}`)
			return
		}
		respond(w, http.StatusBadRequest, `{"status":0,"errors":["user key is invalid"]}`)
	}))
	defer srv.Close()
	client := newClient(t, srv.URL)

	res, err := client.ValidateUser(context.Background(), "known-user", "phone")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "phone", got.Get("device"))
	require.Equal(t, "app-token-1", got.Get("token"))

	res, err = client.ValidateUser(context.Background(), "bogus", "")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Contains(t, res.Detail, "user key is invalid")

	_, err = client.ValidateUser(context.Background(), " ", "")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
}

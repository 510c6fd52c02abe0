package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/testkit"
)

func instantSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestDoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "bv-time-logger" {
			t.Errorf("User-Agent = %q", got)
		}
		if got := r.URL.Query().Get("top"); got != "5" {
			t.Errorf("top = %q", got)
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	resp, err := c.Do(context.Background(), http.MethodGet, "/things", url.Values{"top": {"5"}}, nil, nil)
	testkit.MustNoErr(t, err)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	testkit.MustContain(t, string(resp.Body), `"ok":true`)
}

func TestDoRetryAfterHonored(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"value":[]}`)
	}))
	defer srv.Close()

	var waits []time.Duration
	c := NewClient(Options{BaseURL: srv.URL, RetryBase: 10 * time.Millisecond})
	c.sleep = instantSleep(&waits)

	resp, err := c.Do(context.Background(), http.MethodGet, "/events", nil, nil, nil)
	testkit.MustNoErr(t, err)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
	if len(waits) != 1 || waits[0] < time.Second {
		t.Fatalf("waits = %v, want one wait of at least 1s", waits)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var waits []time.Duration
	c := NewClient(Options{BaseURL: srv.URL, MaxRetries: 2, RetryBase: time.Millisecond})
	c.sleep = instantSleep(&waits)

	_, err := c.Do(context.Background(), http.MethodGet, "/flaky", nil, nil, nil)
	testkit.MustCode(t, err, perr.ErrorCodeServer)
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want initial plus 2 retries", calls.Load())
	}
}

func TestDoNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"no project access"}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.Do(context.Background(), http.MethodGet, "/secret", nil, nil, nil)
	testkit.MustCode(t, err, perr.ErrorCodeForbidden)
	testkit.MustContain(t, err.Error(), "no project access")
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestDoStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		code   perr.ErrorCode
	}{
		{http.StatusUnauthorized, perr.ErrorCodeUnauthorized},
		{http.StatusNotFound, perr.ErrorCodeNotFound},
		{http.StatusTeapot, perr.ErrorCodeProtocol},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("status_%d", tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			c := NewClient(Options{BaseURL: srv.URL})
			_, err := c.Do(context.Background(), http.MethodGet, "/x", nil, nil, nil)
			testkit.MustCode(t, err, tc.code)
		})
	}
}

func TestDoCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.Do(ctx, http.MethodGet, "/x", nil, nil, nil)
	testkit.MustCode(t, err, perr.ErrorCodeCancelled)
}

func TestPatchJSONContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/json-patch+json" {
			t.Errorf("Content-Type = %q", got)
		}
		fmt.Fprint(w, `{"id":42}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	var out struct {
		ID int `json:"id"`
	}
	patch := []map[string]any{{"op": "add", "path": "/fields/x", "value": 1}}
	testkit.MustNoErr(t, c.PatchJSON(context.Background(), "/items/42", nil, patch, &out))
	if out.ID != 42 {
		t.Fatalf("id = %d", out.ID)
	}
}

func TestGetJSONURLAbsolute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/next-page" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"value":[1,2]}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: "http://unused.invalid"})
	var out struct {
		Value []int `json:"value"`
	}
	testkit.MustNoErr(t, c.GetJSONURL(context.Background(), srv.URL+"/next-page", &out))
	if len(out.Value) != 2 {
		t.Fatalf("value = %v", out.Value)
	}
}

func TestDecodeFailureIsProtocol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `not-json`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	var out map[string]any
	err := c.GetJSON(context.Background(), "/x", nil, &out)
	testkit.MustCode(t, err, perr.ErrorCodeProtocol)
}

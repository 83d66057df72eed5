package antpool

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestClient(serverURL string) *Client {
	// High pacing limit so tests don't sleep.
	return NewClient(WithBaseURL(serverURL), WithRateLimit(1000))
}

func TestCall_Success(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotForm = r.PostForm
		w.Write([]byte(`{"code":0,"message":"ok","data":{"balance":"0.5"}}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Call(context.Background(), EndpointAccount, testCreds, url.Values{"coin": {"BTC"}})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if resp.ByteSize != len(resp.Body) {
		t.Errorf("ByteSize = %d, want %d", resp.ByteSize, len(resp.Body))
	}
	if resp.Duration <= 0 {
		t.Error("Duration not recorded")
	}

	for _, field := range []string{"key", "nonce", "signature"} {
		if gotForm.Get(field) == "" {
			t.Errorf("form field %q not sent", field)
		}
	}
	if gotForm.Get("coin") != "BTC" {
		t.Errorf("coin = %q, want BTC", gotForm.Get("coin"))
	}
}

func TestCall_FreshSignaturePerCall(t *testing.T) {
	var nonces, sigs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		nonces = append(nonces, r.PostForm.Get("nonce"))
		sigs = append(sigs, r.PostForm.Get("signature"))
		w.Write([]byte(`{"code":0,"data":{}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 2; i++ {
		if _, err := c.Call(context.Background(), EndpointAccount, testCreds, nil); err != nil {
			t.Fatalf("Call() error = %v", err)
		}
	}

	if nonces[0] == nonces[1] {
		t.Errorf("nonce reused across calls: %q", nonces[0])
	}
	if sigs[0] == sigs[1] {
		t.Errorf("signature reused across calls: %q", sigs[0])
	}
}

func TestCall_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Call(context.Background(), EndpointHashrate, testCreds, nil)
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("Call() error = %v, want RateLimitedError", err)
	}
	if resp == nil {
		t.Error("response should be returned alongside the typed error")
	}
}

func TestCall_AuthErrorFromStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Call(context.Background(), EndpointAccount, testCreds, nil)
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("Call() error = %v, want AuthError", err)
	}
}

func TestCall_AuthErrorFromEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":10001,"message":"invalid signature"}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Call(context.Background(), EndpointAccount, testCreds, nil)
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("Call() error = %v, want AuthError", err)
	}
	if ae.Code != 10001 {
		t.Errorf("Code = %d, want 10001", ae.Code)
	}
	if len(resp.Body) == 0 {
		t.Error("raw body must be preserved on envelope errors")
	}
}

func TestCall_RemoteErrorFromEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":500,"message":"internal pool error"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Call(context.Background(), EndpointWorkers, testCreds, nil)
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("Call() error = %v, want RemoteError", err)
	}
	if re.Code != 500 {
		t.Errorf("Code = %d, want 500", re.Code)
	}
}

func TestCall_MalformedBodyIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway timeout</html>`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Call(context.Background(), EndpointAccount, testCreds, nil)
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("Call() error = %v, want RemoteError", err)
	}
	if string(resp.Body) != `<html>gateway timeout</html>` {
		t.Error("raw non-JSON body must be preserved")
	}
}

func TestCall_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	_, err := newTestClient(srv.URL).Call(context.Background(), EndpointAccount, testCreds, nil)
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("Call() error = %v, want NetworkError", err)
	}
}

func TestEndpointName(t *testing.T) {
	if got := EndpointWorkers.Name(); got != "userWorkerList" {
		t.Errorf("Name() = %q, want userWorkerList", got)
	}
	if got := EndpointAccount.Name(); got != "account" {
		t.Errorf("Name() = %q, want account", got)
	}
}

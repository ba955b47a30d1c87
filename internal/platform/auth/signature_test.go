package auth

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func signedRequest(t *testing.T, verifier *WebhookVerifier, body []byte, timestamp string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/carrier", bytes.NewReader(body))
	req.Header.Set(HeaderWebhookTimestamp, timestamp)
	req.Header.Set(HeaderWebhookSignature, verifier.Sign(timestamp, body))
	return req
}

func TestWebhookVerifierAcceptsValidSignature(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	verifier, err := NewWebhookVerifier("topsecret", WithSignatureClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewWebhookVerifier: %v", err)
	}

	var received []byte
	handler := verifier.Require()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		received = buf.Bytes()
		w.WriteHeader(http.StatusAccepted)
	}))

	body := []byte(`{"trackingCode":"BR123"}`)
	req := signedRequest(t, verifier, body, now.Format(time.RFC3339))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body %s", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(received, body) {
		t.Errorf("expected body restored for handler, got %q", received)
	}
}

func TestWebhookVerifierRejectsTamperedBody(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	verifier, err := NewWebhookVerifier("topsecret", WithSignatureClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewWebhookVerifier: %v", err)
	}

	handler := verifier.Require()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	timestamp := now.Format(time.RFC3339)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/carrier", bytes.NewReader([]byte(`{"tampered":true}`)))
	req.Header.Set(HeaderWebhookTimestamp, timestamp)
	req.Header.Set(HeaderWebhookSignature, verifier.Sign(timestamp, []byte(`{"original":true}`)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWebhookVerifierRejectsStaleTimestamp(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	verifier, err := NewWebhookVerifier("topsecret", WithSignatureClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewWebhookVerifier: %v", err)
	}

	handler := verifier.Require()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	body := []byte(`{}`)
	stale := now.Add(-time.Hour).Format(time.RFC3339)
	req := signedRequest(t, verifier, body, stale)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWebhookVerifierRejectsMissingSignature(t *testing.T) {
	verifier, err := NewWebhookVerifier("topsecret")
	if err != nil {
		t.Fatalf("NewWebhookVerifier: %v", err)
	}

	handler := verifier.Require()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/carrier", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

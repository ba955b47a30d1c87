package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/printbound/api/internal/platform/httpx"
	"github.com/printbound/api/internal/platform/requestctx"
)

// Headers carried by signed webhook requests.
const (
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
)

const defaultSignatureSkew = 5 * time.Minute

// WebhookVerifier validates HMAC-SHA256 signatures on inbound webhook
// requests. The signed payload is "<timestamp>.<body>".
type WebhookVerifier struct {
	secret []byte
	skew   time.Duration
	now    func() time.Time
}

// VerifierOption customises the verifier.
type VerifierOption func(*WebhookVerifier)

// WithSignatureSkew adjusts the accepted timestamp window.
func WithSignatureSkew(d time.Duration) VerifierOption {
	return func(v *WebhookVerifier) {
		if d > 0 {
			v.skew = d
		}
	}
}

// WithSignatureClock injects a custom clock for tests.
func WithSignatureClock(now func() time.Time) VerifierOption {
	return func(v *WebhookVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewWebhookVerifier builds a verifier for the shared secret.
func NewWebhookVerifier(secret string, opts ...VerifierOption) (*WebhookVerifier, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, errors.New("auth: webhook secret is required")
	}
	verifier := &WebhookVerifier{
		secret: []byte(trimmed),
		skew:   defaultSignatureSkew,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	return verifier, nil
}

// Require enforces a valid signature before the wrapped handler runs. The
// request body is restored so downstream handlers can read it again.
func (v *WebhookVerifier) Require() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			signatureValue := strings.TrimSpace(r.Header.Get(HeaderWebhookSignature))
			if signatureValue == "" {
				httpx.WriteError(ctx, w, httpx.NewError("signature_missing", "signature header missing", http.StatusUnauthorized))
				return
			}

			timestampValue := strings.TrimSpace(r.Header.Get(HeaderWebhookTimestamp))
			timestamp, err := parseSignatureTimestamp(timestampValue)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("timestamp_invalid", "signature timestamp missing or invalid", http.StatusUnauthorized))
				return
			}

			if skew := v.now().Sub(timestamp); skew > v.skew || skew < -v.skew {
				httpx.WriteError(ctx, w, httpx.NewError("timestamp_skew", "signature timestamp outside allowed window", http.StatusUnauthorized))
				return
			}

			body, err := readAndRestoreBody(r)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_body", "unable to read body for signature verification", http.StatusBadRequest))
				return
			}

			signature, err := decodeSignature(signatureValue)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("signature_invalid", "signature encoding invalid", http.StatusUnauthorized))
				return
			}

			if !hmac.Equal(signature, v.compute(timestampValue, body)) {
				requestctx.Logger(ctx).Warn("webhook signature mismatch",
					zap.String("path", r.URL.Path),
				)
				httpx.WriteError(ctx, w, httpx.NewError("signature_mismatch", "signature verification failed", http.StatusUnauthorized))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Sign computes the signature for the payload, used by tests and by the
// carrier simulator tooling.
func (v *WebhookVerifier) Sign(timestamp string, body []byte) string {
	return hex.EncodeToString(v.compute(timestamp, body))
}

func (v *WebhookVerifier) compute(timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

func parseSignatureTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("auth: timestamp empty")
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}
	return time.Time{}, errors.New("auth: unable to parse timestamp")
}

func decodeSignature(value string) ([]byte, error) {
	if decoded, err := hex.DecodeString(value); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return nil, errors.New("auth: signature must be hex or base64 encoded")
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	buf, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(buf))
	return buf, nil
}

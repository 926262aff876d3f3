package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"loyalty-topup/internal/core/domain"
	"loyalty-topup/internal/core/ports"
)

// TestSignature is the sentinel signature accepted in place of an HMAC when
// the configured secret is a test secret.
const TestSignature = "test-signature"

const (
	testSecretPrefix        = "test_"
	minProductionSecretSize = 32

	defaultMaxAge                 = 300 * time.Second
	defaultFutureTolerance        = 60 * time.Second
	defaultRelaxedMaxAge          = 24 * time.Hour
	defaultRelaxedFutureTolerance = 10 * time.Minute
)

// SecretKind is the provenance of the webhook shared secret.
type SecretKind int

const (
	SecretKindProduction SecretKind = iota
	SecretKindTest
)

func (k SecretKind) String() string {
	if k == SecretKindTest {
		return "test"
	}
	return "production"
}

// WebhookSecret is the provider's shared secret tagged with its provenance.
// The kind is derived from the secret itself and cannot be set by callers.
type WebhookSecret struct {
	kind  SecretKind
	value string
}

// NewWebhookSecret classifies raw. Secrets starting with "test_" are test
// secrets; anything else is a production secret and must be at least 32 bytes.
func NewWebhookSecret(raw string) (WebhookSecret, error) {
	if raw == "" {
		return WebhookSecret{}, errors.New("webhook secret is empty")
	}
	if strings.HasPrefix(raw, testSecretPrefix) {
		return WebhookSecret{kind: SecretKindTest, value: raw}, nil
	}
	if len(raw) < minProductionSecretSize {
		return WebhookSecret{}, fmt.Errorf("production webhook secret must be at least %d bytes, got %d",
			minProductionSecretSize, len(raw))
	}
	return WebhookSecret{kind: SecretKindProduction, value: raw}, nil
}

func (s WebhookSecret) Kind() SecretKind { return s.kind }

// String never reveals the secret.
func (s WebhookSecret) String() string {
	return "WebhookSecret(" + s.kind.String() + ")"
}

// VerifierConfig configures HMACWebhookVerifier. Zero windows fall back to defaults.
type VerifierConfig struct {
	Secret                 WebhookSecret
	MaxAge                 time.Duration
	FutureTolerance        time.Duration
	RelaxedMaxAge          time.Duration
	RelaxedFutureTolerance time.Duration
	CurrencyExponent       int32
}

// HMACWebhookVerifier implements ports.WebhookVerifier.
type HMACWebhookVerifier struct {
	secret          WebhookSecret
	sigSvc          ports.SignatureService
	maxAge          time.Duration
	futureTolerance time.Duration
	exponent        int32
	now             func() time.Time
}

// NewWebhookVerifier creates a verifier. The time window is chosen once from
// the secret's kind.
func NewWebhookVerifier(cfg VerifierConfig, sigSvc ports.SignatureService) *HMACWebhookVerifier {
	maxAge := orDefault(cfg.MaxAge, defaultMaxAge)
	future := orDefault(cfg.FutureTolerance, defaultFutureTolerance)
	if cfg.Secret.kind == SecretKindTest {
		maxAge = orDefault(cfg.RelaxedMaxAge, defaultRelaxedMaxAge)
		future = orDefault(cfg.RelaxedFutureTolerance, defaultRelaxedFutureTolerance)
	}
	return &HMACWebhookVerifier{
		secret:          cfg.Secret,
		sigSvc:          sigSvc,
		maxAge:          maxAge,
		futureTolerance: future,
		exponent:        cfg.CurrencyExponent,
		now:             time.Now,
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Verify checks structure, signature and freshness, in that order.
func (v *HMACWebhookVerifier) Verify(raw []byte, signatureHeader, timestampHeader string) domain.Verification {
	payload, err := domain.ParseWebhookPayload(raw, v.exponent)
	if err != nil {
		return domain.Rejected(domain.FailureInvalidPayload, err.Error())
	}

	if reason := v.checkSignature(raw, signatureHeader, timestampHeader); reason != "" {
		return domain.Rejected(domain.FailureInvalidSignature, reason)
	}

	ts := payload.Timestamp
	if h := strings.TrimSpace(timestampHeader); h != "" {
		parsed, err := parseTimestampHeader(h)
		if err != nil {
			return domain.Rejected(domain.FailureStaleOrFutureTimestamp, err.Error())
		}
		ts = parsed
	}

	age := v.now().Sub(ts)
	switch {
	case age > v.maxAge:
		return domain.Rejected(domain.FailureStaleOrFutureTimestamp,
			fmt.Sprintf("timestamp is %s old, max %s", age.Truncate(time.Second), v.maxAge))
	case -age > v.futureTolerance:
		return domain.Rejected(domain.FailureStaleOrFutureTimestamp,
			fmt.Sprintf("timestamp is %s in the future, max %s", (-age).Truncate(time.Second), v.futureTolerance))
	}

	return domain.Accepted(payload)
}

// checkSignature returns an empty string when the signature is valid.
func (v *HMACWebhookVerifier) checkSignature(raw []byte, signatureHeader, timestampHeader string) string {
	sig := strings.TrimSpace(signatureHeader)
	if len(sig) > 7 && strings.EqualFold(sig[:7], "sha256=") {
		sig = sig[7:]
	}
	if sig == "" {
		return "missing signature"
	}
	if v.secret.kind == SecretKindTest && sig == TestSignature {
		return ""
	}
	canonical := v.sigSvc.BuildCanonicalString(strings.TrimSpace(timestampHeader), raw)
	if !v.sigSvc.Verify(v.secret.value, canonical, strings.ToLower(sig)) {
		return "signature mismatch"
	}
	return ""
}

// parseTimestampHeader accepts unix seconds or RFC3339.
func parseTimestampHeader(h string) (time.Time, error) {
	if secs, err := strconv.ParseInt(h, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	t, err := time.Parse(time.RFC3339Nano, h)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp header %q is neither unix seconds nor RFC3339", h)
	}
	return t, nil
}

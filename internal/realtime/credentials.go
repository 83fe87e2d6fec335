package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	apperrors "github.com/vatbq/lia/errors"
	"github.com/vatbq/lia/internal/infrastructure/cache"
)

const (
	credentialCacheKey = "realtime:ephemeral_token"
	// how much of the token lifetime is given up so a cached token is never
	// handed out right before it expires
	credentialExpiryMargin = 60 * time.Second
)

// Broker mints short-lived session tokens for the realtime transcription
// service. The long-lived API key stays here; callers only ever see the
// ephemeral credential.
type Broker struct {
	apiKey   string
	baseURL  string
	tokenTTL time.Duration
	store    cache.Store
	client   *http.Client
	logger   *zap.Logger
}

// NewBroker creates a credential broker. Pass a nil store to disable caching
// failover to an in-memory one.
func NewBroker(apiKey, baseURL string, tokenTTL time.Duration, store cache.Store, logger *zap.Logger) *Broker {
	if store == nil {
		store = cache.NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		apiKey:   apiKey,
		baseURL:  baseURL,
		tokenTTL: tokenTTL,
		store:    store,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

type clientSecretRequest struct {
	ExpiresAfter struct {
		Anchor  string `json:"anchor"`
		Seconds int    `json:"seconds"`
	} `json:"expires_after"`
	Session struct {
		Type string `json:"type"`
	} `json:"session"`
}

type clientSecretResponse struct {
	Data struct {
		Value string `json:"value"`
	} `json:"data"`
	Value string `json:"value"`
}

// EphemeralToken returns a session token, minting a new one only when the
// cache has none.
func (b *Broker) EphemeralToken(ctx context.Context) (string, error) {
	if token, ok, err := b.store.Get(ctx, credentialCacheKey); err == nil && ok {
		return token, nil
	} else if err != nil {
		b.logger.Warn("credential cache read failed", zap.Error(err))
	}

	token, err := b.mint(ctx)
	if err != nil {
		return "", err
	}

	cacheTTL := b.tokenTTL - credentialExpiryMargin
	if cacheTTL > 0 {
		if err := b.store.Set(ctx, credentialCacheKey, token, cacheTTL); err != nil {
			b.logger.Warn("credential cache write failed", zap.Error(err))
		}
	}
	return token, nil
}

// Invalidate drops the cached token, forcing the next request to mint.
func (b *Broker) Invalidate(ctx context.Context) {
	if err := b.store.Delete(ctx, credentialCacheKey); err != nil {
		b.logger.Warn("credential cache delete failed", zap.Error(err))
	}
}

func (b *Broker) mint(ctx context.Context) (string, error) {
	var token string

	operation := func() error {
		var err error
		token, err = b.requestSecret(ctx)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", apperrors.ErrCredentialBrokerFailed(err)
	}

	b.logger.Info("minted ephemeral transcription credential",
		zap.Duration("ttl", b.tokenTTL))
	return token, nil
}

func (b *Broker) requestSecret(ctx context.Context) (string, error) {
	var reqBody clientSecretRequest
	reqBody.ExpiresAfter.Anchor = "created_at"
	reqBody.ExpiresAfter.Seconds = int(b.tokenTTL.Seconds())
	reqBody.Session.Type = "transcription"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/v1/realtime/client_secrets", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("credential endpoint returned status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		// client errors will not heal on retry
		return "", backoff.Permanent(fmt.Errorf("credential endpoint rejected request with status %d", resp.StatusCode))
	}

	var sr clientSecretResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", err
	}
	if sr.Data.Value != "" {
		return sr.Data.Value, nil
	}
	if sr.Value != "" {
		return sr.Value, nil
	}
	return "", backoff.Permanent(fmt.Errorf("credential response missing token value"))
}

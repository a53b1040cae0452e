package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/zalando/go-keyring"
	"golang.org/x/time/rate"

	"github.com/julianstephens/prayanswer/internal/constants"
	"github.com/julianstephens/prayanswer/internal/logger"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultModel            = "claude-3-5-haiku-latest"
	defaultMaxTokens        = 2048
	defaultTimeout          = 30 * time.Second
	defaultRateLimit        = 1.0 // requests per second
	defaultBurst            = 2
	defaultMaxRetries       = 2
	defaultBaseBackoff      = 500 * time.Millisecond
)

var (
	keyringGetFunc    = keyring.Get
	keyringSetFunc    = keyring.Set
	keyringDeleteFunc = keyring.Delete
)

// ErrNoAPIKey is returned when there is no stored key to delete.
var ErrNoAPIKey = errors.New("no API key stored in keyring")

type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// NewRewriter builds the configured rewriter. A provider of "" or "disabled"
// yields a rewriter that always reports itself unavailable.
func NewRewriter(cfg Config) Rewriter {
	switch cfg.Provider {
	case "anthropic":
		if cfg.APIKey == "" {
			cfg.APIKey = LookupAPIKey()
		}
		return newAnthropicRewriter(cfg)
	case "", "disabled":
		return unavailableRewriter{reason: "text cleanup is turned off"}
	default:
		return unavailableRewriter{reason: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}
}

// LookupAPIKey reads the key from the OS keyring, falling back to the environment.
func LookupAPIKey() string {
	key, err := keyringGetFunc(constants.KeyringService, constants.KeyringCleanupUser)
	if err == nil && key != "" {
		return key
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		logger.Debug("Keyring lookup failed", "error", err)
	}
	return os.Getenv(constants.CleanupAPIKeyEnvVar)
}

// StoreAPIKey saves the key in the OS keyring.
func StoreAPIKey(key string) error {
	if key == "" {
		return errors.New("API key cannot be empty")
	}
	return keyringSetFunc(constants.KeyringService, constants.KeyringCleanupUser, key)
}

func DeleteAPIKey() error {
	err := keyringDeleteFunc(constants.KeyringService, constants.KeyringCleanupUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNoAPIKey
	}
	return err
}

type unavailableRewriter struct {
	reason string
}

func (u unavailableRewriter) Rewrite(ctx context.Context, text, instructions string) (string, error) {
	return "", errors.New(u.reason)
}

func (u unavailableRewriter) Available() (bool, string) {
	return false, u.reason
}

type anthropicRewriter struct {
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	httpClient *http.Client
	limiter    *rate.Limiter
}

func newAnthropicRewriter(cfg Config) *anthropicRewriter {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAnthropicBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &anthropicRewriter{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		maxRetries: defaultMaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (a *anthropicRewriter) Available() (bool, string) {
	if a.apiKey == "" {
		return false, "API key not configured"
	}
	return true, ""
}

func (a *anthropicRewriter) Rewrite(ctx context.Context, text, instructions string) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	req := anthropicRequest{
		Model:       a.model,
		MaxTokens:   defaultMaxTokens,
		Temperature: 0.2,
		System:      instructions,
		Messages:    []anthropicMessage{{Role: "user", Content: text}},
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		out, err := a.doRequest(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err

		var retryable *retryableError
		if !errors.As(err, &retryable) {
			return "", err
		}
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (a *anthropicRewriter) doRequest(ctx context.Context, req anthropicRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", a.apiKey)
	httpReq.Header.Set("Anthropic-Version", "2023-06-01")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &retryableError{err: errors.New("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return "", &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, string(data))}
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr anthropicError
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, string(data))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	for _, c := range parsed.Content {
		if c.Type == "text" || c.Type == "" {
			return c.Text, nil
		}
	}
	return "", errors.New("empty response from API")
}

var _ Rewriter = (*anthropicRewriter)(nil)

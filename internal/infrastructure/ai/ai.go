// Package ai provides the completion client used by the planner and the
// recovery engine.
//
// A single configuration-driven HTTP client covers every provider:
//   - Factory: builds clients from model definitions and shares one HTTP
//     client and rate limiter across them
//   - Client: sends chat requests, retries throttled and unavailable
//     responses, and extracts the generated text by JSON path
//
// Provider differences (auth header, system message placement, content
// wrapping, response path) come from the model's APIFormat.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/pkg/logger"
	"github.com/doeshing/li/internal/ports"
	"github.com/doeshing/li/internal/version"
)

const (
	maxRetries       = 3
	defaultRetryBase = time.Second
	// maxRetryAfter bounds a server supplied Retry-After.
	maxRetryAfter = 30 * time.Second

	openRouterReferer = "https://github.com/doeshing/li"
	openRouterTitle   = "li CLI"
)

// ErrMissingAPIKey is returned when a model's auth variable is unset.
var ErrMissingAPIKey = errors.New("missing API key")

// ProviderError is a non-2xx response from a completion endpoint.
type ProviderError struct {
	Status     int
	Body       string
	Retryable  bool
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	switch e.Status {
	case http.StatusUnauthorized:
		return "invalid API key, check your API key configuration"
	case http.StatusBadRequest:
		return fmt.Sprintf("invalid request: %s", strings.TrimSpace(e.Body))
	}
	return fmt.Sprintf("API error (status %d): %s", e.Status, strings.TrimSpace(e.Body))
}

// ====================================================================================
// Factory
// ====================================================================================

// Factory creates completion clients from model definitions.
// It maintains a single HTTP client and limiter shared across all clients.
type Factory struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     ports.Logger
	userAgent  string
	retryBase  time.Duration
	sleep      func(context.Context, time.Duration) error
	catalogURL string
}

// Option customizes a Factory.
type Option func(*Factory)

// WithLogger routes request and retry diagnostics to log.
func WithLogger(log ports.Logger) Option {
	return func(f *Factory) { f.logger = log }
}

// WithHTTPClient replaces the shared HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Factory) { f.httpClient = client }
}

// WithLimiter replaces the shared request limiter. A nil limiter disables throttling.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(f *Factory) { f.limiter = limiter }
}

// WithRetryBaseDelay sets the wait used when a 429 carries no Retry-After.
// Unavailable responses wait twice this long.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(f *Factory) { f.retryBase = d }
}

// WithCatalogURL points FreeModels at a different model listing.
func WithCatalogURL(url string) Option {
	return func(f *Factory) { f.catalogURL = url }
}

// NewFactory creates a factory whose HTTP client times out after timeout.
func NewFactory(timeout time.Duration, opts ...Option) *Factory {
	if timeout <= 0 {
		timeout = domain.DefaultHTTPClientTimeout
	}
	f := &Factory{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(250*time.Millisecond), 2),
		logger:     logger.Nop{},
		userAgent:  version.UserAgent(),
		retryBase:  defaultRetryBase,
		sleep:      sleepContext,
		catalogURL: OpenRouterModelsURL,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ForModel creates a client for model.
func (f *Factory) ForModel(model domain.ModelDefinition) (ports.Completer, error) {
	if strings.TrimSpace(model.Endpoint) == "" {
		return nil, fmt.Errorf("model %q has no endpoint", model.Name)
	}
	if strings.TrimSpace(model.ModelID) == "" {
		return nil, fmt.Errorf("model %q has no model_id", model.Name)
	}
	return &Client{
		model:      model,
		httpClient: f.httpClient,
		limiter:    f.limiter,
		logger:     f.logger,
		userAgent:  f.userAgent,
		retryBase:  f.retryBase,
		sleep:      f.sleep,
	}, nil
}

var _ ports.CompleterFactory = (*Factory)(nil)

// ====================================================================================
// Client
// ====================================================================================

// Client talks to one chat completion endpoint.
type Client struct {
	model      domain.ModelDefinition
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     ports.Logger
	userAgent  string
	retryBase  time.Duration
	sleep      func(context.Context, time.Duration) error
}

var _ ports.Completer = (*Client)(nil)

func (c *Client) Name() string {
	return c.model.Name
}

func (c *Client) Model() domain.ModelDefinition {
	return c.model
}

// Complete sends req and returns the generated text. Throttled (429) and
// unavailable (502, 503, 504) responses are retried up to three times.
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	apiKey, err := c.apiKey()
	if err != nil {
		return "", err
	}

	messages := buildMessages(req)
	contextLimit := req.MaxTokens
	if contextLimit <= 0 {
		contextLimit = c.model.MaxTokens
	}
	if contextLimit <= 0 {
		contextLimit = domain.DefaultMaxTokens
	}
	budget := EstimateCompletionBudget(contextLimit, messages)

	body, err := c.buildRequestBody(messages, req.Temperature, budget)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	for attempt := 1; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limiter: %w", err)
			}
		}

		content, err := c.send(ctx, body, apiKey)
		if err == nil {
			return content, nil
		}

		var perr *ProviderError
		if !errors.As(err, &perr) || !perr.Retryable {
			return "", err
		}
		if attempt > maxRetries {
			return "", fmt.Errorf("%s request failed after %d retries: %w", c.model.Name, maxRetries, err)
		}
		c.logger.Debug("retrying completion request", map[string]interface{}{
			"model":   c.model.Name,
			"status":  perr.Status,
			"attempt": attempt,
			"delay":   perr.RetryAfter.String(),
		})
		if err := c.sleep(ctx, perr.RetryAfter); err != nil {
			return "", err
		}
	}
}

func (c *Client) send(ctx context.Context, body []byte, apiKey string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.model.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create HTTP request: %w", err)
	}
	c.setHeaders(httpReq, apiKey)

	c.logger.Debug("completion request", map[string]interface{}{
		"model":    c.model.Name,
		"model_id": c.model.ModelID,
		"endpoint": c.model.Endpoint,
	})

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		wait, ok := parseRetryAfter(resp.Header.Get("Retry-After"))
		if !ok {
			wait = c.retryBase
		}
		if wait > maxRetryAfter {
			wait = maxRetryAfter
		}
		return "", &ProviderError{Status: resp.StatusCode, Body: string(raw), Retryable: true, RetryAfter: wait}
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return "", &ProviderError{Status: resp.StatusCode, Body: string(raw), Retryable: true, RetryAfter: 2 * c.retryBase}
	default:
		return "", &ProviderError{Status: resp.StatusCode, Body: string(raw)}
	}

	content, err := c.parseResponse(raw)
	if err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	return content, nil
}

func (c *Client) apiKey() (string, error) {
	return ResolveAPIKey(c.model)
}

// ResolveAPIKey returns the key for model: its auth variable when set, then
// the key stored in the config file. Models without an auth variable need no key.
func ResolveAPIKey(model domain.ModelDefinition) (string, error) {
	if model.AuthEnvVar != "" {
		if key := strings.TrimSpace(os.Getenv(model.AuthEnvVar)); key != "" {
			return key, nil
		}
	}
	if key := strings.TrimSpace(model.APIKey); key != "" {
		return key, nil
	}
	if model.AuthEnvVar == "" {
		return "", nil
	}
	return "", fmt.Errorf("%w: set %s environment variable or run `li setup`", ErrMissingAPIKey, model.AuthEnvVar)
}

func (c *Client) setHeaders(req *http.Request, apiKey string) {
	format := c.model.APIFormat
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if apiKey != "" {
		req.Header.Set(format.GetAuthHeaderName(), format.GetAuthHeaderPrefix()+apiKey)
	}
	if IsOpenRouter(c.model) {
		req.Header.Set("HTTP-Referer", openRouterReferer)
		req.Header.Set("X-Title", openRouterTitle)
	}
	for key, value := range format.ExtraHeaders {
		req.Header.Set(key, value)
	}
}

// IsOpenRouter reports whether model is served by OpenRouter.
func IsOpenRouter(model domain.ModelDefinition) bool {
	return strings.EqualFold(model.Name, "openrouter") || strings.Contains(model.Endpoint, "openrouter.ai")
}

func buildMessages(req ports.CompletionRequest) []domain.ChatMessage {
	var messages []domain.ChatMessage
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, domain.ChatMessage{Role: "system", Content: system})
	}
	return append(messages, domain.ChatMessage{Role: "user", Content: req.Prompt})
}

// buildRequestBody constructs the JSON request body based on the model's APIFormat configuration.
func (c *Client) buildRequestBody(messages []domain.ChatMessage, temperature float64, maxTokens int) ([]byte, error) {
	format := c.model.APIFormat

	request := map[string]interface{}{
		"model":       c.model.ModelID,
		"temperature": temperature,
		"max_tokens":  maxTokens,
	}

	if format.IsSystemMessageSeparate() {
		systemPrompt, chatMessages := splitSystemMessages(messages, format)
		if systemPrompt != "" {
			request["system"] = systemPrompt
		}
		request["messages"] = chatMessages
	} else {
		inline := make([]map[string]interface{}, 0, len(messages))
		for _, msg := range messages {
			inline = append(inline, formatMessage(msg, format))
		}
		request["messages"] = inline
	}

	return json.Marshal(request)
}

// splitSystemMessages separates system messages for providers that take
// them in a top-level field.
func splitSystemMessages(messages []domain.ChatMessage, format domain.APIFormat) (string, []map[string]interface{}) {
	var systemLines []string
	var chatMessages []map[string]interface{}

	for _, msg := range messages {
		if strings.EqualFold(msg.Role, "system") {
			systemLines = append(systemLines, msg.Content)
			continue
		}
		chatMessages = append(chatMessages, formatMessage(msg, format))
	}

	return strings.TrimSpace(strings.Join(systemLines, "\n")), chatMessages
}

func formatMessage(msg domain.ChatMessage, format domain.APIFormat) map[string]interface{} {
	message := map[string]interface{}{
		"role": strings.ToLower(msg.Role),
	}
	if format.IsContentWrapped() {
		message["content"] = []map[string]string{
			{"type": "text", "text": msg.Content},
		}
	} else {
		message["content"] = msg.Content
	}
	return message
}

// parseResponse extracts the generated text using the configured JSON path.
func (c *Client) parseResponse(body []byte) (string, error) {
	var response map[string]interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("unmarshal JSON: %w", err)
	}

	path := c.model.APIFormat.GetResponseJSONPath()
	content, err := extractJSONPath(response, path)
	if err != nil {
		return "", fmt.Errorf("extract from path '%s': %w", path, err)
	}
	return strings.TrimSpace(content), nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		wait := time.Until(at)
		if wait < 0 {
			wait = 0
		}
		return wait, true
	}
	return 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

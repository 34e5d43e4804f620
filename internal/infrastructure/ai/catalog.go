package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/ports"
)

// OpenRouterModelsURL lists every model OpenRouter serves.
const OpenRouterModelsURL = "https://openrouter.ai/api/v1/models"

// contextHeadroomTokens is kept free when a model's context length becomes
// its max_tokens.
const contextHeadroomTokens = 1024

var _ ports.ModelCatalog = (*Factory)(nil)

type catalogResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		ContextLength int    `json:"context_length"`
		Pricing       *struct {
			Prompt     string `json:"prompt"`
			Completion string `json:"completion"`
		} `json:"pricing"`
	} `json:"data"`
}

// FreeModels fetches the OpenRouter catalog and keeps the models whose
// prompt and completion prices are both zero.
func (f *Factory) FreeModels(ctx context.Context, apiKey string) ([]domain.RemoteModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set OPENROUTER_API_KEY or run `li setup`", ErrMissingAPIKey)
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.catalogURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}
	req.Header.Set("Authorization", domain.DefaultAuthHeaderPrefix+apiKey)
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Status: resp.StatusCode, Body: string(raw)}
	}

	var parsed catalogResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse models response: %w", err)
	}
	if parsed.Data == nil {
		return nil, errors.New("parse models response: missing data")
	}

	var free []domain.RemoteModel
	for _, m := range parsed.Data {
		if m.Pricing == nil || m.Pricing.Prompt != "0" || m.Pricing.Completion != "0" {
			continue
		}
		free = append(free, domain.RemoteModel{ID: m.ID, Name: m.Name, ContextLength: m.ContextLength})
	}
	f.logger.Debug("fetched model catalog", map[string]interface{}{
		"total": len(parsed.Data),
		"free":  len(free),
	})
	return free, nil
}

// DeriveMaxTokens turns a context length into a max_tokens setting, leaving
// headroom for the prompt. Unknown or tiny windows fall back to the default.
func DeriveMaxTokens(contextLength int) int {
	if contextLength-contextHeadroomTokens <= 0 {
		return domain.DefaultMaxTokens
	}
	return contextLength - contextHeadroomTokens
}

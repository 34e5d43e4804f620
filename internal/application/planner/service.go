// Package planner asks a language model for a two-phase shell plan, or for
// the one question it needs answered first.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/ports"
)

// Service implements ports.Planner on top of a Completer.
type Service struct {
	Completer ports.Completer
	MaxTokens int
	Logger    ports.Logger
}

var _ ports.Planner = (*Service)(nil)

// Plan sends one planning request. Transport and decoding failures are
// returned as errors for the orchestrator to map onto the planning stage.
func (s *Service) Plan(ctx context.Context, req domain.PlanRequest) (domain.PlannerResponse, error) {
	if s.Completer == nil {
		return nil, errors.New("planner.Service has no completer")
	}

	if s.Logger != nil {
		s.Logger.Debug("requesting plan", map[string]interface{}{
			"provider":       s.Completer.Name(),
			"clarifications": len(req.Clarifications),
		})
	}

	raw, err := s.Completer.Complete(ctx, ports.CompletionRequest{
		System:      systemPrompt,
		Prompt:      buildUserPrompt(req),
		Temperature: domain.PlannerTemperature,
		MaxTokens:   s.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("planner call: %w", err)
	}

	resp, err := ParseResponse(raw)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("planner returned unusable output", map[string]interface{}{"raw": truncate(raw, 400)})
		}
		return nil, err
	}
	return resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

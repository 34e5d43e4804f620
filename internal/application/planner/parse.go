package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/doeshing/li/internal/domain"
)

var (
	// ErrEmptyResponse means the model returned no text.
	ErrEmptyResponse = errors.New("planner response was empty")
	// ErrNoJSON means no balanced JSON object was found in the reply.
	ErrNoJSON = errors.New("planner response did not contain a JSON object")
)

// ExtractJSONObject drops <think> blocks (an unterminated one swallows the
// rest of the text) and returns the first balanced {...} object. Braces inside
// JSON strings are ignored.
func ExtractJSONObject(input string) (string, bool) {
	cleaned := input
	for {
		start := strings.Index(cleaned, "<think>")
		if start < 0 {
			break
		}
		end := strings.Index(cleaned[start:], "</think>")
		if end < 0 {
			cleaned = cleaned[:start]
			break
		}
		cleaned = cleaned[:start] + cleaned[start+end+len("</think>"):]
	}

	start := strings.IndexByte(cleaned, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		ch := cleaned[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return cleaned[start : i+1], true
			}
		}
	}
	return "", false
}

type wireResponse struct {
	Type            string   `json:"type"`
	Confidence      *float64 `json:"confidence"`
	DryRunCommands  []string `json:"dry_run_commands"`
	ExecuteCommands []string `json:"execute_commands"`
	Notes           string   `json:"notes"`
	Text            string   `json:"text"`
	Context         string   `json:"context"`
}

// ParseResponse decodes a planner reply into a Plan or a Question.
func ParseResponse(raw string) (domain.PlannerResponse, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyResponse
	}
	fragment, ok := ExtractJSONObject(raw)
	if !ok {
		return nil, ErrNoJSON
	}

	var wire wireResponse
	if err := json.Unmarshal([]byte(fragment), &wire); err != nil {
		return nil, fmt.Errorf("parse planner json: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(wire.Type)) {
	case "plan":
		if wire.Confidence == nil {
			return nil, errors.New("planner plan is missing confidence")
		}
		conf := *wire.Confidence
		if conf < 0 || conf > 1 {
			return nil, fmt.Errorf("planner confidence %.2f outside 0..1", conf)
		}
		return domain.Plan{
			Confidence:      conf,
			DryRunCommands:  cleanCommands(wire.DryRunCommands),
			ExecuteCommands: cleanCommands(wire.ExecuteCommands),
			Notes:           strings.TrimSpace(wire.Notes),
		}, nil
	case "question":
		text := strings.TrimSpace(wire.Text)
		if text == "" {
			return nil, errors.New("planner question has no text")
		}
		return domain.Question{Text: text, Context: strings.TrimSpace(wire.Context)}, nil
	default:
		return nil, fmt.Errorf("unknown planner response type %q", wire.Type)
	}
}

func cleanCommands(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Package validator decides, without running them, whether the commands a
// plan names exist on this host.
//
// Each Validator owns its own memo table. Lookups go through an ordered chain
// of Probers; the first decisive verdict wins and is cached under the raw
// token. A missing command is data in the ValidationResult, never an error.
package validator

import (
	"context"
	"errors"
	"sync"

	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/pkg/logger"
	"github.com/doeshing/li/internal/ports"
)

// ErrEmptyCommand is returned when no program can be extracted from a line.
var ErrEmptyCommand = errors.New("no command found in input")

// CacheStats describes the memo table. Hits counts cached tokens that
// resolved to an available command.
type CacheStats struct {
	Total int
	Hits  int
}

// Validator checks command availability with per-instance caching.
type Validator struct {
	probers []Prober
	logger  ports.Logger

	mu     sync.Mutex
	cache  map[string]bool
	probes int
}

// Option customizes a Validator.
type Option func(*Validator)

// WithProbers replaces the default probe chain.
func WithProbers(probers ...Prober) Option {
	return func(v *Validator) {
		v.probers = probers
	}
}

// WithLogger routes probe diagnostics to a logger.
func WithLogger(log ports.Logger) Option {
	return func(v *Validator) {
		if log != nil {
			v.logger = log
		}
	}
}

// New builds a Validator with the default probe chain unless overridden.
func New(opts ...Option) *Validator {
	v := &Validator{
		probers: DefaultProbers(""),
		logger:  logger.Nop{},
		cache:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Fresh returns an empty Validator sharing this one's probe chain.
func (v *Validator) Fresh() *Validator {
	return New(WithProbers(v.probers...), WithLogger(v.logger))
}

// CommandExists reports whether a program token is runnable, consulting the
// cache first.
func (v *Validator) CommandExists(ctx context.Context, token string) bool {
	v.mu.Lock()
	if found, ok := v.cache[token]; ok {
		v.mu.Unlock()
		return found
	}
	v.probes++
	v.mu.Unlock()

	found := v.probe(ctx, token)

	v.mu.Lock()
	v.cache[token] = found
	v.mu.Unlock()
	return found
}

func (v *Validator) probe(ctx context.Context, token string) bool {
	for _, p := range v.probers {
		verdict, err := p.Probe(ctx, token)
		if err != nil {
			v.logger.Debug("probe mechanism failed", map[string]interface{}{
				"prober": p.Name(),
				"token":  token,
				"error":  err.Error(),
			})
			continue
		}
		switch verdict {
		case Found:
			return true
		case NotFound:
			return false
		}
	}
	v.logger.Warn("no prober decided; treating command as missing", map[string]interface{}{"token": token})
	return false
}

// ValidatePlan records every dry-run then execute line whose program is
// missing, keeping each line's list position.
func (v *Validator) ValidatePlan(ctx context.Context, plan domain.Plan) domain.ValidationResult {
	var missing []domain.MissingCommand
	collect := func(lines []string, dryRun bool) {
		for step, line := range lines {
			token, ok := ExtractCommand(line)
			if !ok {
				continue
			}
			if v.CommandExists(ctx, token) {
				continue
			}
			missing = append(missing, domain.MissingCommand{
				Command:           token,
				FailedCommandLine: line,
				PlanStep:          step,
				IsDryRun:          dryRun,
			})
		}
	}
	collect(plan.DryRunCommands, true)
	collect(plan.ExecuteCommands, false)
	return domain.NewValidationResult(missing)
}

// CheckSingleCommand validates one line outside of a plan.
func (v *Validator) CheckSingleCommand(ctx context.Context, line string) (bool, error) {
	token, ok := ExtractCommand(line)
	if !ok {
		return false, ErrEmptyCommand
	}
	return v.CommandExists(ctx, token), nil
}

// AvailableTools probes the common tool list on a disposable Validator so the
// receiver's cache stays untouched.
func (v *Validator) AvailableTools(ctx context.Context) []string {
	scratch := v.Fresh()
	var found []string
	for _, tool := range CommonTools() {
		if scratch.CommandExists(ctx, tool) {
			found = append(found, tool)
		}
	}
	return found
}

// Forget drops one cached token so the next lookup probes again.
func (v *Validator) Forget(token string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.cache, token)
}

// ClearCache empties the memo table and resets the probe counter.
func (v *Validator) ClearCache() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cache = make(map[string]bool)
	v.probes = 0
}

// CacheStats reports the memo table size and how many entries were found.
func (v *Validator) CacheStats() CacheStats {
	v.mu.Lock()
	defer v.mu.Unlock()
	stats := CacheStats{Total: len(v.cache)}
	for _, found := range v.cache {
		if found {
			stats.Hits++
		}
	}
	return stats
}

// ProbeCount returns how many lookups reached the probe chain since the last
// ClearCache.
func (v *Validator) ProbeCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.probes
}

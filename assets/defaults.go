// Package assets embeds the files li writes or falls back to on first run.
package assets

import (
	_ "embed"
)

// DefaultConfigYAML contains the embedded default configuration.
//
//go:embed defaults/config.yaml
var DefaultConfigYAML []byte

// DefaultGuardrailYAML contains the embedded default guardrail rules.
//
//go:embed defaults/guardrail.yaml
var DefaultGuardrailYAML []byte

// ZshHook is the accept-line widget sourced from ~/.zshrc.
//
//go:embed hooks/li.zsh
var ZshHook []byte

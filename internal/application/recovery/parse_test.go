package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "text\n```json\n{\"a\":1}\n```\nmore", `{"a":1}`},
		{"plain fence", "```\n{\"a\":2}\n```", `{"a":2}`},
		{"json fence wins", "```\nnope\n``` then ```json\n{\"a\":3}\n```", `{"a":3}`},
		{"bare", "  {\"a\":4}  ", `{"a":4}`},
		{"unclosed fence", "```json\n{\"a\":5}", "```json\n{\"a\":5}"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestParseResponseDropsBlankEntries(t *testing.T) {
	opts, err := ParseResponse(`{
		"alternatives": [{"command": "  "}, {"command": "fd .", "confidence": 1.7}],
		"installation_instructions": [{"command": ""}, {"command": "sudo dnf install find"}],
		"can_skip": true
	}`)
	require.NoError(t, err)

	require.Len(t, opts.CommandAlternatives, 1)
	assert.Equal(t, 1.0, opts.CommandAlternatives[0].Confidence)
	require.Len(t, opts.InstallationInstructions, 1)
	assert.Equal(t, "dnf", opts.InstallationInstructions[0].PackageManager)
	assert.True(t, opts.CanSkipStep)
	assert.False(t, opts.RetryPossible)
}

func TestParseResponseErrors(t *testing.T) {
	_, err := ParseResponse("")
	assert.ErrorIs(t, err, errEmptyResponse)

	_, err = ParseResponse("not json at all")
	assert.Error(t, err)
}

func TestGuessPackageManager(t *testing.T) {
	assert.Equal(t, "brew", guessPackageManager("brew install jq"))
	assert.Equal(t, "apt", guessPackageManager("sudo apt-get install -y jq"))
	assert.Equal(t, "unknown", guessPackageManager("curl -sSL https://x | sh"))
}

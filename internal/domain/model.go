// Package domain defines the core entities and value objects of li.
//
// This file holds the language-model endpoint definitions declared in the
// config file. The domain layer carries no infrastructure concerns.
package domain

// ModelDefinition describes a completion endpoint declared in the config file.
type ModelDefinition struct {
	Name       string `yaml:"name"`
	Endpoint   string `yaml:"endpoint"`
	AuthEnvVar string `yaml:"auth_env_var"`
	// APIKey is written by `li setup`; AuthEnvVar wins when both are set.
	APIKey    string    `yaml:"api_key,omitempty"`
	ModelID   string    `yaml:"model_id"`
	MaxTokens int       `yaml:"max_tokens"`
	APIFormat APIFormat `yaml:"api_format,omitempty"`
}

// RemoteModel is a model advertised by a provider's catalog.
type RemoteModel struct {
	ID            string
	Name          string
	ContextLength int
}

// APIFormat defines how to construct requests and parse responses for a chat API.
// All fields are optional; zero values select the OpenAI-compatible shape.
type APIFormat struct {
	// AuthHeaderName defaults to "Authorization".
	AuthHeaderName string `yaml:"auth_header_name,omitempty"`

	// AuthHeaderPrefix defaults to "Bearer " unless AuthHeaderName is customized.
	AuthHeaderPrefix string `yaml:"auth_header_prefix,omitempty"`

	// SystemMessageMode is "inline" (messages array) or "separate" (top-level "system").
	SystemMessageMode string `yaml:"system_message_mode,omitempty"`

	// ContentWrapper is "standard" (plain string) or "anthropic" (typed content array).
	ContentWrapper string `yaml:"content_wrapper,omitempty"`

	// ResponseJSONPath locates the generated text, e.g. "choices[0].message.content".
	ResponseJSONPath string `yaml:"response_json_path,omitempty"`

	ExtraHeaders map[string]string `yaml:"extra_headers,omitempty"`
}

// ChatMessage is a role/content pair sent to a chat API.
type ChatMessage struct {
	Role    string
	Content string
}

const (
	DefaultAuthHeaderName   = "Authorization"
	DefaultAuthHeaderPrefix = "Bearer "

	SystemMessageModeInline   = "inline"
	SystemMessageModeSeparate = "separate"

	ContentWrapperStandard  = "standard"
	ContentWrapperAnthropic = "anthropic"

	DefaultResponsePath   = "choices[0].message.content"
	AnthropicResponsePath = "content[0].text"
)

// GetAuthHeaderName returns the authentication header name with default fallback.
func (f APIFormat) GetAuthHeaderName() string {
	if f.AuthHeaderName == "" {
		return DefaultAuthHeaderName
	}
	return f.AuthHeaderName
}

// GetAuthHeaderPrefix returns the authentication header prefix.
// A custom header name with an empty prefix means no prefix.
func (f APIFormat) GetAuthHeaderPrefix() string {
	if f.AuthHeaderPrefix != "" {
		return f.AuthHeaderPrefix
	}
	if f.AuthHeaderName != "" {
		return ""
	}
	return DefaultAuthHeaderPrefix
}

// GetResponseJSONPath returns the JSON path for extracting response content.
func (f APIFormat) GetResponseJSONPath() string {
	if f.ResponseJSONPath == "" {
		return DefaultResponsePath
	}
	return f.ResponseJSONPath
}

// IsSystemMessageSeparate reports whether system messages go in a separate field.
func (f APIFormat) IsSystemMessageSeparate() bool {
	return f.SystemMessageMode == SystemMessageModeSeparate
}

// IsContentWrapped reports whether content is wrapped in a typed array.
func (f APIFormat) IsContentWrapped() bool {
	return f.ContentWrapper == ContentWrapperAnthropic
}

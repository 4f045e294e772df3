package types

import (
	"slices"
	"time"
)

// Provider names accepted by the provider catalog.
const (
	ProviderOpenAI      = "openai"
	ProviderAzureOpenAI = "azure-openai"
	ProviderAnthropic   = "anthropic"
	ProviderOllama      = "ollama"
	ProviderGroq        = "groq"
	ProviderGoogleGenAI = "google-genai"
)

// Provider fields that may carry a secret.
const (
	FieldKey        = "key"
	FieldEndpoint   = "endpoint"
	FieldDeployment = "deployment"
)

// ProviderCapability describes which fields a provider requires and accepts.
type ProviderCapability struct {
	Name     string
	Required []string
	Accepted []string
}

// Accepts reports whether field may be supplied for this provider.
func (c ProviderCapability) Accepts(field string) bool {
	return slices.Contains(c.Accepted, field)
}

// providerCapabilities is ordered for stable listing.
var providerCapabilities = []ProviderCapability{
	{Name: ProviderOpenAI, Required: []string{FieldKey}, Accepted: []string{FieldKey, FieldEndpoint}},
	{Name: ProviderAzureOpenAI, Required: []string{FieldKey, FieldEndpoint, FieldDeployment}, Accepted: []string{FieldKey, FieldEndpoint, FieldDeployment}},
	{Name: ProviderAnthropic, Required: []string{FieldKey}, Accepted: []string{FieldKey, FieldEndpoint}},
	{Name: ProviderOllama, Required: []string{FieldEndpoint}, Accepted: []string{FieldKey, FieldEndpoint}},
	{Name: ProviderGroq, Required: []string{FieldKey}, Accepted: []string{FieldKey, FieldEndpoint}},
	{Name: ProviderGoogleGenAI, Required: []string{FieldKey}, Accepted: []string{FieldKey}},
}

// Capability returns the capability record for a provider name.
func Capability(name string) (ProviderCapability, bool) {
	for _, c := range providerCapabilities {
		if c.Name == name {
			return c, true
		}
	}
	return ProviderCapability{}, false
}

// Capabilities returns every supported provider in catalog order.
func Capabilities() []ProviderCapability {
	return slices.Clone(providerCapabilities)
}

// LLMProvider is a configured provider. Sensitive fields hold secret handles,
// never secret values.
type LLMProvider struct {
	ProviderID string    `json:"provider_id"`
	Name       string    `json:"name"`
	Key        *string   `json:"key,omitempty"`
	Endpoint   *string   `json:"endpoint,omitempty"`
	Deployment *string   `json:"deployment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Field returns the stored value for one of the secret-bearing fields.
func (p *LLMProvider) Field(name string) *string {
	switch name {
	case FieldKey:
		return p.Key
	case FieldEndpoint:
		return p.Endpoint
	case FieldDeployment:
		return p.Deployment
	}
	return nil
}

// SetField stores v in one of the secret-bearing fields.
func (p *LLMProvider) SetField(name string, v *string) {
	switch name {
	case FieldKey:
		p.Key = v
	case FieldEndpoint:
		p.Endpoint = v
	case FieldDeployment:
		p.Deployment = v
	}
}

// LLM is a model offered by a provider.
type LLM struct {
	LLMID        string    `json:"llm_id"`
	ProviderID   string    `json:"provider_id"`
	Name         string    `json:"name"`
	InternalName string    `json:"internal_name"` // the model id sent to the provider
	IsDefault    bool      `json:"is_default"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

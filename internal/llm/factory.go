package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/mesh-intelligence/folio/pkg/types"
)

const (
	groqBaseURL     = "https://api.groq.com/openai/v1"
	azureAPIVersion = "2024-06-01"
)

// builder constructs the langchaingo client for one provider.
type builder func(cfg ModelConfig) (llms.Model, error)

// Factory builds ChatModels by provider name.
type Factory struct {
	builders map[string]builder
}

// NewFactory returns a factory for openai, azure-openai, anthropic, ollama
// and groq.
func NewFactory() *Factory {
	return &Factory{builders: map[string]builder{
		types.ProviderOpenAI:      buildOpenAI,
		types.ProviderAzureOpenAI: buildAzureOpenAI,
		types.ProviderAnthropic:   buildAnthropic,
		types.ProviderOllama:      buildOllama,
		types.ProviderGroq:        buildGroq,
	}}
}

// New builds a model client for cfg. A provider the factory cannot build
// fails ErrUnsupportedProvider; a required credential that is empty fails
// ErrSecretUnavailable.
func (f *Factory) New(cfg ModelConfig) (ChatModel, error) {
	build, ok := f.builders[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("building model for %q: %w", cfg.Provider, types.ErrUnsupportedProvider)
	}
	if capability, ok := types.Capability(cfg.Provider); ok {
		for _, field := range capability.Required {
			if cfg.value(field) == "" {
				return nil, fmt.Errorf("%s %s is not available: %w", cfg.Provider, field, types.ErrSecretUnavailable)
			}
		}
	}
	if cfg.Provider != types.ProviderAzureOpenAI && cfg.InternalName == "" {
		return nil, fmt.Errorf("%s model name is empty: %w", cfg.Provider, types.ErrValidation)
	}
	client, err := build(cfg)
	if err != nil {
		return nil, fmt.Errorf("building %s client: %w", cfg.Provider, err)
	}
	return &chatModel{provider: cfg.Provider, client: client}, nil
}

func (cfg ModelConfig) value(field string) string {
	switch field {
	case types.FieldKey:
		return cfg.Key
	case types.FieldEndpoint:
		return cfg.Endpoint
	case types.FieldDeployment:
		return cfg.Deployment
	}
	return ""
}

func buildOpenAI(cfg ModelConfig) (llms.Model, error) {
	opts := []openai.Option{openai.WithToken(cfg.Key), openai.WithModel(cfg.InternalName)}
	if cfg.Endpoint != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Endpoint))
	}
	return openai.New(opts...)
}

func buildAzureOpenAI(cfg ModelConfig) (llms.Model, error) {
	return openai.New(
		openai.WithAPIType(openai.APITypeAzure),
		openai.WithToken(cfg.Key),
		openai.WithBaseURL(cfg.Endpoint),
		openai.WithModel(cfg.Deployment),
		openai.WithAPIVersion(azureAPIVersion),
	)
}

func buildGroq(cfg ModelConfig) (llms.Model, error) {
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = groqBaseURL
	}
	return openai.New(openai.WithToken(cfg.Key), openai.WithModel(cfg.InternalName), openai.WithBaseURL(baseURL))
}

func buildAnthropic(cfg ModelConfig) (llms.Model, error) {
	opts := []anthropic.Option{anthropic.WithToken(cfg.Key), anthropic.WithModel(cfg.InternalName)}
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.Endpoint))
	}
	return anthropic.New(opts...)
}

func buildOllama(cfg ModelConfig) (llms.Model, error) {
	return ollama.New(ollama.WithModel(cfg.InternalName), ollama.WithServerURL(cfg.Endpoint))
}

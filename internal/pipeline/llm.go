package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/forPelevin/adscribe/internal/ports"
	"github.com/forPelevin/adscribe/internal/ports/adapters/openaichat"
	"github.com/forPelevin/adscribe/internal/ports/adapters/openrouter"
)

const (
	ProviderAuto       = "auto"
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAzure      = "azure"
)

type LLMConfig struct {
	Provider string

	OpenRouterAPIKey       string
	OpenRouterModel        string
	OpenRouterBaseURL      string
	OpenRouterAllowedHosts []string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	AzureEndpoint   string
	AzureAPIKey     string
	AzureDeployment string
	AzureAPIVersion string
}

// ResolveProvider picks the provider for "auto": Azure when an endpoint is set,
// then OpenRouter, then OpenAI, by which credentials are present.
func (c LLMConfig) ResolveProvider() (string, error) {
	p := strings.ToLower(strings.TrimSpace(c.Provider))
	switch p {
	case ProviderOpenRouter, ProviderOpenAI, ProviderAzure:
		return p, nil
	case "", ProviderAuto:
	default:
		return "", fmt.Errorf("unsupported llm provider %q (want auto, openrouter, openai or azure)", c.Provider)
	}
	switch {
	case strings.TrimSpace(c.AzureEndpoint) != "":
		return ProviderAzure, nil
	case strings.TrimSpace(c.OpenRouterAPIKey) != "":
		return ProviderOpenRouter, nil
	case strings.TrimSpace(c.OpenAIAPIKey) != "":
		return ProviderOpenAI, nil
	}
	return "", errors.New("no llm credentials: set OPENROUTER_API_KEY, OPENAI_API_KEY or AZURE_OPENAI_ENDPOINT")
}

func (c LLMConfig) Validate() error {
	p, err := c.ResolveProvider()
	if err != nil {
		return err
	}
	switch p {
	case ProviderOpenRouter:
		if strings.TrimSpace(c.OpenRouterAPIKey) == "" {
			return errors.New("OPENROUTER_API_KEY is required")
		}
		return openrouter.ValidateBaseURL(c.OpenRouterBaseURL, c.OpenRouterAllowedHosts)
	case ProviderOpenAI:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return errors.New("OPENAI_API_KEY is required")
		}
	case ProviderAzure:
		if strings.TrimSpace(c.AzureEndpoint) == "" {
			return errors.New("AZURE_OPENAI_ENDPOINT is required")
		}
		if strings.TrimSpace(c.AzureAPIKey) == "" {
			return errors.New("AZURE_OPENAI_API_KEY is required")
		}
		if strings.TrimSpace(c.AzureDeployment) == "" {
			return errors.New("AZURE_OPENAI_DEPLOYMENT is required")
		}
	}
	return nil
}

// NewRewriter builds the text-generation adapter for the resolved provider.
func NewRewriter(c LLMConfig) (ports.Rewriter, string, error) {
	if err := c.Validate(); err != nil {
		return nil, "", err
	}
	p, _ := c.ResolveProvider()
	switch p {
	case ProviderOpenRouter:
		return openrouter.New(c.OpenRouterAPIKey, c.OpenRouterModel, c.OpenRouterBaseURL), p, nil
	case ProviderAzure:
		return openaichat.New(openaichat.Config{
			APIKey:          c.AzureAPIKey,
			Model:           c.AzureDeployment,
			AzureEndpoint:   c.AzureEndpoint,
			AzureDeployment: c.AzureDeployment,
			AzureAPIVersion: c.AzureAPIVersion,
		}), p, nil
	default:
		return openaichat.New(openaichat.Config{
			APIKey:  c.OpenAIAPIKey,
			BaseURL: c.OpenAIBaseURL,
			Model:   c.OpenAIModel,
		}), p, nil
	}
}

var (
	_ ports.Rewriter = (*openrouter.Adapter)(nil)
	_ ports.Rewriter = (*openaichat.Adapter)(nil)
)

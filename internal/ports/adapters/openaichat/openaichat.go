// Package openaichat implements the rewrite port on the OpenAI chat completions
// API, including Azure OpenAI deployments.
package openaichat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/forPelevin/adscribe/internal/ports/adapters/openrouter"
	"github.com/forPelevin/adscribe/internal/types"
)

const (
	defaultModel           = "gpt-4o-mini"
	defaultAzureAPIVersion = "2024-10-21"
	requestTimeout         = 90 * time.Second
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// AzureEndpoint switches to an Azure OpenAI deployment, e.g.
	// https://<resource>.openai.azure.com.
	AzureEndpoint   string
	AzureDeployment string
	AzureAPIVersion string
}

type Adapter struct {
	client openai.Client
	model  string
}

func New(cfg Config) *Adapter {
	// Retries are owned by the narration pipeline.
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithRequestTimeout(requestTimeout),
	}
	model := strings.TrimSpace(cfg.Model)

	if endpoint := strings.TrimSpace(cfg.AzureEndpoint); endpoint != "" {
		version := cfg.AzureAPIVersion
		if version == "" {
			version = defaultAzureAPIVersion
		}
		base := strings.TrimRight(endpoint, "/") + "/openai/deployments/" + cfg.AzureDeployment + "/"
		opts = append(opts,
			option.WithBaseURL(base),
			option.WithHeader("api-key", cfg.APIKey),
			option.WithQuery("api-version", version),
		)
		if model == "" {
			model = cfg.AzureDeployment
		}
	} else {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if base := strings.TrimSpace(cfg.BaseURL); base != "" {
			opts = append(opts, option.WithBaseURL(strings.TrimRight(base, "/")+"/"))
		}
	}
	if model == "" {
		model = defaultModel
	}
	return &Adapter{client: openai.NewClient(opts...), model: model}
}

func (a *Adapter) Rewrite(ctx context.Context, system, user string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       a.model,
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(4096),
	}
	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("openai status %d: %w", apiErr.StatusCode, types.ErrRateLimited)
		}
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices")
	}
	return openrouter.CleanText(resp.Choices[0].Message.Content), nil
}

package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	contractx "github.com/campora/assistant/assistant/contract"
)

// Config holds settings for the OpenAI-compatible generation endpoint.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"1000"`
	Temperature        float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.4"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
}

// Client answers generation requests over chat completions. It is trusted to
// render the supplied context, not to filter it; callers must project first.
type Client struct {
	sdk         *openaisdk.Client
	model       string
	maxTokens   int
	temperature float64
}

var _ contractx.Generator = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: genai api key is required", contractx.ErrValidation)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("%w: genai model is required", contractx.ErrValidation)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
	}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if cfg.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.SiteURL))
	}
	if cfg.SiteName != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.SiteName))
	}

	sdk := openaisdk.NewClient(opts...)
	return &Client{
		sdk:         &sdk,
		model:       model,
		maxTokens:   cfg.MaxCompletionToken,
		temperature: cfg.Temperature,
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

const systemPrompt = "You are an institutional assistant. Answer the user's " +
	"question using only the structured context provided. If the context is " +
	"empty, say no matching records were found. Be concise and factual."

func (c *Client) Generate(ctx context.Context, req contractx.GenerationRequest) (contractx.GenerationResponse, error) {
	payload, err := json.Marshal(map[string]any{
		"role":    req.Role,
		"user":    req.UserName,
		"intent":  req.Intent,
		"context": req.ContextData,
	})
	if err != nil {
		return contractx.GenerationResponse{}, fmt.Errorf("%w: marshal generation payload: %v", contractx.ErrGenerationFailed, err)
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.ChatHistory)+2)
	messages = append(messages, openaisdk.SystemMessage(systemPrompt))
	for _, msg := range req.ChatHistory {
		if msg.Sender == contractx.SenderBot {
			messages = append(messages, openaisdk.AssistantMessage(msg.Text))
		} else {
			messages = append(messages, openaisdk.UserMessage(msg.Text))
		}
	}
	messages = append(messages, openaisdk.UserMessage(string(payload)))

	completion, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model:               openaisdk.ChatModel(c.model),
		Messages:            messages,
		MaxCompletionTokens: openaisdk.Int(int64(c.maxTokens)),
		Temperature:         openaisdk.Float(c.temperature),
	})
	if err != nil {
		return contractx.GenerationResponse{}, fmt.Errorf("%w: %v", contractx.ErrGenerationFailed, err)
	}
	if len(completion.Choices) == 0 {
		return contractx.GenerationResponse{}, fmt.Errorf("%w: empty completion", contractx.ErrGenerationFailed)
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return contractx.GenerationResponse{}, fmt.Errorf("%w: empty completion text", contractx.ErrGenerationFailed)
	}
	return contractx.GenerationResponse{Response: text}, nil
}

package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/feedtools/newsblur-cleaner/internal/config"
	"github.com/feedtools/newsblur-cleaner/internal/langdetect"
)

const systemPrompt = "Identify the language of the user's text. " +
	"Answer with the two-letter ISO 639-1 code only, or \"und\" if you cannot tell."

// Detector classifies text through an OpenAI-compatible chat endpoint, for
// runtimes where the offline models are unavailable.
type Detector struct {
	client openai.Client
	model  string
}

func New(cfg config.OpenAIEnvConfig, opts ...option.RequestOption) *Detector {
	options := []option.RequestOption{}
	if cfg.APIKey != "" {
		options = append(options, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	options = append(options, opts...)
	return &Detector{client: openai.NewClient(options...), model: cfg.Model}
}

func (d *Detector) Detect(ctx context.Context, text string) (langdetect.Code, error) {
	if strings.TrimSpace(text) == "" {
		return langdetect.Unknown, nil
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(d.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		MaxTokens: openai.Int(4),
	}

	response, err := d.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return langdetect.Unknown, err
	}
	if len(response.Choices) == 0 {
		return langdetect.Unknown, fmt.Errorf("llm detector: empty response")
	}

	code := langdetect.Normalize(response.Choices[0].Message.Content)
	if len(code) != 2 {
		return langdetect.Unknown, nil
	}
	return code, nil
}

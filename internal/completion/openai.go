package completion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"pagebrief/internal/summarize"
)

// Client sends chat completions to OpenAI and classifies every
// provider-level failure into a summarize.Outcome. Only transport failure
// (backend unreachable) surfaces as an error.
type Client struct {
	api           openai.Client
	model         string
	rateLimitWait time.Duration
}

func NewClient(apiKey string, model string, rateLimitWait time.Duration) *Client {
	return &Client{
		api:           openai.NewClient(option.WithAPIKey(apiKey)),
		model:         model,
		rateLimitWait: rateLimitWait,
	}
}

func (c *Client) Complete(
	ctx context.Context,
	instruction string,
	text string,
) (summarize.Outcome, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instruction),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return c.classify(err)
	}

	if len(resp.Choices) == 0 {
		return summarize.Retryable("response has no choices"), nil
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return summarize.Retryable(fmt.Sprintf(
			"output text is missing (finish reason = %s)",
			resp.Choices[0].FinishReason,
		)), nil
	}

	return summarize.Success(content), nil
}

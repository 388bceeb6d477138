package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/voxgate/voxgate/internal/domain"
	"github.com/voxgate/voxgate/internal/logging"
)

const (
	completionTimeout = 30 * time.Second
	runPollInterval   = 500 * time.Millisecond
)

const extractPrompt = `Below is the transcript of a phone call between a customer and an agent.
Extract the customer's details and respond with a JSON object containing exactly
these keys: "customerName", "availability", "notes". Use an empty string for
anything the transcript does not mention.

Transcript:
%s`

// OpenAIConfig configures the completion client.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	AssistantID string // enables the hosted-thread flavor
	MaxTokens   int
	Temperature float32
}

// OpenAIClient implements Client and ThreadClient against an
// OpenAI-compatible completion API.
type OpenAIClient struct {
	cfg    OpenAIConfig
	client *openai.Client
	log    *logging.Logger
}

// NewOpenAIClient creates a completion client.
func NewOpenAIClient(cfg OpenAIConfig, log *logging.Logger) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: completionTimeout}

	return &OpenAIClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
		log:    log.Sub("llm"),
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, history []domain.Message) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", &UpstreamError{Op: "complete", Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Op: "complete", Err: errors.New("no completion choices in response")}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) Extract(ctx context.Context, transcript string) (*ExtractResult, error) {
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(extractPrompt, transcript),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, &UpstreamError{Op: "extract", Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &UpstreamError{Op: "extract", Err: errors.New("no completion choices in response")}
	}

	raw := stripCodeFence(resp.Choices[0].Message.Content)

	var result ExtractResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, &ExtractionError{Raw: raw, Err: err}
	}

	return &result, nil
}

// CompleteThread implements the hosted stateful-thread flavor via the
// assistants API. An empty threadRef creates a new thread.
func (c *OpenAIClient) CompleteThread(ctx context.Context, threadRef, message string) (string, string, error) {
	if c.cfg.AssistantID == "" {
		return "", "", &UpstreamError{Op: "thread", Err: errors.New("no assistant id configured")}
	}

	if threadRef == "" {
		thread, err := c.client.CreateThread(ctx, openai.ThreadRequest{})
		if err != nil {
			return "", "", &UpstreamError{Op: "thread.create", Err: err}
		}
		threadRef = thread.ID
	}

	_, err := c.client.CreateMessage(ctx, threadRef, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})
	if err != nil {
		return "", threadRef, &UpstreamError{Op: "thread.message", Err: err}
	}

	run, err := c.client.CreateRun(ctx, threadRef, openai.RunRequest{
		AssistantID: c.cfg.AssistantID,
	})
	if err != nil {
		return "", threadRef, &UpstreamError{Op: "thread.run", Err: err}
	}

	reply, err := c.waitForRun(ctx, threadRef, run.ID)
	if err != nil {
		return "", threadRef, err
	}
	return reply, threadRef, nil
}

func (c *OpenAIClient) waitForRun(ctx context.Context, threadID, runID string) (string, error) {
	ticker := time.NewTicker(runPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", &UpstreamError{Op: "thread.run", Err: ctx.Err()}
		case <-ticker.C:
		}

		run, err := c.client.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			return "", &UpstreamError{Op: "thread.run", Err: err}
		}

		switch run.Status {
		case openai.RunStatusCompleted:
			limit := 1
			order := "desc"
			msgs, err := c.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
			if err != nil {
				return "", &UpstreamError{Op: "thread.messages", Err: err}
			}
			if len(msgs.Messages) == 0 || len(msgs.Messages[0].Content) == 0 {
				return "", &UpstreamError{Op: "thread.messages", Err: errors.New("empty assistant reply")}
			}
			return strings.TrimSpace(msgs.Messages[0].Content[0].Text.Value), nil
		case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired:
			return "", &UpstreamError{Op: "thread.run", Err: fmt.Errorf("run ended with status %s", run.Status)}
		}
	}
}

// stripCodeFence unwraps content some models return fenced as ```json.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "`")
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSpace(s)
}

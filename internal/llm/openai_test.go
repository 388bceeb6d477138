package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxgate/voxgate/internal/domain"
	"github.com/voxgate/voxgate/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

// completionServer fakes the chat completions endpoint, returning the
// given message content (or no choices when content is empty).
func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)

		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "test-model",
			"choices": []any{},
		}
		if content != "" {
			resp["choices"] = []any{
				map[string]any{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": content,
					},
				},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(t *testing.T, srv *httptest.Server) *OpenAIClient {
	t.Helper()
	return NewOpenAIClient(OpenAIConfig{
		BaseURL: srv.URL + "/v1",
		APIKey:  "test-key",
		Model:   "test-model",
	}, testLogger())
}

func TestComplete(t *testing.T) {
	srv := completionServer(t, "Hello, how can I help?")
	defer srv.Close()

	c := newTestClient(t, srv)
	reply, err := c.Complete(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Content: "You are an assistant"},
		{Role: domain.RoleUser, Content: "Hi"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello, how can I help?", reply)
}

func TestComplete_NoChoices(t *testing.T) {
	srv := completionServer(t, "")
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), []domain.Message{
		{Role: domain.RoleUser, Content: "Hi"},
	})

	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "complete", ue.Op)
}

func TestComplete_ServerDown(t *testing.T) {
	srv := completionServer(t, "unused")
	srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), []domain.Message{
		{Role: domain.RoleUser, Content: "Hi"},
	})

	var ue *UpstreamError
	assert.ErrorAs(t, err, &ue)
}

func TestExtract(t *testing.T) {
	srv := completionServer(t, `{"customerName":"Ann","availability":"weekday mornings","notes":"prefers SMS"}`)
	defer srv.Close()

	c := newTestClient(t, srv)
	result, err := c.Extract(context.Background(), "User: Hi, this is Ann\nAgent: Hello Ann!\n")

	require.NoError(t, err)
	assert.Equal(t, "Ann", result.CustomerName)
	assert.Equal(t, "weekday mornings", result.Availability)
	assert.Equal(t, "prefers SMS", result.Notes)
}

func TestExtract_FencedJSON(t *testing.T) {
	srv := completionServer(t, "```json\n{\"customerName\":\"Bo\",\"availability\":\"\",\"notes\":\"\"}\n```")
	defer srv.Close()

	c := newTestClient(t, srv)
	result, err := c.Extract(context.Background(), "User: I'm Bo\n")

	require.NoError(t, err)
	assert.Equal(t, "Bo", result.CustomerName)
}

func TestExtract_MalformedPayload(t *testing.T) {
	srv := completionServer(t, "sorry, I cannot do that")
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Extract(context.Background(), "")

	var ee *ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.NotEmpty(t, ee.Raw)

	var ue *UpstreamError
	assert.False(t, errors.As(err, &ue), "parse failure is distinct from upstream failure")
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}

// Package llm wraps the completion API used for SMS replies and
// post-call transcript extraction.
package llm

import (
	"context"
	"fmt"

	"github.com/voxgate/voxgate/internal/domain"
)

// ExtractResult is the structured outcome of post-call transcript
// extraction.
type ExtractResult struct {
	CustomerName string `json:"customerName"`
	Availability string `json:"availability"`
	Notes        string `json:"notes"`
}

// UpstreamError reports a failed or malformed completion call. It is
// non-fatal: callers log it and abandon the turn, never crash.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ExtractionError reports that the structured extraction payload could
// not be parsed. It only drops the extraction, never the call path.
type ExtractionError struct {
	Raw string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("llm extract: malformed payload: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Client is the completion API contract.
type Client interface {
	// Complete turns a conversation history into the next assistant
	// utterance. It blocks until the remote call returns or times out.
	Complete(ctx context.Context, history []domain.Message) (string, error)

	// Extract requests a schema-constrained summary of a call transcript.
	Extract(ctx context.Context, transcript string) (*ExtractResult, error)
}

// ThreadClient is the hosted stateful-thread flavor of the completion
// API. The conversation history lives server-side behind an opaque
// thread handle instead of being resent each turn.
type ThreadClient interface {
	// CompleteThread appends the user message to the thread (creating
	// one when threadRef is empty) and returns the assistant reply plus
	// the thread handle to persist.
	CompleteThread(ctx context.Context, threadRef, message string) (reply, newRef string, err error)
}

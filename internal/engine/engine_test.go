package engine

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxgate/voxgate/internal/domain"
	"github.com/voxgate/voxgate/internal/guard"
	"github.com/voxgate/voxgate/internal/llm"
	"github.com/voxgate/voxgate/internal/logging"
	"github.com/voxgate/voxgate/internal/notify"
	"github.com/voxgate/voxgate/internal/store"
)

type captureNotifier struct {
	mu   sync.Mutex
	sent []domain.OutboundReply
	err  error
}

func (n *captureNotifier) SendReply(_ context.Context, reply domain.OutboundReply) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, reply)
	return nil
}

func (n *captureNotifier) replies() []domain.OutboundReply {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.OutboundReply, len(n.sent))
	copy(out, n.sent)
	return out
}

type fixture struct {
	engine   *Engine
	store    store.Store
	notifier *captureNotifier
	client   *llm.MockClient
}

func newFixture(t *testing.T, cfg Config, guardOpts ...func(*guardConfig)) *fixture {
	t.Helper()
	gc := guardConfig{window: time.Hour, minInterval: 0}
	for _, opt := range guardOpts {
		opt(&gc)
	}
	log := logging.New(io.Discard, "silent")
	st := store.NewMemoryStore()
	g := guard.New(gc.window, gc.minInterval, log)
	client := &llm.MockClient{}
	notifier := &captureNotifier{}
	return &fixture{
		engine:   New(cfg, st, g, client, nil, notifier, nil, log),
		store:    st,
		notifier: notifier,
		client:   client,
	}
}

type guardConfig struct {
	window      time.Duration
	minInterval time.Duration
}

func withMinInterval(d time.Duration) func(*guardConfig) {
	return func(gc *guardConfig) { gc.minInterval = d }
}

func TestHandleInboundReplies(t *testing.T) {
	f := newFixture(t, Config{SystemPrompt: "You are a helpful assistant.", FromNumber: "+15550000000"})
	f.client.CompleteFunc = func(_ context.Context, msgs []domain.Message) (string, error) {
		require.Len(t, msgs, 2)
		assert.Equal(t, domain.RoleSystem, msgs[0].Role)
		assert.Equal(t, "Hi", msgs[1].Content)
		return "Hello! How can I help?", nil
	}

	f.engine.HandleInbound(context.Background(), domain.InboundMessage{
		MessageSid: "SM1",
		From:       "+15551234567",
		Body:       "Hi",
	})

	replies := f.notifier.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "+15551234567", replies[0].To)
	assert.Equal(t, "+15550000000", replies[0].From)
	assert.Equal(t, "Hello! How can I help?", replies[0].Body)

	conv, ok := f.store.Get("+15551234567")
	require.True(t, ok)
	assert.Equal(t, domain.PhaseAwaitingReply, conv.Phase)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, domain.RoleAssistant, conv.Messages[2].Role)
}

func TestHandleInboundDuplicateSid(t *testing.T) {
	f := newFixture(t, Config{})
	msg := domain.InboundMessage{MessageSid: "SM1", From: "+15551234567", Body: "Hi"}

	f.engine.HandleInbound(context.Background(), msg)
	f.engine.HandleInbound(context.Background(), msg)

	assert.Len(t, f.notifier.replies(), 1)
	conv, _ := f.store.Get("+15551234567")
	assert.Len(t, conv.Messages, 2, "duplicate must not append a second turn")
}

func TestHandleInboundRateLimited(t *testing.T) {
	f := newFixture(t, Config{}, withMinInterval(time.Minute))

	f.engine.HandleInbound(context.Background(), domain.InboundMessage{MessageSid: "SM1", From: "+15551234567", Body: "first"})
	f.engine.HandleInbound(context.Background(), domain.InboundMessage{MessageSid: "SM2", From: "+15551234567", Body: "second"})

	assert.Len(t, f.notifier.replies(), 1)
}

func TestHandleInboundSerializesPerSender(t *testing.T) {
	f := newFixture(t, Config{})
	release := make(chan struct{})
	f.client.CompleteFunc = func(_ context.Context, _ []domain.Message) (string, error) {
		<-release
		return "slow reply", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		sid := string(rune('A' + i))
		go func() {
			defer wg.Done()
			f.engine.HandleInbound(context.Background(), domain.InboundMessage{
				MessageSid: "SM" + sid,
				From:       "+15551234567",
				Body:       "hello",
			})
		}()
	}

	// Let every goroutine reach either the completion call or the
	// in-flight short circuit before unblocking the winner.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Len(t, f.notifier.replies(), 1, "only one turn may be in flight per sender")
}

func TestHandleInboundCompletionFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.client.CompleteFunc = func(_ context.Context, _ []domain.Message) (string, error) {
		return "", errors.New("upstream down")
	}

	f.engine.HandleInbound(context.Background(), domain.InboundMessage{MessageSid: "SM1", From: "+15551234567", Body: "Hi"})

	assert.Empty(t, f.notifier.replies())
	// The processing flag must be released so the sender is not wedged.
	assert.True(t, f.store.TrySetProcessing("+15551234567"))
}

func TestHandleInboundDeliveryFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.notifier.err = &notify.DeliveryError{Status: 401, Body: "auth"}

	f.engine.HandleInbound(context.Background(), domain.InboundMessage{MessageSid: "SM1", From: "+15551234567", Body: "Hi"})

	conv, ok := f.store.Get("+15551234567")
	require.True(t, ok)
	assert.Equal(t, domain.PhaseNew, conv.Phase, "phase must not advance when delivery fails")
}

func TestHandleInboundEndKeyword(t *testing.T) {
	f := newFixture(t, Config{EndKeywords: []string{"stop"}})

	f.engine.HandleInbound(context.Background(), domain.InboundMessage{MessageSid: "SM1", From: "+15551234567", Body: "Hi"})
	f.engine.HandleInbound(context.Background(), domain.InboundMessage{MessageSid: "SM2", From: "+15551234567", Body: " STOP "})

	conv, _ := f.store.Get("+15551234567")
	assert.Equal(t, domain.PhaseTerminal, conv.Phase)

	// The next message starts a fresh conversation.
	f.engine.HandleInbound(context.Background(), domain.InboundMessage{MessageSid: "SM3", From: "+15551234567", Body: "hello again"})
	conv, _ = f.store.Get("+15551234567")
	assert.Equal(t, domain.PhaseAwaitingReply, conv.Phase)
	assert.Len(t, conv.Messages, 2, "history must restart after a terminal conversation")
}

func TestStartLeadOutreach(t *testing.T) {
	f := newFixture(t, Config{SystemPrompt: "prompt", FromNumber: "+15550000000"})
	f.client.CompleteFunc = func(_ context.Context, msgs []domain.Message) (string, error) {
		return "Hi there, I wanted to reach out.", nil
	}

	err := f.engine.StartLeadOutreach(context.Background(), []domain.Lead{
		{PhoneNumber: "5551234567", Name: "Dana"},
	})
	require.NoError(t, err)

	replies := f.notifier.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "+5551234567", replies[0].To, "phone number must be normalized before use")

	conv, ok := f.store.Get("+5551234567")
	require.True(t, ok)
	assert.Equal(t, "Dana", conv.Name)
	assert.Equal(t, domain.PhaseAwaitingReply, conv.Phase)
}

func TestStartLeadOutreachInvalidNumber(t *testing.T) {
	f := newFixture(t, Config{})
	err := f.engine.StartLeadOutreach(context.Background(), []domain.Lead{{PhoneNumber: "  "}})
	require.Error(t, err)
	assert.Empty(t, f.notifier.replies())
}

func TestStartLeadOutreachStopsOnDeliveryError(t *testing.T) {
	f := newFixture(t, Config{})
	f.notifier.err = errors.New("provider down")

	err := f.engine.StartLeadOutreach(context.Background(), []domain.Lead{
		{PhoneNumber: "+15550001111"},
		{PhoneNumber: "+15550002222"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "+15550001111")
}

func TestRecordCallOutcome(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.GetOrCreate("+15551234567")

	f.engine.RecordCallOutcome("+15551234567", &llm.ExtractResult{CustomerName: "Pat"})

	conv, _ := f.store.Get("+15551234567")
	assert.Equal(t, "Pat", conv.Name)
	assert.Equal(t, domain.PhaseAwaitingReply, conv.Phase)
}

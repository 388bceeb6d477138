package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/voxgate/voxgate/internal/llm"
	"github.com/voxgate/voxgate/internal/logging"
	"github.com/voxgate/voxgate/internal/notify"
	"github.com/voxgate/voxgate/internal/store"
)

// errCallEnded signals a normal hangup so the pump loops can unwind
// through the errgroup without it looking like a failure.
var errCallEnded = errors.New("call ended")

// sessionSettleDelay gives the remote realtime session a moment to
// initialize before the configuration frame is sent.
const sessionSettleDelay = 250 * time.Millisecond

// Config holds the realtime bridge settings.
type Config struct {
	APIKey       string
	RealtimeURL  string
	Model        string
	VoiceProfile string
	Instructions string
	Greeting     string
}

// CallObserver receives finished call records, e.g. for dashboard push.
type CallObserver interface {
	BroadcastCall(rec store.CallRecord)
}

// Bridge relays audio between the telephony provider's media stream and
// the realtime speech model, and turns each finished call into a
// transcript, an extraction pass, and a stored call record.
type Bridge struct {
	cfg       Config
	extractor llm.Client
	callLog   store.CallLog
	log       *logging.Logger

	// Relay, Outcome, and Observer are optional post-call hooks; nil
	// disables each.
	Relay    notify.EventRelay
	Outcome  func(caller string, result *llm.ExtractResult)
	Observer CallObserver

	mu       sync.Mutex
	sessions map[string]*Session

	dial func(url string, header http.Header) (*websocket.Conn, *http.Response, error)
}

// NewBridge creates a bridge. extractor runs the post-call detail
// extraction; callLog receives every finished call.
func NewBridge(cfg Config, extractor llm.Client, callLog store.CallLog, log *logging.Logger) *Bridge {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-realtime-preview"
	}
	return &Bridge{
		cfg:       cfg,
		extractor: extractor,
		callLog:   callLog,
		log:       log.Sub("voice"),
		sessions:  make(map[string]*Session),
		dial: func(url string, header http.Header) (*websocket.Conn, *http.Response, error) {
			d := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
			return d.Dial(url, header)
		},
	}
}

// ActiveSessions reports how many calls are currently bridged.
func (b *Bridge) ActiveSessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// HandleProvider runs one call on an already-upgraded provider
// connection. It returns when the call ends or either leg fails.
func (b *Bridge) HandleProvider(ctx context.Context, provider *websocket.Conn) {
	defer provider.Close()

	sess, err := b.awaitStart(provider)
	if err != nil {
		b.log.Warn().Err(err).Msg("media stream ended before start frame")
		return
	}
	b.track(sess)
	defer b.untrack(sess)

	log := b.log.WithStr("callSid", sess.CallSid).WithStr("streamSid", sess.StreamSid)
	log.Info().Str("caller", sess.Caller).Msg("call started")

	model, err := b.dialModel()
	if err != nil {
		log.Error().Err(err).Msg("realtime connect failed, dropping call")
		return
	}
	defer model.Close()

	if err := b.setupModel(model); err != nil {
		log.Error().Err(err).Msg("realtime session setup failed")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	// Unblock whichever pump is still reading once the other leg ends.
	go func() {
		<-gctx.Done()
		provider.Close()
		model.Close()
	}()
	g.Go(func() error { return b.pumpProvider(sess, provider, model) })
	g.Go(func() error { return b.pumpModel(sess, model, provider) })

	if err := g.Wait(); err != nil && !errors.Is(err, errCallEnded) {
		log.Debug().Err(err).Msg("call pump ended")
	}

	b.finishCall(context.WithoutCancel(ctx), sess)
	log.Info().Msg("call finished")
}

// awaitStart reads frames until the provider announces the stream.
func (b *Bridge) awaitStart(provider *websocket.Conn) (*Session, error) {
	for {
		_, data, err := provider.ReadMessage()
		if err != nil {
			return nil, err
		}
		var frame providerFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			b.log.Debug().Err(err).Msg("malformed provider frame, dropping")
			continue
		}
		if frame.Event != "start" || frame.Start == nil {
			continue
		}
		caller := frame.Start.CustomParameters["from"]
		return newSession(frame.Start.StreamSid, frame.Start.CallSid, caller), nil
	}
}

func (b *Bridge) dialModel() (*websocket.Conn, error) {
	url := fmt.Sprintf("%s?model=%s", b.cfg.RealtimeURL, b.cfg.Model)
	header := http.Header{
		"Authorization": {"Bearer " + b.cfg.APIKey},
		"OpenAI-Beta":   {"realtime=v1"},
	}
	conn, resp, err := b.dial(url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial realtime: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial realtime: %w", err)
	}
	return conn, nil
}

func (b *Bridge) setupModel(model *websocket.Conn) error {
	time.Sleep(sessionSettleDelay)
	update, err := sessionUpdate(b.cfg.VoiceProfile, b.cfg.Instructions)
	if err != nil {
		return err
	}
	if err := model.WriteMessage(websocket.TextMessage, update); err != nil {
		return err
	}
	if b.cfg.Greeting == "" {
		return nil
	}
	greet, err := greetingRequest(b.cfg.Greeting)
	if err != nil {
		return err
	}
	return model.WriteMessage(websocket.TextMessage, greet)
}

// pumpProvider forwards caller audio to the model until the provider
// sends a stop frame or the connection drops.
func (b *Bridge) pumpProvider(sess *Session, provider, model *websocket.Conn) error {
	for {
		_, data, err := provider.ReadMessage()
		if err != nil {
			return err
		}
		var frame providerFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			b.log.Debug().Err(err).Str("streamSid", sess.StreamSid).Msg("malformed provider frame, dropping")
			continue
		}
		switch frame.Event {
		case "media":
			if frame.Media == nil {
				continue
			}
			msg, err := audioAppend(frame.Media.Payload)
			if err != nil {
				return err
			}
			if err := model.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}
		case "stop":
			return errCallEnded
		}
	}
}

// pumpModel forwards model audio to the provider and collects both
// sides of the transcript.
func (b *Bridge) pumpModel(sess *Session, model, provider *websocket.Conn) error {
	for {
		_, data, err := model.ReadMessage()
		if err != nil {
			return err
		}
		var event realtimeEvent
		if err := json.Unmarshal(data, &event); err != nil {
			b.log.Debug().Err(err).Str("streamSid", sess.StreamSid).Msg("malformed realtime event, dropping")
			continue
		}
		if err := b.handleModelEvent(sess, event, provider); err != nil {
			return err
		}
	}
}

func (b *Bridge) handleModelEvent(sess *Session, event realtimeEvent, provider *websocket.Conn) error {
	switch event.Type {
	case eventAudioDelta:
		frame := outboundMedia(sess.StreamSid, event.Delta)
		data, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		return provider.WriteMessage(websocket.TextMessage, data)
	case eventInputTranscriptDone:
		if event.Transcript != "" {
			sess.AddUserLine(event.Transcript)
		}
	case eventAgentTranscriptDone:
		if event.Transcript != "" {
			sess.AddAgentLine(event.Transcript)
		}
	case eventError:
		msg := "unknown"
		if event.Error != nil {
			msg = event.Error.Message
		}
		return fmt.Errorf("realtime error: %s", msg)
	}
	return nil
}

// finishCall records the transcript, runs extraction, and fires the
// post-call hooks. Extraction failures are logged and do not block the
// record from being saved.
func (b *Bridge) finishCall(ctx context.Context, sess *Session) {
	if !sess.close() {
		return
	}

	rec := store.CallRecord{
		CallSid:    sess.CallSid,
		Caller:     sess.Caller,
		Transcript: sess.Transcript(),
		StartedAt:  sess.StartedAt,
		EndedAt:    time.Now(),
	}
	b.callLog.SaveCall(rec)

	result, err := b.extractor.Extract(ctx, rec.Transcript)
	if err != nil {
		b.log.Warn().Err(err).Str("callSid", sess.CallSid).Msg("post-call extraction failed")
	} else if b.Outcome != nil {
		b.Outcome(sess.Caller, result)
	}

	if b.Relay != nil {
		b.Relay.RelayEvent(ctx, notify.Envelope{
			Type:      "call.completed",
			From:      sess.Caller,
			Payload:   rec,
			Timestamp: time.Now(),
		})
	}
	if b.Observer != nil {
		b.Observer.BroadcastCall(rec)
	}
}

// track registers the session for the active-call gauge.
func (b *Bridge) track(sess *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[sess.StreamSid] = sess
}

func (b *Bridge) untrack(sess *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, sess.StreamSid)
}

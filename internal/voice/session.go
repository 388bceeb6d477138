// Package voice bridges a telephony media stream to a realtime speech
// model over WebSocket and turns finished calls into transcripts.
package voice

import (
	"strings"
	"sync"
	"time"
)

// Session tracks one active call. Transcript lines are recorded in
// frame-arrival order, which is the order the conversation happened in.
type Session struct {
	StreamSid string
	CallSid   string
	Caller    string
	StartedAt time.Time

	mu     sync.Mutex
	lines  []string
	closed bool
}

func newSession(streamSid, callSid, caller string) *Session {
	return &Session{
		StreamSid: streamSid,
		CallSid:   callSid,
		Caller:    caller,
		StartedAt: time.Now(),
	}
}

// AddUserLine appends a caller utterance to the transcript.
func (s *Session) AddUserLine(text string) {
	s.addLine("User: " + text)
}

// AddAgentLine appends a model utterance to the transcript.
func (s *Session) AddAgentLine(text string) {
	s.addLine("Agent: " + text)
}

func (s *Session) addLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.lines = append(s.lines, line)
}

// Transcript renders the accumulated lines, one utterance per line.
// Empty when the call produced no speech.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.lines, "\n")
}

// close marks the session finished. Returns false if it was already
// closed, so teardown runs exactly once no matter which side hangs up
// first.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

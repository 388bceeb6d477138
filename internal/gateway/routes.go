package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/voxgate/voxgate/internal/domain"
	"github.com/voxgate/voxgate/internal/notify"
	"github.com/voxgate/voxgate/internal/store"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /sms", s.handleInboundSMS)
	mux.HandleFunc("POST /incoming-call", s.handleIncomingCall)
	mux.HandleFunc("GET /media", s.handleMediaStream)
	mux.HandleFunc("POST /check-leads", s.handleCheckLeads)
	mux.HandleFunc("POST /message-status", s.handleMessageStatus)
	mux.HandleFunc("GET /api/conversations", s.handleListConversations)
	mux.HandleFunc("GET /api/conversations/{id}", s.handleGetConversation)
	mux.HandleFunc("GET /api/calls", s.handleListCalls)
	mux.HandleFunc("GET /ws", s.handleObserver)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("/", handleNotFound)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

// handleInboundSMS acknowledges the provider webhook immediately and
// processes the message asynchronously. The ack must never depend on
// the completion call finishing, or the provider retries the webhook
// and the user gets duplicate replies.
func (s *Server) handleInboundSMS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "unreadable form body"})
		return
	}

	msg := domain.InboundMessage{
		MessageSid: r.FormValue("MessageSid"),
		From:       r.FormValue("From"),
		Body:       r.FormValue("Body"),
		Timestamp:  time.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.engine.HandleInbound(ctx, msg)
	}()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "queued"})
}

// handleIncomingCall answers a voice webhook with instructions that
// connect the call's audio to our media stream endpoint.
func (s *Server) handleIncomingCall(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "unreadable form body", http.StatusBadRequest)
		return
	}
	caller := r.FormValue("From")

	w.Header().Set("Content-Type", "text/xml")
	if s.bridge == nil {
		w.Write([]byte(rejectTwiML()))
		return
	}
	w.Write([]byte(connectStreamTwiML(s.cfg.Server.PublicHost, caller)))
}

// handleMediaStream upgrades to WebSocket and hands the socket to the
// voice bridge for the lifetime of the call.
func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		http.Error(w, "voice is not enabled", http.StatusNotFound)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("media stream upgrade failed")
		return
	}
	s.bridge.HandleProvider(r.Context(), conn)
}

type checkLeadsRequest struct {
	Leads []domain.Lead `json:"leads"`
}

// handleCheckLeads starts outbound outreach for each submitted lead.
// Unlike the inbound webhook this runs synchronously: the caller is our
// own operator tooling and wants to know whether outreach went out.
func (s *Server) handleCheckLeads(w http.ResponseWriter, r *http.Request) {
	var req checkLeadsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "invalid_request",
			"message": "request body must be JSON",
			"details": err.Error(),
		})
		return
	}
	if len(req.Leads) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "invalid_request",
			"message": "leads is required",
		})
		return
	}

	if err := s.engine.StartLeadOutreach(r.Context(), req.Leads); err != nil {
		s.log.Error().Err(err).Int("leads", len(req.Leads)).Msg("lead outreach failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "outreach_failed",
			"message": "failed to start outreach",
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(req.Leads)})
}

// handleMessageStatus acknowledges delivery status callbacks and
// forwards them to the workflow engine best-effort.
func (s *Server) handleMessageStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false})
		return
	}

	status := domain.DeliveryStatus{
		MessageSid:    r.FormValue("MessageSid"),
		MessageStatus: r.FormValue("MessageStatus"),
		To:            r.FormValue("To"),
		ErrorCode:     r.FormValue("ErrorCode"),
	}
	s.log.Debug().
		Str("messageSid", status.MessageSid).
		Str("status", status.MessageStatus).
		Msg("delivery status received")

	if s.relay != nil {
		go s.relay.RelayEvent(context.Background(), notify.Envelope{
			Type:      "message.status",
			To:        status.To,
			Payload:   status,
			Timestamp: time.Now(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs := s.engine.Conversations()
	if convs == nil {
		convs = []domain.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	conv, ok := s.engine.Conversation(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	if s.callLog == nil {
		writeJSON(w, http.StatusOK, []store.CallRecord{})
		return
	}
	recs := s.callLog.ListCalls()
	if recs == nil {
		recs = []store.CallRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleObserver upgrades dashboard clients onto the broadcast hub.
func (s *Server) handleObserver(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("observer upgrade failed")
		return
	}
	s.hub.Attach(conn)
}

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	UptimeSec   int64  `json:"uptimeSec"`
	ActiveCalls int    `json:"activeCalls"`
	Observers   int    `json:"observers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Version:   s.version,
		UptimeSec: int64(time.Since(s.startedAt).Seconds()),
		Observers: s.hub.Count(),
	}
	if s.bridge != nil {
		resp.ActiveCalls = s.bridge.ActiveSessions()
	}
	writeJSON(w, http.StatusOK, resp)
}

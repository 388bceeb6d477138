package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxgate/voxgate/internal/domain"
	"github.com/voxgate/voxgate/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func TestDirectNotifier_SendReply(t *testing.T) {
	var gotPath, gotTo, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotTo = r.PostFormValue("To")
		gotBody = r.PostFormValue("Body")

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	n := NewDirectNotifier(DirectConfig{
		BaseURL:    srv.URL,
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+15550001111",
	}, testLogger())

	err := n.SendReply(context.Background(), domain.OutboundReply{
		To:   "+15551234567",
		Body: "Hello, how can I help?",
	})

	require.NoError(t, err)
	assert.Equal(t, "/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "+15551234567", gotTo)
	assert.Equal(t, "Hello, how can I help?", gotBody)
}

func TestDirectNotifier_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211}`))
	}))
	defer srv.Close()

	n := NewDirectNotifier(DirectConfig{
		BaseURL:    srv.URL,
		AccountSID: "AC123",
		AuthToken:  "secret",
	}, testLogger())

	err := n.SendReply(context.Background(), domain.OutboundReply{To: "bad"})

	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, http.StatusBadRequest, de.Status)
	assert.Contains(t, de.Body, "21211")
}

func TestRelayNotifier_SendReply(t *testing.T) {
	got := make(chan Envelope, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env Envelope
		require.NoError(t, decodeJSON(r, &env))
		got <- env
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewRelayNotifier(srv.URL, testLogger())
	err := n.SendReply(context.Background(), domain.OutboundReply{
		To:   "+15551234567",
		Body: "Hi there",
	})

	require.NoError(t, err)
	env := <-got
	assert.Equal(t, "message.reply", env.Type)
	assert.Equal(t, "+15551234567", env.To)
	assert.Equal(t, "Hi there", env.Body)
}

func TestRelayNotifier_SwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewRelayNotifier(srv.URL, testLogger())
	err := n.SendReply(context.Background(), domain.OutboundReply{To: "+1", Body: "x"})
	assert.NoError(t, err, "relay failures must never abort the turn")
}

func TestRelayNotifier_SwallowsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}))
	defer srv.Close()

	n := NewRelayNotifier(srv.URL, testLogger())
	n.client.Timeout = 50 * time.Millisecond

	err := n.SendReply(context.Background(), domain.OutboundReply{To: "+1", Body: "x"})
	assert.NoError(t, err)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

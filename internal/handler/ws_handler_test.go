package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatmesh/server/internal/config"
	"github.com/chatmesh/server/internal/domain"
	"github.com/chatmesh/server/internal/hub"
)

type call struct {
	name string
	arg  string
}

type recordingService struct {
	calls []call
	err   error
}

func (r *recordingService) record(name, arg string) error {
	r.calls = append(r.calls, call{name: name, arg: arg})
	return r.err
}

func (r *recordingService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &domain.User{ID: "u1", Username: "Alice"}, nil
}

func (r *recordingService) Connect(ctx context.Context, c *hub.Client) error {
	return r.record("connect", "")
}

func (r *recordingService) Disconnect(ctx context.Context, c *hub.Client) error {
	return r.record("disconnect", "")
}

func (r *recordingService) JoinConversation(ctx context.Context, c *hub.Client, conversationID string) error {
	return r.record("join", conversationID)
}

func (r *recordingService) LeaveConversation(ctx context.Context, c *hub.Client, conversationID string) error {
	return r.record("leave", conversationID)
}

func (r *recordingService) SendMessage(ctx context.Context, c *hub.Client, draft *domain.MessageDraft) error {
	return r.record("send", draft.ConversationID)
}

func (r *recordingService) MarkRead(ctx context.Context, c *hub.Client, messageID, conversationID string) error {
	return r.record("mark_read", messageID)
}

func (r *recordingService) MarkDelivered(ctx context.Context, c *hub.Client, messageID, conversationID string) error {
	return r.record("mark_delivered", messageID)
}

func (r *recordingService) Typing(ctx context.Context, c *hub.Client, conversationID string) error {
	return r.record("typing", conversationID)
}

func (r *recordingService) StopTyping(ctx context.Context, c *hub.Client, conversationID string) error {
	return r.record("stop_typing", conversationID)
}

func (r *recordingService) SubscribePresence(ctx context.Context, c *hub.Client, targetID string) error {
	return r.record("subscribe_presence", targetID)
}

func (r *recordingService) UnsubscribePresence(ctx context.Context, c *hub.Client, targetID string) error {
	return r.record("unsubscribe_presence", targetID)
}

func newTestHandler(svc *recordingService) (*WSHandler, *hub.Client) {
	h := hub.NewHub()
	handler := NewWSHandler(h, svc, config.WebSocketConfig{
		PingInterval:   25 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 65536,
	})
	client := hub.NewClient("conn-1", h, nil, config.WebSocketConfig{MaxMessageSize: 65536})
	client.Session.BeginAuth()
	client.Session.Activate(&domain.User{ID: "u1", Username: "Alice"})
	return handler, client
}

func lastEvent(t *testing.T, c *hub.Client) map[string]interface{} {
	t.Helper()
	select {
	case data := <-c.Send:
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	case <-time.After(time.Second):
		t.Fatal("no event queued")
		return nil
	}
}

func noEvent(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected event %s", data)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHandleEventDispatch(t *testing.T) {
	cases := []struct {
		raw      string
		wantCall call
	}{
		{`{"type":"join_conversation","conversationId":"c1"}`, call{"join", "c1"}},
		{`{"type":"leave_conversation","conversationId":"c1"}`, call{"leave", "c1"}},
		{`{"type":"new_message","conversationId":"c1","content":"hi"}`, call{"send", "c1"}},
		{`{"type":"message_read","messageId":"m1","conversationId":"c1"}`, call{"mark_read", "m1"}},
		{`{"type":"message_delivered","messageId":"m1","conversationId":"c1"}`, call{"mark_delivered", "m1"}},
		{`{"type":"typing","conversationId":"c1"}`, call{"typing", "c1"}},
		{`{"type":"stop_typing","conversationId":"c1"}`, call{"stop_typing", "c1"}},
		{`{"type":"subscribe_presence","userId":"u2"}`, call{"subscribe_presence", "u2"}},
		{`{"type":"unsubscribe_presence","userId":"u2"}`, call{"unsubscribe_presence", "u2"}},
	}

	for _, tc := range cases {
		svc := &recordingService{}
		handler, client := newTestHandler(svc)

		handler.handleEvent(client, []byte(tc.raw))

		require.Len(t, svc.calls, 1, "event %s", tc.raw)
		assert.Equal(t, tc.wantCall, svc.calls[0])
		noEvent(t, client)
	}
}

func TestHandleEventPing(t *testing.T) {
	svc := &recordingService{}
	handler, client := newTestHandler(svc)

	handler.handleEvent(client, []byte(`{"type":"ping"}`))

	ev := lastEvent(t, client)
	assert.Equal(t, domain.EvPong, ev["type"])
	assert.Empty(t, svc.calls)
}

func TestHandleEventUnknownType(t *testing.T) {
	svc := &recordingService{}
	handler, client := newTestHandler(svc)

	handler.handleEvent(client, []byte(`{"type":"no_such_event"}`))

	ev := lastEvent(t, client)
	assert.Equal(t, domain.EvError, ev["type"])
	assert.Equal(t, domain.ErrCodeBadRequest, ev["code"])
	assert.Empty(t, svc.calls)
}

func TestHandleEventMalformedJSON(t *testing.T) {
	svc := &recordingService{}
	handler, client := newTestHandler(svc)

	handler.handleEvent(client, []byte(`{not json`))

	ev := lastEvent(t, client)
	assert.Equal(t, domain.ErrCodeBadRequest, ev["code"])
}

func TestHandleEventServiceError(t *testing.T) {
	svc := &recordingService{err: domain.ErrAccessDenied}
	handler, client := newTestHandler(svc)

	handler.handleEvent(client, []byte(`{"type":"join_conversation","conversationId":"c1"}`))

	ev := lastEvent(t, client)
	assert.Equal(t, domain.EvError, ev["type"])
	assert.Equal(t, domain.ErrCodeAccessDenied, ev["code"])
}

func TestBearerToken(t *testing.T) {
	req := newRequest(t, "/ws?token=query-token")
	assert.Equal(t, "query-token", bearerToken(req))

	req = newRequest(t, "/ws")
	req.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", bearerToken(req))

	// Header wins over query parameter.
	req = newRequest(t, "/ws?token=query-token")
	req.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", bearerToken(req))

	req = newRequest(t, "/ws")
	assert.Empty(t, bearerToken(req))
}

func newRequest(t *testing.T, target string) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodGet, target, nil)
}

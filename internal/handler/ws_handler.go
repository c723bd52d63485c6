package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chatmesh/server/internal/audit"
	"github.com/chatmesh/server/internal/config"
	"github.com/chatmesh/server/internal/domain"
	"github.com/chatmesh/server/internal/hub"
	"github.com/chatmesh/server/internal/service"
	"github.com/chatmesh/server/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler owns the websocket endpoint and the per-connection
// lifecycle: upgrade, authenticate, activate, dispatch, teardown.
type WSHandler struct {
	hub     *hub.Hub
	service service.ChatService
	wsCfg   config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc service.ChatService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
	}
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", func(c *gin.Context) {
		h.HandleWebSocket(c.Writer, c.Request)
	})
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	client.Session.BeginAuth()

	// The token comes with the handshake; authentication failures are
	// reported once and then the transport closes, before the
	// connection ever goes active.
	user, err := h.service.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		audit.Log(r.Context(), audit.ActionAuthFailed, "", err.Error())
		h.rejectConn(conn, err)
		client.Session.Close()
		return
	}

	client.Session.Activate(user)
	h.hub.Register(client)

	go client.WritePump()

	if err := h.service.Connect(r.Context(), client); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str(log.FieldUserID, user.ID).Msg("failed to initialize connection")
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeInternalError, "failed to initialize connection"))
	}

	go func() {
		client.ReadPump(h.handleEvent)
		if err := h.service.Disconnect(context.Background(), client); err != nil {
			log.L().Warn().Err(err).Str(log.FieldClientID, client.ID).Msg("disconnect cleanup failed")
		}
	}()
}

// handleEvent decodes one inbound event and dispatches it. The event
// set is closed: unknown or malformed events produce an explicit error
// event instead of being dropped. A panic inside a handler is confined
// to the connection that triggered it.
func (h *WSHandler) handleEvent(client *hub.Client, message []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			log.L().Error().Interface("panic", rec).Str(log.FieldClientID, client.ID).Msg("panic in event handler")
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeInternalError, "internal error"))
		}
	}()

	var base domain.BaseEvent
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid event format"))
		return
	}

	ctx := context.Background()

	var err error
	switch base.Type {
	case domain.EvJoinConversation:
		var ev domain.ConversationEvent
		if err = decode(message, &ev, client); err == nil {
			err = h.service.JoinConversation(ctx, client, ev.ConversationID)
		}

	case domain.EvLeaveConversation:
		var ev domain.ConversationEvent
		if err = decode(message, &ev, client); err == nil {
			err = h.service.LeaveConversation(ctx, client, ev.ConversationID)
		}

	case domain.EvNewMessage:
		var ev domain.NewMessageEvent
		if err = decode(message, &ev, client); err == nil {
			err = h.service.SendMessage(ctx, client, &ev.MessageDraft)
		}

	case domain.EvMessageRead:
		var ev domain.MessageStatusRequest
		if err = decode(message, &ev, client); err == nil {
			err = h.service.MarkRead(ctx, client, ev.MessageID, ev.ConversationID)
		}

	case domain.EvMessageDelivered:
		var ev domain.MessageStatusRequest
		if err = decode(message, &ev, client); err == nil {
			err = h.service.MarkDelivered(ctx, client, ev.MessageID, ev.ConversationID)
		}

	case domain.EvTyping:
		var ev domain.ConversationEvent
		if err = decode(message, &ev, client); err == nil {
			err = h.service.Typing(ctx, client, ev.ConversationID)
		}

	case domain.EvStopTyping:
		var ev domain.ConversationEvent
		if err = decode(message, &ev, client); err == nil {
			err = h.service.StopTyping(ctx, client, ev.ConversationID)
		}

	case domain.EvSubscribePresence:
		var ev domain.PresenceTargetEvent
		if err = decode(message, &ev, client); err == nil {
			err = h.service.SubscribePresence(ctx, client, ev.UserID)
		}

	case domain.EvUnsubscribePresence:
		var ev domain.PresenceTargetEvent
		if err = decode(message, &ev, client); err == nil {
			err = h.service.UnsubscribePresence(ctx, client, ev.UserID)
		}

	case domain.EvPing:
		client.SendEvent(&domain.BaseEvent{Type: domain.EvPong})
		return

	default:
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "unknown event type"))
		return
	}

	if err != nil && err != errDecoded {
		log.L().Debug().Err(err).
			Str(log.FieldClientID, client.ID).
			Str(log.FieldEvent, base.Type).
			Msg("event failed")
		client.SendEvent(domain.ErrorEventFor(err))
	}
}

// decode unmarshals an inbound event, surfacing malformed payloads as a
// bad-request error on the wire.
func decode(message []byte, v interface{}, client *hub.Client) error {
	if err := json.Unmarshal(message, v); err != nil {
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid event payload"))
		return errDecoded
	}
	return nil
}

// errDecoded marks payloads whose error event was already sent.
var errDecoded = errDecodedType{}

type errDecodedType struct{}

func (errDecodedType) Error() string { return "malformed payload" }

// bearerToken extracts the token from the Authorization header or the
// token query parameter.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return r.URL.Query().Get("token")
}

// rejectConn writes one terminal error event and closes the transport.
func (h *WSHandler) rejectConn(conn *websocket.Conn, err error) {
	data, merr := json.Marshal(domain.ErrorEventFor(err))
	if merr == nil {
		conn.WriteMessage(websocket.TextMessage, data)
	}
	conn.Close()
}

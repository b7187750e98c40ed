package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"classroom-poll-service/internal/app"
	"classroom-poll-service/internal/domain"
	"classroom-poll-service/internal/metrics"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type WSHandler struct {
	classroom *app.Classroom
	hub       *Hub
	log       *slog.Logger
	upgrader  websocket.Upgrader
}

func NewWSHandler(classroom *app.Classroom, hub *Hub, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		classroom: classroom,
		hub:       hub,
		log:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	SessionID string `json:"sessionId"`
}

type answerPayload struct {
	PollID      string `json:"pollId"`
	Answer      string `json:"answer"`
	StudentName string `json:"studentName"`
}

type pollIDPayload struct {
	PollID string `json:"pollId"`
}

type kickPayload struct {
	SessionID string `json:"sessionId"`
}

// connState remembers who joined on this connection, for composing voter ids.
type connState struct {
	id          string
	sessionID   string
	displayName string
}

// ServeWS upgrades HTTP requests to websockets and wires them into the classroom.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connID, send := h.hub.Register()
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()
	h.log.Info("client connected", "conn_id", connID, "remote", r.RemoteAddr)

	writerDone := make(chan struct{})
	go h.writePump(conn, connID, send, writerDone)

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	state := &connState{id: connID}
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("ws read error", "conn_id", connID, "error", err)
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		h.dispatch(r.Context(), state, inbound)
	}

	h.classroom.Disconnect(context.Background(), connID)
	h.hub.Unregister(connID)
	<-writerDone
	h.log.Info("client disconnected", "conn_id", connID)
}

func (h *WSHandler) writePump(conn *websocket.Conn, connID string, send <-chan []byte, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				conn.Close()
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug("ws write error", "conn_id", connID, "error", err)
				conn.Close()
				drain(send)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				drain(send)
				return
			}
		}
	}
}

// drain discards queued messages until the hub closes the queue.
func drain(send <-chan []byte) {
	for range send {
	}
}

// dispatch handles one inbound message. A panic is logged and confined to that message.
func (h *WSHandler) dispatch(ctx context.Context, state *connState, in inboundMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error("panic in handler", "type", in.Type, "conn_id", state.id, "panic", rec)
		}
	}()
	metrics.MessagesReceived.WithLabelValues(metricLabel(in.Type)).Inc()

	switch in.Type {
	case domain.EventJoin:
		var p joinPayload
		if !h.decode(state, in, &p) {
			return
		}
		if err := h.classroom.Join(ctx, state.id, p.SessionID, p.Name, p.Role); err != nil {
			h.reject(state, "invalid join data")
			return
		}
		state.sessionID = p.SessionID
		state.displayName = p.Name

	case domain.EventPollStarted:
		var draft domain.PollDraft
		if !h.decode(state, in, &draft) {
			return
		}
		if _, err := h.classroom.StartPoll(ctx, draft); err != nil {
			h.reject(state, err.Error())
		}

	case domain.EventAnswer:
		var p answerPayload
		if !h.decode(state, in, &p) {
			return
		}
		voter := p.StudentName
		if voter == "" && state.sessionID != "" {
			voter = domain.VoterID(state.displayName, state.sessionID)
		}
		if voter == "" {
			h.reject(state, "answer without a voter")
			return
		}
		err := h.classroom.SubmitAnswerAs(ctx, p.PollID, p.Answer, voter)
		if errors.Is(err, domain.ErrUnknownOption) {
			h.reject(state, err.Error())
		}

	case domain.EventPollEnded:
		var p pollIDPayload
		if !h.decode(state, in, &p) {
			return
		}
		h.classroom.EndPoll(ctx, p.PollID)

	case domain.EventGetPollHistory:
		h.classroom.SendHistory(state.id)

	case domain.EventKickStudent:
		var p kickPayload
		if !h.decode(state, in, &p) {
			return
		}
		h.classroom.Kick(ctx, p.SessionID)

	case domain.EventChatMessage:
		var msg domain.ChatMessage
		if !h.decode(state, in, &msg) {
			return
		}
		if _, err := h.classroom.PostChat(ctx, msg.User, msg.Message); err != nil {
			h.reject(state, err.Error())
		}

	default:
		h.reject(state, "unsupported message type")
	}
}

func (h *WSHandler) decode(state *connState, in inboundMessage, dst any) bool {
	if err := json.Unmarshal(in.Payload, dst); err != nil {
		h.log.Warn("invalid payload", "type", in.Type, "conn_id", state.id, "error", err)
		h.reject(state, "invalid "+in.Type+" payload")
		return false
	}
	return true
}

func (h *WSHandler) reject(state *connState, message string) {
	h.hub.Send(state.id, domain.Event{Type: domain.EventError, Payload: domain.ErrorEvent{Message: message}})
}

func metricLabel(typ string) string {
	switch typ {
	case domain.EventJoin, domain.EventPollStarted, domain.EventAnswer, domain.EventPollEnded,
		domain.EventGetPollHistory, domain.EventKickStudent, domain.EventChatMessage:
		return typ
	}
	return "unknown"
}

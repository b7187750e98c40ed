package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classroom-poll-service/internal/app"
	"classroom-poll-service/internal/infra/memory"
	"github.com/gorilla/websocket"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) (*httptest.Server, *app.Classroom) {
	t.Helper()
	hub := NewHub(nil)
	classroom := app.NewClassroom(app.NewHistory(memory.NewBlobStore(), nil), hub)
	classroom.LoadHistory(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(classroom, hub, nil).ServeWS)
	mux.Handle("/history", NewHistoryHandler(classroom, nil))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, classroom
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil reads messages until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) envelope {
	t.Helper()
	for i := 0; i < 20; i++ {
		var msg envelope
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			return msg
		}
	}
	t.Fatalf("no %s message within 20 reads", want)
	return envelope{}
}

func TestWebSocketPollFlow(t *testing.T) {
	server, classroom := newTestServer(t)

	teacher := dial(t, server)
	send(t, teacher, "join", map[string]any{"name": "Ms T", "role": "teacher", "sessionId": "t1"})
	readUntil(t, teacher, "pollHistory")

	student := dial(t, server)
	send(t, student, "join", map[string]any{"name": "alice", "role": "student", "sessionId": "s1"})
	readUntil(t, student, "pollHistory")

	roster := readUntil(t, teacher, "userList")
	var students []map[string]string
	if err := json.Unmarshal(roster.Payload, &students); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	if len(students) != 1 || students[0]["name"] != "alice" || students[0]["sessionId"] != "s1" {
		t.Fatalf("unexpected roster %s", roster.Payload)
	}

	send(t, teacher, "pollStarted", map[string]any{
		"id": "p1", "question": "2 + 2?", "options": []string{"3", "4"}, "timeLimit": 30,
	})
	readUntil(t, student, "pollStarted")

	// studentName omitted: the handler composes it from the join
	send(t, student, "answerSubmitted", map[string]any{"pollId": "p1", "answer": "4"})
	answer := readUntil(t, teacher, "answerSubmitted")
	var delta map[string]string
	if err := json.Unmarshal(answer.Payload, &delta); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if delta["studentName"] != "alice:s1" || delta["answer"] != "4" {
		t.Fatalf("unexpected answer delta %v", delta)
	}

	send(t, teacher, "pollEnded", map[string]any{"pollId": "p1"})
	readUntil(t, student, "pollEnded")
	history := readUntil(t, student, "pollHistory")
	var polls []map[string]any
	if err := json.Unmarshal(history.Payload, &polls); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(polls) != 1 || polls[0]["id"] != "p1" {
		t.Fatalf("unexpected history %s", history.Payload)
	}
	if got := classroom.History()[0].Answers["4"]; got != 1 {
		t.Fatalf("expected 1 vote for 4, got %d", got)
	}
}

func TestWebSocketKickAndDisconnect(t *testing.T) {
	server, classroom := newTestServer(t)

	teacher := dial(t, server)
	send(t, teacher, "join", map[string]any{"name": "Ms T", "role": "teacher", "sessionId": "t1"})
	readUntil(t, teacher, "pollHistory")

	student := dial(t, server)
	send(t, student, "join", map[string]any{"name": "bob", "role": "student", "sessionId": "s2"})
	readUntil(t, student, "pollHistory")
	readUntil(t, teacher, "userList")

	send(t, teacher, "kickStudent", map[string]any{"sessionId": "s2"})
	kicked := readUntil(t, student, "kicked")
	if string(kicked.Payload) != `{"sessionId":"s2"}` {
		t.Fatalf("unexpected kicked payload %s", kicked.Payload)
	}
	readUntil(t, teacher, "userList")
	if len(classroom.Roster()) != 0 {
		t.Fatalf("expected empty roster after kick")
	}

	send(t, student, "join", map[string]any{"name": "bob", "role": "student", "sessionId": "s2"})
	readUntil(t, teacher, "userList")
	student.Close()

	deadline := time.Now().Add(5 * time.Second)
	for len(classroom.Roster()) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("student still registered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketRejectsMalformedInput(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server)

	send(t, conn, "join", map[string]any{"name": "", "role": "student", "sessionId": "s1"})
	readUntil(t, conn, "error")

	send(t, conn, "pollStarted", map[string]any{"question": "Q", "options": []string{"only"}, "timeLimit": 30})
	readUntil(t, conn, "error")

	send(t, conn, "nonsense", nil)
	msg := readUntil(t, conn, "error")
	if string(msg.Payload) != `{"message":"unsupported message type"}` {
		t.Fatalf("unexpected error payload %s", msg.Payload)
	}

	send(t, conn, "getPollHistory", nil)
	readUntil(t, conn, "pollHistory")
}

func TestWebSocketChatRelay(t *testing.T) {
	server, _ := newTestServer(t)
	a := dial(t, server)
	b := dial(t, server)

	// make sure both connections are registered before broadcasting
	send(t, a, "getPollHistory", nil)
	readUntil(t, a, "pollHistory")
	send(t, b, "getPollHistory", nil)
	readUntil(t, b, "pollHistory")

	send(t, a, "chatMessage", map[string]any{"message": "hi"})
	msg := readUntil(t, b, "chatMessage")
	if string(msg.Payload) != `{"user":"Anonymous","message":"hi"}` {
		t.Fatalf("unexpected chat payload %s", msg.Payload)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	server, classroom := newTestServer(t)
	ctx := context.Background()
	conn := dial(t, server)
	send(t, conn, "pollStarted", map[string]any{"id": "p1", "question": "Q", "options": []string{"A", "B"}, "timeLimit": 10})
	readUntil(t, conn, "pollStarted")
	classroom.EndPoll(ctx, "p1")

	resp, err := http.Get(server.URL + "/history")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var polls []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&polls); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(polls) != 1 || polls[0]["id"] != "p1" {
		t.Fatalf("unexpected history %v", polls)
	}

	post, err := http.Post(server.URL+"/history", "application/json", nil)
	if err != nil {
		t.Fatalf("post history: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", post.StatusCode)
	}
}

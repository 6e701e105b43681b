package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketStandingsFlow(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.token(t, "root", RoleAdmin)

	u := "ws" + srv.URL[len("http"):] + "/ws/standings?paperId=paper-1&token=" + admin
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect the initial snapshot first.
	_, payload := readNext(conn, t, "standings")
	if entries, _ := payload["entries"].([]any); len(entries) != 0 {
		t.Fatalf("expected empty board, got %v", entries)
	}

	resp, body := srv.do(t, http.MethodPost, "/api/exam/paper-1/submit", srv.token(t, "alice", RoleStudent), map[string]any{
		"answers": map[string]string{"q1": "o2", "q2": "f"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: %d %s", resp.StatusCode, body)
	}

	_, payload = readNext(conn, t, "standings")
	entries, _ := payload["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected one entry after submission, got %v", payload)
	}
	entry, _ := entries[0].(map[string]any)
	if entry["userId"] != "alice" || entry["rank"] != float64(1) || entry["percentage"] != float64(100) {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestWebSocketRequiresAdmin(t *testing.T) {
	srv := newTestServer(t)
	student := srv.token(t, "alice", RoleStudent)

	u := "ws" + srv.URL[len("http"):] + "/ws/standings?paperId=paper-1&token=" + student
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

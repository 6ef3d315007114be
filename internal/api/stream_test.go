package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/ciel-content/internal/view"
)

type streamFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) streamFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f streamFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func TestStreamPushesSnapshots(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.createSession()

	wsURL := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/v1/sessions/" + sid + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	first := readFrame(t, conn)
	if first.Type != "listing" {
		t.Fatalf("expected listing on connect, got %q", first.Type)
	}

	if err := conn.WriteJSON(StreamCommand{Type: "watch_article", ArticleID: "a1"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// the watched article is pushed once it has loaded
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		f := readFrame(t, conn)
		if f.Type != "article" {
			continue
		}
		var page view.ArticlePage
		if err := json.Unmarshal(f.Data, &page); err != nil {
			t.Fatalf("invalid article frame: %v", err)
		}
		if page.Article != nil && page.Article.ID == "a1" {
			return
		}
	}
	t.Fatal("watched article never arrived loaded")
}

func TestStreamPushKeepsSessionAlive(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.createSession()

	sess, err := ts.sessions.Get(context.Background(), sid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/v1/sessions/" + sid + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if f := readFrame(t, conn); f.Type != "listing" {
		t.Fatalf("expected listing on connect, got %q", f.Type)
	}
	connected := sess.UpdatedAt()

	time.Sleep(10 * time.Millisecond)
	sess.Notify()

	deadline := time.Now().Add(5 * time.Second)
	for !sess.UpdatedAt().After(connected) {
		if time.Now().After(deadline) {
			t.Fatalf("stream push did not mark the session as used since %v", connected)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

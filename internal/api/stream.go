package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/ciel-content/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamMessage is pushed to stream clients
type StreamMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// StreamCommand is sent by stream clients
type StreamCommand struct {
	Type      string `json:"type"`
	ArticleID string `json:"article_id,omitempty"`
}

// watchList is the set of article pages a stream client follows
type watchList struct {
	mu  sync.Mutex
	ids map[string]bool
}

func (l *watchList) set(id string, on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if on {
		l.ids[id] = true
	} else {
		delete(l.ids, id)
	}
}

func (l *watchList) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.ids))
	for id := range l.ids {
		ids = append(ids, id)
	}
	return ids
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	signals, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	slog.Info("stream connected", "session_id", sess.ID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	watched := &watchList{ids: make(map[string]bool)}

	var wg sync.WaitGroup

	// Read commands from the client
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}

			var cmd StreamCommand
			if err := json.Unmarshal(message, &cmd); err != nil {
				slog.Debug("invalid stream command", "error", err)
				continue
			}

			switch cmd.Type {
			case "watch_article":
				if cmd.ArticleID == "" {
					continue
				}
				watched.set(cmd.ArticleID, true)
				go func(id string) {
					if err := sess.Article(id).Load(ctx); err != nil {
						slog.Debug("watched article load failed", "article_id", id, "error", err)
					}
				}(cmd.ArticleID)
				sess.Notify()
			case "unwatch_article":
				watched.set(cmd.ArticleID, false)
			}
		}
	}()

	// Push snapshots; this is the connection's only writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()

		if err := s.sendSnapshots(conn, sess, watched); err != nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					s.sendStreamMessage(conn, StreamMessage{Type: "closed", Data: "session closed"})
					conn.Close()
					return
				}
				if err := s.sendSnapshots(conn, sess, watched); err != nil {
					return
				}
			}
		}
	}()

	<-ctx.Done()
	// unblock the reader
	conn.Close()
	wg.Wait()
	slog.Info("stream disconnected", "session_id", sess.ID)
}

// sendSnapshots pushes the listing and every watched article. A push counts
// as use, so a visitor who only holds a stream open does not go idle.
func (s *Server) sendSnapshots(conn *websocket.Conn, sess *session.Session, watched *watchList) error {
	sess.Touch()
	if err := s.sendStreamMessage(conn, StreamMessage{Type: "listing", Data: sess.Listing()}); err != nil {
		return err
	}
	for _, id := range watched.list() {
		if err := s.sendStreamMessage(conn, StreamMessage{Type: "article", Data: sess.ArticlePage(id)}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) sendStreamMessage(conn *websocket.Conn, msg StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal stream message", "error", err)
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send stream message", "error", err)
		return err
	}
	return nil
}

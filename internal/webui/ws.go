package webui

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kayz/kidsearch/internal/logger"
	"github.com/kayz/kidsearch/internal/render"
	"github.com/kayz/kidsearch/internal/search"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 15 * time.Second
)

type wsRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Q    string `json:"q"`
	Kind string `json:"kind"`
	Page int    `json:"page"`
	Sort string `json:"sort"`
	Lang string `json:"lang"`
}

type wsResponse struct {
	Type       string                     `json:"type"`
	ID         string                     `json:"id,omitempty"`
	Generation uint64                     `json:"generation,omitempty"`
	Data       *search.AggregatedResponse `json:"data,omitempty"`
	Message    string                     `json:"message,omitempty"`
}

// wsClient is one browser tab. Its session guarantees that only the answer
// to the latest query is ever sent.
type wsClient struct {
	id      string
	conn    *websocket.Conn
	session *search.Session
	mu      sync.Mutex
}

func (c *wsClient) send(msg wsResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(msg)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("[Serve] websocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		id:      uuid.New().String(),
		conn:    conn,
		session: search.NewSession(s.engine),
	}
	ctx, cancel := context.WithCancel(context.Background())
	logger.Debug("[Serve] websocket client connected: %s", client.id)

	defer func() {
		cancel()
		client.session.Close()
		conn.Close()
		logger.Debug("[Serve] websocket client disconnected: %s", client.id)
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				client.mu.Lock()
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				err := conn.WriteMessage(websocket.PingMessage, nil)
				client.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("[Serve] websocket read error: %v", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(message, &req); err != nil {
			_ = client.send(wsResponse{Type: "error", Message: "invalid message"})
			continue
		}

		switch req.Type {
		case "search":
			go s.runSocketSearch(ctx, client, req)
		case "ping":
			_ = client.send(wsResponse{Type: "pong", ID: req.ID})
		default:
			_ = client.send(wsResponse{Type: "error", ID: req.ID, Message: "unknown message type"})
		}
	}
}

func (s *Server) runSocketSearch(ctx context.Context, client *wsClient, req wsRequest) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	resp, gen, err := client.session.Search(ctx, search.Request{
		Query: req.Q,
		Kind:  search.ParseKind(req.Kind),
		Page:  page,
		Sort:  req.Sort,
		Lang:  req.Lang,
	})
	if err != nil {
		if render.IsQuiet(err) {
			logger.Trace("[Serve] dropped superseded query %q (generation %d)", req.Q, gen)
			return
		}
		_ = client.send(wsResponse{Type: "error", ID: req.ID, Generation: gen, Message: render.FriendlyError(err, s.lang(req.Lang))})
		return
	}
	if err := client.send(wsResponse{Type: "results", ID: req.ID, Generation: gen, Data: resp}); err != nil {
		logger.Debug("[Serve] websocket write to %s failed: %v", client.id, err)
	}
}

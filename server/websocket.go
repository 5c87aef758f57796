package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/xhad/docchat/pkg/chat"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the HTTP routes allow any origin too
	},
}

// Message is the websocket frame in both directions. Clients send
// {"type":"chat","content":"..."}; the server answers with "status",
// "response" or "error" frames.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type replyData struct {
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Context string `json:"context_used,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one writer at a time.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &wsConn{conn: conn}
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("error reading websocket message", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendWS(c, Message{Type: "error", Content: "invalid message"})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleWSMessage(r, c, msg)
		}()
	}
}

func (s *Server) handleWSMessage(r *http.Request, c *wsConn, msg Message) {
	if msg.Type != "chat" {
		s.sendWS(c, Message{Type: "error", Content: "unsupported message type: " + msg.Type})
		return
	}
	if msg.Content == "" {
		s.sendWS(c, Message{Type: "error", Content: "message is required"})
		return
	}

	s.sendWS(c, Message{Type: "status", Content: "Searching documents..."})

	result := s.chat.Chat(r.Context(), chat.Request{Message: msg.Content})

	s.sendWS(c, Message{
		Type:    "response",
		Content: result.Reply.Text,
		Data: replyData{
			Status:  result.Reply.Status.String(),
			Reason:  string(result.Reply.Reason),
			Context: contextPreview(result.Context),
		},
	})
}

func (s *Server) sendWS(c *wsConn, msg Message) {
	if err := c.send(msg); err != nil {
		s.logger.Warn("error sending websocket message", zap.Error(err))
	}
}

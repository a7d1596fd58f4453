package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"doubtiq-go/internal/service"
	"doubtiq-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ChatStreamHandler streams AI replies for one chat over a websocket. Each
// inbound text frame is a user message; the reply is sent as {"chunk": ...}
// frames followed by a completion frame.
type ChatStreamHandler struct {
	chatService service.ChatService
	upgrader    websocket.Upgrader
}

// NewChatStreamHandler accepts upgrades from allowedOrigin and from clients
// that send no Origin header.
func NewChatStreamHandler(chatService service.ChatService, allowedOrigin string) *ChatStreamHandler {
	return &ChatStreamHandler{
		chatService: chatService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r.Header.Get("Origin"), allowedOrigin)
			},
		},
	}
}

func originAllowed(origin, allowed string) bool {
	if origin == "" || allowed == "*" {
		return true
	}
	o, err := url.Parse(origin)
	if err != nil {
		return false
	}
	a, err := url.Parse(allowed)
	if err != nil {
		return false
	}
	return strings.EqualFold(o.Scheme, a.Scheme) && strings.EqualFold(o.Host, a.Host)
}

type streamRequest struct {
	Message string `json:"message"`
}

// Handle serves GET /chat/:id/stream. Ownership is checked before the upgrade.
func (h *ChatStreamHandler) Handle(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	chatID, ok := idParam(c, "id", "Chat not found")
	if !ok {
		return
	}
	if _, err := h.chatService.GetChat(c.Request.Context(), user.ID, chatID); err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", err)
		return
	}
	defer conn.Close()
	log.Infow("websocket connection established", "userId", user.ID, "chatId", chatID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("failed to read websocket message: %v", err)
			}
			return
		}

		text := string(message)
		if strings.HasPrefix(strings.TrimSpace(text), "{") {
			var req streamRequest
			if err := json.Unmarshal(message, &req); err == nil {
				text = req.Message
			}
		}

		writer := &chunkWriter{conn: conn}
		if _, err := h.chatService.StreamMessage(c.Request.Context(), user.ID, chatID, text, writer); err != nil {
			_, msg := statusFor(err)
			log.Errorw("stream response failed", "chatId", chatID, "error", err)
			writeJSON(conn, gin.H{"error": msg})
		}
		sendCompletion(conn)
	}
}

// chunkWriter wraps each raw chunk as {"chunk": "..."}.
type chunkWriter struct {
	conn *websocket.Conn
}

func (w *chunkWriter) WriteMessage(messageType int, data []byte) error {
	b, err := json.Marshal(map[string]string{"chunk": string(data)})
	if err != nil {
		return err
	}
	return w.conn.WriteMessage(messageType, b)
}

func sendCompletion(conn *websocket.Conn) {
	now := time.Now()
	writeJSON(conn, gin.H{
		"type":      "completion",
		"status":    "finished",
		"message":   "Response complete",
		"timestamp": now.UnixMilli(),
		"date":      now.Format("2006-01-02T15:04:05"),
	})
}

func writeJSON(conn *websocket.Conn, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

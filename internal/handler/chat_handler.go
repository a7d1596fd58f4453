package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"doubtiq-go/internal/service"
	"doubtiq-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ChatHandler serves the REST side of chats. Messages may be sent as JSON
// or as multipart forms carrying a "file" part.
type ChatHandler struct {
	chatService    service.ChatService
	maxUploadBytes int64
}

func NewChatHandler(chatService service.ChatService, maxUploadBytes int64) *ChatHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = service.DefaultMaxAttachmentBytes
	}
	return &ChatHandler{chatService: chatService, maxUploadBytes: maxUploadBytes}
}

type messageRequest struct {
	Message string `json:"message"`
}

type renameRequest struct {
	Title string `json:"title"`
}

// CreateChat handles POST /chat/new.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	in, ok := h.readInput(c)
	if !ok {
		return
	}

	chat, err := h.chatService.CreateChat(c.Request.Context(), user.ID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

// ListChats handles GET /chat/history.
func (h *ChatHandler) ListChats(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	chats, err := h.chatService.ListChats(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

func (h *ChatHandler) GetChat(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	chatID, ok := idParam(c, "id", "Chat not found")
	if !ok {
		return
	}
	chat, err := h.chatService.GetChat(c.Request.Context(), user.ID, chatID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// SendMessage handles POST /chat/:id/message.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	chatID, ok := idParam(c, "id", "Chat not found")
	if !ok {
		return
	}
	in, ok := h.readInput(c)
	if !ok {
		return
	}

	chat, err := h.chatService.SendMessage(c.Request.Context(), user.ID, chatID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) RenameChat(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	chatID, ok := idParam(c, "id", "Chat not found")
	if !ok {
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Title is required")
		return
	}

	chat, err := h.chatService.RenameChat(c.Request.Context(), user.ID, chatID, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) DeleteChat(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	chatID, ok := idParam(c, "id", "Chat not found")
	if !ok {
		return
	}
	if err := h.chatService.DeleteChat(c.Request.Context(), user.ID, chatID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat deleted successfully", "id": chatID})
}

// AttachmentURL handles GET /chat/:id/messages/:messageId/attachment.
func (h *ChatHandler) AttachmentURL(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	chatID, ok := idParam(c, "id", "Chat not found")
	if !ok {
		return
	}
	messageID, ok := idParam(c, "messageId", "Attachment not found")
	if !ok {
		return
	}

	url, err := h.chatService.AttachmentURL(c.Request.Context(), user.ID, chatID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "url": url})
}

// readInput collects the message text and optional file from a JSON body or
// a multipart form. An empty body is a valid, empty input.
func (h *ChatHandler) readInput(c *gin.Context) (service.MessageInput, bool) {
	var in service.MessageInput
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var req messageRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			if h.tooLarge(c, err) {
				return in, false
			}
			badRequest(c, "Invalid request body")
			return in, false
		}
		in.Text = req.Message
		return in, true
	}

	in.Text = c.PostForm("message")
	fileHeader, err := c.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, true
	case err != nil:
		if h.tooLarge(c, err) {
			return in, false
		}
		log.Warnf("failed to read multipart upload: %v", err)
		badRequest(c, "Invalid file upload")
		return in, false
	}
	if fileHeader.Size > h.maxUploadBytes {
		h.fileTooLarge(c)
		return in, false
	}

	f, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "Invalid file upload")
		return in, false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		badRequest(c, "Invalid file upload")
		return in, false
	}
	in.File = &service.Attachment{
		Name:        fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}
	return in, true
}

func (h *ChatHandler) tooLarge(c *gin.Context, err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		h.fileTooLarge(c)
		return true
	}
	return false
}

func (h *ChatHandler) fileTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"code":    http.StatusRequestEntityTooLarge,
		"message": fmt.Sprintf("File too large (max %d MB)", h.maxUploadBytes>>20),
	})
}

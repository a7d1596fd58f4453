package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"doubtiq-go/internal/model"
	"doubtiq-go/internal/repository"
	"doubtiq-go/pkg/llm"
	"doubtiq-go/pkg/log"
	"doubtiq-go/pkg/storage"
)

const attachmentURLExpiry = 15 * time.Minute

// TextExtractor pulls plain text out of a document.
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error)
}

// AttachmentArchive keeps a copy of uploaded files.
type AttachmentArchive interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// MessageInput is what a user sends: free text, a file, or both.
type MessageInput struct {
	Text string
	File *Attachment
}

// ChatService manages chats and the AI exchange inside them.
type ChatService interface {
	CreateChat(ctx context.Context, userID uint, in MessageInput) (*model.Chat, error)
	ListChats(ctx context.Context, userID uint) ([]model.ChatSummary, error)
	GetChat(ctx context.Context, userID, chatID uint) (*model.Chat, error)
	SendMessage(ctx context.Context, userID, chatID uint, in MessageInput) (*model.Chat, error)
	// StreamMessage is SendMessage for text over a websocket: the reply is
	// forwarded to writer chunk by chunk before it is persisted.
	StreamMessage(ctx context.Context, userID, chatID uint, text string, writer llm.MessageWriter) (*model.Chat, error)
	RenameChat(ctx context.Context, userID, chatID uint, title string) (*model.Chat, error)
	DeleteChat(ctx context.Context, userID, chatID uint) error
	AttachmentURL(ctx context.Context, userID, chatID, messageID uint) (string, error)
}

// ChatOptions tunes a ChatService. Zero values fall back to defaults.
type ChatOptions struct {
	AITimeout          time.Duration
	MaxAttachmentBytes int64
	DefaultPDFPrompt   string
	DefaultImagePrompt string
	Now                func() time.Time
}

type chatService struct {
	chatRepo  repository.ChatRepository
	llmClient llm.Client
	extractor TextExtractor
	archive   AttachmentArchive
	opts      ChatOptions
}

// NewChatService creates a ChatService. extractor and archive may be nil.
func NewChatService(chatRepo repository.ChatRepository, llmClient llm.Client, extractor TextExtractor, archive AttachmentArchive, opts ChatOptions) ChatService {
	if opts.MaxAttachmentBytes <= 0 {
		opts.MaxAttachmentBytes = DefaultMaxAttachmentBytes
	}
	if opts.DefaultPDFPrompt == "" {
		opts.DefaultPDFPrompt = "Please analyze this document and explain its content."
	}
	if opts.DefaultImagePrompt == "" {
		opts.DefaultImagePrompt = "Please analyze this image and explain what you see."
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &chatService{
		chatRepo:  chatRepo,
		llmClient: llmClient,
		extractor: extractor,
		archive:   archive,
		opts:      opts,
	}
}

// turn is a validated MessageInput.
type turn struct {
	text string
	file *Attachment
	kind attachmentKind
	mime string
}

func (t *turn) empty() bool {
	return t.text == "" && t.file == nil
}

func (s *chatService) prepare(in MessageInput) (*turn, error) {
	t := &turn{text: strings.TrimSpace(in.Text), file: in.File}
	if t.file == nil {
		return t, nil
	}
	if len(t.file.Data) == 0 {
		return nil, newError(ErrValidation, "Uploaded file is empty", nil)
	}
	if int64(len(t.file.Data)) > s.opts.MaxAttachmentBytes {
		return nil, newError(ErrValidation, fmt.Sprintf("File too large (max %d MB)", s.opts.MaxAttachmentBytes>>20), nil)
	}
	t.kind, t.mime = t.file.classify()
	if t.kind == kindNone {
		return nil, newError(ErrValidation, "Unsupported file type. Upload a PDF or an image", nil)
	}
	return t, nil
}

// CreateChat creates a chat and, when the input carries a message or a
// file, runs the first exchange before returning.
func (s *chatService) CreateChat(ctx context.Context, userID uint, in MessageInput) (*model.Chat, error) {
	t, err := s.prepare(in)
	if err != nil {
		return nil, err
	}

	chat := &model.Chat{UserID: userID, Title: model.DefaultChatTitle, Messages: []model.Message{}}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	if t.empty() {
		return chat, nil
	}
	return s.exchange(ctx, chat, t)
}

func (s *chatService) ListChats(ctx context.Context, userID uint) ([]model.ChatSummary, error) {
	summaries, err := s.chatRepo.ListSummaries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return summaries, nil
}

func (s *chatService) GetChat(ctx context.Context, userID, chatID uint) (*model.Chat, error) {
	chat, err := s.chatRepo.FindForUser(ctx, chatID, userID)
	if err != nil {
		return nil, chatLookupError(err)
	}
	return chat, nil
}

// SendMessage appends a user turn and the AI reply. The user turn is
// committed before the AI is called, so an AI failure leaves it in place.
func (s *chatService) SendMessage(ctx context.Context, userID, chatID uint, in MessageInput) (*model.Chat, error) {
	t, err := s.prepare(in)
	if err != nil {
		return nil, err
	}
	if t.empty() {
		return nil, newError(ErrValidation, "Message is required", nil)
	}

	chat, err := s.chatRepo.FindForUser(ctx, chatID, userID)
	if err != nil {
		return nil, chatLookupError(err)
	}
	return s.exchange(ctx, chat, t)
}

func (s *chatService) exchange(ctx context.Context, chat *model.Chat, t *turn) (*model.Chat, error) {
	if err := s.appendUserTurn(ctx, chat, t); err != nil {
		return nil, err
	}

	reply, err := s.dispatch(ctx, t)
	if err != nil {
		log.Errorw("ai dispatch failed", "chatId", chat.ID, "error", err)
		return nil, err
	}
	return s.appendReply(ctx, chat, reply)
}

func (s *chatService) appendUserTurn(ctx context.Context, chat *model.Chat, t *turn) error {
	msg := &model.Message{
		Role:      model.MessageRoleUser,
		Content:   t.text,
		Timestamp: s.opts.Now(),
	}
	var fileName string
	if t.file != nil {
		fileName = t.file.Name
		msg.FileAttachment = fileName
		if msg.Content == "" {
			msg.Content = s.defaultPrompt(t.kind)
		}
		if t.kind == kindImage {
			msg.Image = dataURL(t.mime, t.file.Data)
		}
		msg.AttachmentKey = s.archiveFile(ctx, chat.ID, t)
	}

	if len(chat.Messages) == 0 && chat.Title == model.DefaultChatTitle {
		chat.Title = deriveTitle(t.text, fileName)
	}
	if err := s.chatRepo.AppendMessages(ctx, chat, msg); err != nil {
		return fmt.Errorf("save user message: %w", err)
	}
	return nil
}

func (s *chatService) appendReply(ctx context.Context, chat *model.Chat, reply string) (*model.Chat, error) {
	msg := &model.Message{
		Role:      model.MessageRoleAI,
		Content:   reply,
		Timestamp: s.opts.Now(),
	}
	if err := s.chatRepo.AppendMessages(ctx, chat, msg); err != nil {
		return nil, fmt.Errorf("save ai message: %w", err)
	}
	return chat, nil
}

// archiveFile stores a copy of the upload and returns its key. Failures are
// logged and yield an empty key.
func (s *chatService) archiveFile(ctx context.Context, chatID uint, t *turn) string {
	if s.archive == nil {
		return ""
	}
	key := storage.ObjectKey(chatID, t.file.Name)
	if err := s.archive.Put(ctx, key, bytes.NewReader(t.file.Data), int64(len(t.file.Data)), t.mime); err != nil {
		log.Errorw("failed to archive attachment", "chatId", chatID, "file", t.file.Name, "error", err)
		return ""
	}
	return key
}

func (s *chatService) defaultPrompt(kind attachmentKind) string {
	if kind == kindImage {
		return s.opts.DefaultImagePrompt
	}
	return s.opts.DefaultPDFPrompt
}

func (s *chatService) promptOr(text string, kind attachmentKind) string {
	if text != "" {
		return text
	}
	return s.defaultPrompt(kind)
}

// dispatch routes the turn to the right AI call: PDFs are converted to text
// first, images go to the vision model, plain text goes straight through.
func (s *chatService) dispatch(ctx context.Context, t *turn) (string, error) {
	aiCtx, cancel := withTimeout(ctx, s.opts.AITimeout)
	defer cancel()

	var (
		reply string
		err   error
	)
	switch t.kind {
	case kindPDF:
		if s.extractor == nil {
			return "", newError(ErrConfiguration, "PDF extraction is not configured", nil)
		}
		text, extractErr := s.extractor.ExtractText(aiCtx, bytes.NewReader(t.file.Data), t.file.Name)
		if extractErr != nil {
			return "", newError(ErrUpstream, "Failed to read the PDF", extractErr)
		}
		prompt := s.promptOr(t.text, kindPDF) + "\n\nDocument content:\n" + truncateRunes(text, maxDocumentRunes)
		reply, err = s.llmClient.Complete(aiCtx, prompt)
	case kindImage:
		reply, err = s.llmClient.CompleteVision(aiCtx, s.promptOr(t.text, kindImage), dataURL(t.mime, t.file.Data))
	default:
		reply, err = s.llmClient.Complete(aiCtx, t.text)
	}
	if err != nil {
		return "", aiError(err)
	}
	return reply, nil
}

func (s *chatService) StreamMessage(ctx context.Context, userID, chatID uint, text string, writer llm.MessageWriter) (*model.Chat, error) {
	t := &turn{text: strings.TrimSpace(text)}
	if t.empty() {
		return nil, newError(ErrValidation, "Message is required", nil)
	}
	chat, err := s.chatRepo.FindForUser(ctx, chatID, userID)
	if err != nil {
		return nil, chatLookupError(err)
	}
	if err := s.appendUserTurn(ctx, chat, t); err != nil {
		return nil, err
	}

	aiCtx, cancel := withTimeout(ctx, s.opts.AITimeout)
	defer cancel()
	recorder := &streamRecorder{next: writer}
	if err := s.llmClient.StreamChat(aiCtx, t.text, recorder); err != nil {
		log.Errorw("ai stream failed", "chatId", chat.ID, "error", err)
		return nil, aiError(err)
	}
	return s.appendReply(ctx, chat, recorder.answer.String())
}

func (s *chatService) RenameChat(ctx context.Context, userID, chatID uint, title string) (*model.Chat, error) {
	if strings.TrimSpace(title) == "" {
		return nil, newError(ErrValidation, "Title is required", nil)
	}
	title = truncateRunes(sanitizeTitle(title), maxTitleRunes)
	if title == "" {
		return nil, newError(ErrValidation, "Title must contain text", nil)
	}
	if err := s.chatRepo.UpdateTitle(ctx, chatID, userID, title); err != nil {
		return nil, chatLookupError(err)
	}
	return s.GetChat(ctx, userID, chatID)
}

func (s *chatService) DeleteChat(ctx context.Context, userID, chatID uint) error {
	if err := s.chatRepo.Delete(ctx, chatID, userID); err != nil {
		return chatLookupError(err)
	}
	return nil
}

// AttachmentURL returns a short-lived download link for an archived upload.
func (s *chatService) AttachmentURL(ctx context.Context, userID, chatID, messageID uint) (string, error) {
	if s.archive == nil {
		return "", newError(ErrConfiguration, "Attachment storage is not enabled", ErrDisabled)
	}
	chat, err := s.GetChat(ctx, userID, chatID)
	if err != nil {
		return "", err
	}
	for _, m := range chat.Messages {
		if m.ID == messageID && m.AttachmentKey != "" {
			url, err := s.archive.PresignedURL(ctx, m.AttachmentKey, attachmentURLExpiry)
			if err != nil {
				return "", newError(ErrUpstream, "Failed to sign attachment URL", err)
			}
			return url, nil
		}
	}
	return "", newError(ErrNotFound, "Attachment not found", nil)
}

func chatLookupError(err error) error {
	if errors.Is(err, repository.ErrChatNotFound) {
		return newError(ErrNotFound, "Chat not found", nil)
	}
	return fmt.Errorf("load chat: %w", err)
}

// aiError classifies a failure from the AI collaborator.
func aiError(err error) error {
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		return newError(ErrConfiguration, "AI service is not configured", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(ErrUpstream, "AI service timed out", err)
	default:
		return newError(ErrUpstream, "AI service error", err)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// streamRecorder forwards chunks and keeps a copy of the full answer.
type streamRecorder struct {
	next   llm.MessageWriter
	answer strings.Builder
}

func (w *streamRecorder) WriteMessage(messageType int, data []byte) error {
	w.answer.Write(data)
	return w.next.WriteMessage(messageType, data)
}

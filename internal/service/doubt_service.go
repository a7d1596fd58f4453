package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"doubtiq-go/internal/model"
	"doubtiq-go/internal/repository"
	"doubtiq-go/pkg/llm"
	"doubtiq-go/pkg/log"
)

const (
	doubtHistoryLimit = 50
	doubtSearchSize   = 10
)

// DoubtIndex is the full-text index over answered doubts.
type DoubtIndex interface {
	Index(ctx context.Context, doubt *model.Doubt) error
	Search(ctx context.Context, userID uint, query string, size int) ([]model.DoubtHit, error)
}

// DoubtService answers standalone questions outside of any chat.
type DoubtService interface {
	AskDoubt(ctx context.Context, userID uint, question string) (*model.Doubt, error)
	History(ctx context.Context, userID uint) ([]model.Doubt, error)
	Search(ctx context.Context, userID uint, query string) ([]model.DoubtHit, error)
}

type doubtService struct {
	doubtRepo repository.DoubtRepository
	llmClient llm.Client
	index     DoubtIndex
	aiTimeout time.Duration
}

// NewDoubtService creates a DoubtService. index may be nil when search is disabled.
func NewDoubtService(doubtRepo repository.DoubtRepository, llmClient llm.Client, index DoubtIndex, aiTimeout time.Duration) DoubtService {
	return &doubtService{
		doubtRepo: doubtRepo,
		llmClient: llmClient,
		index:     index,
		aiTimeout: aiTimeout,
	}
}

func (s *doubtService) AskDoubt(ctx context.Context, userID uint, question string) (*model.Doubt, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, newError(ErrValidation, "Question is required", nil)
	}

	aiCtx, cancel := withTimeout(ctx, s.aiTimeout)
	answer, err := s.llmClient.Complete(aiCtx, question)
	cancel()
	if err != nil {
		log.Errorw("ai call for doubt failed", "userId", userID, "error", err)
		return nil, aiError(err)
	}

	doubt := &model.Doubt{UserID: userID, Question: question, Answer: answer}
	if err := s.doubtRepo.Create(ctx, doubt); err != nil {
		return nil, fmt.Errorf("save doubt: %w", err)
	}

	if s.index != nil {
		if err := s.index.Index(ctx, doubt); err != nil {
			log.Errorw("failed to index doubt", "doubtId", doubt.ID, "error", err)
		}
	}
	return doubt, nil
}

func (s *doubtService) History(ctx context.Context, userID uint) ([]model.Doubt, error) {
	doubts, err := s.doubtRepo.ListByUser(ctx, userID, doubtHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("list doubts: %w", err)
	}
	return doubts, nil
}

func (s *doubtService) Search(ctx context.Context, userID uint, query string) ([]model.DoubtHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, newError(ErrValidation, "Search query is required", nil)
	}
	if s.index == nil {
		return nil, newError(ErrConfiguration, "Doubt search is not enabled", ErrDisabled)
	}
	hits, err := s.index.Search(ctx, userID, query, doubtSearchSize)
	if err != nil {
		return nil, newError(ErrUpstream, "Search failed", err)
	}
	return hits, nil
}

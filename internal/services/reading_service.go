package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tarot-api/internal/cards"
	"tarot-api/internal/logger"
	"tarot-api/internal/models"
	apperrors "tarot-api/internal/pkg/errors"
	"tarot-api/internal/repository"

	"github.com/sirupsen/logrus"
)

const spreadSize = 3

// LLMClient is the slice of the chat client the reading flow needs.
type LLMClient interface {
	Complete(ctx context.Context, prompt string, temperature float32) (string, error)
	RepairWithModel(ctx context.Context, rawText string) (map[string]interface{}, error)
}

type ReadingRequest struct {
	Identity  string            `json:"uid"`
	Question  string            `json:"question"`
	Topic     string            `json:"topic"`
	Tone      string            `json:"tone"`
	Followups map[string]string `json:"followups"`
}

type ReadingResult struct {
	Tier    models.ReadingTier     `json:"tier"`
	Cards   []cards.DrawnCard      `json:"cards"`
	Reading map[string]interface{} `json:"reading"`
}

type ReadingService interface {
	GenerateReading(ctx context.Context, req ReadingRequest) (*ReadingResult, error)
	History(ctx context.Context, identity string, limit int) ([]*models.Reading, error)
}

type readingService struct {
	ledger LedgerService
	repo   repository.LedgerRepository
	llm    LLMClient
	deck   *cards.Deck
	cache  CacheService
}

func NewReadingService(ledger LedgerService, repo repository.LedgerRepository, llmClient LLMClient, deck *cards.Deck, cache CacheService) ReadingService {
	return &readingService{
		ledger: ledger,
		repo:   repo,
		llm:    llmClient,
		deck:   deck,
		cache:  cache,
	}
}

// GenerateReading draws a three-card spread and produces either a deep
// reading (spending one credit) or a free one (spending today's
// quota). Credits are preferred when the identity holds any: the user
// paid for the richer output. A deep credit is consumed before the
// model call so two tabs cannot both spend the same credit; the free
// counter is bumped after a successful generation so a model failure
// does not burn the day's quota.
func (s *readingService) GenerateReading(ctx context.Context, req ReadingRequest) (*ReadingResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, apperrors.ErrInvalidInput
	}

	balance, err := s.ledger.GetCreditBalance(ctx, req.Identity)
	if err != nil {
		return nil, err
	}

	if balance > 0 {
		return s.generateDeep(ctx, req)
	}

	ok, err := s.ledger.CanUseFree(ctx, req.Identity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrQuotaExceeded
	}

	return s.generateFree(ctx, req)
}

func (s *readingService) generateDeep(ctx context.Context, req ReadingRequest) (*ReadingResult, error) {
	ok, err := s.ledger.ConsumeCredits(ctx, req.Identity, 1)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrInsufficientCredit
	}

	drawn := s.deck.Draw(spreadSize)
	reading, err := s.complete(ctx, buildDeepPrompt(req, drawn), 0.45)
	if err != nil {
		return nil, err
	}

	s.record(ctx, req, models.DeepTier, drawn, reading)
	return &ReadingResult{Tier: models.DeepTier, Cards: drawn, Reading: reading}, nil
}

func (s *readingService) generateFree(ctx context.Context, req ReadingRequest) (*ReadingResult, error) {
	drawn := s.deck.Draw(spreadSize)
	reading, err := s.complete(ctx, buildFreePrompt(req, drawn), 0.35)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.ConsumeFree(ctx, req.Identity); err != nil {
		return nil, err
	}

	s.record(ctx, req, models.FreeTier, drawn, reading)
	return &ReadingResult{Tier: models.FreeTier, Cards: drawn, Reading: reading}, nil
}

func (s *readingService) complete(ctx context.Context, prompt string, temperature float32) (map[string]interface{}, error) {
	raw, err := s.llm.Complete(ctx, prompt, temperature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrReadingFailed, err)
	}

	if obj, ok := parseReading(raw); ok {
		return obj, nil
	}

	obj, err := s.llm.RepairWithModel(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrReadingFailed, err)
	}
	return obj, nil
}

func (s *readingService) record(ctx context.Context, req ReadingRequest, tier models.ReadingTier, drawn []cards.DrawnCard, reading map[string]interface{}) {
	cardsJSON, _ := json.Marshal(drawn)
	resultJSON, _ := json.Marshal(reading)

	err := s.repo.SaveReading(ctx, &models.Reading{
		Identity: req.Identity,
		Question: req.Question,
		Topic:    req.Topic,
		Tone:     req.Tone,
		Tier:     tier,
		Cards:    string(cardsJSON),
		Result:   string(resultJSON),
	})
	if err != nil {
		// History is best effort; the user already has the reading.
		logger.Logger.WithFields(logrus.Fields{
			"error":    err,
			"identity": req.Identity,
		}).Error("Failed to save reading history")
	}

	// A new reading makes every cached history window stale.
	if err := s.cache.DeleteByPattern(ctx, historyKeyPattern(req.Identity)); err != nil {
		logger.Logger.WithFields(logrus.Fields{"error": err}).Debug("Failed to invalidate history cache")
	}
}

// History serves the recent-readings list through the cache; the store
// is only hit on a miss, and GenerateReading invalidates the cached
// windows when a new reading lands.
func (s *readingService) History(ctx context.Context, identity string, limit int) ([]*models.Reading, error) {
	key := historyKey(identity, limit)
	if cached, err := s.cache.Get(ctx, key); err == nil {
		var readings []*models.Reading
		if err := json.Unmarshal([]byte(cached), &readings); err == nil {
			return readings, nil
		}
	}

	readings, err := s.repo.ListReadings(ctx, identity, limit)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, readings, 15*time.Minute); err != nil {
		logger.Logger.WithFields(logrus.Fields{"error": err}).Debug("Failed to cache history")
	}
	return readings, nil
}

func historyKey(identity string, limit int) string {
	return fmt.Sprintf("reading:history:%s:%d", identity, limit)
}

func historyKeyPattern(identity string) string {
	return fmt.Sprintf("reading:history:%s:*", identity)
}

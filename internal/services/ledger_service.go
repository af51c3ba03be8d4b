package services

import (
	"context"
	"time"

	"tarot-api/internal/repository"
)

// LedgerService is the policy layer over the ledger store: it owns the
// daily free quota and the server-local day key while the repository
// owns atomicity.
type LedgerService interface {
	CanUseFree(ctx context.Context, identity string) (bool, error)
	ConsumeFree(ctx context.Context, identity string) error
	GetCreditBalance(ctx context.Context, identity string) (int, error)
	GrantCredits(ctx context.Context, identity string, n int) error
	ConsumeCredits(ctx context.Context, identity string, n int) (bool, error)
	ApplyVerifiedPayment(ctx context.Context, identity, paymentReference string, creditsToGrant int) (bool, error)
	IsPaymentProcessed(ctx context.Context, paymentReference string) (bool, error)
	QuotaStatus(ctx context.Context, identity string) (*QuotaStats, error)
}

type QuotaStats struct {
	FreeUsed      int    `json:"free_used"`
	FreeLimit     int    `json:"free_limit"`
	FreeRemaining int    `json:"free_remaining"`
	CreditBalance int    `json:"credit_balance"`
	Day           string `json:"day"`
}

type ledgerService struct {
	repo       repository.LedgerRepository
	freePerDay int
	now        func() time.Time
}

func NewLedgerService(repo repository.LedgerRepository, freePerDay int) LedgerService {
	return NewLedgerServiceWithClock(repo, freePerDay, time.Now)
}

func NewLedgerServiceWithClock(repo repository.LedgerRepository, freePerDay int, now func() time.Time) LedgerService {
	return &ledgerService{
		repo:       repo,
		freePerDay: freePerDay,
		now:        now,
	}
}

func (s *ledgerService) dayKey() string {
	return s.now().Format("2006-01-02")
}

func (s *ledgerService) CanUseFree(ctx context.Context, identity string) (bool, error) {
	used, err := s.repo.GetFreeUsed(ctx, identity, s.dayKey())
	if err != nil {
		return false, err
	}
	return used < s.freePerDay, nil
}

func (s *ledgerService) ConsumeFree(ctx context.Context, identity string) error {
	return s.repo.IncrementFreeUsed(ctx, identity, s.dayKey(), 1)
}

func (s *ledgerService) GetCreditBalance(ctx context.Context, identity string) (int, error) {
	return s.repo.GetCreditBalance(ctx, identity)
}

func (s *ledgerService) GrantCredits(ctx context.Context, identity string, n int) error {
	return s.repo.GrantCredits(ctx, identity, n)
}

func (s *ledgerService) ConsumeCredits(ctx context.Context, identity string, n int) (bool, error) {
	return s.repo.ConsumeCredits(ctx, identity, n)
}

func (s *ledgerService) ApplyVerifiedPayment(ctx context.Context, identity, paymentReference string, creditsToGrant int) (bool, error) {
	return s.repo.ApplyVerifiedPayment(ctx, identity, paymentReference, creditsToGrant)
}

func (s *ledgerService) IsPaymentProcessed(ctx context.Context, paymentReference string) (bool, error) {
	return s.repo.IsPaymentProcessed(ctx, paymentReference)
}

func (s *ledgerService) QuotaStatus(ctx context.Context, identity string) (*QuotaStats, error) {
	day := s.dayKey()

	used, err := s.repo.GetFreeUsed(ctx, identity, day)
	if err != nil {
		return nil, err
	}

	balance, err := s.repo.GetCreditBalance(ctx, identity)
	if err != nil {
		return nil, err
	}

	remaining := s.freePerDay - used
	if remaining < 0 {
		remaining = 0
	}

	return &QuotaStats{
		FreeUsed:      used,
		FreeLimit:     s.freePerDay,
		FreeRemaining: remaining,
		CreditBalance: balance,
		Day:           day,
	}, nil
}

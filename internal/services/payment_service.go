package services

import (
	"context"
	"fmt"
	"strconv"

	"tarot-api/internal/config"
	"tarot-api/internal/logger"
	apperrors "tarot-api/internal/pkg/errors"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
)

// PaymentService turns completed Stripe Checkout sessions into ledger
// credits. The session ID is the payment reference; the ledger
// guarantees each one credits at most once no matter how many times a
// success redirect or webhook replays it.
type PaymentService interface {
	CreateCheckoutSession(ctx context.Context, identity string) (string, error)
	ConfirmCheckoutSession(ctx context.Context, identity, sessionID string) (bool, error)
	ApplyCompletedSession(ctx context.Context, sess *stripe.CheckoutSession) error
}

type paymentService struct {
	ledger LedgerService
	cfg    *config.Config
}

func NewPaymentService(ledger LedgerService, cfg *config.Config) PaymentService {
	stripe.Key = cfg.StripeSecretKey
	return &paymentService{
		ledger: ledger,
		cfg:    cfg,
	}
}

func (s *paymentService) CreateCheckoutSession(ctx context.Context, identity string) (string, error) {
	successURL := fmt.Sprintf("%s?uid=%s&success=1&session_id={CHECKOUT_SESSION_ID}", s.cfg.AppBaseURL, identity)
	cancelURL := fmt.Sprintf("%s?uid=%s&canceled=1", s.cfg.AppBaseURL, identity)

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(identity),
	}
	params.AddMetadata("uid", identity)
	params.AddMetadata("credits", strconv.Itoa(s.cfg.CreditsPerSale))

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("error creating checkout session: %v", err)
	}

	return sess.URL, nil
}

// ConfirmCheckoutSession handles the success redirect: look the session
// up at Stripe, check it is paid and belongs to this identity, then
// credit through the ledger. Safe to call repeatedly with the same
// session ID.
func (s *paymentService) ConfirmCheckoutSession(ctx context.Context, identity, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, apperrors.ErrInvalidInput
	}

	// Known references short-circuit before the Stripe round trip, so
	// a page reload after payment stays fast and offline-safe.
	processed, err := s.ledger.IsPaymentProcessed(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if processed {
		return true, nil
	}

	sess, err := session.Get(sessionID, nil)
	if err != nil {
		return false, fmt.Errorf("error retrieving checkout session: %v", err)
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return false, apperrors.ErrPaymentNotPaid
	}

	if uid := sessionIdentity(sess); uid != "" && uid != identity {
		return false, apperrors.ErrPaymentMismatch
	}

	return s.ledger.ApplyVerifiedPayment(ctx, identity, sessionID, sessionCredits(sess, s.cfg.CreditsPerSale))
}

// ApplyCompletedSession is the webhook path for
// checkout.session.completed events. Signature verification already
// happened at the handler.
func (s *paymentService) ApplyCompletedSession(ctx context.Context, sess *stripe.CheckoutSession) error {
	identity := sessionIdentity(sess)
	if identity == "" {
		logger.Logger.WithFields(logrus.Fields{
			"session": sess.ID,
		}).Warn("Checkout session has no identity reference")
		return apperrors.ErrInvalidInput
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return apperrors.ErrPaymentNotPaid
	}

	_, err := s.ledger.ApplyVerifiedPayment(ctx, identity, sess.ID, sessionCredits(sess, s.cfg.CreditsPerSale))
	return err
}

func sessionIdentity(sess *stripe.CheckoutSession) string {
	if sess.ClientReferenceID != "" {
		return sess.ClientReferenceID
	}
	return sess.Metadata["uid"]
}

func sessionCredits(sess *stripe.CheckoutSession, fallback int) int {
	if raw, ok := sess.Metadata["credits"]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 1
}

package services

import (
	"context"
	"testing"
	"time"

	"tarot-api/internal/config"
	apperrors "tarot-api/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
)

func newTestPaymentService(t *testing.T) (PaymentService, LedgerService) {
	t.Helper()

	repo := newTestLedgerRepo(t)
	clock := &fakeClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	ledger := NewLedgerServiceWithClock(repo, 1, clock.Now)

	cfg := &config.Config{
		AppBaseURL:     "https://tarot.example",
		CreditsPerSale: 1,
	}
	return NewPaymentService(ledger, cfg), ledger
}

func paidSession(id, uid string) *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:                id,
		ClientReferenceID: uid,
		PaymentStatus:     stripe.CheckoutSessionPaymentStatusPaid,
		Metadata:          map[string]string{"uid": uid, "credits": "1"},
	}
}

func TestApplyCompletedSessionCreditsOnce(t *testing.T) {
	svc, ledger := newTestPaymentService(t)
	ctx := context.Background()

	sess := paidSession("cs_test_1", "u1")
	require.NoError(t, svc.ApplyCompletedSession(ctx, sess))

	balance, err := ledger.GetCreditBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, balance)

	// Webhook retries replay the same event.
	require.NoError(t, svc.ApplyCompletedSession(ctx, sess))

	balance, err = ledger.GetCreditBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, balance)
}

func TestApplyCompletedSessionUnpaid(t *testing.T) {
	svc, ledger := newTestPaymentService(t)
	ctx := context.Background()

	sess := paidSession("cs_test_2", "u1")
	sess.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid

	err := svc.ApplyCompletedSession(ctx, sess)
	assert.ErrorIs(t, err, apperrors.ErrPaymentNotPaid)

	balance, err := ledger.GetCreditBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestApplyCompletedSessionMissingIdentity(t *testing.T) {
	svc, _ := newTestPaymentService(t)
	ctx := context.Background()

	sess := &stripe.CheckoutSession{
		ID:            "cs_test_3",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
	}
	assert.ErrorIs(t, svc.ApplyCompletedSession(ctx, sess), apperrors.ErrInvalidInput)
}

func TestApplyCompletedSessionCreditsFromMetadata(t *testing.T) {
	svc, ledger := newTestPaymentService(t)
	ctx := context.Background()

	sess := paidSession("cs_test_4", "u1")
	sess.Metadata["credits"] = "3"
	require.NoError(t, svc.ApplyCompletedSession(ctx, sess))

	balance, err := ledger.GetCreditBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, balance)
}

// A session already recorded in the ledger confirms without a Stripe
// round trip, which is what keeps post-payment page reloads working
// offline.
func TestConfirmCheckoutSessionShortCircuitsWhenProcessed(t *testing.T) {
	svc, ledger := newTestPaymentService(t)
	ctx := context.Background()

	ok, err := ledger.ApplyVerifiedPayment(ctx, "u1", "cs_test_5", 1)
	require.NoError(t, err)
	require.True(t, ok)

	credited, err := svc.ConfirmCheckoutSession(ctx, "u1", "cs_test_5")
	require.NoError(t, err)
	assert.True(t, credited)

	balance, err := ledger.GetCreditBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, balance)
}

func TestConfirmCheckoutSessionRejectsEmptyID(t *testing.T) {
	svc, _ := newTestPaymentService(t)
	ctx := context.Background()

	_, err := svc.ConfirmCheckoutSession(ctx, "u1", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSessionCredits(t *testing.T) {
	sess := &stripe.CheckoutSession{Metadata: map[string]string{"credits": "5"}}
	assert.Equal(t, 5, sessionCredits(sess, 1))

	sess = &stripe.CheckoutSession{Metadata: map[string]string{"credits": "junk"}}
	assert.Equal(t, 2, sessionCredits(sess, 2))

	sess = &stripe.CheckoutSession{Metadata: map[string]string{}}
	assert.Equal(t, 1, sessionCredits(sess, 0))
}

func TestSessionIdentityPrefersClientReference(t *testing.T) {
	sess := &stripe.CheckoutSession{
		ClientReferenceID: "ref-uid",
		Metadata:          map[string]string{"uid": "meta-uid"},
	}
	assert.Equal(t, "ref-uid", sessionIdentity(sess))

	sess = &stripe.CheckoutSession{Metadata: map[string]string{"uid": "meta-uid"}}
	assert.Equal(t, "meta-uid", sessionIdentity(sess))
}

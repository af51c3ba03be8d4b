package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tarot-api/internal/cards"
	"tarot-api/internal/models"
	apperrors "tarot-api/internal/pkg/errors"
	"tarot-api/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
)

type fakeLedgerService struct {
	stats    *services.QuotaStats
	statsErr error
}

func (f *fakeLedgerService) CanUseFree(ctx context.Context, identity string) (bool, error) {
	return true, nil
}
func (f *fakeLedgerService) ConsumeFree(ctx context.Context, identity string) error { return nil }
func (f *fakeLedgerService) GetCreditBalance(ctx context.Context, identity string) (int, error) {
	return 0, nil
}
func (f *fakeLedgerService) GrantCredits(ctx context.Context, identity string, n int) error {
	return nil
}
func (f *fakeLedgerService) ConsumeCredits(ctx context.Context, identity string, n int) (bool, error) {
	return false, nil
}
func (f *fakeLedgerService) ApplyVerifiedPayment(ctx context.Context, identity, ref string, credits int) (bool, error) {
	return true, nil
}
func (f *fakeLedgerService) IsPaymentProcessed(ctx context.Context, ref string) (bool, error) {
	return false, nil
}
func (f *fakeLedgerService) QuotaStatus(ctx context.Context, identity string) (*services.QuotaStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats, nil
}

type fakeReadingService struct {
	result       *services.ReadingResult
	err          error
	historyLimit int
}

func (f *fakeReadingService) GenerateReading(ctx context.Context, req services.ReadingRequest) (*services.ReadingResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeReadingService) History(ctx context.Context, identity string, limit int) ([]*models.Reading, error) {
	f.historyLimit = limit
	return nil, nil
}

type fakePaymentService struct {
	applyErr error
}

func (f *fakePaymentService) CreateCheckoutSession(ctx context.Context, identity string) (string, error) {
	return "https://checkout.example/session", nil
}

func (f *fakePaymentService) ConfirmCheckoutSession(ctx context.Context, identity, sessionID string) (bool, error) {
	return true, nil
}

func (f *fakePaymentService) ApplyCompletedSession(ctx context.Context, sess *stripe.CheckoutSession) error {
	return f.applyErr
}

func TestGetQuotaMintsIdentity(t *testing.T) {
	h := NewQuotaHandler(&fakeLedgerService{stats: &services.QuotaStats{FreeLimit: 1, FreeRemaining: 1}})

	req := httptest.NewRequest(http.MethodGet, "/api/quota", nil)
	rec := httptest.NewRecorder()
	h.GetQuota(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		UID   string               `json:"uid"`
		Quota *services.QuotaStats `json:"quota"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.UID, 16)
	assert.Equal(t, 1, body.Quota.FreeLimit)
}

func TestGetQuotaKeepsSuppliedIdentity(t *testing.T) {
	h := NewQuotaHandler(&fakeLedgerService{stats: &services.QuotaStats{}})

	req := httptest.NewRequest(http.MethodGet, "/api/quota?uid=u1", nil)
	rec := httptest.NewRecorder()
	h.GetQuota(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		UID string `json:"uid"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "u1", body.UID)
}

func TestCreateReadingSuccess(t *testing.T) {
	h := NewReadingHandler(&fakeReadingService{
		result: &services.ReadingResult{
			Tier:    models.FreeTier,
			Cards:   []cards.DrawnCard{{Name: "The Fool"}},
			Reading: map[string]interface{}{"one_line": "ok"},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/readings",
		strings.NewReader(`{"uid": "u1", "question": "what next?"}`))
	rec := httptest.NewRecorder()
	h.CreateReading(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body services.ReadingResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, models.FreeTier, body.Tier)
}

func TestCreateReadingMissingUID(t *testing.T) {
	h := NewReadingHandler(&fakeReadingService{})

	req := httptest.NewRequest(http.MethodPost, "/api/readings",
		strings.NewReader(`{"question": "what next?"}`))
	rec := httptest.NewRecorder()
	h.CreateReading(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateReadingQuotaExceededMapsTo402(t *testing.T) {
	h := NewReadingHandler(&fakeReadingService{err: apperrors.ErrQuotaExceeded})

	req := httptest.NewRequest(http.MethodPost, "/api/readings",
		strings.NewReader(`{"uid": "u1", "question": "q"}`))
	rec := httptest.NewRecorder()
	h.CreateReading(rec, req)

	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "quota_exceeded", body["error"])
}

func TestCreateReadingInsufficientCreditMapsTo402(t *testing.T) {
	h := NewReadingHandler(&fakeReadingService{err: apperrors.ErrInsufficientCredit})

	req := httptest.NewRequest(http.MethodPost, "/api/readings",
		strings.NewReader(`{"uid": "u1", "question": "q"}`))
	rec := httptest.NewRecorder()
	h.CreateReading(rec, req)

	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "insufficient_credit", body["error"])
}

func TestCreateReadingStorageErrorMapsTo500(t *testing.T) {
	h := NewReadingHandler(&fakeReadingService{err: apperrors.ErrStorage})

	req := httptest.NewRequest(http.MethodPost, "/api/readings",
		strings.NewReader(`{"uid": "u1", "question": "q"}`))
	rec := httptest.NewRecorder()
	h.CreateReading(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please try again")
}

func TestGetHistoryClampsLimit(t *testing.T) {
	svc := &fakeReadingService{}
	h := NewReadingHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/readings?uid=u1&limit=1000000", nil)
	rec := httptest.NewRecorder()
	h.GetHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxHistoryLimit, svc.historyLimit)
}

func TestGetHistoryDefaultsBadLimit(t *testing.T) {
	svc := &fakeReadingService{}
	h := NewReadingHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/readings?uid=u1&limit=-5", nil)
	rec := httptest.NewRecorder()
	h.GetHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultHistoryLimit, svc.historyLimit)
}

func signedWebhookRequest(t *testing.T, secret string, payload []byte) *http.Request {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	sig := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook",
		strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", sig)
	return req
}

func completedSessionEvent(paymentStatus string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "payment_status": %q}}
	}`, paymentStatus))
}

func TestWebhookAcknowledgesUnpaidSession(t *testing.T) {
	const secret = "whsec_test"
	h := NewStripeHandler(&fakePaymentService{applyErr: apperrors.ErrPaymentNotPaid}, secret)

	rec := httptest.NewRecorder()
	h.HandleStripeWebhook(rec, signedWebhookRequest(t, secret, completedSessionEvent("unpaid")))

	// A non-2xx here would make Stripe redeliver a session that can
	// never be credited.
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookRetriesStorageFailure(t *testing.T) {
	const secret = "whsec_test"
	h := NewStripeHandler(&fakePaymentService{applyErr: apperrors.ErrStorage}, secret)

	rec := httptest.NewRecorder()
	h.HandleStripeWebhook(rec, signedWebhookRequest(t, secret, completedSessionEvent("paid")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := NewStripeHandler(&fakePaymentService{}, "whsec_test")

	rec := httptest.NewRecorder()
	h.HandleStripeWebhook(rec, signedWebhookRequest(t, "whsec_other", completedSessionEvent("paid")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

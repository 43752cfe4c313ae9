package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"subscribe/internal/ai"
	"subscribe/internal/api/v1/dto"
	"subscribe/internal/model"
	"subscribe/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDetectHandler(detect *fakeDetectService, users *fakeUserService) *DetectionHandler {
	h := NewDetectionHandler(detect, users, nopLogger)
	h.now = func() time.Time { return testNow }
	return h
}

func TestDetectCreatesSubscription(t *testing.T) {
	detect := &fakeDetectService{result: &service.DetectionResult{
		Detected:       true,
		Classification: &ai.Classification{IsSubscriptionRelated: true, ServiceName: ptr("Netflix")},
		Categorization: &ai.Categorization{Category: model.CategoryEntertainment, Confidence: 0.8},
		Subscription: &model.Subscription{
			ID: "new", ServiceName: "Netflix", Currency: "USD", RenewalPeriod: model.RenewalMonthly,
			Category: model.CategoryEntertainment, PaymentMethod: model.PaymentUnknown, DetectedFromEmail: true,
		},
		ScanRecorded: true,
	}}
	users := &fakeUserService{}

	rec := serve(t, newDetectHandler(detect, users), http.MethodPost, "/subscriptions/detect", `{"email_content":"Your Netflix receipt"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Your Netflix receipt", detect.email)
	assert.Equal(t, model.QuotaState{}, detect.quota)
	assert.Equal(t, "user-1@example.com", users.seed.Email)

	got := decode[dto.DetectResponseDTO](t, rec)
	assert.True(t, got.Detected)
	require.NotNil(t, got.Subscription)
	assert.True(t, got.Subscription.DetectedFromEmail)
	assert.Equal(t, "Free", got.Subscription.DisplayPrice)
	require.NotNil(t, got.Confidence)
	assert.InDelta(t, 0.8, *got.Confidence, 1e-9)
	assert.Equal(t, 0, got.ScansRemaining)
}

func TestDetectUncountedScanKeepsRemaining(t *testing.T) {
	detect := &fakeDetectService{result: &service.DetectionResult{
		Detected:       true,
		Classification: &ai.Classification{IsSubscriptionRelated: true, ServiceName: ptr("Hulu")},
		Subscription:   &model.Subscription{ID: "new", ServiceName: "Hulu", Currency: "USD", DetectedFromEmail: true},
	}}

	rec := serve(t, newDetectHandler(detect, &fakeUserService{}), http.MethodPost, "/subscriptions/detect", `{"email_content":"Hulu receipt"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[dto.DetectResponseDTO](t, rec).ScansRemaining)
}

func TestDetectNegativeIsNotAnError(t *testing.T) {
	detect := &fakeDetectService{result: &service.DetectionResult{
		Detected:       false,
		Classification: &ai.Classification{IsSubscriptionRelated: false, IsMarketingEmail: ptr(true)},
	}}
	rec := serve(t, newDetectHandler(detect, &fakeUserService{}), http.MethodPost, "/subscriptions/detect", `{"email_content":"50% off shoes"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[dto.DetectResponseDTO](t, rec)
	assert.False(t, got.Detected)
	assert.Nil(t, got.Subscription)
	require.NotNil(t, got.Classification)
	assert.Equal(t, ptr(true), got.Classification.IsMarketingEmail)
	assert.Equal(t, 1, got.ScansRemaining)
}

func TestDetectPassesPremiumQuota(t *testing.T) {
	detect := &fakeDetectService{result: &service.DetectionResult{Detected: false, Classification: &ai.Classification{}}}
	users := &fakeUserService{user: &model.UserProfile{UserID: "user-1", IsPremium: true, FreeScansUsed: 7}}

	rec := serve(t, newDetectHandler(detect, users), http.MethodPost, "/subscriptions/detect", `{"email_content":"hello"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.QuotaState{IsPremium: true, FreeScansUsed: 7}, detect.quota)
	assert.Equal(t, service.UnlimitedScans, decode[dto.DetectResponseDTO](t, rec).ScansRemaining)
}

func TestDetectErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"quota", service.ErrQuotaExceeded, http.StatusPaymentRequired},
		{"empty email", &service.ValidationError{Fields: map[string]string{"email_content": "is required"}}, http.StatusBadRequest},
		{"classification", fmt.Errorf("%w: bad json", ai.ErrClassificationFailed), http.StatusBadGateway},
		{"persistence", fmt.Errorf("%w: %w", service.ErrPersistenceFailed, errBoom), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detect := &fakeDetectService{err: tt.err}
			rec := serve(t, newDetectHandler(detect, &fakeUserService{}), http.MethodPost, "/subscriptions/detect", `{"email_content":"x"}`)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestDetectProfileFailure(t *testing.T) {
	detect := &fakeDetectService{}
	rec := serve(t, newDetectHandler(detect, &fakeUserService{err: errBoom}), http.MethodPost, "/subscriptions/detect", `{"email_content":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, detect.email)
}

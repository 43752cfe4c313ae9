package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"subscribe/internal/ai"
	"subscribe/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type detectionFixture struct {
	classifier  *fakeClassifier
	categorizer *fakeCategorizer
	subs        *fakeSubRepo
	users       *fakeUserRepo
	archive     *fakeArchive
	publisher   *fakePublisher
	svc         DetectionService
}

func newDetectionFixture(t *testing.T) *detectionFixture {
	t.Helper()
	f := &detectionFixture{
		classifier: &fakeClassifier{result: &ai.Classification{
			IsSubscriptionRelated: true,
			ServiceName:           ptr("Netflix"),
			BillingDate:           ptr("2025-02-01"),
			PaymentMethod:         ptr("Visa ending 4242"),
		}},
		categorizer: &fakeCategorizer{result: &ai.Categorization{Category: model.CategoryEntertainment, Confidence: 0.9}},
		subs:        newFakeSubRepo(),
		users:       newFakeUserRepo(&model.UserProfile{UserID: "user-1"}),
		archive:     &fakeArchive{objects: map[string]string{}},
		publisher:   &fakePublisher{},
	}
	f.svc = NewDetectionService(f.classifier, f.categorizer, f.subs, f.users, DetectionOptions{
		Archive:       f.archive,
		Publisher:     f.publisher,
		Topic:         "subscription-detected",
		FreeScanLimit: 1,
	}, zerolog.Nop())
	return f
}

func TestDetectQuotaExceededMakesNoCalls(t *testing.T) {
	f := newDetectionFixture(t)

	_, err := f.svc.DetectFromEmail(context.Background(), "user-1", "email", model.QuotaState{FreeScansUsed: 1})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Zero(t, f.classifier.calls)
	assert.Zero(t, f.categorizer.calls)
	assert.Zero(t, f.subs.created)
}

func TestDetectPremiumIgnoresQuota(t *testing.T) {
	f := newDetectionFixture(t)

	res, err := f.svc.DetectFromEmail(context.Background(), "user-1", "email", model.QuotaState{IsPremium: true, FreeScansUsed: 50})
	require.NoError(t, err)
	assert.True(t, res.Detected)
	assert.Zero(t, f.users.increments)
}

func TestDetectEmptyEmail(t *testing.T) {
	f := newDetectionFixture(t)

	_, err := f.svc.DetectFromEmail(context.Background(), "user-1", "   ", model.QuotaState{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "email_content")
	assert.Zero(t, f.classifier.calls)
}

func TestDetectClassificationFailure(t *testing.T) {
	f := newDetectionFixture(t)
	f.classifier.result = nil
	f.classifier.err = errBoom

	_, err := f.svc.DetectFromEmail(context.Background(), "user-1", "email", model.QuotaState{})
	assert.ErrorIs(t, err, ai.ErrClassificationFailed)
	assert.Zero(t, f.subs.created)
	assert.Zero(t, f.users.increments)
}

func TestDetectNegativeResults(t *testing.T) {
	tests := []struct {
		name string
		c    *ai.Classification
	}{
		{name: "not subscription related", c: &ai.Classification{IsSubscriptionRelated: false, ServiceName: ptr("Amazon")}},
		{name: "no service name", c: &ai.Classification{IsSubscriptionRelated: true}},
		{name: "one letter service name", c: &ai.Classification{IsSubscriptionRelated: true, ServiceName: ptr(" X ")}},
		{name: "blank service name", c: &ai.Classification{IsSubscriptionRelated: true, ServiceName: ptr("   ")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDetectionFixture(t)
			f.classifier.result = tt.c

			res, err := f.svc.DetectFromEmail(context.Background(), "user-1", "email", model.QuotaState{})
			require.NoError(t, err)
			assert.False(t, res.Detected)
			assert.Same(t, tt.c, res.Classification)
			assert.Nil(t, res.Subscription)
			assert.Zero(t, f.categorizer.calls)
			assert.Zero(t, f.subs.created)
			assert.Zero(t, f.users.increments)
			assert.Empty(t, f.publisher.topics)
		})
	}
}

func TestDetectSuccess(t *testing.T) {
	f := newDetectionFixture(t)

	res, err := f.svc.DetectFromEmail(context.Background(), "user-1", "Your Netflix receipt", model.QuotaState{})
	require.NoError(t, err)
	require.True(t, res.Detected)

	sub := res.Subscription
	require.NotNil(t, sub)
	assert.Equal(t, "Netflix", sub.ServiceName)
	assert.Equal(t, model.CategoryEntertainment, sub.Category)
	assert.Equal(t, model.PaymentCard, sub.PaymentMethod)
	assert.True(t, sub.DetectedFromEmail)
	assert.Zero(t, sub.Price)
	require.NotNil(t, sub.NextBillingDate)
	assert.Equal(t, "2025-02-01", *sub.NextBillingDate)

	assert.Equal(t, "Detected from email. Billing: 2025-02-01.", f.categorizer.description)

	stored, err := f.subs.GetByID(context.Background(), "user-1", sub.ID)
	require.NoError(t, err)
	assert.True(t, stored.DetectedFromEmail)
	require.NotNil(t, stored.EmailSourceID)
	assert.Equal(t, "Your Netflix receipt", f.archive.objects[*stored.EmailSourceID])

	assert.Equal(t, 1, f.users.increments)
	assert.True(t, res.ScanRecorded)

	require.Len(t, f.publisher.payloads, 1)
	assert.Equal(t, "subscription-detected", f.publisher.topics[0])
	var event DetectionEvent
	require.NoError(t, json.Unmarshal(f.publisher.payloads[0], &event))
	assert.Equal(t, DetectedEventType, event.Type)
	assert.Equal(t, sub.ID, event.SubscriptionID)
}

func TestDetectCategorizationFailureFallsBackToOther(t *testing.T) {
	f := newDetectionFixture(t)
	f.classifier.result.BillingDate = nil
	f.categorizer.result = nil
	f.categorizer.err = ai.ErrCategorizationFailed

	res, err := f.svc.DetectFromEmail(context.Background(), "user-1", "email", model.QuotaState{})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryOther, res.Subscription.Category)
	assert.Nil(t, res.Categorization)
	assert.Equal(t, "Detected from email. Billing: N/A.", f.categorizer.description)
	assert.Equal(t, 1, f.subs.created)
}

func TestDetectPersistenceFailure(t *testing.T) {
	f := newDetectionFixture(t)
	f.subs.createErr = errBoom

	_, err := f.svc.DetectFromEmail(context.Background(), "user-1", "email", model.QuotaState{})
	assert.ErrorIs(t, err, ErrPersistenceFailed)
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, f.users.increments)
	assert.Empty(t, f.archive.objects)
	assert.Len(t, f.archive.deleted, 1)
	assert.Empty(t, f.publisher.topics)
}

func TestDetectIncrementFailureStillReturnsRecord(t *testing.T) {
	f := newDetectionFixture(t)
	f.users.incrementErr = errBoom

	res, err := f.svc.DetectFromEmail(context.Background(), "user-1", "email", model.QuotaState{})
	require.NoError(t, err)
	assert.True(t, res.Detected)
	assert.False(t, res.ScanRecorded)
	assert.Equal(t, 1, f.subs.created)
}

func TestDetectArchiveFailureIsNotFatal(t *testing.T) {
	f := newDetectionFixture(t)
	f.archive.putErr = errBoom

	res, err := f.svc.DetectFromEmail(context.Background(), "user-1", "email", model.QuotaState{})
	require.NoError(t, err)
	assert.Nil(t, res.Subscription.EmailSourceID)
}

func TestDetectPublishFailureIsNotFatal(t *testing.T) {
	f := newDetectionFixture(t)
	f.publisher.err = errBoom

	res, err := f.svc.DetectFromEmail(context.Background(), "user-1", "email", model.QuotaState{})
	require.NoError(t, err)
	assert.True(t, res.Detected)
}

func TestDetectWithoutOptionalCollaborators(t *testing.T) {
	f := newDetectionFixture(t)
	svc := NewDetectionService(f.classifier, f.categorizer, f.subs, f.users, DetectionOptions{}, zerolog.Nop())

	res, err := svc.DetectFromEmail(context.Background(), "user-1", "email", model.QuotaState{})
	require.NoError(t, err)
	assert.Nil(t, res.Subscription.EmailSourceID)
	assert.Equal(t, 1, f.users.increments)
}

func TestDetectSecondFreeScanRejected(t *testing.T) {
	f := newDetectionFixture(t)
	ctx := context.Background()

	_, err := f.svc.DetectFromEmail(ctx, "user-1", "email", model.QuotaState{})
	require.NoError(t, err)

	u, err := f.users.GetUserByID(ctx, "user-1")
	require.NoError(t, err)
	_, err = f.svc.DetectFromEmail(ctx, "user-1", "email", u.Quota())
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"subscribe/internal/ai"
	"subscribe/internal/middleware"
	"subscribe/internal/model"
	"subscribe/internal/service"
	"subscribe/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeAuth authenticates every request as the user named in X-Test-User.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-Test-User")
		if userID == "" {
			http.Error(w, "Authorization header missing", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), middleware.UserContextKey, userID)
		claims := &util.Claims{
			Email:            userID + "@example.com",
			Name:             "Ada",
			RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		}
		ctx = context.WithValue(ctx, middleware.ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type routes interface {
	RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler)
}

func serve(t *testing.T, h routes, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, fakeAuth)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("X-Test-User", "user-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func ptr[T any](v T) *T { return &v }

var nopLogger = zerolog.Nop()

// fakes

type fakeSubService struct {
	subs       []model.Subscription
	err        error
	lastFilter service.ListFilter
	lastInput  *service.SubscriptionInput
	lastToggle *bool
	category   *ai.Categorization
}

func (f *fakeSubService) List(_ context.Context, _ string, filter service.ListFilter) ([]model.Subscription, error) {
	f.lastFilter = filter
	return f.subs, f.err
}

func (f *fakeSubService) Get(_ context.Context, _, id string) (*model.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.subs {
		if f.subs[i].ID == id {
			return &f.subs[i], nil
		}
	}
	return nil, service.ErrSubscriptionNotFound
}

func (f *fakeSubService) Create(_ context.Context, userID string, in *service.SubscriptionInput) (*model.Subscription, error) {
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	return service.Normalize(service.NewValidator(), userID, in)
}

func (f *fakeSubService) Replace(ctx context.Context, userID, id string, in *service.SubscriptionInput) (*model.Subscription, error) {
	if _, err := f.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	sub, err := service.Normalize(service.NewValidator(), userID, in)
	if err != nil {
		return nil, err
	}
	sub.ID = id
	return sub, nil
}

func (f *fakeSubService) Delete(ctx context.Context, userID, id string) error {
	_, err := f.Get(ctx, userID, id)
	return err
}

func (f *fakeSubService) SetNotifications(ctx context.Context, userID, id string, enabled bool) (*model.Subscription, error) {
	f.lastToggle = &enabled
	sub, err := f.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	sub.NotificationsEnabled = enabled
	return sub, nil
}

func (f *fakeSubService) Categorize(_ context.Context, serviceName, _ string) (*ai.Categorization, error) {
	if len(serviceName) < 2 {
		return nil, &service.ValidationError{Fields: map[string]string{"service_name": "must be at least 2 characters"}}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.category, nil
}

type fakeUserService struct {
	user      *model.UserProfile
	err       error
	updateErr error
	seed      service.ProfileSeed
}

func (f *fakeUserService) GetOrCreate(_ context.Context, seed service.ProfileSeed) (*model.UserProfile, error) {
	f.seed = seed
	if f.err != nil {
		return nil, f.err
	}
	if f.user == nil {
		f.user = &model.UserProfile{UserID: seed.UserID, Email: seed.Email, Name: seed.Name}
	}
	return f.user, nil
}

func (f *fakeUserService) Get(_ context.Context, _ string) (*model.UserProfile, error) {
	if f.user == nil {
		return nil, service.ErrUserNotFound
	}
	return f.user, f.err
}

func (f *fakeUserService) Update(_ context.Context, _ string, in *service.ProfileUpdate) (*model.UserProfile, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.user == nil {
		return nil, service.ErrUserNotFound
	}
	if in.Name != nil {
		f.user.Name = *in.Name
	}
	if in.Phone != nil {
		f.user.Phone = in.Phone
	}
	return f.user, nil
}

func (f *fakeUserService) ScansRemaining(u *model.UserProfile) int {
	if u.IsPremium {
		return service.UnlimitedScans
	}
	return max(0, 1-u.FreeScansUsed)
}

type fakeDetectService struct {
	result *service.DetectionResult
	err    error
	quota  model.QuotaState
	email  string
}

func (f *fakeDetectService) DetectFromEmail(_ context.Context, _, emailText string, quota model.QuotaState) (*service.DetectionResult, error) {
	f.quota = quota
	f.email = emailText
	return f.result, f.err
}

type fakeReminderService struct {
	sid string
	err error
}

func (f *fakeReminderService) SendTest(context.Context, string, string) (string, error) {
	return f.sid, f.err
}

func (f *fakeReminderService) Sweep(context.Context, time.Time) (int, error) { return 0, nil }

func (f *fakeReminderService) Dispatch(context.Context, model.ReminderJob, time.Time) error {
	return nil
}

type fakeBilling struct {
	url        string
	err        error
	plan       string
	payload    string
	signature  string
	webhookErr error
}

func (f *fakeBilling) CreateCheckoutSession(_ context.Context, _, plan string) (string, error) {
	f.plan = plan
	return f.url, f.err
}

func (f *fakeBilling) CreatePortalSession(context.Context, string) (string, error) {
	return f.url, f.err
}

func (f *fakeBilling) HandleWebhook(_ context.Context, payload []byte, signature string) error {
	f.payload, f.signature = string(payload), signature
	return f.webhookErr
}

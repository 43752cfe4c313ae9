package service

import (
	"context"
	"errors"
	"sync"

	"subscribe/internal/ai"
	"subscribe/internal/model"
	"subscribe/internal/repository"
)

type fakeSubRepo struct {
	mu        sync.Mutex
	subs      map[string]model.Subscription
	reminded  map[string]string
	createErr error
	listErr   error
	claimErr  error
	created   int
}

func newFakeSubRepo(subs ...model.Subscription) *fakeSubRepo {
	r := &fakeSubRepo{subs: map[string]model.Subscription{}, reminded: map[string]string{}}
	for _, s := range subs {
		r.subs[s.ID] = s
	}
	return r
}

func (r *fakeSubRepo) Create(ctx context.Context, sub *model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.subs[sub.ID] = *sub
	r.created++
	return nil
}

func (r *fakeSubRepo) GetByID(ctx context.Context, userID, id string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok || s.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *fakeSubRepo) ListByUser(ctx context.Context, userID string) ([]model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []model.Subscription
	for _, s := range r.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSubRepo) Update(ctx context.Context, sub *model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.subs[sub.ID]
	if !ok || old.UserID != sub.UserID {
		return repository.ErrNotFound
	}
	sub.DetectedFromEmail = old.DetectedFromEmail
	sub.EmailSourceID = old.EmailSourceID
	r.subs[sub.ID] = *sub
	return nil
}

func (r *fakeSubRepo) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok || s.UserID != userID {
		return repository.ErrNotFound
	}
	delete(r.subs, id)
	return nil
}

func (r *fakeSubRepo) SetNotifications(ctx context.Context, userID, id string, enabled bool) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok || s.UserID != userID {
		return nil, repository.ErrNotFound
	}
	s.NotificationsEnabled = enabled
	r.subs[id] = s
	return &s, nil
}

func (r *fakeSubRepo) ListRemindable(ctx context.Context) ([]model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []model.Subscription
	for _, s := range r.subs {
		if s.NotificationsEnabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSubRepo) ClaimReminder(ctx context.Context, id, day string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return false, r.claimErr
	}
	if last, ok := r.reminded[id]; ok && last >= day {
		return false, nil
	}
	r.reminded[id] = day
	return true, nil
}

func (r *fakeSubRepo) ReleaseReminder(ctx context.Context, id, day string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reminded[id] == day {
		delete(r.reminded, id)
	}
	return nil
}

type fakeUserRepo struct {
	mu           sync.Mutex
	users        map[string]*model.UserProfile
	incrementErr error
	increments   int
}

func newFakeUserRepo(users ...*model.UserProfile) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*model.UserProfile{}}
	for _, u := range users {
		r.users[u.UserID] = u
	}
	return r
}

func (r *fakeUserRepo) CreateUser(ctx context.Context, u *model.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.users[u.UserID]; ok {
		*u = *existing
		return nil
	}
	stored := *u
	r.users[u.UserID] = &stored
	return nil
}

func (r *fakeUserRepo) GetUserByID(ctx context.Context, id string) (*model.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == customerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) UpdateProfile(ctx context.Context, u *model.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.UserID]; !ok {
		return repository.ErrNotFound
	}
	stored := *u
	r.users[u.UserID] = &stored
	return nil
}

func (r *fakeUserRepo) IncrementFreeScans(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.incrementErr != nil {
		return r.incrementErr
	}
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.FreeScansUsed++
	r.increments++
	return nil
}

func (r *fakeUserRepo) SetPremium(ctx context.Context, userID string, premium bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsPremium = premium
	return nil
}

func (r *fakeUserRepo) UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.StripeCustomerID = &customerID
	return nil
}

type fakeClassifier struct {
	result *ai.Classification
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(ctx context.Context, emailText string) (*ai.Classification, error) {
	f.calls++
	return f.result, f.err
}

type fakeCategorizer struct {
	result      *ai.Categorization
	err         error
	calls       int
	description string
}

func (f *fakeCategorizer) Categorize(ctx context.Context, serviceName, description string) (*ai.Categorization, error) {
	f.calls++
	f.description = description
	return f.result, f.err
}

type fakeArchive struct {
	objects map[string]string
	putErr  error
	deleted []string
}

func (a *fakeArchive) Put(ctx context.Context, userID, emailText string) (string, error) {
	if a.putErr != nil {
		return "", a.putErr
	}
	key := "emails/" + userID + "/1.txt"
	a.objects[key] = emailText
	return key, nil
}

func (a *fakeArchive) Delete(ctx context.Context, key string) error {
	delete(a.objects, key)
	a.deleted = append(a.deleted, key)
	return nil
}

type fakePublisher struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return "msg-1", nil
}

type sentSMS struct {
	to   string
	body string
}

type fakeNotifier struct {
	sent []sentSMS
	err  error
}

func (n *fakeNotifier) SendSMS(ctx context.Context, to, body string) (string, error) {
	if n.err != nil {
		return "", n.err
	}
	n.sent = append(n.sent, sentSMS{to: to, body: body})
	return "SM1", nil
}

type fakeQueue struct {
	queue    string
	payloads [][]byte
	err      error
}

func (q *fakeQueue) Send(ctx context.Context, queue string, payload []byte) error {
	if q.err != nil {
		return q.err
	}
	q.queue = queue
	q.payloads = append(q.payloads, payload)
	return nil
}

type fakeDLQRepo struct {
	messages []*model.DeadLetterMessage
}

func (r *fakeDLQRepo) Create(ctx context.Context, message *model.DeadLetterMessage) error {
	r.messages = append(r.messages, message)
	return nil
}

var errBoom = errors.New("boom")

func ptr[T any](v T) *T {
	return &v
}

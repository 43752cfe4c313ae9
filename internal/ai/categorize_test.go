package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscribe/internal/model"
)

func TestBuildCategorizationPromptListsCategories(t *testing.T) {
	p := BuildCategorizationPrompt("Spotify", "Detected from email. Billing: N/A.")
	for _, c := range model.Categories {
		assert.Contains(t, p, string(c))
	}
	assert.Equal(t, p, BuildCategorizationPrompt("Spotify", "Detected from email. Billing: N/A."))
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		genErr   error
		want     model.Category
		wantConf float64
		wantErr  bool
	}{
		{name: "valid", reply: `{"category": "Music", "confidence": 0.92}`, want: model.CategoryMusic, wantConf: 0.92},
		{name: "case insensitive", reply: `{"category": "health & fitness", "confidence": 0.5}`, want: model.CategoryHealthFitness, wantConf: 0.5},
		{name: "bounds inclusive", reply: `{"category": "Other", "confidence": 0}`, want: model.CategoryOther},
		{name: "unknown category", reply: `{"category": "Gaming", "confidence": 0.9}`, wantErr: true},
		{name: "confidence above one", reply: `{"category": "Music", "confidence": 1.2}`, wantErr: true},
		{name: "negative confidence", reply: `{"category": "Music", "confidence": -0.1}`, wantErr: true},
		{name: "missing confidence", reply: `{"category": "Music"}`, wantErr: true},
		{name: "not json", reply: `Music`, wantErr: true},
		{name: "generator error", genErr: errors.New("quota"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewCategorizer(staticGenerator(tt.reply, tt.genErr)).Categorize(context.Background(), "Spotify", "")
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrCategorizationFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Category)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
		})
	}
}

type memoryCache struct {
	entries map[string]*Categorization
	getErr  error
	sets    int
}

func (m *memoryCache) Get(ctx context.Context, key string) (*Categorization, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value *Categorization, ttl time.Duration) error {
	m.entries[key] = value
	m.sets++
	return nil
}

type countingCategorizer struct {
	calls  int
	result *Categorization
	err    error
}

func (c *countingCategorizer) Categorize(ctx context.Context, serviceName, description string) (*Categorization, error) {
	c.calls++
	return c.result, c.err
}

func TestCachedCategorizerHitAndMiss(t *testing.T) {
	next := &countingCategorizer{result: &Categorization{Category: model.CategoryEntertainment, Confidence: 0.8}}
	cache := &memoryCache{entries: map[string]*Categorization{}}
	c := NewCachedCategorizer(next, cache, time.Hour, zerolog.Nop())

	first, err := c.Categorize(context.Background(), "Netflix", "streaming")
	require.NoError(t, err)
	second, err := c.Categorize(context.Background(), "  NETFLIX ", "Streaming")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, 1, cache.sets)
}

func TestCachedCategorizerFallsThroughOnCacheError(t *testing.T) {
	next := &countingCategorizer{result: &Categorization{Category: model.CategoryNews, Confidence: 0.7}}
	cache := &memoryCache{entries: map[string]*Categorization{}, getErr: errors.New("connection refused")}
	c := NewCachedCategorizer(next, cache, time.Hour, zerolog.Nop())

	got, err := c.Categorize(context.Background(), "NYTimes", "")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryNews, got.Category)
	assert.Equal(t, 1, next.calls)
}

func TestCachedCategorizerDoesNotCacheFailures(t *testing.T) {
	next := &countingCategorizer{err: ErrCategorizationFailed}
	cache := &memoryCache{entries: map[string]*Categorization{}}
	c := NewCachedCategorizer(next, cache, time.Hour, zerolog.Nop())

	_, err := c.Categorize(context.Background(), "Thing", "")
	require.ErrorIs(t, err, ErrCategorizationFailed)
	assert.Equal(t, 0, cache.sets)
}

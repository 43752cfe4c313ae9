package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"subscribe/internal/model"
)

type Categorization struct {
	Category   model.Category `json:"category"`
	Confidence float64        `json:"confidence"`
}

type Categorizer interface {
	Categorize(ctx context.Context, serviceName, description string) (*Categorization, error)
}

type categorizer struct {
	gen Generator
}

func NewCategorizer(gen Generator) Categorizer {
	return &categorizer{gen: gen}
}

// BuildCategorizationPrompt returns the prompt for a service. The category
// list is always emitted in model.Categories order.
func BuildCategorizationPrompt(serviceName, description string) string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = fmt.Sprintf("%q", string(c))
	}

	var b strings.Builder
	b.WriteString("Categorize this subscription service into exactly one of these categories: ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(".\n\nService name: ")
	b.WriteString(serviceName)
	if description != "" {
		b.WriteString("\nDescription: ")
		b.WriteString(description)
	}
	b.WriteString("\n\nReply with a single JSON object: ")
	b.WriteString(`{"category": "<one of the categories>", "confidence": <number between 0 and 1>}`)
	return b.String()
}

func (c *categorizer) Categorize(ctx context.Context, serviceName, description string) (*Categorization, error) {
	raw, err := c.gen.GenerateJSON(ctx, BuildCategorizationPrompt(serviceName, description))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCategorizationFailed, err)
	}
	result, err := ParseCategorization(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCategorizationFailed, err)
	}
	return result, nil
}

// ParseCategorization decodes a model reply, rejecting categories outside the
// enumeration and confidences outside [0, 1].
func ParseCategorization(raw []byte) (*Categorization, error) {
	var p struct {
		Category   string   `json:"category"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal(stripCodeFence(raw), &p); err != nil {
		return nil, fmt.Errorf("malformed categorization: %w", err)
	}
	category, ok := model.ParseCategory(p.Category)
	if !ok {
		return nil, fmt.Errorf("unknown category %q", p.Category)
	}
	if p.Confidence == nil {
		return nil, errors.New("malformed categorization: confidence missing")
	}
	if *p.Confidence < 0 || *p.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of range", *p.Confidence)
	}
	return &Categorization{Category: category, Confidence: *p.Confidence}, nil
}

// CategoryCache stores categorization results between calls.
type CategoryCache interface {
	Get(ctx context.Context, key string) (*Categorization, bool, error)
	Set(ctx context.Context, key string, value *Categorization, ttl time.Duration) error
}

// CacheKey normalizes the inputs so that spacing and case variants of the
// same service share an entry.
func CacheKey(serviceName, description string) string {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), " ")
	}
	return norm(serviceName) + "|" + norm(description)
}

type cachedCategorizer struct {
	next   Categorizer
	cache  CategoryCache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedCategorizer wraps next with a read-through cache. Cache failures
// are logged and fall through to next.
func NewCachedCategorizer(next Categorizer, cache CategoryCache, ttl time.Duration, logger zerolog.Logger) Categorizer {
	return &cachedCategorizer{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "category_cache").Logger(),
	}
}

func (c *cachedCategorizer) Categorize(ctx context.Context, serviceName, description string) (*Categorization, error) {
	key := CacheKey(serviceName, description)
	cached, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("category cache read failed")
	} else if ok {
		return cached, nil
	}

	result, err := c.next.Categorize(ctx, serviceName, description)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, result, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("category cache write failed")
	}
	return result, nil
}

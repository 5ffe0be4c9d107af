package rag

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condo-rag/internal/cache"
	"condo-rag/internal/models"
	"condo-rag/internal/ratelimit"
)

type fakeKV struct {
	data map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeKV) SetEx(_ context.Context, key, value string, _ time.Duration) error {
	f.data[key] = value
	return nil
}

func (f *fakeKV) Incr(_ context.Context, key string) (int64, error) {
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (f *fakeKV) Expire(_ context.Context, _ string, _ time.Duration) error { return nil }

func (f *fakeKV) Keys(_ context.Context, pattern string) ([]string, error) {
	var keys []string
	for k := range f.data {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) (int64, error) {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

type fakeEmbedder struct {
	queries int
	err     error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 2, 3}
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 2, 3}, nil
}

type fakeRetriever struct {
	calls  int
	chunks []models.RetrievedChunk
	err    error
}

func (f *fakeRetriever) Search(_ context.Context, _ []float32, _ string, limit int) ([]models.RetrievedChunk, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.chunks) {
		return f.chunks[:limit], nil
	}
	return f.chunks, nil
}

type fakeGenerator struct {
	calls   int
	answer  string
	prompts []string
	err     error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func poolChunks() []models.RetrievedChunk {
	return []models.RetrievedChunk{
		{Text: "The pool is open from 8am to 10pm.", PageNumber: 1, Filename: "rules.pdf", Similarity: 0.92},
		{Text: "Guests must be accompanied at the pool.", PageNumber: 1, Filename: "rules.pdf", Similarity: 0.87},
		{Text: "Quiet hours start at 10pm.", PageNumber: 2, Filename: "rules.pdf", Similarity: 0.61},
	}
}

type fixture struct {
	kv        *fakeKV
	embedder  *fakeEmbedder
	retriever *fakeRetriever
	generator *fakeGenerator
	svc       *Service
}

func newFixture(limit int) *fixture {
	f := &fixture{
		kv:        newFakeKV(),
		embedder:  &fakeEmbedder{},
		retriever: &fakeRetriever{chunks: poolChunks()},
		generator: &fakeGenerator{answer: "The pool is open from 8am to 10pm (rules.pdf, page 1)."},
	}
	gate := ratelimit.NewGate(f.kv, limit)
	responseCache := cache.NewCache(f.kv, time.Hour)
	f.svc = NewService(gate, responseCache, f.embedder, f.retriever, f.generator, 5)
	return f
}

func TestChatAnswersWithSources(t *testing.T) {
	f := newFixture(50)

	answer, err := f.svc.Chat(context.Background(), "What are the pool hours?", "condo-a", "user-1", 2)
	require.NoError(t, err)

	assert.Equal(t, "The pool is open from 8am to 10pm (rules.pdf, page 1).", answer.Answer)
	// sources mirror exactly the chunks that were fed in
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, models.Source{Document: "rules.pdf", Page: 1, Similarity: 0.92}, answer.Sources[0])
	assert.Equal(t, models.Source{Document: "rules.pdf", Page: 1, Similarity: 0.87}, answer.Sources[1])

	require.Len(t, f.generator.prompts, 1)
	prompt := f.generator.prompts[0]
	assert.Contains(t, prompt, "What are the pool hours?")
	assert.Contains(t, prompt, fmt.Sprintf(models.ContextSourceLabel, "rules.pdf", 1))
	assert.Contains(t, prompt, "The pool is open from 8am to 10pm.")
}

func TestChatSecondCallServedFromCache(t *testing.T) {
	f := newFixture(50)
	ctx := context.Background()

	first, err := f.svc.Chat(ctx, "What are the pool hours?", "condo-a", "user-1", 0)
	require.NoError(t, err)

	// different case and padding normalize to the same cache entry
	second, err := f.svc.Chat(ctx, "  What are the pool HOURS?  ", "condo-a", "user-1", 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.retriever.calls)
	assert.Equal(t, 1, f.generator.calls)
	assert.Equal(t, 1, f.embedder.queries)
}

func TestChatCacheIsTenantScoped(t *testing.T) {
	f := newFixture(50)
	ctx := context.Background()

	_, err := f.svc.Chat(ctx, "What are the pool hours?", "condo-a", "user-1", 0)
	require.NoError(t, err)
	_, err = f.svc.Chat(ctx, "What are the pool hours?", "condo-b", "user-2", 0)
	require.NoError(t, err)

	assert.Equal(t, 2, f.retriever.calls)
	assert.Equal(t, 2, f.generator.calls)
}

func TestChatQuotaCountsCacheHits(t *testing.T) {
	f := newFixture(2)
	ctx := context.Background()

	_, err := f.svc.Chat(ctx, "pool hours?", "condo-a", "user-1", 0)
	require.NoError(t, err)
	// second request is a cache hit but still consumes quota
	_, err = f.svc.Chat(ctx, "pool hours?", "condo-a", "user-1", 0)
	require.NoError(t, err)

	_, err = f.svc.Chat(ctx, "pool hours?", "condo-a", "user-1", 0)
	assert.ErrorIs(t, err, ratelimit.ErrQuotaExceeded)
	assert.Equal(t, 1, f.generator.calls)
}

func TestChatEmptyRetrievalShortCircuits(t *testing.T) {
	f := newFixture(50)
	f.retriever.chunks = nil

	answer, err := f.svc.Chat(context.Background(), "What is the wifi password?", "condo-a", "user-1", 0)
	require.NoError(t, err)

	assert.Equal(t, models.NoDocumentsAnswer, answer.Answer)
	assert.NotNil(t, answer.Sources)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, 0, f.generator.calls)
}

func TestChatEmptyQuestionRejectedBeforeQuota(t *testing.T) {
	f := newFixture(50)

	_, err := f.svc.Chat(context.Background(), "   ", "condo-a", "user-1", 0)
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Equal(t, 0, f.svc.UsageSnapshot(context.Background(), "user-1").CurrentCount)
}

func TestChatEmbeddingFailureIsUpstream(t *testing.T) {
	f := newFixture(50)
	f.embedder.err = errors.New("provider 503")

	_, err := f.svc.Chat(context.Background(), "pool hours?", "condo-a", "user-1", 0)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestChatGenerationFailureIsUpstreamAndNotCached(t *testing.T) {
	f := newFixture(50)
	f.generator.err = errors.New("provider timeout")

	_, err := f.svc.Chat(context.Background(), "pool hours?", "condo-a", "user-1", 0)
	assert.ErrorIs(t, err, ErrUpstream)

	// failure was not cached: a retry after the provider recovers regenerates
	f.generator.err = nil
	answer, err := f.svc.Chat(context.Background(), "pool hours?", "condo-a", "user-1", 0)
	require.NoError(t, err)
	assert.Equal(t, f.generator.answer, answer.Answer)
	assert.Equal(t, 2, f.generator.calls)
}

func TestUsageSnapshot(t *testing.T) {
	f := newFixture(50)
	ctx := context.Background()

	_, err := f.svc.Chat(ctx, "pool hours?", "condo-a", "user-1", 0)
	require.NoError(t, err)

	usage := f.svc.UsageSnapshot(ctx, "user-1")
	assert.Equal(t, 1, usage.CurrentCount)
	assert.Equal(t, 50, usage.Limit)
	assert.Equal(t, 49, usage.Remaining)
}

func TestCacheStatsAndInvalidate(t *testing.T) {
	f := newFixture(50)
	ctx := context.Background()

	_, err := f.svc.Chat(ctx, "pool hours?", "condo-a", "user-1", 0)
	require.NoError(t, err)
	_, err = f.svc.Chat(ctx, "gym hours?", "condo-a", "user-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, f.svc.CacheStats(ctx))

	_, err = f.svc.InvalidateCache(ctx, false)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	deleted, err := f.svc.InvalidateCache(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 0, f.svc.CacheStats(ctx))
}

func TestChatByteIdenticalReplay(t *testing.T) {
	f := newFixture(50)
	ctx := context.Background()

	first, err := f.svc.Chat(ctx, "What are the pool hours?", "condo-a", "user-1", 0)
	require.NoError(t, err)
	second, err := f.svc.Chat(ctx, "what are the pool hours?", "condo-a", "user-1", 0)
	require.NoError(t, err)

	assert.Equal(t, strings.TrimSpace(first.Answer), strings.TrimSpace(second.Answer))
	assert.Equal(t, first.Sources, second.Sources)
}

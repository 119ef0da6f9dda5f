package biz

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kart-io/fixgenie/internal/fixgenie/store"
	"github.com/kart-io/fixgenie/internal/model"
	"github.com/kart-io/fixgenie/internal/pkg/lexical"
	"github.com/kart-io/fixgenie/pkg/llm"
	"github.com/kart-io/fixgenie/pkg/llm/resilience"
)

// fastRetryConfig keeps retry tests quick: millisecond delays instead of the
// production backoff.
func fastRetryConfig(attempts int) *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:     attempts,
		InitialDelay:    time.Millisecond,
		MaxDelay:        time.Millisecond,
		Multiplier:      1,
		RetryableErrors: func(error) bool { return true },
	}
}

// hashEmbedder is a deterministic bag-of-words embedder: tokens hash into a
// fixed-dimension vector which is then normalised to unit length. Texts
// sharing tokens get positive cosine similarity.
type hashEmbedder struct {
	fail bool
}

func (h *hashEmbedder) embed(text string) []float32 {
	const dim = 32
	vec := make([]float32, dim)
	for _, tok := range lexical.Tokenize(text) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		vec[f.Sum32()%dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec
}

func (h *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if h.fail {
		return nil, errors.New("embedding provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.embed(t)
	}
	return out, nil
}

func (h *hashEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	if h.fail {
		return nil, errors.New("embedding provider unavailable")
	}
	return h.embed(text), nil
}

func (h *hashEmbedder) Name() string { return "hash-test" }

// countingChat records every generative call so tests can assert refusals
// and exact id lookups never reach the model.
type countingChat struct {
	calls atomic.Int64
}

func (c *countingChat) Chat(_ context.Context, _ []llm.Message) (string, error) {
	c.calls.Add(1)
	return "test answer citing incidents", nil
}

func (c *countingChat) Generate(_ context.Context, _ string, _ string) (string, error) {
	c.calls.Add(1)
	return "test answer citing incidents", nil
}

func (c *countingChat) Name() string { return "counting-test" }

// fakeCorpus is a map-backed CorpusStore.
type fakeCorpus struct {
	mu        sync.RWMutex
	incidents map[string]*model.Incident
}

func newFakeCorpus() *fakeCorpus {
	return &fakeCorpus{incidents: make(map[string]*model.Incident)}
}

func (f *fakeCorpus) Save(_ context.Context, inc *model.Incident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incidents[inc.ID] = inc
	return nil
}

func (f *fakeCorpus) Get(_ context.Context, id string) (*model.Incident, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.incidents[id], nil
}

func (f *fakeCorpus) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.incidents, id)
	return nil
}

func (f *fakeCorpus) List(_ context.Context) ([]*model.Incident, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*model.Incident, 0, len(f.incidents))
	for _, inc := range f.incidents {
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCorpus) IDs(ctx context.Context) ([]string, error) {
	all, _ := f.List(ctx)
	ids := make([]string, len(all))
	for i, inc := range all {
		ids[i] = inc.ID
	}
	return ids, nil
}

func (f *fakeCorpus) Count(_ context.Context) (int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return int64(len(f.incidents)), nil
}

// fakeFeedback is a slice-backed FeedbackStore.
type fakeFeedback struct {
	mu       sync.Mutex
	feedback []*model.Feedback
	searches []*model.SearchLog
}

func (f *fakeFeedback) AddFeedback(_ context.Context, fb *model.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fb.ID == "" {
		fb.ID = "fb-test"
	}
	f.feedback = append(f.feedback, fb)
	return nil
}

func (f *fakeFeedback) ListFeedback(_ context.Context, limit int) ([]*model.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.feedback) {
		limit = len(f.feedback)
	}
	return f.feedback[:limit], nil
}

func (f *fakeFeedback) AddSearchLog(_ context.Context, entry *model.SearchLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, entry)
	return nil
}

func (f *fakeFeedback) RecentSearches(_ context.Context, limit int) ([]*model.SearchLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.searches) {
		limit = len(f.searches)
	}
	return f.searches[:limit], nil
}

func testCorpusIncidents() []*model.Incident {
	return []*model.Incident{
		{
			ID:          "JSP-1052",
			Title:       "Snapdeal payment timeout on Pinelabs gateway",
			Description: "Snapdeal transactions against the Pinelabs gateway time out after thirty seconds under peak load with connection pool exhaustion.",
			Resolution:  "Increased the Pinelabs gateway connection pool and raised the retry budget.",
			Tags:        model.Tags{"snapdeal", "pinelabs", "timeout"},
		},
		{
			ID:          "JSP-2001",
			Title:       "UPI collect requests stuck pending for HDFC handles",
			Description: "UPI collect requests for HDFC bank handles remain in pending state because the NPCI callback queue backed up and stopped draining.",
			Resolution:  "Flushed the NPCI callback queue and added a drain alert.",
			Tags:        model.Tags{"upi", "hdfc", "pending"},
		},
		{
			ID:          "EUL-77",
			Title:       "Razorpay webhook signature validation failures",
			Description: "Webhook callbacks from Razorpay fail signature validation after the secret rotation, so payment status updates are dropped silently.",
			Resolution:  "Rotated the webhook secret on both sides and replayed the dropped callbacks.",
			Tags:        model.Tags{"razorpay", "webhook", "signature"},
		},
		{
			ID:          "INC-9",
			Title:       "Card tokenization errors after PKCS15 padding change",
			Description: "Visa card tokenization requests fail with MessageNotRecognized because the RSA PKCS15 padding mode changed during the HSM upgrade.",
			Resolution:  "Reverted the HSM to the previous RSA padding mode and re-ran tokenization.",
			Tags:        model.Tags{"card", "tokenization", "pkcs15"},
		},
	}
}

type testEnv struct {
	service  *Service
	chat     *countingChat
	corpus   *fakeCorpus
	feedback *fakeFeedback
	vectors  *store.MemoryIndex
	lexical  *lexical.Index
}

// setupTestService wires a full query service over in-memory stores and the
// deterministic embedder.
func setupTestService(t *testing.T, embedder llm.EmbeddingProvider, incidents []*model.Incident) *testEnv {
	t.Helper()
	ctx := context.Background()

	corpus := newFakeCorpus()
	vectors := store.NewMemoryIndex()
	lexicalIndex := lexical.NewIndex()

	indexer := &hashEmbedder{}
	docs := make([]lexical.Document, 0, len(incidents))
	for _, inc := range incidents {
		require.NoError(t, corpus.Save(ctx, inc))
		vec, err := indexer.EmbedSingle(ctx, inc.TrainingText())
		require.NoError(t, err)
		require.NoError(t, vectors.Upsert(ctx, inc.ID, vec, map[string]string{"title": inc.Title}))
		docs = append(docs, lexical.Document{ID: inc.ID, Text: inc.SearchableText()})
	}
	lexicalIndex.Rebuild(docs)

	chat := &countingChat{}
	feedback := &fakeFeedback{}
	limiter := llm.NewRateLimiter(&llm.RateLimiterConfig{RequestsPerSecond: 1000, Burst: 100, MaxBacklog: 100})

	retriever := NewRetriever(embedder, vectors, lexicalIndex, corpus)
	retriever.retry = fastRetryConfig(1)

	service := NewService(
		NewRouter(corpus),
		retriever,
		NewValidator(corpus),
		NewGenerator(chat, limiter),
		corpus,
		feedback,
		0,
	)
	return &testEnv{
		service:  service,
		chat:     chat,
		corpus:   corpus,
		feedback: feedback,
		vectors:  vectors,
		lexical:  lexicalIndex,
	}
}

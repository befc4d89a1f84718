package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hanziwordle/hanziwordle/pkg/config"
	"github.com/hanziwordle/hanziwordle/pkg/db"
	"github.com/hanziwordle/hanziwordle/pkg/metrics"
	"github.com/hanziwordle/hanziwordle/pkg/query"
)

type fakeStore struct {
	mu    sync.Mutex
	calls []query.Predicate
	words []db.Word
	err   error
}

func (f *fakeStore) SearchWords(ctx context.Context, p query.Predicate) ([]db.Word, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
	return f.words, f.err
}

func noCache() config.SearchConfig { return config.SearchConfig{} }

func TestParseSearch(t *testing.T) {
	p, err := ParseSearch([]string{"3", "ni3", "hao3", "?"})
	require.NoError(t, err)
	c, ok := p.Find(query.OpLike, query.FieldPinyin)
	require.True(t, ok)
	assert.Equal(t, "ni3 hao3 %", c.Pattern)

	p, err = ParseSearch([]string{"4"})
	require.NoError(t, err)
	lc, _ := p.Find(query.OpLength, query.FieldText)
	assert.Equal(t, 4, lc.Length)

	cases := []struct {
		tokens []string
		kind   query.Kind
	}{
		{nil, query.KindUsage},
		{[]string{"three"}, query.KindLength},
		{[]string{"2"}, query.KindLength},
		{[]string{"-1"}, query.KindLength},
		{[]string{"3", "中?文"}, query.KindCJK},
		{[]string{"3", "Ma"}, query.KindPinyin},
	}
	for _, tc := range cases {
		_, err := ParseSearch(tc.tokens)
		kind, ok := query.KindOf(err)
		require.True(t, ok, "tokens %v: %v", tc.tokens, err)
		assert.Equal(t, tc.kind, kind, "tokens %v", tc.tokens)
	}
}

func TestParseFuzzy(t *testing.T) {
	p, err := ParseFuzzy([]string{"ma", "hao3", "$", "2", "?", "你?"})
	require.NoError(t, err)
	require.Len(t, p.Clauses, 5)
	assert.Equal(t, query.Clause{Op: query.OpContains, Field: query.FieldPinyin, Pattern: "ma"}, p.Clauses[0])
	assert.Equal(t, query.Clause{Op: query.OpContains, Field: query.FieldPinyin, Pattern: "hao3"}, p.Clauses[1])

	cases := []struct {
		tokens []string
		kind   query.Kind
	}{
		{nil, query.KindUsage},
		{[]string{"ma", "3"}, query.KindUsage},
		{[]string{"ma", "$"}, query.KindUsage},
		{[]string{"$", "3"}, query.KindUsage},
		{[]string{"ma", "$", "x"}, query.KindLength},
		{[]string{"ma", "$", "1"}, query.KindLength},
		{[]string{"ma12", "$", "3"}, query.KindFuzzy},
		{[]string{"ma", "$", "3", "中?文"}, query.KindCJK},
		{[]string{"ma", "$", "3", "NI"}, query.KindPinyin},
	}
	for _, tc := range cases {
		_, err := ParseFuzzy(tc.tokens)
		kind, ok := query.KindOf(err)
		require.True(t, ok, "tokens %v: %v", tc.tokens, err)
		assert.Equal(t, tc.kind, kind, "tokens %v", tc.tokens)
	}
}

func TestServiceSearchFound(t *testing.T) {
	store := &fakeStore{words: []db.Word{{Text: "你好吗"}, {Text: "你好呀"}}}
	svc := NewService(store, noCache(), nil, nil)

	reply := svc.Search(context.Background(), []string{"3", "ni3", "hao3", "?"})
	assert.Equal(t, "你好吗\n你好呀", reply)
	require.Len(t, store.calls, 1)
	assert.Equal(t, query.MaxResults, store.calls[0].Limit)
}

// A single match counts as found.
func TestServiceSingleResultIsFound(t *testing.T) {
	store := &fakeStore{words: []db.Word{{Text: "你好吗"}}}
	svc := NewService(store, noCache(), nil, nil)
	assert.Equal(t, "你好吗", svc.Search(context.Background(), []string{"3"}))
}

func TestServiceNotFound(t *testing.T) {
	svc := NewService(&fakeStore{}, noCache(), nil, nil)
	assert.Equal(t, NotFound, svc.Fuzzy(context.Background(), []string{"ma", "$", "2"}))
}

func TestServiceRejectsWithoutQueryingStore(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := &fakeStore{}
	rec := metrics.NewRecorder()
	svc := NewService(store, noCache(), zap.New(core), rec)
	ctx := context.Background()

	assert.Equal(t, SearchUsage, svc.Search(ctx, nil))
	assert.Equal(t, FuzzyUsage, svc.Fuzzy(ctx, []string{"ma", "3"}))
	assert.Equal(t, "Length error: length must be a number", svc.Search(ctx, []string{"x"}))
	assert.Equal(t, "Length error: length must be at least 3", svc.Search(ctx, []string{"2"}))
	assert.Equal(t, "Length error: length must be at least 2", svc.Fuzzy(ctx, []string{"ma", "$", "1"}))
	assert.Equal(t, "Got bad query option, please check section: CJK", svc.Search(ctx, []string{"3", "中?文"}))
	assert.Equal(t, "Got bad query option, please check section: pinyin", svc.Search(ctx, []string{"3", "Ma"}))
	assert.Equal(t, "Got bad query option, please check section: Fuzzy", svc.Fuzzy(ctx, []string{"ma12", "$", "3"}))

	assert.Empty(t, store.calls)

	rejected := logs.FilterMessage("rejected query")
	require.Equal(t, 8, rejected.Len())
	entry := rejected.All()[5]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "CJK", entry.ContextMap()["kind"])
	assert.Equal(t, []interface{}{"3", "中?文"}, entry.ContextMap()["tokens"])
}

func TestServiceStoreFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	svc := NewService(&fakeStore{err: errors.New("disk on fire")}, noCache(), zap.New(core), nil)
	assert.Equal(t, SearchFailed, svc.Search(context.Background(), []string{"3"}))
	assert.Equal(t, 1, logs.FilterMessage("search failed").Len())
}

func TestServiceCachesResults(t *testing.T) {
	store := &fakeStore{words: []db.Word{{Text: "你好吗"}}}
	svc := NewService(store, config.SearchConfig{CacheSize: 8, CacheTTL: time.Minute}, nil, nil)
	ctx := context.Background()

	first := svc.Search(ctx, []string{"3", "ni3"})
	// Equivalent after padding, so it shares the cache entry.
	second := svc.Search(ctx, []string{"3", "ni3", "?", "?"})
	assert.Equal(t, first, second)
	assert.Len(t, store.calls, 1)

	svc.Search(ctx, []string{"3", "hao3"})
	assert.Len(t, store.calls, 2)
}

func TestServiceDoesNotCacheFailures(t *testing.T) {
	store := &fakeStore{err: errors.New("busy")}
	svc := NewService(store, config.SearchConfig{CacheSize: 8, CacheTTL: time.Minute}, nil, nil)
	ctx := context.Background()

	assert.Equal(t, SearchFailed, svc.Search(ctx, []string{"3"}))
	store.mu.Lock()
	store.err = nil
	store.words = []db.Word{{Text: "中国人"}}
	store.mu.Unlock()
	assert.Equal(t, "中国人", svc.Search(ctx, []string{"3"}))
}

func TestServiceConcurrentRequests(t *testing.T) {
	store := &fakeStore{words: []db.Word{{Text: "你好吗"}}}
	svc := NewService(store, config.SearchConfig{CacheSize: 4, CacheTTL: time.Minute}, nil, metrics.NewRecorder())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				assert.Equal(t, "你好吗", svc.Search(context.Background(), []string{"3"}))
			} else {
				assert.Equal(t, "你好吗", svc.Fuzzy(context.Background(), []string{"ni", "$", "3"}))
			}
		}(i)
	}
	wg.Wait()
}

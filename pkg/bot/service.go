package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/hanziwordle/hanziwordle/pkg/config"
	"github.com/hanziwordle/hanziwordle/pkg/db"
	"github.com/hanziwordle/hanziwordle/pkg/metrics"
	"github.com/hanziwordle/hanziwordle/pkg/query"
)

const (
	CommandSearch = "search"
	CommandFuzzy  = "fuzzy"

	// FuzzyDelimiter separates must-contain terms from the length.
	FuzzyDelimiter = "$"

	minSearchLength = 3
	minFuzzyLength  = 2
)

// Replies sent to users.
const (
	SearchUsage  = "usage: /search <length> [pinyin(with ?) ...] [CJK(with ?)]"
	FuzzyUsage   = "usage: /fuzzy <pinyin> [pinyin ...] $ <length> [pinyin(with ?) ...] [CJK(with ?)]"
	NotFound     = "not found"
	SearchFailed = "search failed, please try again later"
)

// Store is the part of the word store the service reads from.
type Store interface {
	SearchWords(ctx context.Context, p query.Predicate) ([]db.Word, error)
}

// SQLStore runs predicates against a database handle.
type SQLStore struct {
	DB db.Querier
}

func (s SQLStore) SearchWords(ctx context.Context, p query.Predicate) ([]db.Word, error) {
	return db.SearchWords(ctx, s.DB, p)
}

var errNotNumber = errors.New("length must be a number")

// Service answers search commands. Requests share nothing but the store and
// the result cache, so handlers may call it concurrently.
type Service struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Recorder
	cache   *expirable.LRU[string, []string]
}

// NewService creates a Service. logger and rec may be nil.
func NewService(store Store, cfg config.SearchConfig, logger *zap.Logger, rec *metrics.Recorder) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:   store,
		logger:  logger.Named("search"),
		metrics: rec,
	}
	if cfg.CacheSize > 0 {
		s.cache = expirable.NewLRU[string, []string](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return s
}

// parseLength reads the length token and enforces the command's minimum.
func parseLength(token string, minimum int) (int, error) {
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, &query.Error{Kind: query.KindLength, Token: token, Err: errNotNumber}
	}
	if n < minimum {
		return 0, &query.Error{Kind: query.KindLength, Token: token, Err: fmt.Errorf("length must be at least %d", minimum)}
	}
	return n, nil
}

// ParseSearch validates "<length> [pinyin...] [cjk]".
func ParseSearch(tokens []string) (query.Predicate, error) {
	if len(tokens) == 0 {
		return query.Predicate{}, &query.Error{Kind: query.KindUsage}
	}
	length, err := parseLength(tokens[0], minSearchLength)
	if err != nil {
		return query.Predicate{}, err
	}
	return query.Build(length, tokens[1:])
}

// ParseFuzzy validates "<term...> $ <length> [pinyin...] [cjk]".
func ParseFuzzy(tokens []string) (query.Predicate, error) {
	sep := -1
	for i, tok := range tokens {
		if tok == FuzzyDelimiter {
			sep = i
			break
		}
	}
	if sep <= 0 || sep == len(tokens)-1 {
		return query.Predicate{}, &query.Error{Kind: query.KindUsage}
	}
	length, err := parseLength(tokens[sep+1], minFuzzyLength)
	if err != nil {
		return query.Predicate{}, err
	}
	return query.BuildFuzzy(tokens[:sep], length, tokens[sep+2:])
}

// Search answers a /search command. tokens are the words after the command.
func (s *Service) Search(ctx context.Context, tokens []string) string {
	return s.run(ctx, CommandSearch, tokens, ParseSearch)
}

// Fuzzy answers a /fuzzy command.
func (s *Service) Fuzzy(ctx context.Context, tokens []string) string {
	return s.run(ctx, CommandFuzzy, tokens, ParseFuzzy)
}

func (s *Service) run(ctx context.Context, command string, tokens []string, parse func([]string) (query.Predicate, error)) string {
	s.metrics.Request(command)

	p, err := parse(tokens)
	if err != nil {
		kind, _ := query.KindOf(err)
		s.metrics.Rejected(command, string(kind))
		s.logger.Warn("rejected query",
			zap.String("command", command),
			zap.String("kind", string(kind)),
			zap.Strings("tokens", tokens),
			zap.Error(err),
		)
		return replyFor(command, err)
	}

	key := p.String()
	s.logger.Debug("query", zap.String("command", command), zap.String("predicate", key))

	var texts []string
	if cached, ok := s.cacheGet(key); ok {
		s.metrics.CacheHit()
		texts = cached
	} else {
		words, err := s.store.SearchWords(ctx, p)
		if err != nil {
			s.metrics.StoreFailure()
			s.logger.Error("search failed",
				zap.String("command", command),
				zap.String("predicate", key),
				zap.Error(err),
			)
			return SearchFailed
		}
		texts = make([]string, len(words))
		for i, w := range words {
			texts[i] = w.Text
		}
		s.cacheAdd(key, texts)
	}

	s.metrics.Results(command, len(texts))
	if len(texts) == 0 {
		return NotFound
	}
	return strings.Join(texts, "\n")
}

func (s *Service) cacheGet(key string) ([]string, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Service) cacheAdd(key string, texts []string) {
	if s.cache != nil {
		s.cache.Add(key, texts)
	}
}

// replyFor turns a rejected query into the message shown to the user.
func replyFor(command string, err error) string {
	var qe *query.Error
	if !errors.As(err, &qe) {
		return SearchFailed
	}
	switch qe.Kind {
	case query.KindUsage:
		if command == CommandFuzzy {
			return FuzzyUsage
		}
		return SearchUsage
	case query.KindLength:
		if qe.Err != nil {
			return "Length error: " + qe.Err.Error()
		}
		return "Length error"
	default:
		return "Got bad query option, please check section: " + string(qe.Kind)
	}
}

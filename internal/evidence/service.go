// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evidence orchestrates a search request end to end: validate,
// resolve the search expression, consult the cache, and on a miss run the
// two upstream phases, parse, and write back. The package is
// transport-free; the HTTP layer binds it to routes.
package evidence

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/evidencemed/evidence-gateway/internal/cache"
	"github.com/evidencemed/evidence-gateway/internal/conditions"
	"github.com/evidencemed/evidence-gateway/internal/pubmed"
	"github.com/evidencemed/evidence-gateway/pkg/types"
)

// Source is the fixed provenance label on every response.
const Source = "PubMed/NCBI"

// ErrInvalidRequest rejects requests carrying neither a query nor a
// condition. No cache or upstream I/O happens for such requests.
var ErrInvalidRequest = errors.New("query or condition is required")

// SearchClient is the two-phase upstream collaborator.
type SearchClient interface {
	Search(ctx context.Context, term string, retMax, retStart int) (ids []string, total int, err error)
	Fetch(ctx context.Context, ids []string) (string, error)
}

// ResultCache is the keyed, expiring result store.
type ResultCache interface {
	Get(ctx context.Context, key string) (*types.CacheEntry, error)
	Upsert(ctx context.Context, entry *types.CacheEntry) error
}

// Service handles search requests. All collaborators are injected at
// construction; Service itself holds no mutable state and is safe for
// concurrent use.
type Service struct {
	mapper *conditions.Mapper
	client SearchClient
	cache  ResultCache
	log    *zap.SugaredLogger
	cfg    types.SearchConfig
}

// NewService builds a Service. A nil logger gets a no-op one.
func NewService(mapper *conditions.Mapper, client SearchClient, rc ResultCache, log *zap.SugaredLogger, cfg types.SearchConfig) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = types.DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = types.DefaultMaxPageSize
	}
	return &Service{mapper: mapper, client: client, cache: rc, log: log, cfg: cfg}
}

// Search runs the request state machine. It returns ErrInvalidRequest for
// an empty request, a *pubmed.UpstreamError when either upstream phase
// fails, and a complete response otherwise. A cache write failure is
// logged but never fails a request whose upstream round trip succeeded.
func (s *Service) Search(ctx context.Context, req types.SearchRequest) (*types.SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	condition := strings.TrimSpace(req.Condition)
	if query == "" && condition == "" {
		return nil, ErrInvalidRequest
	}

	pageSize := req.MaxResults
	if pageSize <= 0 {
		pageSize = s.cfg.DefaultPageSize
	}
	if pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}

	// A condition overrides free text; the cache key derives from the
	// resolved expression, not the raw input.
	resolved := query
	if condition != "" {
		resolved = s.mapper.Map(condition)
	}
	key := cache.Key(resolved, condition, pageSize, page)

	if entry, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warnw("cache read failed, treating as miss", "key", key, "error", err)
	} else if entry != nil {
		s.log.Debugw("cache hit", "key", key)
		return buildResponse(entry.Articles, entry.TotalCount, resolved, true, page, pageSize), nil
	}

	ids, total, err := s.client.Search(ctx, resolved, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	articles := []types.Article{}
	if len(ids) > 0 {
		payload, err := s.client.Fetch(ctx, ids)
		if err != nil {
			return nil, err
		}
		if parsed := pubmed.ParseArticles(payload); parsed != nil {
			articles = parsed
		}
	}

	entry := &types.CacheEntry{
		Key:        key,
		Query:      resolved,
		Condition:  condition,
		Articles:   articles,
		TotalCount: total,
	}
	if err := s.cache.Upsert(ctx, entry); err != nil {
		s.log.Warnw("cache write failed", "key", key, "error", err)
	}

	s.log.Infow("search completed",
		"query", resolved, "condition", condition,
		"total", total, "returned", len(articles), "page", page)
	return buildResponse(articles, total, resolved, false, page, pageSize), nil
}

func buildResponse(articles []types.Article, total int, query string, cached bool, page, pageSize int) *types.SearchResponse {
	if articles == nil {
		articles = []types.Article{}
	}
	return &types.SearchResponse{
		Articles:   articles,
		TotalCount: total,
		Query:      query,
		Source:     Source,
		Cached:     cached,
		Page:       page,
		PageSize:   pageSize,
	}
}

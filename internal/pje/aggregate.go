package pje

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prudentia/pje-monitor/internal/telemetry"
)

// DefaultSearchWorkers bounds the concurrent page fan-out. The portal's rate
// policy serializes the actual requests, so more workers only deepen the
// wait queue.
const DefaultSearchWorkers = 4

// SearchPage retrieves and parses a single result page. The returned error
// is non-nil only for invalid input; fetch and parse failures are reported
// through SearchResult.Error so callers always get a structured result.
func (s *Searcher) SearchPage(ctx context.Context, query SearchQuery) (SearchResult, error) {
	query = query.WithDefaults()
	result := SearchResult{
		Query:       query,
		CurrentPage: query.Page,
		TotalPages:  1,
		FetchedAt:   s.clock.Now(),
	}
	if err := query.Validate(); err != nil {
		return result, err
	}

	resp, err := s.client.FetchPage(ctx, query)
	if err != nil {
		s.logger.Error("search page failed",
			zap.String("bar_number", query.BarNumber),
			zap.String("state_code", query.StateCode),
			zap.Int("page", query.Page),
			zap.Error(err),
		)
		result.Error = err.Error()
		return result, nil
	}

	page, err := s.parser.Parse(resp.Body, query.PageSize)
	if err != nil {
		s.logger.Error("parsing result page failed", zap.Int("page", query.Page), zap.Error(err))
		result.Error = err.Error()
		return result, nil
	}

	TotalPublicationsParsed.Add(float64(len(page.Publications)))
	result.Publications = page.Publications
	result.TotalFound = page.TotalFound
	result.CurrentPage = page.CurrentPage
	result.TotalPages = page.TotalPages
	return result, nil
}

// SearchAllPages walks every result page sequentially, starting from page 1.
// A failure on page 1 fails the whole search; later pages are logged and
// skipped so one bad page cannot sink the rest.
func (s *Searcher) SearchAllPages(ctx context.Context, query SearchQuery) (SearchResult, error) {
	result, err := s.searchAllPages(ctx, query)
	telemetry.ObserveSearch(searchOutcome(result, err))
	return result, err
}

func (s *Searcher) searchAllPages(ctx context.Context, query SearchQuery) (SearchResult, error) {
	query = query.WithDefaults()
	query.Page = 1

	first, err := s.SearchPage(ctx, query)
	if err != nil || first.Error != "" || first.TotalPages <= 1 {
		return first, err
	}

	merged := first.Publications
	for page := 2; page <= first.TotalPages; page++ {
		if ctx.Err() != nil {
			return s.cancelledResult(query, ctx.Err()), nil
		}
		sub := query
		sub.Page = page
		res, _ := s.SearchPage(ctx, sub)
		if res.Error != "" {
			s.logger.Warn("skipping failed page", zap.Int("page", page), zap.String("error", res.Error))
			continue
		}
		merged = append(merged, res.Publications...)
	}
	return s.finishAggregate(first, merged, query), nil
}

// SearchAllPagesConcurrent behaves like SearchAllPages but fans the
// remaining pages out to a bounded worker group. Results are merged in page
// order regardless of completion order.
func (s *Searcher) SearchAllPagesConcurrent(ctx context.Context, query SearchQuery) (SearchResult, error) {
	result, err := s.searchAllPagesConcurrent(ctx, query)
	telemetry.ObserveSearch(searchOutcome(result, err))
	return result, err
}

func (s *Searcher) searchAllPagesConcurrent(ctx context.Context, query SearchQuery) (SearchResult, error) {
	query = query.WithDefaults()
	query.Page = 1

	first, err := s.SearchPage(ctx, query)
	if err != nil || first.Error != "" || first.TotalPages <= 1 {
		return first, err
	}

	remaining := make([]SearchResult, first.TotalPages-1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for page := 2; page <= first.TotalPages; page++ {
		g.Go(func() error {
			sub := query
			sub.Page = page
			res, _ := s.SearchPage(gctx, sub)
			remaining[page-2] = res
			return nil
		})
	}
	// Workers never return errors; failed pages carry their own Error field.
	_ = g.Wait()

	if ctx.Err() != nil {
		return s.cancelledResult(query, ctx.Err()), nil
	}

	merged := first.Publications
	for _, res := range remaining {
		if res.Error != "" {
			s.logger.Warn("skipping failed page", zap.Int("page", res.CurrentPage), zap.String("error", res.Error))
			continue
		}
		merged = append(merged, res.Publications...)
	}
	return s.finishAggregate(first, merged, query), nil
}

// finishAggregate recomputes the totals from the merged set. The portal's
// announced total drifts while a search is in flight, so the merged length
// is the authoritative count.
func (s *Searcher) finishAggregate(first SearchResult, merged []Publication, query SearchQuery) SearchResult {
	first.Publications = merged
	first.TotalFound = len(merged)
	first.TotalPages = PageCount(len(merged), query.PageSize)
	first.FetchedAt = s.clock.Now()
	return first
}

func (s *Searcher) cancelledResult(query SearchQuery, cause error) SearchResult {
	return SearchResult{
		Query:       query,
		CurrentPage: query.Page,
		TotalPages:  1,
		FetchedAt:   s.clock.Now(),
		Error:       cause.Error(),
	}
}

func searchOutcome(result SearchResult, err error) string {
	switch {
	case err != nil:
		return "invalid"
	case result.Error != "":
		return "error"
	default:
		return "ok"
	}
}

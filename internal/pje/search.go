package pje

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SearcherConfig tunes the search façade. Zero values fall back to the
// portal defaults.
type SearcherConfig struct {
	// Workers bounds the concurrent page fan-out.
	Workers int
	// PageSize is the page length requested from the portal.
	PageSize int
}

// Searcher is the high-level entry point for portal searches. It owns the
// fetch client and the parser and exposes the attorney-facing operations.
type Searcher struct {
	client   *Client
	parser   *Parser
	clock    Clock
	logger   *zap.Logger
	workers  int
	pageSize int
}

// NewSearcher constructs a Searcher.
func NewSearcher(cfg SearcherConfig, client *Client, parser *Parser, clock Clock, logger *zap.Logger) *Searcher {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultSearchWorkers
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = DefaultPageSize
	}
	return &Searcher{
		client:   client,
		parser:   parser,
		clock:    clock,
		logger:   logger,
		workers:  cfg.Workers,
		pageSize: cfg.PageSize,
	}
}

// SearchByPeriod finds every publication for an attorney within the given
// availability window. Nil dates leave the window open on that side.
func (s *Searcher) SearchByPeriod(ctx context.Context, barNumber, stateCode string, startDate, endDate *time.Time) (SearchResult, error) {
	return s.SearchAllPages(ctx, s.periodQuery(barNumber, stateCode, startDate, endDate))
}

// SearchByPeriodConcurrent is SearchByPeriod with concurrent page fan-out.
func (s *Searcher) SearchByPeriodConcurrent(ctx context.Context, barNumber, stateCode string, startDate, endDate *time.Time) (SearchResult, error) {
	return s.SearchAllPagesConcurrent(ctx, s.periodQuery(barNumber, stateCode, startDate, endDate))
}

// SearchLastDays finds every publication for an attorney from the last
// `days` days up to now.
func (s *Searcher) SearchLastDays(ctx context.Context, barNumber, stateCode string, days int) (SearchResult, error) {
	start, end := s.lastDaysWindow(days)
	return s.SearchByPeriod(ctx, barNumber, stateCode, &start, &end)
}

// SearchLastDaysConcurrent is SearchLastDays with concurrent page fan-out.
func (s *Searcher) SearchLastDaysConcurrent(ctx context.Context, barNumber, stateCode string, days int) (SearchResult, error) {
	start, end := s.lastDaysWindow(days)
	return s.SearchByPeriodConcurrent(ctx, barNumber, stateCode, &start, &end)
}

func (s *Searcher) lastDaysWindow(days int) (time.Time, time.Time) {
	end := s.clock.Now()
	return end.AddDate(0, 0, -days), end
}

func (s *Searcher) periodQuery(barNumber, stateCode string, startDate, endDate *time.Time) SearchQuery {
	return SearchQuery{
		BarNumber: barNumber,
		StateCode: stateCode,
		StartDate: startDate,
		EndDate:   endDate,
		Page:      1,
		PageSize:  s.pageSize,
	}
}

// Package main implements a one-shot publication search against the PJe
// consultation portal. It writes the full search result as JSON, so portal
// failures such as captcha challenges land in the output file rather than
// the exit code.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/prudentia/pje-monitor/internal/clock/system"
	collyfetcher "github.com/prudentia/pje-monitor/internal/fetcher/colly"
	"github.com/prudentia/pje-monitor/internal/hash/md5"
	"github.com/prudentia/pje-monitor/internal/logging"
	"github.com/prudentia/pje-monitor/internal/pje"
	"github.com/prudentia/pje-monitor/internal/policy/ratelimit"
)

const (
	fetchTimeout   = 30 * time.Second
	minInterval    = time.Second
	maxAttempts    = 3
	backoffInitial = time.Second
	backoffMax     = 10 * time.Second
)

func main() {
	bar := flag.String("bar", "", "Attorney bar registration number (número OAB)")
	state := flag.String("state", "", "Bar state code (UF), e.g. SP")
	days := flag.Int("days", 7, "How many days back to search")
	out := flag.String("out", "publicacoes.json", "Output file for the search result JSON")
	proxy := flag.String("proxy", "", "Optional proxy URL for portal requests")
	async := flag.Bool("async", false, "Fetch result pages concurrently")
	flag.Parse()

	logger, err := logging.New(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := runSearch(ctx, logger, *bar, *state, *days, *proxy, *async)
	if err != nil {
		var validation *pje.ValidationError
		if errors.As(err, &validation) {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "search failed: %v\n", err)
		os.Exit(1)
	}

	if err := writeResult(*out, result); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if result.Error != "" {
		logger.Warn("Search finished with portal error",
			zap.String("error", result.Error),
			zap.String("out", *out),
		)
		return
	}
	logger.Info("Search finished",
		zap.Int("found", result.TotalFound),
		zap.Int("pages", result.TotalPages),
		zap.String("out", *out),
	)
}

func runSearch(ctx context.Context, logger *zap.Logger, bar, state string, days int, proxy string, async bool) (pje.SearchResult, error) {
	fetcher, err := collyfetcher.New(collyfetcher.Config{
		Timeout:  fetchTimeout,
		ProxyURL: proxy,
	})
	if err != nil {
		return pje.SearchResult{}, fmt.Errorf("fetcher init failed: %w", err)
	}
	policy := ratelimit.New(ratelimit.Config{MinInterval: minInterval, Burst: 1})
	retry := pje.NewExponentialRetryPolicy(maxAttempts, backoffInitial, backoffMax)
	client := pje.NewClient(pje.ClientConfig{}, fetcher, policy, retry, nil, nil, logger.Named("fetch"))
	parser := pje.NewParser(logger.Named("parser"), system.New(), md5.New())
	searcher := pje.NewSearcher(pje.SearcherConfig{}, client, parser, system.New(), logger.Named("search"))

	if async {
		return searcher.SearchLastDaysConcurrent(ctx, bar, state, days)
	}
	return searcher.SearchLastDays(ctx, bar, state, days)
}

func writeResult(path string, result pje.SearchResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

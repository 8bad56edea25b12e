package pje

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalFetches tracks the number of result pages fetched successfully.
	TotalFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pje_fetches_total",
		Help: "The total number of result pages fetched successfully.",
	})
	// TotalFetchAttempts tracks the number of HTTP attempts dispatched,
	// including retries.
	TotalFetchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pje_fetch_attempts_total",
		Help: "The total number of HTTP attempts sent, retries included.",
	})
	// TotalFetchErrors tracks attempts that ended in a retryable error.
	TotalFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pje_fetch_errors_total",
		Help: "The total number of attempts that failed with a network error.",
	})
	// TotalCaptchaHits tracks responses recognized as captcha challenges.
	TotalCaptchaHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pje_captcha_hits_total",
		Help: "The total number of responses recognized as captcha challenges.",
	})
	// TotalNotFoundHits tracks responses recognized as missing pages.
	TotalNotFoundHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pje_not_found_hits_total",
		Help: "The total number of responses recognized as missing pages.",
	})
	// TotalPublicationsParsed tracks publications extracted from result pages.
	TotalPublicationsParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pje_publications_parsed_total",
		Help: "The total number of publications extracted from result pages.",
	})
)

// Package main hosts the publication monitor daemon entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, ad-hoc search,
//     and subscription management endpoints. Subscription writes are validated
//     against the portal contract and persisted through the PublicationStore
//     port before the monitor picks them up.
//   - Monitor: internal/monitor schedules one self-rescheduling check chain
//     per active subscription. Each check searches the portal over a window
//     that overlaps the previous check, deduplicates publications by identity
//     hash, classifies urgency, persists new entries, and dispatches
//     notifications. Failures retry on a short backoff before the chain
//     resumes its normal interval.
//   - Fetch pipeline: the Colly-based fetcher issues rate-limited GETs
//     against comunica.pje.jus.br with retry/backoff; captcha and not-found
//     responses are terminal. Raw pages can be archived to the configured
//     snapshot backend (memory/local/GCS).
//   - Persistence & fanout: subscriptions, publications, and check logs live
//     behind the PublicationStore port (in-memory or Postgres). Notifications
//     go to the configured channel (log, memory, or Pub/Sub). Check lifecycle
//     events are buffered by the progress hub and fanned out to the zap and
//     Prometheus sinks.
//   - Configuration & plumbing: Viper populates config from env/files with
//     the PJE_ prefix; zap provides structured logging; Prometheus metrics
//     are exported via /metrics.
//
// Operational notes:
//   - Concurrency model: per-subscription timers from the scheduler; search
//     pagination fans out over a bounded worker pool. Shutdown is coordinated
//     via context cancellation, so an in-flight check aborts before any store
//     write and the next daemon start re-checks from the last recorded
//     watermark.
//   - Rate limiting: a single shared limiter paces all portal requests;
//     fetch.min_interval_ms controls the floor between requests.
//   - Run locally: go run ./cmd/pjemonitor -config config.yaml (or rely
//     solely on PJE_* env overrides).
package main

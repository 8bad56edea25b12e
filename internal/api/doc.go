// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/search for ad-hoc publication searches.
//   - /v1/subscriptions for managing monitored attorneys: create, list,
//     pause/resume, manual check triggers, and per-subscription check logs.
package api

// Package api hosts the HTTP facade over the Douban lookups. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/search, /v1/suggest, /v1/subjects/{id}/..., /v1/celebrities/...
//     and /v1/login, each returning the lookup result as JSON.
package api

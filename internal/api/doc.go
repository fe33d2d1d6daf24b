// Package api hosts the HTTP server, middleware and handlers of the lint
// service. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /lint?url=...[&type=summary] to lint one story.
package api

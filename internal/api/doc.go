// Package api hosts the admin HTTP server. Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/pending?limit=N lists listings still waiting for a description.
//   - POST /v1/runs/list runs the list phase; body {"search_terms": [...]} is optional.
//   - POST /v1/runs/detail runs the detail phase.
//
// Runs execute synchronously and answer with the run summary. A run requested
// while another is in flight gets 409 Conflict.
package api

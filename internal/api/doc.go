// Package api hosts the operator HTTP endpoints that run alongside a crawl:
//   - GET /healthz for liveness.
//   - GET /readyz, which reports 503 until the crawl has been wired and 200
//     while it runs.
//   - GET /metrics for Prometheus scraping.
package api

// Package api provides the monitoring platform REST client.
//
// Endpoints used:
//   - GET /api/v1/dashboard/stats
//   - GET /api/v1/dashboard/sites/health
//   - GET /api/v1/dashboard/alerts/trend
//
// Requests retry on 5xx and 429 with exponential backoff and jitter.
package api

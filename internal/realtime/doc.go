// Package realtime implements the resilient subscription client.
//
// The client:
//   - Maintains one WebSocket session to the platform push endpoint
//   - Declares a fixed room subscription set immediately after connect
//   - Reconnects with exponential backoff (1s base, 30s cap, 5 attempts)
//   - Exposes the latest inbound message plus a buffered event stream
//
// Every internal failure is recovered locally; nothing is raised to the
// caller. Failure visibility is via State() and structured logs only.
package realtime

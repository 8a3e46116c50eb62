// Package poller implements the dashboard snapshot poller.
//
// The poller:
//   - Fetches the dashboard stats endpoint on a fixed 10 second interval
//   - Substitutes a static fallback snapshot when the fetch fails
//   - Never surfaces a fetch error to its consumer
//
// The fallback-on-failure policy is deliberate: downstream consumers always
// receive a snapshot, flagged with its source, and render a stale indicator
// rather than an error.
package poller

// Package router parses realtime frames into typed messages.
//
// The router:
//   - Consumes raw frames from the realtime subscription client
//   - Parses alert, sensor_data, and safety frames into typed records
//   - Skips control frames (connected, pong, keepalive, subscribed)
//   - Feeds growable buffers consumed by the database writers
package router

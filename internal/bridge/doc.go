// Package bridge republishes realtime frames to Redis pub/sub so other
// on-site consumers (HMI panels, local alerting) get them without holding
// their own upstream connection.
package bridge

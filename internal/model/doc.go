// Package model defines the domain types shared across components.
//
// Records mirror the monitoring platform's API schema: alerts, sensor
// readings, safety events, and the dashboard snapshot aggregates. All
// timestamps from the platform are RFC 3339 strings; components that need
// ordering parse them at the edge.
package model

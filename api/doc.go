// Package api provides request/response types for the BatchFlow HTTP API.
//
// # API Overview
//
// BatchFlow exposes a RESTful API for:
//   - Synchronous work submission through the batching pipeline
//   - Pipeline statistics and worker pool inspection
//   - Manual autoscaling evaluation
//   - Scale-event history backed by the journal
//   - Live observation samples over WebSocket
//
// # Authentication
//
// When an auth secret is configured, endpoints under /api/v1 require a
// Bearer token:
//
//	Authorization: Bearer <jwt>
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
package api

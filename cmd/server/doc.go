// Package main is the entry point for the ad preview server.
//
// The server emulates an ad-SDK container for QA: it serves uploaded
// creative bundles from an in-memory virtual origin with the bridge script
// injected, runs creative JavaScript in an embedded engine against the same
// protocol state machine, and streams intents and lifecycle events to
// connected clients.
//
// The server provides:
//   - REST API for loading creatives, bundles, and remote tags
//   - Virtual bundle origin under the configured root (default /ad)
//   - WebSocket stream of intents, events, and console output
//   - Standalone document export
//   - Rate limiting and Prometheus metrics
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8070 -width 320 -height 480
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main

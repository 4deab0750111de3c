// Package server assembles the preview service.
//
// It wires the components together:
//   - HTTP routing with Gin
//   - Middleware stack (CORS, rate limiting, metrics, recovery)
//   - Virtual bundle origin mounted at the configured root
//   - Script host adapter bound to the bundle resolver
//   - WebSocket event stream fed by intents, lifecycle events, and console
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger (production or development)
//  3. Build the router actor, adapter, hub, and handlers
//  4. Setup HTTP routes and middleware
//  5. Start HTTP server
//  6. Graceful shutdown on signal
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv := server.New(cfg, nil)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server

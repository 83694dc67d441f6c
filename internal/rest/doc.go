// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-turbocharger.
//
// go-turbocharger is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package rest provides the HTTP API of the turbod daemon.
//
// The API exposes the configured signing algorithms, JWT issue and
// verification, the public JWK set and Snowflake IDs. Handlers read the
// current registry on every request so a hot reload takes effect without
// restarting the listener.
//
// # Server Setup
//
//	srv, _ := rest.NewServer(&rest.Config{
//	    Port:     8080,
//	    Registry: func() *registry.Registry { return current.Load() },
//	    IDs:      gen,
//	    Version:  "1.0.0",
//	})
//	go srv.Start()
//	defer srv.Stop(ctx)
//
// # API Endpoints
//
// Health:
//   - GET /health
//   - GET /health/live
//   - GET /health/ready
//   - GET /health/startup
//
// Keys:
//   - GET /.well-known/jwks.json
//
// Algorithms:
//   - GET  /api/v1/algorithms
//   - GET  /api/v1/algorithms/{name}
//   - POST /api/v1/algorithms/{name}/sign
//   - POST /api/v1/algorithms/{name}/verify
//
// Tokens:
//   - POST /api/v1/tokens
//   - POST /api/v1/tokens/verify
//
// IDs:
//   - GET /api/v1/ids?count=n
//
// Every response carries an X-Correlation-ID header. Errors are returned as
// {"error": "...", "message": "...", "code": 400}.
package rest

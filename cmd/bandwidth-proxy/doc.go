// Package main is the entry point for bandwidth-proxy, an HTTP image
// compression proxy for data-saving browser extensions.
//
// A client requests /api/index?url=<image>&jpeg=<0|1>&bw=<0|1>&l=<quality>.
// The proxy fetches the image, and unless it is already small or unsuitable,
// returns it resized to at most 400px wide and re-encoded as AVIF or JPEG.
//
// # Application Lifecycle
//
//  1. Logging: built from LOG_LEVEL, DEBUG and LOG_ENABLED
//  2. Memory Configuration: sets GOMEMLIMIT from MEMORY_LIMIT
//  3. Configuration Loading: defaults, CONFIG_FILE, then environment
//  4. Component Initialization:
//     - libvips and the AVIF/JPEG encoders
//     - Codec worker pool sized to GOMAXPROCS
//     - Memory monitor gating codec work
//     - Fetch permit pool and upstream HTTP client
//     - Metrics collector
//  5. HTTP Server Setup: routes, middleware, metrics server on METRICS_PORT
//  6. Graceful Shutdown: on SIGINT/SIGTERM the permit pool closes (readiness
//     turns 503), in-flight requests drain, then the worker pool and libvips stop
//
// # Endpoints
//
//   - GET /api/index, /api/index/: compress an image
//   - GET /health, /health/: plain-text liveness banner
//   - GET /healthz, /livez, /readyz: JSON probes
//   - GET /version: build information
//   - GET :METRICS_PORT/metrics: Prometheus metrics
package main

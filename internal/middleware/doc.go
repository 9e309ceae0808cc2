// Package middleware provides the HTTP middleware chain for the proxy.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics with bounded path labels
//   - Response compression (brotli, gzip) for text bodies such as JSON errors
//   - Permissive CORS and X-Request-ID propagation
//
// Every response writer wrapper implements Unwrap so http.ResponseController
// can reach the connection for write deadlines.
package middleware

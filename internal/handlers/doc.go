// Package handlers implements the proxy's HTTP endpoints.
//
// Compress serves /api/index: it parses the query, runs the request pipeline and
// writes either the transformed image or a JSON error. The health endpoints
// follow the Kubernetes probe conventions; /health keeps the plain-text reply
// that browser extensions use to detect the proxy.
package handlers

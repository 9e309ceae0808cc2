// Package headers selects which inbound request headers are forwarded to the
// upstream image host.
package headers

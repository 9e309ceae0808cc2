// Package pipeline composes one proxy request: parse and canonicalise the
// source URL, fetch it upstream, decide whether transcoding is worthwhile,
// transcode, and describe the response for the HTTP layer.
//
// Failures are returned as *[Error] carrying a [Kind] that maps onto an HTTP
// status; no partial image bytes are ever produced.
package pipeline

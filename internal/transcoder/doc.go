// Package transcoder turns upstream image bytes into a smaller rendition.
//
// A transcode decodes the source (container sniffed from content), resizes
// it to at most MaxWidth pixels wide with a Lanczos filter, optionally
// desaturates it, and encodes AVIF or JPEG at the requested quality. If the
// encoded output is strictly larger than the source, the source bytes are
// returned unchanged and tagged "original".
//
// Codec work runs on a bounded workers.Pool so image processing never
// competes with request handling for more CPUs than configured, and waits on
// the memory.Monitor while the heap is near its limit.
package transcoder

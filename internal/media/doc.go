// Package media is the image codec layer of the proxy.
//
// It decodes upstream bytes (JPEG, PNG, GIF, WebP, BMP, TIFF; format sniffed
// from content), resizes with a Lanczos filter, desaturates, and encodes via
// an [Encoder]:
//   - JPEG: imaging / image/jpeg, always available
//   - AVIF: libvips through govips, available when [InitVips] succeeded and
//     the libvips build has an AVIF saver
//
// [NewAVIFEncoder] picks the AVIF implementation at startup and silently
// substitutes JPEG when AVIF is unavailable, so callers only ever see a
// different [Format] tag.
package media

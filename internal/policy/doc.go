// Package policy decides whether an upstream image is worth transcoding.
//
// [Policy.ShouldBypass] applies, in order: a byte-size floor, the
// [Policy.ShouldCompress] criteria (supported type, size window, higher floor
// for PNG/GIF when the client forced JPEG), and finally an image/* check.
// The first failing rule names the bypass [Reason].
package policy

package pipeline

import (
	"crypto/md5" //nolint:gosec // MD5 is used as a URL fingerprint, not for security
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// DefaultQuality is used when l is absent or not a number.
const DefaultQuality = 40

// Params are the parsed query parameters of a compress request.
type Params struct {
	// URL is the trimmed source URL as given by the client
	URL string
	// WantAVIF is false when the client forced the JPEG family with jpeg=1
	WantAVIF  bool
	Grayscale bool
	Quality   int
	// RequestID tags log lines for this request; it is not read from the query
	RequestID string
}

// hostProfile is the UTS #46 lookup profile without STD3 rules, so hosts
// with underscores (common in bucket and CDN names) are accepted.
var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(false),
	idna.StrictDomainName(false),
)

var (
	errMissingURL        = errors.New("missing url parameter")
	errUnsupportedScheme = errors.New("unsupported scheme")
	errMissingHost       = errors.New("missing host")
)

// ParseParams reads url, jpeg, bw and l from q.
//
// jpeg=1 or a bare jpeg flag forces JPEG output; bw=1 requests grayscale;
// l is the quality, defaulting to 40 and clamped to [0, 100].
func ParseParams(q url.Values) (Params, error) {
	raw := strings.TrimSpace(q.Get("url"))
	if raw == "" {
		return Params{}, &Error{Kind: KindValidation, Message: "Missing query parameters", Err: errMissingURL}
	}

	forceJPEG := false
	if vals, ok := q["jpeg"]; ok {
		v := ""
		if len(vals) > 0 {
			v = vals[0]
		}
		forceJPEG = v == "1" || v == ""
	}

	quality := DefaultQuality
	if l := strings.TrimSpace(q.Get("l")); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			quality = max(0, min(100, n))
		}
	}

	return Params{
		URL:       raw,
		WantAVIF:  !forceJPEG,
		Grayscale: q.Get("bw") == "1",
		Quality:   quality,
	}, nil
}

// CanonicalURL normalises raw so that equivalent spellings hash the same:
// lower-case scheme and host, IDNA host in ASCII form, "/" for an empty path,
// fragment dropped. Only absolute http and https URLs are accepted.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", errUnsupportedScheme, u.Scheme)
	}

	hostname := u.Hostname()
	if hostname == "" {
		return "", errMissingHost
	}

	if net.ParseIP(hostname) == nil {
		ascii, err := hostProfile.ToASCII(strings.ToLower(hostname))
		if err != nil {
			return "", fmt.Errorf("host %q: %w", hostname, err)
		}
		hostname = ascii
	} else if strings.Contains(hostname, ":") {
		hostname = "[" + strings.ToLower(hostname) + "]"
	}

	if port := u.Port(); port != "" {
		u.Host = hostname + ":" + port
	} else {
		u.Host = hostname
	}

	if u.Path == "" && u.RawPath == "" && u.Opaque == "" {
		u.Path = "/"
	}
	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), nil
}

// HashURL returns the hex MD5 fingerprint of a canonical URL.
func HashURL(canonical string) string {
	sum := md5.Sum([]byte(canonical)) //nolint:gosec // fingerprint only
	return hex.EncodeToString(sum[:])
}

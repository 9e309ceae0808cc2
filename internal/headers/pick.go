package headers

import (
	"net/http"
	"sort"
	"strings"
)

// DefaultWhitelist is the set of inbound headers forwarded upstream.
var DefaultWhitelist = []string{
	"cookie",
	"dnt",
	"referer",
	"user-agent",
	"accept",
	"accept-language",
}

// Pick returns the entries of source whose names appear in whitelist, matched
// case-insensitively and keyed by the lower-cased whitelist spelling.
// When several source keys fold to the same name, the value of the key that
// sorts last wins.
func Pick(source map[string]string, whitelist []string) map[string]string {
	keys := make([]string, 0, len(source))
	for k := range source {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	folded := make(map[string]string, len(source))
	for _, k := range keys {
		folded[strings.ToLower(k)] = source[k]
	}

	result := make(map[string]string, len(whitelist))
	for _, name := range whitelist {
		lower := strings.ToLower(name)
		if v, ok := folded[lower]; ok {
			result[lower] = v
		}
	}
	return result
}

// PickHeader is Pick for an http.Header. Multi-valued headers keep their last value.
func PickHeader(h http.Header, whitelist []string) http.Header {
	flat := make(map[string]string, len(h))
	for k, values := range h {
		if len(values) > 0 {
			flat[k] = values[len(values)-1]
		}
	}

	out := make(http.Header, len(whitelist))
	for k, v := range Pick(flat, whitelist) {
		out.Set(k, v)
	}
	return out
}

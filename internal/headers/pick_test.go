package headers

import (
	"net/http"
	"reflect"
	"testing"
)

func TestPick(t *testing.T) {
	tests := []struct {
		name      string
		source    map[string]string
		whitelist []string
		expected  map[string]string
	}{
		{
			name:      "Case insensitive match",
			source:    map[string]string{"User-Agent": "X", "REFERER": "Y"},
			whitelist: []string{"user-agent", "referer"},
			expected:  map[string]string{"user-agent": "X", "referer": "Y"},
		},
		{
			name:      "Whitelist spelling is lower-cased",
			source:    map[string]string{"accept": "image/webp"},
			whitelist: []string{"Accept"},
			expected:  map[string]string{"accept": "image/webp"},
		},
		{
			name:      "Absent key yields no entry",
			source:    map[string]string{"User-Agent": "X"},
			whitelist: []string{"user-agent", "cookie"},
			expected:  map[string]string{"user-agent": "X"},
		},
		{
			name:      "Non-whitelisted headers dropped",
			source:    map[string]string{"Authorization": "secret", "DNT": "1"},
			whitelist: DefaultWhitelist,
			expected:  map[string]string{"dnt": "1"},
		},
		{
			name:      "Empty source",
			source:    map[string]string{},
			whitelist: DefaultWhitelist,
			expected:  map[string]string{},
		},
		{
			name:      "Case collision resolves deterministically",
			source:    map[string]string{"Referer": "first", "referer": "last"},
			whitelist: []string{"referer"},
			expected:  map[string]string{"referer": "last"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pick(tt.source, tt.whitelist)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Pick() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPickHeader(t *testing.T) {
	h := http.Header{}
	h.Set("User-Agent", "Mozilla/5.0")
	h.Add("Accept-Language", "en")
	h.Add("Accept-Language", "fr")
	h.Set("X-Forwarded-For", "10.0.0.1")

	got := PickHeader(h, DefaultWhitelist)

	if got.Get("User-Agent") != "Mozilla/5.0" {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
	if got.Get("Accept-Language") != "fr" {
		t.Errorf("Accept-Language should keep the last value, got %q", got.Get("Accept-Language"))
	}
	if got.Get("X-Forwarded-For") != "" {
		t.Error("X-Forwarded-For must not be forwarded")
	}
	if len(got) != 2 {
		t.Errorf("expected 2 headers, got %d: %v", len(got), got)
	}
}

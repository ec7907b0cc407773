package wallet

import (
	"net/url"
	"sort"
	"strings"
)

// HasCompletionMarker reports whether rawURL carries any of the configured
// redirect-completion query parameters. A URL that does not parse carries
// nothing.
func HasCompletionMarker(rawURL string, markers []string) bool {
	return len(markerValues(rawURL, markers)) > 0
}

// StripMarkers removes all configured completion markers from rawURL so a
// later reload does not re-trigger handshake completion. Unparseable URLs are
// returned unchanged.
func StripMarkers(rawURL string, markers []string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for _, m := range markers {
		q.Del(m)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// markerValues returns the present marker parameters and their values.
func markerValues(rawURL string, markers []string) map[string]string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	q := u.Query()
	found := make(map[string]string)
	for _, m := range markers {
		if q.Has(m) {
			found[m] = q.Get(m)
		}
	}
	if len(found) == 0 {
		return nil
	}
	return found
}

// markerFingerprint canonically serializes a marker set so the manager can
// recognize markers it already consumed.
func markerFingerprint(values map[string]string) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(values[k])
		b.WriteByte('&')
	}
	return b.String()
}

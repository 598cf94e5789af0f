package push

import (
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// buildPath derives the gateway path for job and grouping key.
//
// The job name is percent-encoded as a single path segment into the fixed
// /metrics/job/<job> prefix.
// A grouping-key value containing '/' cannot appear literally in a path
// segment, so it is base64url-encoded (with padding) and its label gets an
// "@base64" suffix. An empty value encodes to the single padding character
// "=" — a bare empty segment could be collapsed by HTTP intermediaries.
// All other values are percent-encoded literally.
//
// Segments are appended in sorted label order. The gateway reads the suffix
// as an order-independent label set, so any deterministic order is valid;
// sorting keeps the derived path stable across runs.
func buildPath(job string, groupingKey map[string]string) string {
	var b strings.Builder
	b.WriteString("/metrics/job/")
	b.WriteString(url.PathEscape(job))

	names := make([]string, 0, len(groupingKey))
	for name := range groupingKey {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := groupingKey[name]
		switch {
		case strings.Contains(value, "/"):
			b.WriteString("/" + name + "@base64/")
			b.WriteString(base64.URLEncoding.EncodeToString([]byte(value)))
		case value == "":
			// base64 of "" is "", which would leave an empty segment again.
			b.WriteString("/" + name + "@base64/=")
		default:
			// Path-segment escaping, not query escaping: a space must become
			// %20, never "+", which path decoding keeps as a literal plus.
			b.WriteString("/" + name + "/")
			b.WriteString(url.PathEscape(value))
		}
	}
	return b.String()
}

package conversation

import (
	"net/http"
	"strings"
)

func requestHeaders(apiKey, userAgent string) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "text/event-stream")
	// Uncompressed bodies flush frame by frame
	h.Set("Accept-Encoding", "identity")
	if apiKey != "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}
	if userAgent != "" {
		h.Set("User-Agent", userAgent)
	}
	return h
}

// redactHeaders returns a copy of h that is safe to log.
func redactHeaders(h http.Header) map[string][]string {
	m := make(map[string][]string, len(h))
	for k, v := range h {
		lower := strings.ToLower(k)
		if lower == "authorization" || lower == "x-api-key" {
			m[k] = []string{"[REDACTED]"}
		} else {
			m[k] = v
		}
	}
	return m
}

package images

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	dataURIPattern = regexp.MustCompile(`(?is)^data:([^;,]*)?(;base64)?,(.*)$`)
	pngDataURI     = regexp.MustCompile(`(?i)^data:image/png(?:;[^,]*)?,`)
	whitespace     = regexp.MustCompile(`\s+`)
)

// IsDataURI reports whether s is an inline data: URL.
func IsDataURI(s string) bool {
	return len(s) >= 5 && strings.EqualFold(s[:5], "data:")
}

// IsPNGDataURI reports whether s carries an inline PNG payload.
func IsPNGDataURI(s string) bool {
	return pngDataURI.MatchString(s)
}

// DecodeDataURI returns the payload of a base64 or percent-encoded data URI.
func DecodeDataURI(dataURI string) ([]byte, error) {
	m := dataURIPattern.FindStringSubmatch(dataURI)
	if m == nil {
		return nil, fmt.Errorf("invalid data URI")
	}
	payload := m[3]
	if m[2] != "" {
		data, err := base64.StdEncoding.DecodeString(whitespace.ReplaceAllString(payload, ""))
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 data URI: %w", err)
		}
		return data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URI: %w", err)
	}
	return []byte(text), nil
}

// MediaType returns the declared media type of a data URI, or "".
func MediaType(dataURI string) string {
	m := dataURIPattern.FindStringSubmatch(dataURI)
	if m == nil {
		return ""
	}
	return m[1]
}

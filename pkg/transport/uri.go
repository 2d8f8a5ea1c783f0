package transport

import (
	"errors"
	"net/url"
	"strings"
)

// ErrUnsupportedScheme is returned by NormalizeURI for anything other than
// ws, wss, http or https.
var ErrUnsupportedScheme = errors.New("transport: unsupported scheme")

// ErrEmptyURI is returned by NormalizeURI for an empty string.
var ErrEmptyURI = errors.New("transport: empty uri")

// NormalizeURI rewrites http to ws and https to wss and validates the result.
// It reports whether the URI needs TLS.
func NormalizeURI(raw string) (uri string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, ErrEmptyURI
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false, err
	}

	switch strings.ToLower(u.Scheme) {
	case "ws":
		u.Scheme = "ws"
	case "wss":
		u.Scheme = "wss"
		secure = true
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
		secure = true
	default:
		return "", false, ErrUnsupportedScheme
	}

	if u.Host == "" {
		return "", false, ErrUnsupportedScheme
	}

	return u.String(), secure, nil
}

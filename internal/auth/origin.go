package auth

import (
	"net/url"
	"strings"
)

// Origin is a parsed (scheme, host, port) triple, compared by value per
// spec §4.2.
type Origin struct {
	Scheme string
	Host   string
	Port   string
}

// ParseOrigin parses an Origin header value into its (scheme, host, port)
// components. Missing scheme is assumed http:// (spec §4.2 app-domain
// normalization applies the same default to app_domain).
func ParseOrigin(raw string) (Origin, bool) {
	if raw == "" {
		return Origin{}, false
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return Origin{}, false
	}
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	return Origin{Scheme: strings.ToLower(u.Scheme), Host: strings.ToLower(u.Hostname()), Port: port}, true
}

// MatchesAny reports whether o equals any of the allowed local origins
// (spec §4.2 "password auth is valid only if ... matches one of the
// gateway's configured local origins").
func (o Origin) MatchesAny(allowed []Origin) bool {
	for _, a := range allowed {
		if o == a {
			return true
		}
	}
	return false
}

// NormalizeAppDomain lowercases the host and, if it does not end in one
// of the allowed suffixes, rewrites it into the canonical
// "<origin>.<suffix>" form (spec §4.2). The first allowed suffix is used
// as the canonical one when a rewrite is needed.
func NormalizeAppDomain(appDomain string, allowedSuffixes []string) (Origin, bool) {
	o, ok := ParseOrigin(appDomain)
	if !ok {
		return Origin{}, false
	}
	for _, suffix := range allowedSuffixes {
		if strings.HasSuffix(o.Host, suffix) {
			return o, true
		}
	}
	if len(allowedSuffixes) == 0 {
		return o, true
	}
	o.Host = o.Host + "." + strings.TrimPrefix(allowedSuffixes[0], ".")
	return o, true
}

// MatchesOrigin reports whether the request's Origin (already parsed)
// binds to this normalized app_domain (spec §4.2 "session auth is valid
// only if the request's Origin matches the session's bound app_domain").
func (o Origin) MatchesOrigin(reqOrigin Origin) bool {
	return o == reqOrigin
}

// Package rtspurl parses, rebuilds and masks camera RTSP URLs.
//
// Parsing is best effort: input that does not look like an RTSP URL yields a
// zero or partial Parts value instead of an error. Use IsValid at API
// boundaries where malformed input must be rejected.
package rtspurl

import (
	"net"
	"regexp"
	"strconv"
	"strings"
)

// DefaultPort is the RTSP port assumed when the URL does not carry one.
const DefaultPort = 554

// MaskToken replaces the credential segment of a masked URL.
const MaskToken = "***:***"

var (
	embeddedCredentials = regexp.MustCompile(`(?i)(rtsps?://)[^\s/?#]*@`)
	hostnamePattern     = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?)*$`)
)

// Parts is the decomposed form of an RTSP URL.
type Parts struct {
	Scheme         string
	Username       string
	Password       string
	Host           string
	Port           int
	Path           string
	HasCredentials bool
}

// layout holds the byte offsets of the structural parts of a URL.
type layout struct {
	scheme    string
	restStart int // first byte after "://"
	at        int // index of the credential '@' in raw, -1 when absent
	hostStart int
	hostEnd   int // exclusive; first of "/?#" after the scheme, or len(raw)
}

func locate(raw string) (layout, bool) {
	sep := strings.Index(raw, "://")
	if sep <= 0 {
		return layout{}, false
	}
	l := layout{
		scheme:    strings.ToLower(raw[:sep]),
		restStart: sep + 3,
		at:        -1,
	}
	rest := raw[l.restStart:]

	// The authority ends at the first path, query or fragment separator.
	authority := rest
	if end := strings.IndexAny(rest, "/?#"); end >= 0 {
		authority = rest[:end]
	}
	l.hostEnd = l.restStart + len(authority)

	// Passwords may contain '@', so the last one inside the authority wins.
	if at := strings.LastIndex(authority, "@"); at >= 0 {
		l.at = l.restStart + at
		l.hostStart = l.at + 1
	} else {
		l.hostStart = l.restStart
	}
	return l, true
}

// Parse decomposes raw into its parts. It never fails.
func Parse(raw string) Parts {
	raw = strings.TrimSpace(raw)
	l, ok := locate(raw)
	if !ok {
		return Parts{}
	}

	p := Parts{Scheme: l.scheme, Port: DefaultPort}

	if l.at >= 0 {
		p.HasCredentials = true
		creds := raw[l.restStart:l.at]
		if i := strings.Index(creds, ":"); i >= 0 {
			p.Username = creds[:i]
			p.Password = creds[i+1:]
		} else {
			p.Username = creds
		}
	}

	p.Host, p.Port = splitHostPort(raw[l.hostStart:l.hostEnd])

	if l.hostEnd < len(raw) {
		p.Path = strings.TrimPrefix(raw[l.hostEnd:], "/")
	}
	return p
}

// splitHostPort returns port 0 when a port is present but not numeric.
func splitHostPort(hostport string) (string, int) {
	if strings.HasPrefix(hostport, "[") {
		end := strings.Index(hostport, "]")
		if end < 0 {
			return hostport, DefaultPort
		}
		host := hostport[1:end]
		tail := hostport[end+1:]
		if !strings.HasPrefix(tail, ":") {
			return host, DefaultPort
		}
		return host, parsePort(tail[1:])
	}

	i := strings.LastIndex(hostport, ":")
	if i < 0 {
		return hostport, DefaultPort
	}
	return hostport[:i], parsePort(hostport[i+1:])
}

func parsePort(s string) int {
	if s == "" {
		return 0
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return port
}

// Build reassembles a URL from parts. Credentials are inserted verbatim.
func Build(p Parts) string {
	var b strings.Builder

	scheme := p.Scheme
	if scheme == "" {
		scheme = "rtsp"
	}
	b.WriteString(scheme)
	b.WriteString("://")

	if p.HasCredentials || p.Username != "" || p.Password != "" {
		b.WriteString(p.Username)
		if p.Password != "" {
			b.WriteString(":")
			b.WriteString(p.Password)
		}
		b.WriteString("@")
	}

	if strings.Contains(p.Host, ":") {
		b.WriteString("[" + p.Host + "]")
	} else {
		b.WriteString(p.Host)
	}
	if p.Port != 0 {
		b.WriteString(":")
		b.WriteString(strconv.Itoa(p.Port))
	}
	if p.Path != "" {
		b.WriteString("/")
		b.WriteString(p.Path)
	}
	return b.String()
}

// Mask returns raw with its credential segment replaced by MaskToken.
// URLs without credentials, and non-URL input, are returned unchanged.
func Mask(raw string) string {
	l, ok := locate(raw)
	if !ok || l.at < 0 {
		return raw
	}
	return raw[:l.restStart] + MaskToken + raw[l.at:]
}

// MaskText masks every RTSP URL credential embedded in free text such as
// subprocess output or wrapped error messages.
func MaskText(s string) string {
	return embeddedCredentials.ReplaceAllString(s, "${1}"+MaskToken+"@")
}

// IsValid reports whether raw is an RTSP URL the relay is willing to open.
func IsValid(raw string) bool {
	if raw == "" || raw != strings.TrimSpace(raw) {
		return false
	}
	for _, r := range raw {
		if r <= 0x20 || r == 0x7f {
			return false
		}
	}

	l, ok := locate(raw)
	if !ok || (l.scheme != "rtsp" && l.scheme != "rtsps") {
		return false
	}

	hostport := raw[l.hostStart:l.hostEnd]
	host, port := splitHostPort(hostport)
	if port < 1 || port > 65535 {
		return false
	}
	return validHost(host)
}

func validHost(host string) bool {
	if host == "" {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		return true
	}
	// Dotted numerics that are not a valid IPv4 address are rejected.
	if strings.Trim(host, "0123456789.") == "" {
		return false
	}
	return hostnamePattern.MatchString(host)
}

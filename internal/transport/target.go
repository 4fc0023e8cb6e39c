package transport

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPort is used when the subscriber URL carries no port.
const DefaultPort = 80

// Target is a subscriber URL decomposed into the parts needed to frame a request.
type Target struct {
	Scheme string
	Host   string
	Port   int
	// Path is the request target, including the raw query if any.
	Path string
}

// ParseTarget decomposes a subscriber URL. The http and tcp schemes are
// accepted; both speak plain HTTP/1.1 over TCP.
func ParseTarget(raw string) (*Target, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, newError(ErrorKindInvalidURL, err, "invalid URL %q", raw)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "tcp" {
		return nil, newError(ErrorKindInvalidURL, nil, "unsupported scheme %q in URL %q", u.Scheme, raw)
	}

	host := u.Hostname()
	if host == "" {
		return nil, newError(ErrorKindInvalidURL, nil, "missing host in URL %q", raw)
	}

	port := DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return nil, newError(ErrorKindInvalidURL, err, "invalid port %q in URL %q", p, raw)
		}
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	return &Target{
		Scheme: scheme,
		Host:   host,
		Port:   port,
		Path:   path,
	}, nil
}

// Address returns the host:port pair to dial.
func (t *Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// String returns the normalized URL.
func (t *Target) String() string {
	return fmt.Sprintf("%s://%s%s", t.Scheme, t.Address(), t.Path)
}

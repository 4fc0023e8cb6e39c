package transport

import (
	"bytes"
	"strconv"
	"strings"
)

const headerTerminator = "\r\n\r\n"

// BuildRequest frames an HTTP/1.1 request carrying a JSON body.
// One request per connection: the peer is asked to close after responding.
func BuildRequest(method string, target *Target, body []byte) []byte {
	var b bytes.Buffer
	b.Grow(128 + len(body))

	b.WriteString(method)
	b.WriteByte(' ')
	b.WriteString(target.Path)
	b.WriteString(" HTTP/1.1\r\n")
	b.WriteString("Host: " + target.Address() + "\r\n")
	b.WriteString("Content-Type: application/json\r\n")
	b.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	b.WriteString("Connection: close\r\n")
	b.WriteString("\r\n")
	b.Write(body)

	return b.Bytes()
}

// Response is a raw HTTP response split into its parts.
type Response struct {
	// StatusCode is parsed from the status line, 0 if there is none.
	StatusCode int

	// Headers holds lower-cased header names. Never nil.
	Headers map[string]string

	Body string

	// BodyPresent is false when the response had no header terminator.
	BodyPresent bool
}

// ParseResponse splits raw at the first blank line into header block and
// body, then parses the header block. An empty input yields an empty,
// body-less response.
func ParseResponse(raw []byte) *Response {
	resp := &Response{Headers: map[string]string{}}
	if len(raw) == 0 {
		return resp
	}

	header, body, found := strings.Cut(string(raw), headerTerminator)
	resp.Headers = ParseHeaders(header)
	resp.StatusCode = parseStatusLine(header)
	if found {
		resp.Body = body
		resp.BodyPresent = true
	}
	return resp
}

// ParseHeaders parses a CRLF separated header block. Each line is split on
// the first ": "; lines without one (including the status line) are dropped.
func ParseHeaders(block string) map[string]string {
	headers := map[string]string{}
	for _, line := range strings.Split(block, "\r\n") {
		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		headers[strings.ToLower(name)] = value
	}
	return headers
}

func parseStatusLine(header string) int {
	line, _, _ := strings.Cut(header, "\r\n")
	if !strings.HasPrefix(line, "HTTP/") {
		return 0
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return code
}

// responseComplete reports whether raw already holds a whole response, so the
// reader can stop without waiting for the peer to close.
func responseComplete(raw []byte) bool {
	idx := bytes.Index(raw, []byte(headerTerminator))
	if idx < 0 {
		return false
	}
	header := string(raw[:idx])
	bodyLen := len(raw) - idx - len(headerTerminator)

	if code := parseStatusLine(header); code == 204 || code == 304 {
		return true
	}

	cl, ok := ParseHeaders(header)["content-length"]
	if !ok {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSpace(cl))
	if err != nil {
		return false
	}
	return bodyLen >= n
}

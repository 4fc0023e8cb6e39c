package transport

import (
	"strings"
	"testing"
)

func TestBuildRequest(t *testing.T) {
	target := &Target{Scheme: "http", Host: "localhost", Port: 3000, Path: "/create"}
	body := []byte(`{"entity":"t"}`)

	got := string(BuildRequest("POST", target, body))
	want := "POST /create HTTP/1.1\r\n" +
		"Host: localhost:3000\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-Length: 14\r\n" +
		"Connection: close\r\n" +
		"\r\n" +
		`{"entity":"t"}`

	if got != want {
		t.Errorf("Unexpected request framing:\n got: %q\nwant: %q", got, want)
	}
}

func TestBuildRequest_ContentLengthCountsBytes(t *testing.T) {
	target := &Target{Scheme: "http", Host: "h", Port: 80, Path: "/"}
	body := []byte(`{"name":"åäö"}`)

	got := string(BuildRequest("PATCH", target, body))
	if want := "Content-Length: 17\r\n"; !strings.Contains(got, want) {
		t.Errorf("Expected %q in request, got %q", want, got)
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantBody    string
		wantPresent bool
		wantStatus  int
		wantHeaders map[string]string
	}{
		{
			name:        "text body",
			raw:         "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nhello",
			wantBody:    "hello",
			wantPresent: true,
			wantStatus:  200,
			wantHeaders: map[string]string{"content-type": "text/plain"},
		},
		{
			name:        "no content",
			raw:         "HTTP/1.1 204 No Content\r\n\r\n",
			wantBody:    "",
			wantPresent: true,
			wantStatus:  204,
			wantHeaders: map[string]string{},
		},
		{
			name:        "empty",
			raw:         "",
			wantHeaders: map[string]string{},
		},
		{
			name:        "no terminator",
			raw:         "HTTP/1.1 200 OK\r\nX-Trace: abc",
			wantStatus:  200,
			wantHeaders: map[string]string{"x-trace": "abc"},
		},
		{
			name:        "malformed header lines dropped",
			raw:         "HTTP/1.1 404 Not Found\r\nbroken-line\r\nX-A:nospace\r\nX-B: ok\r\n\r\nNot Found",
			wantBody:    "Not Found",
			wantPresent: true,
			wantStatus:  404,
			wantHeaders: map[string]string{"x-b": "ok"},
		},
		{
			name:        "split on first separator only",
			raw:         "HTTP/1.1 200 OK\r\nX-Time: 12: 30\r\n\r\nline1\r\n\r\nline2",
			wantBody:    "line1\r\n\r\nline2",
			wantPresent: true,
			wantStatus:  200,
			wantHeaders: map[string]string{"x-time": "12: 30"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ParseResponse([]byte(tt.raw))

			if resp.Body != tt.wantBody {
				t.Errorf("Expected body %q, got %q", tt.wantBody, resp.Body)
			}
			if resp.BodyPresent != tt.wantPresent {
				t.Errorf("Expected BodyPresent=%v, got %v", tt.wantPresent, resp.BodyPresent)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if resp.Headers == nil {
				t.Fatal("Headers must never be nil")
			}
			if len(resp.Headers) != len(tt.wantHeaders) {
				t.Errorf("Expected headers %v, got %v", tt.wantHeaders, resp.Headers)
			}
			for k, v := range tt.wantHeaders {
				if resp.Headers[k] != v {
					t.Errorf("Expected header %s=%q, got %q", k, v, resp.Headers[k])
				}
			}
		})
	}
}

func TestParseHeaders_LowerCasesNames(t *testing.T) {
	headers := ParseHeaders("Content-TYPE: application/json\r\nX-Request-ID: 42")

	if headers["content-type"] != "application/json" {
		t.Errorf("Expected content-type header, got %v", headers)
	}
	if headers["x-request-id"] != "42" {
		t.Errorf("Expected x-request-id header, got %v", headers)
	}
}

func TestResponseComplete(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello", true},
		{"HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhel", false},
		{"HTTP/1.1 200 OK\r\nContent-Length: 5\r\n", false},
		{"HTTP/1.1 204 No Content\r\n\r\n", true},
		{"HTTP/1.1 200 OK\r\n\r\nstreaming", false},
		{"HTTP/1.1 200 OK\r\nContent-Length: nope\r\n\r\nx", false},
	}

	for _, tt := range tests {
		if got := responseComplete([]byte(tt.raw)); got != tt.want {
			t.Errorf("responseComplete(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

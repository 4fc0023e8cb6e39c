package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

// capturedRequest is what a test peer saw on the wire
type capturedRequest struct {
	Method string
	Path   string
	Host   string
	Header http.Header
	Close  bool
	Body   []byte
}

// startPeer runs a raw TCP peer and returns its address
func startPeer(t *testing.T, handle func(conn net.Conn)) (string, *atomic.Int32) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	var accepted atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			go func() {
				defer conn.Close()
				handle(conn)
			}()
		}
	}()

	return ln.Addr().String(), &accepted
}

func readRequest(conn net.Conn) (*capturedRequest, error) {
	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	return &capturedRequest{
		Method: req.Method,
		Path:   req.URL.RequestURI(),
		Host:   req.Host,
		Header: req.Header,
		Close:  req.Close,
		Body:   body,
	}, nil
}

func newTestTransport(readTimeout time.Duration) *RawTransport {
	return NewRawTransport(&RawConfig{
		ConnectTimeout: 2 * time.Second,
		ReadTimeout:    readTimeout,
	})
}

func TestRawTransportDeliver_Success(t *testing.T) {
	captured := make(chan *capturedRequest, 1)
	addr, _ := startPeer(t, func(conn net.Conn) {
		req, err := readRequest(conn)
		if err != nil {
			return
		}
		captured <- req
		io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 5\r\n\r\nhello")
	})

	payload := map[string]any{"entity": "t", "data": map[string]any{"a": 1}, "newId": 7}
	result := newTestTransport(2*time.Second).Deliver(context.Background(), &Request{
		ID:      "d-1",
		Method:  "POST",
		URL:     "http://" + addr + "/create",
		Payload: payload,
	})

	if result.Err != nil {
		t.Fatalf("Expected success, got %v", result.Err)
	}
	if result.Body != "hello" {
		t.Errorf("Expected body hello, got %q", result.Body)
	}
	if result.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", result.StatusCode)
	}
	if result.Headers["content-type"] != "text/plain" {
		t.Errorf("Expected content-type text/plain, got %v", result.Headers)
	}

	req := <-captured
	if req.Method != "POST" {
		t.Errorf("Expected POST, got %s", req.Method)
	}
	if req.Path != "/create" {
		t.Errorf("Expected /create, got %s", req.Path)
	}
	if req.Host != addr {
		t.Errorf("Expected Host %s, got %s", addr, req.Host)
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Expected application/json, got %s", req.Header.Get("Content-Type"))
	}
	if !req.Close {
		t.Error("Expected Connection: close")
	}

	var got map[string]any
	if err := json.Unmarshal(req.Body, &got); err != nil {
		t.Fatalf("Body is not JSON: %v", err)
	}
	if got["entity"] != "t" || got["newId"] != float64(7) {
		t.Errorf("Unexpected body %s", req.Body)
	}
}

func TestRawTransportDeliver_TCPScheme(t *testing.T) {
	methods := make(chan string, 1)
	addr, _ := startPeer(t, func(conn net.Conn) {
		req, err := readRequest(conn)
		if err != nil {
			return
		}
		methods <- req.Method
		io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")
	})

	result := newTestTransport(2*time.Second).Deliver(context.Background(), &Request{
		Method:  "PATCH",
		URL:     "tcp://" + addr + "/update",
		Payload: map[string]any{"entity": "t"},
	})

	if result.Err != nil {
		t.Fatalf("Expected success, got %v", result.Err)
	}
	if m := <-methods; m != "PATCH" {
		t.Errorf("Expected PATCH, got %s", m)
	}
}

func TestRawTransportDeliver_PeerClosesWithoutResponse(t *testing.T) {
	addr, _ := startPeer(t, func(conn net.Conn) {
		readRequest(conn)
	})

	result := newTestTransport(2*time.Second).Deliver(context.Background(), &Request{
		Method:  "DELETE",
		URL:     "http://" + addr + "/delete",
		Payload: map[string]any{"entity": "t"},
	})

	if result.Err != nil {
		t.Fatalf("Expected successful empty outcome, got %v", result.Err)
	}
	if result.BodyPresent || result.Body != "" {
		t.Errorf("Expected absent body, got %q", result.Body)
	}
	if result.Headers == nil || len(result.Headers) != 0 {
		t.Errorf("Expected empty headers, got %v", result.Headers)
	}
}

func TestRawTransportDeliver_NoContentReturnsWithoutClose(t *testing.T) {
	addr, _ := startPeer(t, func(conn net.Conn) {
		readRequest(conn)
		io.WriteString(conn, "HTTP/1.1 204 No Content\r\n\r\n")
		// Hold the connection open; the client must not wait for EOF.
		io.Copy(io.Discard, conn)
	})

	result := newTestTransport(3*time.Second).Deliver(context.Background(), &Request{
		Method:  "POST",
		URL:     "http://" + addr + "/",
		Payload: map[string]any{},
	})

	if result.Err != nil {
		t.Fatalf("Expected success, got %v", result.Err)
	}
	if result.Body != "" || len(result.Headers) != 0 {
		t.Errorf("Expected empty body and headers, got %q %v", result.Body, result.Headers)
	}
	if result.Duration > 2*time.Second {
		t.Errorf("Expected early completion, took %v", result.Duration)
	}
}

func TestRawTransportDeliver_TimesOutAndReleasesConnection(t *testing.T) {
	released := make(chan struct{})
	addr, _ := startPeer(t, func(conn net.Conn) {
		readRequest(conn)
		// Never respond; returns once the client closes its end.
		io.Copy(io.Discard, conn)
		close(released)
	})

	result := newTestTransport(100*time.Millisecond).Deliver(context.Background(), &Request{
		Method:  "POST",
		URL:     "http://" + addr + "/slow",
		Payload: map[string]any{"entity": "t"},
	})

	if !errors.Is(result.Err, ErrTimedOut) {
		t.Fatalf("Expected ErrTimedOut, got %v", result.Err)
	}
	if len(result.Headers) != 0 {
		t.Errorf("Expected empty headers on failure, got %v", result.Headers)
	}

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Error("Connection was not released after timeout")
	}
}

func TestRawTransportDeliver_PartialResponseKept(t *testing.T) {
	addr, _ := startPeer(t, func(conn net.Conn) {
		readRequest(conn)
		io.WriteString(conn, "HTTP/1.1 200 OK\r\nX-Mode: stream\r\n\r\npartial")
		io.Copy(io.Discard, conn)
	})

	result := newTestTransport(200*time.Millisecond).Deliver(context.Background(), &Request{
		Method:  "POST",
		URL:     "http://" + addr + "/",
		Payload: map[string]any{},
	})

	if result.Err != nil {
		t.Fatalf("Expected partial success, got %v", result.Err)
	}
	if result.Body != "partial" {
		t.Errorf("Expected body partial, got %q", result.Body)
	}
	if result.Headers["x-mode"] != "stream" {
		t.Errorf("Expected x-mode header, got %v", result.Headers)
	}
}

func TestRawTransportDeliver_ResponseCapped(t *testing.T) {
	addr, _ := startPeer(t, func(conn net.Conn) {
		readRequest(conn)
		io.WriteString(conn, "HTTP/1.1 200 OK\r\n\r\n0123456789abcdefghij")
	})

	tr := NewRawTransport(&RawConfig{ReadTimeout: 2 * time.Second, MaxResponseBytes: 24})
	result := tr.Deliver(context.Background(), &Request{
		Method:  "POST",
		URL:     "http://" + addr + "/",
		Payload: map[string]any{},
	})

	if result.Err != nil {
		t.Fatalf("Expected success, got %v", result.Err)
	}
	if result.BytesRead != 24 {
		t.Errorf("Expected 24 bytes read, got %d", result.BytesRead)
	}
	if result.Body != "01234" {
		t.Errorf("Expected truncated body 01234, got %q", result.Body)
	}
}

func TestRawTransportDeliver_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	result := newTestTransport(time.Second).Deliver(context.Background(), &Request{
		Method:  "POST",
		URL:     "http://" + addr + "/create",
		Payload: map[string]any{},
	})

	if !errors.Is(result.Err, ErrConnection) {
		t.Fatalf("Expected ErrConnection, got %v", result.Err)
	}
	var e *Error
	if errors.As(result.Err, &e) && e.Errno == 0 {
		t.Errorf("Expected errno to be captured, got %v", e)
	}
}

func TestRawTransportDeliver_InvalidURLNeverConnects(t *testing.T) {
	_, accepted := startPeer(t, func(conn net.Conn) {})

	result := newTestTransport(time.Second).Deliver(context.Background(), &Request{
		Method:  "POST",
		URL:     "ftp://127.0.0.1/create",
		Payload: map[string]any{},
	})

	if !errors.Is(result.Err, ErrInvalidURL) {
		t.Fatalf("Expected ErrInvalidURL, got %v", result.Err)
	}
	if accepted.Load() != 0 {
		t.Errorf("Expected no connection, got %d", accepted.Load())
	}
}

func TestRawTransportDeliver_InvalidPayloadNeverConnects(t *testing.T) {
	addr, accepted := startPeer(t, func(conn net.Conn) {})

	result := newTestTransport(time.Second).Deliver(context.Background(), &Request{
		Method:  "POST",
		URL:     "http://" + addr + "/create",
		Payload: map[string]any{"ch": make(chan int)},
	})

	if !errors.Is(result.Err, ErrInvalidPayload) {
		t.Fatalf("Expected ErrInvalidPayload, got %v", result.Err)
	}

	time.Sleep(50 * time.Millisecond)
	if accepted.Load() != 0 {
		t.Errorf("Expected no connection, got %d", accepted.Load())
	}
}

func TestRawTransportDeliver_ContextCancelled(t *testing.T) {
	addr, _ := startPeer(t, func(conn net.Conn) {
		readRequest(conn)
		io.Copy(io.Discard, conn)
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	result := newTestTransport(5*time.Second).Deliver(ctx, &Request{
		Method:  "POST",
		URL:     "http://" + addr + "/",
		Payload: map[string]any{},
	})

	if !errors.Is(result.Err, ErrIO) {
		t.Fatalf("Expected ErrIO for cancelled delivery, got %v", result.Err)
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("Expected context.Canceled cause, got %v", result.Err)
	}
	if result.Duration > 2*time.Second {
		t.Errorf("Expected cancellation to cut the wait short, took %v", result.Duration)
	}
}

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"go.entityhooks.tech/internal/common/metrics"
)

// RawConfig configures the raw HTTP/1.1 transport
type RawConfig struct {
	// ConnectTimeout bounds connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout bounds the wait for the response, measured from the
	// moment the request has been written
	ReadTimeout time.Duration

	// MaxResponseBytes caps how much of the response is kept
	MaxResponseBytes int
}

// DefaultRawConfig returns the default transport bounds
func DefaultRawConfig() *RawConfig {
	return &RawConfig{
		ConnectTimeout:   30 * time.Second,
		ReadTimeout:      5 * time.Second,
		MaxResponseBytes: 1 << 20,
	}
}

// RawTransport frames HTTP/1.1 requests by hand over a plain TCP connection.
// Each delivery owns exactly one connection, which is never reused.
type RawTransport struct {
	dialer           *net.Dialer
	readTimeout      time.Duration
	maxResponseBytes int
}

// NewRawTransport creates a raw transport
func NewRawTransport(cfg *RawConfig) *RawTransport {
	c := *DefaultRawConfig()
	if cfg != nil {
		if cfg.ConnectTimeout > 0 {
			c.ConnectTimeout = cfg.ConnectTimeout
		}
		if cfg.ReadTimeout > 0 {
			c.ReadTimeout = cfg.ReadTimeout
		}
		if cfg.MaxResponseBytes > 0 {
			c.MaxResponseBytes = cfg.MaxResponseBytes
		}
	}

	return &RawTransport{
		dialer:           &net.Dialer{Timeout: c.ConnectTimeout},
		readTimeout:      c.ReadTimeout,
		maxResponseBytes: c.MaxResponseBytes,
	}
}

// Deliver sends req and waits, bounded, for the response.
func (t *RawTransport) Deliver(ctx context.Context, req *Request) *Result {
	started := time.Now()

	target, err := ParseTarget(req.URL)
	if err != nil {
		return failure(err, started)
	}

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return failure(newError(ErrorKindInvalidPayload, err, "encode payload: %v", err), started)
	}

	slog.Debug("Dialing subscriber",
		"deliveryId", req.ID,
		"address", target.Address())

	conn, err := t.dialer.DialContext(ctx, "tcp", target.Address())
	if err != nil {
		return failure(newError(ErrorKindConnection, err, "connect %s: %v", target.Address(), err), started)
	}
	defer conn.Close()

	// Cancellation interrupts any pending read or write.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	deadline := time.Now().Add(t.readTimeout)
	conn.SetWriteDeadline(deadline)
	if _, err := conn.Write(BuildRequest(req.Method, target, body)); err != nil {
		return failure(t.classify(ctx, err, "write request"), started)
	}

	raw, err := t.readResponse(ctx, conn)
	if err != nil {
		return failure(err, started)
	}
	metrics.DeliveryResponseBytes.Observe(float64(len(raw)))

	resp := ParseResponse(raw)

	slog.Debug("Subscriber responded",
		"deliveryId", req.ID,
		"statusCode", resp.StatusCode,
		"bytes", len(raw),
		"duration", time.Since(started))

	return &Result{
		Body:        resp.Body,
		BodyPresent: resp.BodyPresent,
		StatusCode:  resp.StatusCode,
		Headers:     resp.Headers,
		BytesRead:   len(raw),
		Duration:    time.Since(started),
	}
}

// readResponse collects the response until the peer closes, the response is
// complete, the size cap is reached or the read bound expires. Receiving
// nothing at all before the bound is a timeout; a peer that closes without
// sending anything yields an empty response.
func (t *RawTransport) readResponse(ctx context.Context, conn net.Conn) ([]byte, error) {
	conn.SetReadDeadline(time.Now().Add(t.readTimeout))

	raw := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			raw = append(raw, chunk[:n]...)
			if len(raw) >= t.maxResponseBytes {
				return raw[:t.maxResponseBytes], nil
			}
			if responseComplete(raw) {
				return raw, nil
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			return raw, nil
		}
		if len(raw) > 0 && ctx.Err() == nil {
			// Partial data is kept; the peer simply stopped talking.
			return raw, nil
		}
		return nil, t.classify(ctx, err, "read response")
	}
}

func (t *RawTransport) classify(ctx context.Context, err error, op string) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return newError(ErrorKindTimedOut, ctxErr, "%s: %v", op, ctxErr)
		}
		return newError(ErrorKindIO, ctxErr, "%s: %v", op, ctxErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(ErrorKindTimedOut, err, "%s: no response within %s", op, t.readTimeout)
	}
	return newError(ErrorKindIO, err, "%s: %v", op, err)
}

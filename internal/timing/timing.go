package timing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// MaxBodySize bounds how much of a response body is buffered
const MaxBodySize = 1 << 20

// NoCacheHeaders are forced onto every benchmarked request
var NoCacheHeaders = map[string]string{
	"Cache-Control": "no-cache, no-store, must-revalidate",
	"Pragma":        "no-cache",
	"Expires":       "0",
}

// ErrNoResponse is reported when a call returns neither a value nor an error
var ErrNoResponse = errors.New("call returned no response")

// ErrBodyTooLarge is reported when a response body exceeds MaxBodySize
var ErrBodyTooLarge = errors.New("response body exceeds limit")

// Timed is the outcome of a measured call. Exactly one of Value and Err
// is meaningful; Duration is always set.
type Timed[T any] struct {
	Value    T
	Duration time.Duration
	Err      error
}

// OK reports whether the call succeeded
func (t Timed[T]) OK() bool {
	return t.Err == nil
}

// Seconds returns the duration in seconds
func (t Timed[T]) Seconds() float64 {
	return t.Duration.Seconds()
}

// Measure runs call and records how long it took. Panics inside call
// are recovered and reported through Err.
func Measure[T any](call func() (T, error)) (result Timed[T]) {
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		if r := recover(); r != nil {
			var zero T
			result.Value = zero
			result.Err = fmt.Errorf("panic during call: %v", r)
		}
	}()

	result.Value, result.Err = call()
	if result.Err != nil {
		var zero T
		result.Value = zero
	}
	return result
}

// Result is a timed HTTP exchange. On success Response.Body is already
// fully read and can be consumed any number of times via Body.
type Result struct {
	Timed[*http.Response]
	Body []byte
}

// Response returns the response, nil on failure
func (r Result) Response() *http.Response {
	return r.Value
}

// Doer sends HTTP requests; *http.Client satisfies it
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher sends benchmarked requests
type Dispatcher struct {
	client Doer
}

// NewDispatcher creates a dispatcher. A nil client uses a client with
// the default timeouts.
func NewDispatcher(client Doer) *Dispatcher {
	if client == nil {
		client = NewHTTPClient(0, 0)
	}
	return &Dispatcher{client: client}
}

// Do sends req with caching disabled and times it from just before the
// send until the body has been read. It never returns an error: transport
// and read failures are reported in the result.
func (d *Dispatcher) Do(req *http.Request) Result {
	ApplyNoCache(req.Header)

	var body []byte
	timed := Measure(func() (*http.Response, error) {
		resp, err := d.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, ErrNoResponse
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
		if err != nil {
			return nil, fmt.Errorf("reading response body: %w", err)
		}
		if len(body) > MaxBodySize {
			return nil, fmt.Errorf("%w of %d bytes", ErrBodyTooLarge, MaxBodySize)
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return resp, nil
	})

	if timed.Err != nil {
		body = nil
	}
	return Result{Timed: timed, Body: body}
}

// ApplyNoCache merges the no-cache headers into h, replacing any
// conflicting caller values
func ApplyNoCache(h http.Header) {
	for k, v := range NoCacheHeaders {
		h.Set(k, v)
	}
}

// NoCacheTransport applies the no-cache headers to requests it did not build
type NoCacheTransport struct {
	Base http.RoundTripper
}

func (t *NoCacheTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	// RoundTrippers must not modify the caller's request
	clone := req.Clone(req.Context())
	ApplyNoCache(clone.Header)
	return base.RoundTrip(clone)
}

// Default outbound timeouts
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultTimeout        = 15 * time.Second
)

// NewHTTPClient builds a client with a dial timeout and an overall
// request timeout. Zero values use the defaults.
func NewHTTPClient(connectTimeout, timeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

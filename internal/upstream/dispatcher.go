// Package upstream reaches the assignment backend through a pool of
// interchangeable mirrors.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Strategy selects how the pool is walked.
type Strategy int

const (
	// Race sends to every mirror at once; the first 200 wins.
	Race Strategy = iota
	// Fallback tries mirrors in declared order and stops at the first 200.
	Fallback
)

func (s Strategy) String() string {
	switch s {
	case Race:
		return "race"
	case Fallback:
		return "fallback"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ErrNoEndpoints is returned when the pool is empty.
var ErrNoEndpoints = errors.New("no upstream endpoints configured")

// Credentials are forwarded as HTTP Basic auth on every request.
type Credentials struct {
	Username string
	Password string
}

// Request is a relative backend call. Path may carry a query string.
type Request struct {
	Method      string
	Path        string
	Header      http.Header
	Body        []byte
	Credentials Credentials
}

// Response is a fully read 200 response.
type Response struct {
	Endpoint   string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// StatusError is a response with any status other than 200. The dispatcher
// does not interpret it; callers decide what a 401 means.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// IsUnauthorized reports whether err carries a definitive 401.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher sends requests to an ordered pool of base URLs.
type Dispatcher struct {
	pool   []string
	client Doer
}

// NewDispatcher wraps a pool. Order matters for Fallback and for the error
// Race reports when every mirror fails.
func NewDispatcher(pool []string, client Doer) *Dispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Dispatcher{
		pool:   append([]string(nil), pool...),
		client: client,
	}
}

// Pool returns the configured base URLs.
func (d *Dispatcher) Pool() []string {
	return append([]string(nil), d.pool...)
}

// Dispatch sends req with the given strategy.
func (d *Dispatcher) Dispatch(ctx context.Context, strategy Strategy, req Request) (*Response, error) {
	if len(d.pool) == 0 {
		return nil, ErrNoEndpoints
	}

	switch strategy {
	case Race:
		return d.race(ctx, req)
	case Fallback:
		return d.fallback(ctx, req)
	default:
		return nil, errors.Errorf("unknown dispatch strategy %s", strategy)
	}
}

type outcome struct {
	index int
	resp  *Response
	err   error
}

// race fires at every mirror and returns the first success. When every mirror
// fails, the error of the first pool entry is returned.
func (d *Dispatcher) race(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan outcome, len(d.pool))
	for i, base := range d.pool {
		go func(i int, base string) {
			resp, err := d.send(ctx, base, req)
			results <- outcome{index: i, resp: resp, err: err}
		}(i, base)
	}

	errs := make([]error, len(d.pool))
	for range d.pool {
		o := <-results
		if o.err == nil {
			return o.resp, nil
		}
		jww.DEBUG.Printf("Race %s %s via %s failed: %v", req.Method, req.Path, d.pool[o.index], o.err)
		errs[o.index] = o.err
	}

	return nil, errors.WithMessagef(errs[0], "all %d upstream endpoints failed", len(d.pool))
}

// fallback walks the pool in order and stops at the first success.
func (d *Dispatcher) fallback(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for _, base := range d.pool {
		resp, err := d.send(ctx, base, req)
		if err == nil {
			return resp, nil
		}
		jww.WARN.Printf("Unable to %s %s via %s: %v", req.Method, req.Path, base, err)
		lastErr = err
	}

	return nil, errors.WithMessagef(lastErr, "all %d upstream endpoints failed", len(d.pool))
}

func (d *Dispatcher) send(ctx context.Context, base string, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, base+req.Path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build request for %s", base)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.SetBasicAuth(req.Credentials.Username, req.Credentials.Password)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, "request to %s failed", base)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read response from %s", base)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{
			Endpoint:   base,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	return &Response{
		Endpoint:   base,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

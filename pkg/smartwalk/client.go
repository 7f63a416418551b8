// Package smartwalk talks to the smartwalk location and route search API.
package smartwalk

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/bingoohuang/gg/pkg/ss"
	"github.com/bingoohuang/walkperf/pkg/util"
	"github.com/valyala/fasthttp"
)

const (
	DefaultBaseURL = "http://localhost:5017"
	AcceptJSON     = `application/json; charset=utf-8`
)

// StatusError is returned for every response other than 200 OK.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// Response is a timed 200 OK response.
type Response struct {
	Body []byte
	Cost time.Duration
}

// Millis returns the round trip time in milliseconds.
func (r *Response) Millis() float64 { return float64(r.Cost.Nanoseconds()) / 1e6 }

type Client struct {
	base   string
	isTLS  bool
	cli    *fasthttp.HostClient
	invoke func(req *fasthttp.Request, rsp *fasthttp.Response) error
}

type Option func(*fasthttp.HostClient)

// WithDial replaces the dialer, e.g. with an in-memory listener.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *fasthttp.HostClient) { c.Dial = dial }
}

// New builds a client for baseURL, e.g. http://localhost:5017/api.
// Timeouts are expressions like 5s,dial:1s,read:3s accepted by util.ParseDurations.
func New(baseURL string, timeouts *util.Durations, options ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url %s, err: %w", baseURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %s has no host", baseURL)
	}
	if timeouts == nil {
		timeouts = &util.Durations{}
	}

	c := &Client{
		base:  strings.TrimSuffix(baseURL, "/"),
		isTLS: u.Scheme == "https",
	}

	dialTimeout := timeouts.Get("dial", "d")
	c.cli = &fasthttp.HostClient{
		Addr:         addMissingPort(u.Host, c.isTLS),
		IsTLS:        c.isTLS,
		Name:         "walkperf",
		MaxConns:     1,
		ReadTimeout:  timeouts.Get("read", "r"),
		WriteTimeout: timeouts.Get("write", "w"),
	}
	if dialTimeout > 0 {
		c.cli.Dial = func(addr string) (net.Conn, error) { return fasthttp.DialTimeout(addr, dialTimeout) }
	}
	for _, o := range options {
		o(c.cli)
	}

	if doTimeout := timeouts.Get("do"); doTimeout > 0 {
		c.invoke = func(req *fasthttp.Request, rsp *fasthttp.Response) error {
			return c.cli.DoTimeout(req, rsp, doTimeout)
		}
	} else {
		c.invoke = c.cli.Do
	}

	return c, nil
}

// URL resolves uri against the base url.
func (c *Client) URL(uri string) string { return c.base + uri }

// Get issues one GET and times it from just before sending to just after the full body is read.
func (c *Client) Get(ctx context.Context, uri string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	rsp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(rsp)

	full := c.URL(uri)
	req.SetRequestURI(full)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", AcceptJSON)

	invoke := c.invoke
	if deadline, ok := ctx.Deadline(); ok {
		invoke = func(req *fasthttp.Request, rsp *fasthttp.Response) error {
			return c.cli.DoDeadline(req, rsp, deadline)
		}
	}

	t0 := time.Now()
	err := invoke(req, rsp)
	cost := time.Since(t0)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", full, err)
	}

	if code := rsp.StatusCode(); code != fasthttp.StatusOK {
		return nil, &StatusError{Code: code, URL: full}
	}

	return &Response{Body: append([]byte(nil), rsp.Body()...), Cost: cost}, nil
}

func (c *Client) Close() { c.cli.CloseIdleConnections() }

func addMissingPort(addr string, isTLS bool) string {
	if addr == "" {
		return ""
	}

	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}

	return net.JoinHostPort(addr, ss.If(isTLS, "443", "80"))
}

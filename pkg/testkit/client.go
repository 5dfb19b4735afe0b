package testkit

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Client talks to a handler over a real loopback server and keeps cookies
// between calls, so a login carries over to later requests.
type Client struct {
	t    testing.TB
	srv  *httptest.Server
	http *http.Client
}

// Response is a fully read HTTP response.
type Response struct {
	Code   int
	Header http.Header
	Body   []byte
}

// JSON decodes the body into v, failing the test on malformed JSON.
func (r *Response) JSON(t testing.TB, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body, v), "body: %s", r.Body)
}

func NewClient(t testing.TB, h http.Handler) *Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &Client{t: t, srv: srv, http: &http.Client{Jar: jar}}
}

// Jar exposes the cookie jar, e.g. for a websocket dialer.
func (c *Client) Jar() http.CookieJar { return c.http.Jar }

// URL is the absolute address of path on the test server.
func (c *Client) URL(path string) string { return c.srv.URL + path }

// Fork returns a client for the same server with an empty cookie jar, for
// acting as a second user.
func (c *Client) Fork() *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{t: c.t, srv: c.srv, http: &http.Client{Jar: jar}}
}

// Do sends body as JSON unless it is nil, a string or []byte.
func (c *Client) Do(method, path string, body any, header ...http.Header) *Response {
	c.t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	case []byte:
		rd = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(c.t, err)
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.URL(path), rd)
	require.NoError(c.t, err)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Explicit headers replace the defaults, e.g. a multipart Content-Type.
	for _, h := range header {
		for k, vs := range h {
			req.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
		}
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err, "%s %s", method, path)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return &Response{Code: resp.StatusCode, Header: resp.Header, Body: raw}
}

func (c *Client) Get(path string) *Response { return c.Do(http.MethodGet, path, nil) }

func (c *Client) Post(path string, body any) *Response { return c.Do(http.MethodPost, path, body) }

func (c *Client) Put(path string, body any) *Response { return c.Do(http.MethodPut, path, body) }

func (c *Client) Delete(path string) *Response { return c.Do(http.MethodDelete, path, nil) }

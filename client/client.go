package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/pvlbzn/aws-stack-application/telemetry"
)

var (
	errUnexpectedResponse = errors.New("unexpected response")
	errPlaintextHTTP2     = errors.New("http2 requires an https URL")
)

func genCustomHeader(req *http.Request, n int) {
	for i := 0; i < n; i++ {
		customHeader := fmt.Sprintf("Custom-Header-%d", i)
		customValue := fmt.Sprintf("Custom-Value-%d", i)
		req.Header.Add(customHeader, customValue)
	}
}

type Client struct {
	client  *http.Client
	proto   string
	headers int
}

// NewClient builds a client speaking proto, either "http1.1" or "http2".
// insecure skips certificate verification, for self-signed dev keys.
func NewClient(proto string, insecure bool, headers int) (*Client, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: insecure}

	var transport http.RoundTripper
	switch proto {
	case "http1.1":
		transport = &http.Transport{TLSClientConfig: tlsConfig}
	case "http2":
		// HTTP/2 is only negotiated over TLS, see Fetch.
		transport = &http2.Transport{TLSClientConfig: tlsConfig}
	default:
		return nil, fmt.Errorf("unknown protocol %q", proto)
	}
	return &Client{
		client:  &http.Client{Transport: transport},
		proto:   proto,
		headers: headers,
	}, nil
}

// Fetch sends one GET to url and checks it carries a greeting. The body is
// returned on success.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if c.proto == "http2" && req.URL.Scheme != "https" {
		return "", fmt.Errorf("%w: %s", errPlaintextHTTP2, url)
	}
	genCustomHeader(req, c.headers)
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}
	telemetry.RecordClientLatency(ctx, url, c.proto, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", errUnexpectedResponse, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
		return "", fmt.Errorf("%w: content type %q", errUnexpectedResponse, ct)
	}
	b := string(body)
	if !isGreeting(b) {
		return "", fmt.Errorf("%w: body %q", errUnexpectedResponse, b)
	}
	return b, nil
}

func isGreeting(body string) bool {
	if !strings.HasSuffix(body, "\n") {
		return false
	}
	rest, ok := strings.CutPrefix(body, "Hey from ")
	if !ok {
		rest, ok = strings.CutPrefix(body, "HTTPS hey from ")
	}
	return ok && strings.Contains(rest, " in ")
}

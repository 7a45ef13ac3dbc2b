// Package registry talks to npm-compatible package registries.
//
// A [Client] owns one keep-alive connection pool and a DNS cache for the
// lifetime of a command. It fetches the list of published versions and the
// dist-tags of a package; it never retries on its own. Wrap calls in
// [Retry] (or a [Retrier]) for fault tolerance, and put [NewCachedTags] in
// front of [Client.FetchDistTags] to reuse lookups across runs.
//
//	client := registry.New(registry.Options{URL: url, Token: token})
//	defer client.Close()
//
//	var versions []string
//	err := registry.Retry(ctx, func() error {
//	    var err error
//	    versions, err = client.FetchVersions(ctx, "react")
//	    return err
//	})
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/dnscache"

	"github.com/matzehuels/monopub/pkg/buildinfo"
	"github.com/matzehuels/monopub/pkg/errors"
	"github.com/matzehuels/monopub/pkg/observability"
)

// DefaultURL is the public npm registry.
const DefaultURL = "https://registry.npmjs.org/"

// abbreviatedMetadata asks the registry for the small "corgi" document,
// which still lists every published version.
const abbreviatedMetadata = "application/vnd.npm.install-v1+json; q=1.0, application/json; q=0.8, */*"

// dnsRefreshInterval is how often cached DNS entries are refreshed.
const dnsRefreshInterval = 5 * time.Minute

// Options configures a [Client].
type Options struct {
	URL       string // Registry base URL; DefaultURL when empty
	Token     string // Bearer token sent on every request (optional)
	UserAgent string // Overrides the default User-Agent (optional)
}

// Client is a handle to one registry. Create it with [New] and release it
// with [Client.Close].
type Client struct {
	base      string
	token     string
	userAgent string
	http      *http.Client
	transport *http.Transport
	stop      chan struct{}
	closeOnce sync.Once
}

// New creates a Client for opts.URL. The base URL always ends in "/".
// A background goroutine refreshes the DNS cache until Close is called.
func New(opts Options) *Client {
	base := opts.URL
	if base == "" {
		base = DefaultURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = buildinfo.UserAgent()
	}

	resolver := &dnscache.Resolver{}
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(dnsRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				resolver.Refresh(true)
			case <-stop:
				return
			}
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var lastErr error
			for _, ip := range ips {
				conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			if lastErr == nil {
				lastErr = fmt.Errorf("no addresses for %s", host)
			}
			return nil, lastErr
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		base:      base,
		token:     opts.Token,
		userAgent: ua,
		http:      &http.Client{Timeout: 60 * time.Second, Transport: transport},
		transport: transport,
		stop:      stop,
	}
}

// URL returns the normalized registry base URL.
func (c *Client) URL() string { return c.base }

// Close releases idle connections and stops the DNS refresher.
// It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.transport.CloseIdleConnections()
	})
	return nil
}

// FetchVersions returns every published version of name, sorted.
// A package the registry has never seen yields an empty list.
func (c *Client) FetchVersions(ctx context.Context, name string) ([]string, error) {
	if err := errors.ValidatePackageName(name); err != nil {
		return nil, err
	}
	u := c.base + EscapeName(name)

	var doc *struct {
		Versions map[string]json.RawMessage `json:"versions"`
	}
	status, err := c.getJSON(ctx, u, abbreviatedMetadata, &doc)
	if status == http.StatusNotFound {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &Error{URL: u, StatusCode: http.StatusOK, Err: fmt.Errorf("package document is not an object")}
	}

	versions := make([]string, 0, len(doc.Versions))
	for v := range doc.Versions {
		versions = append(versions, v)
	}
	slices.Sort(versions)
	return versions, nil
}

// FetchDistTags returns the dist-tags of name (e.g. "latest" -> "1.2.3").
// Tags whose value is not a string are dropped.
func (c *Client) FetchDistTags(ctx context.Context, name string) (map[string]string, error) {
	if err := errors.ValidatePackageName(name); err != nil {
		return nil, err
	}
	u := c.base + "-/package/" + EscapeName(name) + "/dist-tags"

	var raw map[string]any
	if _, err := c.getJSON(ctx, u, "application/json", &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, &Error{URL: u, StatusCode: http.StatusOK, Err: fmt.Errorf("dist-tags is not an object")}
	}

	tags := make(map[string]string, len(raw))
	for tag, v := range raw {
		if s, ok := v.(string); ok {
			tags[tag] = s
		}
	}
	return tags, nil
}

// getJSON performs a GET and decodes a 200 response into v. It returns the
// response status (0 on transport errors) alongside any error.
func (c *Client) getJSON(ctx context.Context, rawURL, accept string, v any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, &Error{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.EscapedPath()
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return 0, &Error{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(rawURL, resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, &Error{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return resp.StatusCode, nil
}

func checkStatus(rawURL string, code int) error {
	if code == http.StatusOK {
		return nil
	}
	return &Error{URL: rawURL, StatusCode: code}
}

// EscapeName escapes a package name for use as a registry path segment.
// Scoped names keep their "@" and encode the slash: "@scope%2fname".
func EscapeName(name string) string {
	if scope, pkg, ok := strings.Cut(name, "/"); ok && strings.HasPrefix(scope, "@") {
		return "@" + url.PathEscape(scope[1:]) + "%2f" + url.PathEscape(pkg)
	}
	return url.PathEscape(name)
}

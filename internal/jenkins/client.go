package jenkins

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/buildwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/buildwatch/internal/logfields"
	"git.home.luguber.info/inful/buildwatch/internal/retry"
	"git.home.luguber.info/inful/buildwatch/internal/version"
)

const (
	apiSuffix      = "api/json"
	defaultTimeout = 30 * time.Second
	versionHeader  = "X-Jenkins"
)

// Options configures a Client.
type Options struct {
	URL               string
	Username          string
	APIToken          string
	VerifyCertificate bool
	Timeout           time.Duration
	Retry             retry.Policy

	// HTTPClient replaces the client built from the TLS and timeout settings.
	HTTPClient *http.Client
}

// Client fetches Jenkins API documents by URL.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	apiToken   string
	policy     retry.Policy
	verifyTLS  bool

	mu      sync.RWMutex
	version string
}

// NewClient validates the server address and builds a client for it.
func NewClient(opts Options) (*Client, error) {
	if !strings.HasPrefix(opts.URL, "http://") && !strings.HasPrefix(opts.URL, "https://") {
		return nil, errors.ValidationError("jenkins url must start with http:// or https://").
			WithContext("url", opts.URL).
			Build()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if !opts.VerifyCertificate {
			// #nosec G402 -- certificate checks disabled only when verify_certificate is false
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		httpClient = &http.Client{Timeout: timeout, Transport: transport}
	}

	policy := opts.Retry
	if policy.Initial <= 0 || policy.Max <= 0 {
		policy = retry.DefaultPolicy()
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(opts.URL, "/"),
		username:   opts.Username,
		apiToken:   opts.APIToken,
		policy:     policy,
		verifyTLS:  opts.VerifyCertificate,
	}, nil
}

// BaseURL returns the normalized server address without trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// ServerName returns the server address without scheme, used to identify the server.
func (c *Client) ServerName() string { return ServerName(c.baseURL) }

// Version returns the Jenkins version seen on the last overview request.
func (c *Client) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// ServerName strips the scheme and trailing slash from a server address.
func ServerName(address string) string {
	name := address
	if idx := strings.Index(name, "://"); idx >= 0 {
		name = name[idx+3:]
	}
	return strings.TrimSuffix(name, "/")
}

// FetchOverview loads the server root document.
func (c *Client) FetchOverview(ctx context.Context) (*Overview, error) {
	var overview Overview
	header, err := c.get(ctx, "", &overview)
	if err != nil {
		return nil, err
	}
	overview.Version = header.Get(versionHeader)
	c.mu.Lock()
	c.version = overview.Version
	c.mu.Unlock()
	return &overview, nil
}

// FetchJob loads the job found at url, as listed by a container.
func (c *Client) FetchJob(ctx context.Context, url string) (*Job, error) {
	var job Job
	if _, err := c.get(ctx, url, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// FetchBuild loads the build found at url.
func (c *Client) FetchBuild(ctx context.Context, url string) (*Build, error) {
	var build Build
	if _, err := c.get(ctx, url, &build); err != nil {
		return nil, err
	}
	return &build, nil
}

// APIURL resolves path against the server and appends the JSON API suffix.
// Absolute URLs are used as they are.
func (c *Client) APIURL(path string) string {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + "/" + strings.TrimPrefix(path, "/")
	}
	if !strings.HasSuffix(target, "/") {
		target += "/"
	}
	return target + apiSuffix
}

func (c *Client) get(ctx context.Context, path string, result any) (http.Header, error) {
	target := c.APIURL(path)
	var header http.Header
	err := c.policy.Do(ctx, isTransient, func() error {
		var err error
		header, err = c.doRequest(ctx, target, result)
		if err != nil && isTransient(err) {
			slog.DebugContext(ctx, "jenkins request failed", logfields.URL(target), logfields.Error(err))
		}
		return err
	})
	return header, err
}

func (c *Client) newRequest(ctx context.Context, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, &RemoteError{URL: target, Message: "failed to create request", Err: err}
	}
	if c.username != "" && c.apiToken != "" {
		req.SetBasicAuth(c.username, c.apiToken)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	return req, nil
}

func (c *Client) doRequest(ctx context.Context, target string, result any) (http.Header, error) {
	req, err := c.newRequest(ctx, target)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteError{URL: target, Message: c.transportMessage(err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		limitedBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		bodyStr := strings.TrimSpace(strings.ReplaceAll(string(limitedBody), "\n", " "))
		msg := fmt.Sprintf("error response: %s", resp.Status)
		if bodyStr != "" && len(bodyStr) < 200 {
			msg = fmt.Sprintf("%s: %s", msg, bodyStr)
		}
		return nil, &RemoteError{StatusCode: resp.StatusCode, URL: target, Message: msg}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return nil, &RemoteError{StatusCode: resp.StatusCode, URL: target, Message: "failed to decode response", Err: err}
		}
	}
	return resp.Header, nil
}

func (c *Client) transportMessage(err error) string {
	var unknownAuthority x509.UnknownAuthorityError
	var verifyErr *tls.CertificateVerificationError
	if c.verifyTLS && (stderrors.As(err, &unknownAuthority) || stderrors.As(err, &verifyErr)) {
		return "server certificate not trusted; add it to the system trust store or set verify_certificate: false"
	}
	return "request failed"
}

func isTransient(err error) bool {
	var remote *RemoteError
	if stderrors.As(err, &remote) {
		return remote.Transient()
	}
	return false
}

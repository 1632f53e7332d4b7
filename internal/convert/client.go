// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert implements the Adobe online PDF conversion client: session
// setup, upload, conversion job polling, and download, with free-tier quota
// enforcement.
package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/pdiddy/adobe-helper/internal/endpoints"
	"github.com/pdiddy/adobe-helper/internal/httputil"
	"github.com/pdiddy/adobe-helper/internal/logging"
	"github.com/pdiddy/adobe-helper/internal/usage"
	"github.com/pdiddy/adobe-helper/pkg/types"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultPollInterval = 2 * time.Second
	defaultJobTimeout   = 5 * time.Minute

	statusDone   = "done"
	statusFailed = "failed"
)

var (
	// ErrNotInitialized is returned by ConvertFile before Initialize or after Close.
	ErrNotInitialized = errors.New("converter not initialized")

	// ErrConversionFailed is returned when the service reports a failed job.
	ErrConversionFailed = errors.New("conversion failed")

	// ErrTimeout is returned when a job does not finish within the job timeout.
	ErrTimeout = errors.New("conversion timed out")
)

// Quota gates conversions against a daily allowance. *usage.Tracker
// satisfies it.
type Quota interface {
	Remaining() int
	Increment(filename string) error
}

// Config holds the service URLs and timing for a Client.
type Config struct {
	Endpoints endpoints.Endpoints

	// SessionPage is fetched by Initialize to establish cookies.
	SessionPage string

	// TokenURL issues guest IMS tokens.
	TokenURL string

	// UserAgent pins the browser user agent; empty picks one from the pool.
	UserAgent string

	// AccessToken skips the guest token exchange when set.
	AccessToken string

	Timeout      time.Duration
	MaxRetries   int
	PollInterval time.Duration
	JobTimeout   time.Duration
}

// DefaultConfig returns a Config pointing at Adobe's public services.
func DefaultConfig() Config {
	return Config{
		Endpoints:    endpoints.Defaults(),
		SessionPage:  endpoints.PDFToWordPage,
		TokenURL:     endpoints.IMSCheckToken,
		Timeout:      defaultTimeout,
		PollInterval: defaultPollInterval,
		JobTimeout:   defaultJobTimeout,
	}
}

// ConfigFrom builds a Config from resolved endpoints and conversion settings.
func ConfigFrom(eps endpoints.Endpoints, cc types.ConversionConfig) Config {
	cfg := DefaultConfig()
	cfg.Endpoints = eps
	cfg.UserAgent = cc.UserAgent
	cfg.AccessToken = cc.AccessToken
	cfg.MaxRetries = cc.MaxRetries
	if cc.SessionPage != "" {
		cfg.SessionPage = cc.SessionPage
	}
	if cc.TokenURL != "" {
		cfg.TokenURL = cc.TokenURL
	}
	if cc.Timeout > 0 {
		cfg.Timeout = cc.Timeout
	}
	if cc.PollInterval > 0 {
		cfg.PollInterval = cc.PollInterval
	}
	if cc.JobTimeout > 0 {
		cfg.JobTimeout = cc.JobTimeout
	}
	return cfg
}

// Client converts PDFs through the Adobe online tools. Use New, then
// Initialize before converting, and Close when done. A Client is safe for
// concurrent use once initialized.
type Client struct {
	cfg   Config
	http  *http.Client
	quota Quota

	mu          sync.RWMutex
	initialized bool
	closed      bool
	token       string
	userAgent   string

	quotaMu sync.Mutex
	pending int
}

// New returns an uninitialized client. quota may be nil to disable usage
// tracking.
func New(cfg Config, quota Quota) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaultJobTimeout
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout, Jar: jar},
		quota: quota,
	}, nil
}

// Initialize establishes a browser-like session with the public conversion
// page and obtains a bearer token.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrNotInitialized
	}

	ua := c.cfg.UserAgent
	if ua == "" {
		ua = endpoints.UserAgents[rand.IntN(len(endpoints.UserAgents))]
	}
	c.userAgent = ua

	if err := c.initSession(ctx); err != nil {
		return err
	}

	token := c.cfg.AccessToken
	if token == "" {
		t, err := c.guestToken(ctx)
		if err != nil {
			return err
		}
		token = t
	} else {
		logging.Debug("using configured access token")
	}
	c.token = token
	c.initialized = true
	logging.Info("converter initialized", "session_page", c.cfg.SessionPage)
	return nil
}

func (c *Client) initSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.SessionPage, nil)
	if err != nil {
		return fmt.Errorf("creating session request: %w", err)
	}
	httputil.SetHeaders(req, endpoints.SessionInitHeaders())
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.cfg.MaxRetries)
	if err != nil {
		return fmt.Errorf("initializing session: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("initializing session: HTTP %d from %s", resp.StatusCode, c.cfg.SessionPage)
	}
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *Client) guestToken(ctx context.Context) (string, error) {
	u, err := url.Parse(c.cfg.TokenURL)
	if err != nil {
		return "", fmt.Errorf("parsing token URL: %w", err)
	}
	q := u.Query()
	q.Set("jslVersion", endpoints.IMSJSLVersion)
	u.RawQuery = q.Encode()

	form := url.Values{
		"client_id":     {endpoints.IMSGuestClientID},
		"scope":         {endpoints.IMSGuestScope},
		"guest_allowed": {"true"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", endpoints.IMSOrigin)
	req.Header.Set("Referer", endpoints.IMSReferer)

	var tr tokenResponse
	if err := c.doJSON(ctx, req, &tr); err != nil {
		return "", fmt.Errorf("requesting guest token: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("requesting guest token: response has no access_token")
	}
	return tr.AccessToken, nil
}

// Close releases idle connections. The client cannot convert afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.initialized = false
	c.token = ""
	c.mu.Unlock()
	c.http.CloseIdleConnections()
	return nil
}

// OutputPath returns where the converted form of input is written: next to
// the input, or in outputDir when set, with the format's extension.
func OutputPath(input, outputDir string, format types.OutputFormat) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + format.Extension()
	if outputDir != "" {
		return filepath.Join(outputDir, base)
	}
	return filepath.Join(filepath.Dir(input), base)
}

// ConvertToWord converts input to a .docx at output (or next to input).
func (c *Client) ConvertToWord(ctx context.Context, input, output string) (string, error) {
	return c.ConvertFile(ctx, input, output, types.FormatWord)
}

// ConvertFile converts the PDF at input into format and writes it to output
// (default: next to input). It returns the output path. The conversion is
// counted against the quota only when it succeeds.
func (c *Client) ConvertFile(ctx context.Context, input, output string, format types.OutputFormat) (string, error) {
	c.mu.RLock()
	ready := c.initialized && !c.closed
	c.mu.RUnlock()
	if !ready {
		return "", ErrNotInitialized
	}
	if format == "" {
		format = types.FormatWord
	}
	if !format.Valid() {
		return "", fmt.Errorf("unsupported output format %q", format)
	}
	if err := c.reserve(); err != nil {
		return "", err
	}
	ok := false
	defer func() { c.release(filepath.Base(input), ok) }()

	if err := validateInput(input); err != nil {
		return "", err
	}
	if output == "" {
		output = OutputPath(input, "", format)
	}

	id := xid.New().String()
	logging.Info("converting", "conversion_id", id, "input", input, "format", string(format))

	jobCtx, cancel := context.WithTimeout(ctx, c.cfg.JobTimeout)
	defer cancel()

	assetID, err := c.upload(jobCtx, input)
	if err != nil {
		return "", c.jobErr(ctx, jobCtx, fmt.Errorf("uploading %s: %w", input, err))
	}
	logging.Debug("uploaded", "conversion_id", id, "asset_id", assetID)

	jobID, err := c.startJob(jobCtx, assetID, format)
	if err != nil {
		return "", c.jobErr(ctx, jobCtx, fmt.Errorf("starting conversion of %s: %w", input, err))
	}
	logging.Debug("conversion started", "conversion_id", id, "job_id", jobID)

	downloadURI, err := c.poll(jobCtx, jobID)
	if err != nil {
		return "", c.jobErr(ctx, jobCtx, fmt.Errorf("converting %s: %w", input, err))
	}
	if downloadURI == "" {
		downloadURI, err = jobURL(c.cfg.Endpoints.Download, jobID)
		if err != nil {
			return "", err
		}
	}

	if err := c.download(jobCtx, downloadURI, output); err != nil {
		return "", c.jobErr(ctx, jobCtx, fmt.Errorf("downloading %s: %w", output, err))
	}

	ok = true
	logging.Info("conversion complete", "conversion_id", id, "output", output)
	return output, nil
}

// jobErr maps an expired job deadline to ErrTimeout while leaving caller
// cancellation untouched.
func (c *Client) jobErr(parent, job context.Context, err error) error {
	if parent.Err() == nil && errors.Is(job.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrTimeout, c.cfg.JobTimeout, err)
	}
	return err
}

func validateInput(input string) error {
	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("input %s: %w", input, err)
	}
	if info.IsDir() {
		return fmt.Errorf("input %s is a directory", input)
	}
	if !strings.EqualFold(filepath.Ext(input), ".pdf") {
		return fmt.Errorf("input %s is not a PDF file", input)
	}
	return nil
}

// reserve claims one conversion from the quota, counting conversions still
// in flight so concurrent callers cannot overrun the limit.
func (c *Client) reserve() error {
	if c.quota == nil {
		return nil
	}
	c.quotaMu.Lock()
	defer c.quotaMu.Unlock()
	if c.quota.Remaining()-c.pending <= 0 {
		return usage.ErrDailyLimitReached
	}
	c.pending++
	return nil
}

func (c *Client) release(filename string, succeeded bool) {
	if c.quota == nil {
		return
	}
	c.quotaMu.Lock()
	defer c.quotaMu.Unlock()
	c.pending--
	if succeeded {
		if err := c.quota.Increment(filename); err != nil {
			logging.Warn("conversion not recorded in usage", "file", filename, "error", err)
		}
	}
}

func (c *Client) authorize(req *http.Request) {
	httputil.SetHeaders(req, endpoints.CommonHeaders())
	c.mu.RLock()
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()
}

type uploadResponse struct {
	AssetID string `json:"asset_id"`
}

func (c *Client) upload(ctx context.Context, input string) (string, error) {
	f, err := os.Open(input)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(input))
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("reading PDF: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finishing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoints.Upload, bytes.NewReader(body.Bytes()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var ur uploadResponse
	if err := c.doJSON(ctx, req, &ur); err != nil {
		return "", err
	}
	if ur.AssetID == "" {
		return "", errors.New("upload response has no asset_id")
	}
	return ur.AssetID, nil
}

type jobRequest struct {
	AssetID string `json:"asset_id"`
	Format  string `json:"format"`
}

type jobResponse struct {
	JobID string `json:"job_id"`
}

func (c *Client) startJob(ctx context.Context, assetID string, format types.OutputFormat) (string, error) {
	payload, err := json.Marshal(jobRequest{
		AssetID: assetID,
		Format:  strings.TrimPrefix(format.Extension(), "."),
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoints.Conversion, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	var jr jobResponse
	if err := c.doJSON(ctx, req, &jr); err != nil {
		return "", err
	}
	if jr.JobID == "" {
		return "", errors.New("conversion response has no job_id")
	}
	return jr.JobID, nil
}

type statusResponse struct {
	Status      string `json:"status"`
	DownloadURI string `json:"download_uri"`
	Error       string `json:"error"`
}

// jobURL adds the job_id query parameter to endpoint, keeping any query the
// endpoint already carries.
func jobURL(endpoint, jobID string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	q.Set("job_id", jobID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// poll checks the job status every PollInterval until it is done or failed.
func (c *Client) poll(ctx context.Context, jobID string) (string, error) {
	statusURL, err := jobURL(c.cfg.Endpoints.Status, jobID)
	if err != nil {
		return "", err
	}
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}
		c.authorize(req)

		var sr statusResponse
		if err := c.doJSON(ctx, req, &sr); err != nil {
			return "", err
		}
		switch strings.ToLower(sr.Status) {
		case statusDone:
			return sr.DownloadURI, nil
		case statusFailed:
			if sr.Error != "" {
				return "", fmt.Errorf("%w: %s", ErrConversionFailed, sr.Error)
			}
			return "", ErrConversionFailed
		}
		logging.Debug("conversion pending", "job_id", jobID, "status", sr.Status)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// download fetches uri to destPath through a temporary file in the same
// directory.
func (c *Client) download(ctx context.Context, uri, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Accept", "*/*")

	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.cfg.MaxRetries)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, uri)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".convert-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if n == 0 {
		os.Remove(tmpPath)
		return fmt.Errorf("empty download from %s", uri)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// doJSON sends req with retry and decodes a 2xx JSON response into out.
func (c *Client) doJSON(ctx context.Context, req *http.Request, out any) error {
	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.cfg.MaxRetries)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, req.URL.Redacted(), strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response from %s: %w", req.URL.Redacted(), err)
	}
	return nil
}

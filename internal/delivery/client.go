package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/ramkansal/taglift/internal/wait"
	apperrors "github.com/ramkansal/taglift/pkg/errors"
	"github.com/ramkansal/taglift/pkg/plugin"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Client talks to the remote profile API. It uses Colly for transport so
// proxy, timeout and body limits are configured the same way as page
// fetching.
type Client struct {
	baseURL     string
	collector   *colly.Collector
	messenger   plugin.Messenger
	logger      *zap.Logger
	maxAttempts int
	backoff     time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// ClientConfig holds configuration for the API client.
type ClientConfig struct {
	BaseURL         string
	Timeout         time.Duration
	MaxAttempts     int
	Backoff         time.Duration
	Proxy           string
	MaxResponseSize int
}

// RequestMeta carries the per-extraction header values.
type RequestMeta struct {
	SessionID string
	UserAgent string
}

// Response is a raw API response.
type Response struct {
	StatusCode int
	Body       []byte
}

// NewClient creates a Colly-backed API client. messenger receives the
// redirectToLogin signal whenever the server rejects the token.
func NewClient(cfg ClientConfig, messenger plugin.Messenger, logger *zap.Logger) *Client {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
	)
	// Non-2xx responses are classified by the client, not reported as
	// transport errors.
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = true

	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}
	if cfg.Proxy != "" {
		_ = c.SetProxy(cfg.Proxy)
	}
	if cfg.MaxResponseSize > 0 {
		c.MaxBodySize = cfg.MaxResponseSize
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		collector:   c,
		messenger:   messenger,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		sleep:       wait.Sleep,
		now:         time.Now,
	}
}

// profilePayload is the POST /profiles body: the record plus the owner.
type profilePayload struct {
	Username string `json:"username"`
	*plugin.ProfileRecord
}

// Post makes a single delivery attempt. A 401/403 sends exactly one
// redirectToLogin and returns an AUTH_REJECTED error.
func (c *Client) Post(ctx context.Context, rec *plugin.ProfileRecord, creds plugin.Credentials, meta RequestMeta) (*Response, error) {
	body, err := json.Marshal(profilePayload{Username: creds.Username, ProfileRecord: rec})
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/profiles", body, creds, meta)
	if err != nil {
		return nil, err
	}
	if err := c.checkStatus(ctx, resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// Send delivers rec with up to MaxAttempts attempts. Attempt n waits
// n × Backoff before the next one. Auth rejection is terminal.
func (c *Client) Send(ctx context.Context, rec *plugin.ProfileRecord, creds plugin.Credentials, meta RequestMeta) (*Response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.Post(ctx, rec, creds, meta)
		if err == nil {
			c.logger.Info("Profile saved",
				zap.String("profile_url", rec.ProfileURL),
				zap.Int("attempt", attempt))
			return resp, nil
		}
		if apperrors.HasCode(err, apperrors.CodeAuthRejected) {
			return nil, err
		}

		lastErr = err
		c.logger.Warn("Profile delivery attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
			zap.Error(err))

		if attempt == c.maxAttempts {
			break
		}
		if err := c.sleep(ctx, time.Duration(attempt)*c.backoff); err != nil {
			return nil, apperrors.NewDeliveryError(attempt, err)
		}
	}
	return nil, apperrors.NewDeliveryError(c.maxAttempts, lastErr)
}

// IsDuplicate asks the server whether the user already saved a profile with
// the same URL or email.
func (c *Client) IsDuplicate(ctx context.Context, rec *plugin.ProfileRecord, creds plugin.Credentials, meta RequestMeta) (bool, error) {
	path := "/profiles?username=" + url.QueryEscape(creds.Username)
	resp, err := c.do(ctx, http.MethodGet, path, nil, creds, meta)
	if err != nil {
		return false, err
	}
	if err := c.checkStatus(ctx, resp); err != nil {
		return false, err
	}

	list := gjson.ParseBytes(resp.Body)
	if nested := list.Get("profiles"); nested.IsArray() {
		list = nested
	}
	if !list.IsArray() {
		return false, nil
	}

	duplicate := false
	list.ForEach(func(_, p gjson.Result) bool {
		if rec.ProfileURL != "" && p.Get("profileUrl").String() == rec.ProfileURL {
			duplicate = true
		}
		if rec.Email != "" && strings.EqualFold(p.Get("email").String(), rec.Email) {
			duplicate = true
		}
		return !duplicate
	})
	return duplicate, nil
}

// ListTags returns the user's saved tags.
func (c *Client) ListTags(ctx context.Context, creds plugin.Credentials) ([]plugin.Tag, error) {
	resp, err := c.do(ctx, http.MethodGet, "/tags", nil, creds, RequestMeta{})
	if err != nil {
		return nil, err
	}
	if err := c.checkStatus(ctx, resp); err != nil {
		return nil, err
	}

	raw := gjson.ParseBytes(resp.Body)
	if nested := raw.Get("tags"); nested.IsArray() {
		raw = nested
	}
	if !raw.IsArray() {
		return []plugin.Tag{}, nil
	}
	var tags []plugin.Tag
	if err := json.Unmarshal([]byte(raw.Raw), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}

// CreateTag saves a new tag.
func (c *Client) CreateTag(ctx context.Context, creds plugin.Credentials, tag plugin.Tag) error {
	body, err := json.Marshal(tag)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, "/tags", body, creds, RequestMeta{})
	if err != nil {
		return err
	}
	return c.checkStatus(ctx, resp)
}

// DeleteTag removes the tag with the given name.
func (c *Client) DeleteTag(ctx context.Context, creds plugin.Credentials, name string) error {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodDelete, "/tags", body, creds, RequestMeta{})
	if err != nil {
		return err
	}
	return c.checkStatus(ctx, resp)
}

func (c *Client) checkStatus(ctx context.Context, resp *Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.redirectToLogin(ctx, resp.StatusCode)
		return apperrors.NewAuthRejected(resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("server responded with status: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) redirectToLogin(ctx context.Context, status int) {
	c.logger.Warn("Server rejected credentials", zap.Int("status", status))
	if c.messenger == nil {
		return
	}
	msg := plugin.OutboundMessage{
		Action: plugin.ActionRedirectToLogin,
		Reason: "status " + strconv.Itoa(status),
	}
	if err := c.messenger.Send(ctx, msg); err != nil {
		c.logger.Warn("Failed to send redirectToLogin", zap.Error(err))
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, creds plugin.Credentials, meta RequestMeta) (*Response, error) {
	// Clone the collector for this request so callbacks don't pile up
	col := c.collector.Clone()
	col.Context = ctx

	var resp *Response
	col.OnResponse(func(r *colly.Response) {
		resp = &Response{StatusCode: r.StatusCode, Body: r.Body}
	})

	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Accept", "application/json")
	hdr.Set("Authorization", "Bearer "+creds.Token)
	hdr.Set("X-Request-Time", strconv.FormatInt(c.now().UnixMilli(), 10))
	if meta.UserAgent != "" {
		hdr.Set("User-Agent", meta.UserAgent)
	}
	if meta.SessionID != "" {
		hdr.Set("X-Session-ID", meta.SessionID)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	if err := col.Request(method, c.baseURL+path, reader, nil, hdr); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	col.Wait()

	if resp == nil {
		return nil, fmt.Errorf("%s %s: no response", method, path)
	}
	return resp, nil
}

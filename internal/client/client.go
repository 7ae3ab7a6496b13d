// Package client talks to the news server the way the page scripts do: it
// posts reactions and comments and can keep a visitor profile remotely.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"cthulhu-news/internal/auth"
	"cthulhu-news/internal/dedup"
)

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: timeout,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout, Transport: transport},
		logger:  logger,
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) expectOK(req *http.Request) ([]byte, error) {
	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{Method: req.Method, URL: req.URL.String(), Status: status, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// ReactEffect posts {"user_id": userID} to /react/{action}/{key} and returns
// the response body as the replacement fragment.
func (c *Client) ReactEffect(userID string) dedup.Effect {
	return func(ctx context.Context, action, key string) (string, error) {
		payload, err := json.Marshal(map[string]string{"user_id": userID})
		if err != nil {
			return "", err
		}
		endpoint := fmt.Sprintf("%s/react/%s/%s", c.baseURL, url.PathEscape(action), url.PathEscape(key))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		body, err := c.expectOK(req)
		if err != nil {
			return "", err
		}
		c.logger.Debug("reaction posted", zap.String("key", key), zap.String("action", action))
		return string(body), nil
	}
}

// CommentEffect posts a comment form to /submit_comment/{key}. The action
// argument is ignored.
func (c *Client) CommentEffect(userID, author, comment string) dedup.Effect {
	return func(ctx context.Context, _, key string) (string, error) {
		form := url.Values{"author": {author}, "comment": {comment}}
		endpoint := fmt.Sprintf("%s/submit_comment/%s?user=%s", c.baseURL, url.PathEscape(key), url.QueryEscape(userID))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		body, err := c.expectOK(req)
		if err != nil {
			return "", err
		}
		return string(body), nil
	}
}

// FetchPage returns the HTML of a server page, e.g. "/" or "/article/42".
func (c *Client) FetchPage(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html")
	body, err := c.expectOK(req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// RegisterVisitor asks the server for a visitor token. A non-empty
// visitorID is kept; otherwise the server mints one.
func (c *Client) RegisterVisitor(ctx context.Context, visitorID string) (*auth.VisitorResponse, error) {
	payload, err := json.Marshal(map[string]string{"visitor_id": visitorID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/visitor", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := c.expectOK(req)
	if err != nil {
		return nil, err
	}
	var resp auth.VisitorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode visitor: %w", err)
	}
	return &resp, nil
}

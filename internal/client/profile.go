package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// ProfileValue is the wire form of one profile entry.
type ProfileValue struct {
	Value string `json:"value"`
}

// ProfileStorage is a dedup.Storage kept on the server under the visitor
// identified by token.
type ProfileStorage struct {
	client *Client
	token  string
}

func (c *Client) ProfileStorage(token string) *ProfileStorage {
	return &ProfileStorage{client: c, token: token}
}

func (p *ProfileStorage) endpoint(key string) string {
	return p.client.baseURL + "/api/profile/" + url.PathEscape(key)
}

func (p *ProfileStorage) Get(ctx context.Context, key string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(key), nil)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	status, body, err := p.client.do(req)
	if err != nil {
		return "", false, err
	}
	switch {
	case status == http.StatusNotFound:
		return "", false, nil
	case status < 200 || status > 299:
		return "", false, &StatusError{Method: req.Method, URL: req.URL.String(), Status: status, Body: string(body)}
	}
	var v ProfileValue
	if err := json.Unmarshal(body, &v); err != nil {
		return "", false, fmt.Errorf("decode profile %s: %w", key, err)
	}
	return v.Value, true, nil
}

func (p *ProfileStorage) Set(ctx context.Context, key, value string) error {
	payload, err := json.Marshal(ProfileValue{Value: value})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.endpoint(key), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")
	_, err = p.client.expectOK(req)
	return err
}

func (p *ProfileStorage) Close() error { return nil }

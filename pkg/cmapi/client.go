// Package cmapi is the HTTP client of the media-control application that streams are
// published to and subscribed from.
package cmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	ActionPublish      = "publish"
	ActionSubscribe    = "subscribe"
	ActionRemoveStream = "removeStream"

	apiKeyHeader    = "X-Api-Key"
	_defaultTimeout = 5 * time.Second
	maxErrorBody    = 512
)

var ErrEmptyBaseURL = errors.New("cmapi: empty base url")

// StatusError is returned when the application answers with a non-2xx status.
type StatusError struct {
	Action     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cmapi: %s returned %d: %s", e.Action, e.StatusCode, e.Body)
}

type Request struct {
	ChannelName string `json:"channelName"`
	StreamID    string `json:"streamId"`
	Start       int64  `json:"start,omitempty"`
	Data        string `json:"data,omitempty"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: _defaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) Publish(ctx context.Context, channelName, streamID string, start time.Time, sessionData string) error {
	return c.call(ctx, ActionPublish, Request{
		ChannelName: channelName,
		StreamID:    streamID,
		Start:       start.Unix(),
		Data:        sessionData,
	})
}

func (c *Client) Subscribe(ctx context.Context, channelName, streamID string, start time.Time, sessionData string) error {
	return c.call(ctx, ActionSubscribe, Request{
		ChannelName: channelName,
		StreamID:    streamID,
		Start:       start.Unix(),
		Data:        sessionData,
	})
}

func (c *Client) RemoveStream(ctx context.Context, channelName, streamID string) error {
	return c.call(ctx, ActionRemoveStream, Request{
		ChannelName: channelName,
		StreamID:    streamID,
	})
}

func (c *Client) call(ctx context.Context, action string, request Request) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("cmapi: encode %s: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+action, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("cmapi: build %s: %w", action, err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cmapi: %s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Action: action, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

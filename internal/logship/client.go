// Package logship posts JSON log records to a Logz.io-style bulk HTTP listener.
package logship

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/i474232898/weather-poller/internal/logging"
	"github.com/i474232898/weather-poller/internal/weather"
)

const (
	userAgent  = "logzio-json-logs"
	bulkType   = "http-bulk"
	sourceName = "logz"

	// maxBodyEcho caps how much of a response body is kept on Response.
	maxBodyEcho = 4096
)

// ErrNotConfigured is returned by Post when no collector host is set.
var ErrNotConfigured = errors.New("log collector host is not configured")

// Response is what the collector answered.
type Response struct {
	StatusCode int
	Body       string
}

// Client ships records to the collector. It never retries.
type Client struct {
	host   string
	token  string
	client *http.Client
	logger *slog.Logger
}

// New creates a Client for host (full listener URL) authenticated by token.
func New(client *http.Client, host, token string, logger *slog.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		host:   host,
		token:  token,
		client: client,
		logger: logging.Default(logger).With("component", "logship"),
	}
}

// Post serializes record and sends it in a single request. Network errors and
// non-2xx answers come back as *weather.TransportError.
func (c *Client) Post(ctx context.Context, record any) (Response, error) {
	if c.host == "" {
		return Response{}, ErrNotConfigured
	}

	body, err := json.Marshal(record)
	if err != nil {
		return Response{}, fmt.Errorf("encode log record: %w", err)
	}

	endpoint, err := c.endpoint()
	if err != nil {
		return Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build log request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, &weather.TransportError{Source: sourceName, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyEcho))
	out := Response{StatusCode: resp.StatusCode, Body: string(respBody)}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, &weather.TransportError{
			Source:     sourceName,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("collector rejected record: %s", out.Body),
		}
	}

	c.logger.Debug("log record shipped", "status", resp.StatusCode, "bytes", len(body))
	return out, nil
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.host)
	if err != nil {
		return "", fmt.Errorf("parse log collector host: %w", err)
	}
	q := u.Query()
	q.Set("token", c.token)
	q.Set("type", bulkType)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Package scraper retrieves freelancer profiles from an asynchronous scraping
// provider: a collection is triggered, polled until ready and downloaded.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/job-ranker/internal/logger"
)

// Defaults for Config
const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxWait      = 5 * time.Minute
	DefaultTimeout      = 30 * time.Second
)

// snapshotIDKeys are the trigger response keys that may carry the snapshot
// id, in priority order.
var snapshotIDKeys = []string{"snapshot_id", "snapshotId", "id"}

// Snapshot states reported by the progress endpoint
const (
	StatusRunning = "running"
	StatusReady   = "ready"
	StatusFailed  = "failed"
)

var (
	// ErrNoSnapshotID is returned when the trigger response carries none of the snapshot id keys.
	ErrNoSnapshotID = errors.New("trigger response has no snapshot id")
	// ErrSnapshotFailed is returned when the provider reports the collection failed.
	ErrSnapshotFailed = errors.New("snapshot failed")
	// ErrTimeout is returned when the snapshot is not ready within MaxWait.
	ErrTimeout = errors.New("snapshot not ready in time")
	// ErrEmptySnapshot is returned when a ready snapshot holds no records.
	ErrEmptySnapshot = errors.New("snapshot is empty")
)

// Error reports a failed provider call.
type Error struct {
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("scraper %s failed", e.Operation)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" with status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Scraper turns a profile URL into a structured profile.
type Scraper interface {
	Scrape(ctx context.Context, profileURL string) (*ScrapedProfile, error)
}

// Config configures Client.
type Config struct {
	BaseURL      string
	APIKey       string
	DatasetID    string
	PollInterval time.Duration
	MaxWait      time.Duration
	Timeout      time.Duration
}

// Client talks to the scraping provider.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Client. BaseURL and APIKey are required.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("scraper base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("scraper API key is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.OrNop(log),
		sleep:      sleepContext,
	}, nil
}

// Scrape triggers a collection for profileURL, waits for it and returns the
// first record.
func (c *Client) Scrape(ctx context.Context, profileURL string) (*ScrapedProfile, error) {
	if u, err := url.Parse(profileURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid profile URL %q", profileURL)
	}

	snapshotID, err := c.Trigger(ctx, profileURL)
	if err != nil {
		return nil, err
	}
	log := c.log.With(zap.String("snapshot_id", snapshotID))
	log.Info("scraper: collection triggered", zap.String("url", profileURL))

	if err := c.Wait(ctx, snapshotID); err != nil {
		return nil, err
	}

	profiles, err := c.Download(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, ErrEmptySnapshot
	}

	log.Info("scraper: snapshot downloaded", zap.Int("records", len(profiles)))
	return &profiles[0], nil
}

// Trigger starts a collection and returns its snapshot id.
func (c *Client) Trigger(ctx context.Context, profileURL string) (string, error) {
	q := url.Values{}
	if c.cfg.DatasetID != "" {
		q.Set("dataset_id", c.cfg.DatasetID)
	}
	q.Set("format", "json")

	body := []map[string]string{{"url": profileURL}}
	var resp map[string]json.RawMessage
	if err := c.do(ctx, http.MethodPost, "trigger", "/trigger?"+q.Encode(), body, &resp); err != nil {
		return "", err
	}
	return snapshotID(resp)
}

// snapshotID returns the first non-empty string under snapshotIDKeys.
func snapshotID(resp map[string]json.RawMessage) (string, error) {
	for _, key := range snapshotIDKeys {
		raw, ok := resp[key]
		if !ok {
			continue
		}
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("trigger response %s is not a string: %w", key, err)
		}
		if id = strings.TrimSpace(id); id != "" {
			return id, nil
		}
	}
	return "", ErrNoSnapshotID
}

type progressResponse struct {
	Status string `json:"status"`
}

// Wait polls the snapshot until it is ready or has failed, at most
// MaxWait/PollInterval times.
func (c *Client) Wait(ctx context.Context, snapshotID string) error {
	maxPolls := max(1, int(c.cfg.MaxWait/c.cfg.PollInterval))

	for attempt := 1; attempt <= maxPolls; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
				return err
			}
		}

		var progress progressResponse
		if err := c.do(ctx, http.MethodGet, "progress", "/progress/"+url.PathEscape(snapshotID), nil, &progress); err != nil {
			return err
		}

		switch progress.Status {
		case StatusReady:
			return nil
		case StatusFailed:
			return fmt.Errorf("%w: %s", ErrSnapshotFailed, snapshotID)
		}

		c.log.Debug("scraper: snapshot not ready",
			zap.String("snapshot_id", snapshotID),
			zap.String("status", progress.Status),
			zap.Int("attempt", attempt))
	}

	return fmt.Errorf("%w: %s after %s", ErrTimeout, snapshotID, c.cfg.MaxWait)
}

// Download fetches the records of a ready snapshot.
func (c *Client) Download(ctx context.Context, snapshotID string) ([]ScrapedProfile, error) {
	var profiles []ScrapedProfile
	path := "/snapshot/" + url.PathEscape(snapshotID) + "?format=json"
	if err := c.do(ctx, http.MethodGet, "download", path, nil, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (c *Client) do(ctx context.Context, method, operation, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return &Error{Operation: operation, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Operation: operation, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Operation: operation, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Message:    logger.TruncateForLog(string(respBody), 512),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Operation: operation, Message: "invalid JSON response", Cause: err}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

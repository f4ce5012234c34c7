// Package registry implements the HTTP client for the road-network registry's
// streaming ("uberiket") API. Paged reads are exposed as bounded NDJSON streams
// driven by a per-item callback; each call yields at most one page.
package registry

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrObjectNotFound is returned by FetchObject when the registry has no
// object with the requested id.
var ErrObjectNotFound = errors.New("registry: object not found")

// StatusError reports a non-success HTTP status from the registry.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry: %s returned status %d", e.URL, e.Code)
}

// Options configures the registry client.
type Options struct {
	// BaseURL is the root of the registry API, without a trailing slash.
	BaseURL string

	// Timeout bounds a single page request, including body streaming.
	// Defaults to 60s.
	Timeout time.Duration

	// RetryAttempts is the number of attempts for establishing a request.
	// Defaults to 3. Non-success 4xx statuses are never retried.
	RetryAttempts uint
}

// Client is a road-network registry API client.
type Client struct {
	baseURL string
	http    *http.Client
	retries uint
	logger  *slog.Logger
}

// NewClient creates a registry client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = 3
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    &http.Client{Timeout: opts.Timeout},
		retries: opts.RetryAttempts,
		logger:  logger.With("component", "registry"),
	}
}

// StreamObjects reads one page of road objects of the given type, strictly
// after afterID (nil means from the beginning), at most limit items, invoking
// fn for each object in arrival order. The registry yields objects in
// increasing id order.
func (c *Client) StreamObjects(ctx context.Context, typeID, limit int, afterID *int64, fn func(RoadObject) error) error {
	params := url.Values{}
	params.Set("antall", strconv.Itoa(limit))
	if afterID != nil {
		params.Set("start", strconv.FormatInt(*afterID, 10))
	}

	endpoint := fmt.Sprintf("%s/vegobjekter/%d/stream?%s", c.baseURL, typeID, params.Encode())
	return c.streamNDJSON(ctx, endpoint, func(line []byte) error {
		var obj RoadObject
		if err := json.Unmarshal(line, &obj); err != nil {
			return fmt.Errorf("decode road object: %w", err)
		}
		return fn(obj)
	})
}

// FetchObject looks up the current state of a single object.
func (c *Client) FetchObject(ctx context.Context, typeID int, objectID int64) (*RoadObject, error) {
	params := url.Values{}
	params.Set("antall", "1")
	params.Set("ider", strconv.FormatInt(objectID, 10))

	endpoint := fmt.Sprintf("%s/vegobjekter/%d/stream?%s", c.baseURL, typeID, params.Encode())

	var found *RoadObject
	err := c.streamNDJSON(ctx, endpoint, func(line []byte) error {
		var obj RoadObject
		if err := json.Unmarshal(line, &obj); err != nil {
			return fmt.Errorf("decode road object: %w", err)
		}
		found = &obj
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: type %d id %d", ErrObjectNotFound, typeID, objectID)
	}
	return found, nil
}

// StreamChanges reads one page of change-log events for the given type,
// strictly after afterID, at most limit items, in log order.
func (c *Client) StreamChanges(ctx context.Context, typeID, limit int, afterID *int64, fn func(ChangeEvent) error) error {
	params := url.Values{}
	params.Set("antall", strconv.Itoa(limit))
	if afterID != nil {
		params.Set("start", strconv.FormatInt(*afterID, 10))
	}

	endpoint := fmt.Sprintf("%s/hendelser/vegobjekter/%d/stream?%s", c.baseURL, typeID, params.Encode())
	return c.streamNDJSON(ctx, endpoint, func(line []byte) error {
		var ev ChangeEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("decode change event: %w", err)
		}
		return fn(ev)
	})
}

// LatestChangeID returns the registry's current newest change-log id for the
// type. Used once, when a backfill starts.
func (c *Client) LatestChangeID(ctx context.Context, typeID int) (int64, error) {
	endpoint := fmt.Sprintf("%s/hendelser/vegobjekter/%d/siste", c.baseURL, typeID)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	var ev ChangeEvent
	if err := json.NewDecoder(body).Decode(&ev); err != nil {
		return 0, fmt.Errorf("decode latest change: %w", err)
	}
	return ev.ChangeID, nil
}

// FetchLinkSequences looks up road link sequences by id, for geometry
// enrichment.
func (c *Client) FetchLinkSequences(ctx context.Context, ids []int64) ([]LinkSequence, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = strconv.FormatInt(id, 10)
	}
	params := url.Values{}
	params.Set("ider", strings.Join(strs, ","))

	endpoint := fmt.Sprintf("%s/veglenkesekvenser/stream?%s", c.baseURL, params.Encode())

	var seqs []LinkSequence
	err := c.streamNDJSON(ctx, endpoint, func(line []byte) error {
		var seq LinkSequence
		if err := json.Unmarshal(line, &seq); err != nil {
			return fmt.Errorf("decode link sequence: %w", err)
		}
		seqs = append(seqs, seq)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seqs, nil
}

// get issues a GET with bounded retry. 4xx statuses are permanent; transport
// errors and 5xx are retried with exponential backoff.
func (c *Client) get(ctx context.Context, endpoint string) (io.ReadCloser, error) {
	resp, err := backoff.Retry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/x-ndjson")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			serr := &StatusError{Code: resp.StatusCode, URL: endpoint}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, backoff.Permanent(serr)
			}
			c.logger.Warn("registry request failed, retrying", "url", endpoint, "status", resp.StatusCode)
			return nil, serr
		}
		return resp, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.retries),
	)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// streamNDJSON reads newline-delimited JSON from endpoint, invoking fn per
// non-blank line. fn errors abort the stream and propagate.
func (c *Client) streamNDJSON(ctx context.Context, endpoint string, fn func(line []byte) error) error {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn([]byte(line)); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

// maxLineBytes bounds a single NDJSON line; registry objects with large
// placement lists can exceed the bufio default of 64 KiB.
const maxLineBytes = 4 * 1024 * 1024

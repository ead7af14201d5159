// Package metadata fetches clip lists from the streamsnip API.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"streamsnip/internal/config"
	"streamsnip/internal/entity"
	"streamsnip/internal/errs"
	"streamsnip/internal/observability"
)

// maxBodySize caps the clip list response.
const maxBodySize = 8 << 20

// Client is the clip metadata provider client.
type Client struct {
	log      *slog.Logger
	endpoint string
	agent    string
	client   *http.Client
	metrics  *observability.Metrics
}

// New creates a client for cfg.API.
func New(log *slog.Logger, cfg config.API, metrics *observability.Metrics) *Client {
	return &Client{
		log:      log.With(slog.String("package", "metadata")),
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		agent:    cfg.UserAgent,
		client:   &http.Client{Timeout: cfg.Timeout},
		metrics:  metrics,
	}
}

// Fetch returns the clips of videoID in provider order.
// Transport errors, non-200 responses, undecodable bodies and empty lists all wrap errs.ErrMetadataUnavailable.
func (c *Client) Fetch(ctx context.Context, videoID string) ([]entity.Clip, error) {
	log := c.log.With(slog.String("video_id", videoID))

	clips, err := c.fetch(ctx, videoID)
	if err != nil {
		c.metrics.RecordMetadataFetch("error")
		log.WarnContext(ctx, "fetch clips", slog.Any("error", err))

		return nil, fmt.Errorf("%w: %w", errs.ErrMetadataUnavailable, err)
	}

	if len(clips) == 0 {
		c.metrics.RecordMetadataFetch("empty")

		return nil, fmt.Errorf("%w: no clips for %s", errs.ErrMetadataUnavailable, videoID)
	}

	c.metrics.RecordMetadataFetch("ok")
	log.DebugContext(ctx, "clips fetched", slog.Int("clips", len(clips)))

	return clips, nil
}

func (c *Client) fetch(ctx context.Context, videoID string) ([]entity.Clip, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/"+url.PathEscape(videoID), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get clips: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var clips []entity.Clip
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&clips); err != nil {
		return nil, fmt.Errorf("decode clips: %w", err)
	}

	return clips, nil
}

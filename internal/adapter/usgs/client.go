package usgs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/quake-energy/internal/domain"
)

// fdsnTime is the timestamp layout accepted by the FDSN event service.
const fdsnTime = "2006-01-02T15:04:05.000"

// Client downloads catalog windows from the USGS FDSN event service.
// It implements pipeline.CatalogFetcher.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a catalog client. baseURL is the service root, e.g.
// https://earthquake.usgs.gov/fdsnws/event/1.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// QueryURL returns the CSV query URL for one window. The service treats
// endtime as inclusive, so one millisecond is subtracted to keep windows
// disjoint.
func (c *Client) QueryURL(bbox domain.BoundingBox, w domain.Window) string {
	params := url.Values{
		"format":       {"csv"},
		"starttime":    {w.Start.UTC().Format(fdsnTime)},
		"endtime":      {w.End.Add(-time.Millisecond).UTC().Format(fdsnTime)},
		"minlatitude":  {formatCoord(bbox.MinLat())},
		"maxlatitude":  {formatCoord(bbox.MaxLat())},
		"minlongitude": {formatCoord(bbox.MinLon())},
		"maxlongitude": {formatCoord(bbox.MaxLon())},
		"orderby":      {"time-asc"},
	}
	return c.baseURL + "/query?" + params.Encode()
}

// FetchWindow downloads and parses one window. Skipped rows are returned
// alongside the parsed events.
func (c *Client) FetchWindow(ctx context.Context, bbox domain.BoundingBox, index int, w domain.Window) ([]domain.Quake, []domain.ParseError, error) {
	u := c.QueryURL(bbox, w)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	c.logger.Debug("fetching catalog window", "window", index, "range", w.String(), "url", u)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog request for window %s: %w", w, err)
	}
	defer resp.Body.Close()

	// 204 No Content is how FDSN reports an empty result.
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, nil, fmt.Errorf("usgs API error: window %s: status %d: %s", w, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	quakes, skipped, err := domain.ParseCatalog(resp.Body, index)
	if err != nil {
		return nil, nil, fmt.Errorf("parse window %s: %w", w, err)
	}
	return quakes, skipped, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
